package fanout_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jmestre/hearth/internal/app/engine/fanout"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/jmestre/hearth/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newBroadcaster(t *testing.T) (*fanout.Broadcaster, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	users := userstore.New(db)
	groups := groupstore.New(db)
	ib := inbox.New(users, nil, zap.NewNop())
	return fanout.New(users, groups, ib, zap.NewNop()), fx
}

func countByType(u models.User, notifType string) int {
	n := 0
	for _, notif := range u.Notifications {
		if notif.Type == notifType {
			n++
		}
	}
	return n
}

func setPref(t *testing.T, fx *testutil.Fixtures, userID primitive.ObjectID, field string, value bool) {
	t.Helper()
	ctx := testutil.TestContext(t)
	_, err := fx.DB().Collection("users").UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{field: value},
	})
	if err != nil {
		t.Fatalf("set %s: %v", field, err)
	}
}

func TestPostEvent_NotifiesOptedInMembers(t *testing.T) {
	b, fx := newBroadcaster(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Birchwood", owner.ID)
	optedIn := fx.CreateMember(ctx, "Opted In", "in@test.com", g.ID)
	optedOut := fx.CreateMember(ctx, "Opted Out", "out@test.com", g.ID)
	setPref(t, fx, optedOut.ID, "notify_events", false)

	ev, err := b.PostEvent(ctx, g.ID, owner.ID, models.Event{
		Title:    "Block party",
		StartsAt: time.Now().UTC().Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("PostEvent failed: %v", err)
	}
	if ev.ID == "" {
		t.Error("event id not assigned")
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if _, ok := gotGroup.EventByID(ev.ID); !ok {
		t.Error("event not stored on group")
	}

	if countByType(fx.LoadUser(ctx, optedIn.ID), models.NotifNewEvent) != 1 {
		t.Error("opted-in member not notified")
	}
	if countByType(fx.LoadUser(ctx, optedOut.ID), models.NotifNewEvent) != 0 {
		t.Error("opted-out member was notified")
	}
	// The author never receives their own content notification.
	if countByType(fx.LoadUser(ctx, owner.ID), models.NotifNewEvent) != 0 {
		t.Error("author was notified of their own event")
	}
}

func TestPostNews_RespectsNewsPreference(t *testing.T) {
	b, fx := newBroadcaster(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Birchwood", owner.ID)
	reader := fx.CreateMember(ctx, "Reader", "reader@test.com", g.ID)
	muted := fx.CreateMember(ctx, "Muted", "muted@test.com", g.ID)
	setPref(t, fx, muted.ID, "notify_news", false)

	story, err := b.PostNews(ctx, g.ID, owner.ID, models.NewsStory{
		Title: "Street repaving next week",
		Body:  "Expect detours on Birch Ave.",
	})
	if err != nil {
		t.Fatalf("PostNews failed: %v", err)
	}
	if story.ID == "" {
		t.Error("story id not assigned")
	}

	if countByType(fx.LoadUser(ctx, reader.ID), models.NotifNewNews) != 1 {
		t.Error("subscribed member not notified")
	}
	if countByType(fx.LoadUser(ctx, muted.ID), models.NotifNewNews) != 0 {
		t.Error("muted member was notified")
	}
}

func TestPostReport_IgnoresPreferences(t *testing.T) {
	b, fx := newBroadcaster(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Birchwood", owner.ID)
	muted := fx.CreateMember(ctx, "Muted", "muted@test.com", g.ID)
	setPref(t, fx, muted.ID, "notify_events", false)
	setPref(t, fx, muted.ID, "notify_news", false)

	_, err := b.PostReport(ctx, g.ID, owner.ID, models.IncidentReport{
		Title:   "Suspicious vehicle",
		Details: "Dark sedan idling near the park entrance.",
	})
	if err != nil {
		t.Fatalf("PostReport failed: %v", err)
	}

	// Reports reach every other member regardless of preference.
	if countByType(fx.LoadUser(ctx, muted.ID), models.NotifNewReport) != 1 {
		t.Error("muted member did not receive the incident report")
	}
	if countByType(fx.LoadUser(ctx, owner.ID), models.NotifNewReport) != 0 {
		t.Error("author was notified of their own report")
	}
}

func TestPostEvent_NonMemberAuthorRejected(t *testing.T) {
	b, fx := newBroadcaster(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Birchwood", owner.ID)
	outsider := fx.CreateUser(ctx, "Outsider", "outsider@test.com")

	_, err := b.PostEvent(ctx, g.ID, outsider.ID, models.Event{
		Title:    "Crasher party",
		StartsAt: time.Now().UTC(),
	})
	if !errors.Is(err, fanout.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if len(gotGroup.Events) != 0 {
		t.Error("rejected event was stored")
	}
}

func TestPostEvent_SoleMemberGroupNotifiesNobody(t *testing.T) {
	b, fx := newBroadcaster(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Birchwood", owner.ID)

	ev, err := b.PostEvent(ctx, g.ID, owner.ID, models.Event{
		Title:    "Solo picnic",
		StartsAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("PostEvent failed: %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if _, ok := gotGroup.EventByID(ev.ID); !ok {
		t.Error("event not stored on group")
	}
}
