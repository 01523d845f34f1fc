// Package fanout stores new group content and broadcasts a notification
// to every eligible member's inbox.
//
// Recipients are the group roster minus the author, filtered by the
// per-user preference flag for the content kind. Incident reports are
// deliberately unfiltered: safety notices reach every other member.
// Each recipient write is independent; one failure never blocks the
// rest, and the caller receives a *steps.PartialFailure naming the
// recipients that were missed.
package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	"github.com/jmestre/hearth/internal/app/engine/steps"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	"github.com/jmestre/hearth/internal/app/store/guard"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/app/system/metrics"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrNotMember rejects content from authors outside the group.
var ErrNotMember = errors.New("author is not a member of this group")

// Content kinds, used as metric labels and step-op names.
const (
	KindEvent  = "event"
	KindNews   = "news"
	KindReport = "report"
)

type Broadcaster struct {
	users  *userstore.Store
	groups *groupstore.Store
	inbox  *inbox.Inbox
	log    *zap.Logger
}

func New(users *userstore.Store, groups *groupstore.Store, ib *inbox.Inbox, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{users: users, groups: groups, inbox: ib, log: logger}
}

// PostEvent stores the event on the group and notifies members who have
// event notifications enabled.
func (b *Broadcaster) PostEvent(ctx context.Context, groupID, authorID primitive.ObjectID, ev models.Event) (models.Event, error) {
	ev.ID = uuid.NewString()
	ev.AuthorID = authorID
	if ev.Attendees == nil {
		ev.Attendees = []primitive.ObjectID{}
	}
	ev.CreatedAt = time.Now().UTC()

	author, g, err := b.storeContent(ctx, groupID, authorID, func(cur *models.Group) bson.M {
		events := append(append([]models.Event{}, cur.Events...), ev)
		return bson.M{"events": events}
	})
	if err != nil {
		return models.Event{}, err
	}

	n := models.Notification{
		Type:    models.NotifNewEvent,
		Message: fmt.Sprintf("%s posted a new event: %s", author.FullName, ev.Title),
		EventID: ev.ID,
		GroupID: &groupID,
	}
	return ev, b.broadcast(ctx, KindEvent, *g, authorID, n, func(u models.User) bool { return u.NotifyEvents })
}

// PostNews stores the story and notifies members with news enabled.
func (b *Broadcaster) PostNews(ctx context.Context, groupID, authorID primitive.ObjectID, story models.NewsStory) (models.NewsStory, error) {
	story.ID = uuid.NewString()
	story.AuthorID = authorID
	story.CreatedAt = time.Now().UTC()

	author, g, err := b.storeContent(ctx, groupID, authorID, func(cur *models.Group) bson.M {
		news := append(append([]models.NewsStory{}, cur.News...), story)
		return bson.M{"news": news}
	})
	if err != nil {
		return models.NewsStory{}, err
	}

	n := models.Notification{
		Type:    models.NotifNewNews,
		Message: fmt.Sprintf("%s shared a news story: %s", author.FullName, story.Title),
		GroupID: &groupID,
	}
	return story, b.broadcast(ctx, KindNews, *g, authorID, n, func(u models.User) bool { return u.NotifyNews })
}

// PostReport stores the report and notifies every other member. No
// preference filter applies to incident reports by policy.
func (b *Broadcaster) PostReport(ctx context.Context, groupID, authorID primitive.ObjectID, rep models.IncidentReport) (models.IncidentReport, error) {
	rep.ID = uuid.NewString()
	rep.AuthorID = authorID
	rep.CreatedAt = time.Now().UTC()

	author, g, err := b.storeContent(ctx, groupID, authorID, func(cur *models.Group) bson.M {
		reports := append(append([]models.IncidentReport{}, cur.Reports...), rep)
		return bson.M{"reports": reports}
	})
	if err != nil {
		return models.IncidentReport{}, err
	}

	n := models.Notification{
		Type:    models.NotifNewReport,
		Message: fmt.Sprintf("%s filed an incident report: %s", author.FullName, rep.Title),
		GroupID: &groupID,
	}
	return rep, b.broadcast(ctx, KindReport, *g, authorID, n, nil)
}

// storeContent resolves the author, checks membership, and commits the
// list mutation under the version guard.
func (b *Broadcaster) storeContent(ctx context.Context, groupID, authorID primitive.ObjectID, mutate func(*models.Group) bson.M) (*models.User, *models.Group, error) {
	author, err := b.users.GetByID(ctx, authorID)
	if err != nil {
		return nil, nil, err
	}

	var group *models.Group
	err = guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := b.groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if !cur.HasMember(authorID) {
			return ErrNotMember
		}
		if err := b.groups.UpdateFields(ctx, cur.ID, cur.Version, mutate(cur)); err != nil {
			return err
		}
		group = cur
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return author, group, nil
}

// broadcast fans one notification out to the eligible recipients.
// eligible == nil means no preference filter.
func (b *Broadcaster) broadcast(ctx context.Context, kind string, g models.Group, authorID primitive.ObjectID, template models.Notification, eligible func(models.User) bool) error {
	recipientIDs := make([]primitive.ObjectID, 0, len(g.Users))
	for _, id := range g.Users {
		if id != authorID {
			recipientIDs = append(recipientIDs, id)
		}
	}
	if len(recipientIDs) == 0 {
		return nil
	}

	recipients, err := b.users.GetByIDs(ctx, recipientIDs)
	if err != nil {
		return err
	}

	ss := make([]steps.Step, 0, len(recipients))
	for _, r := range recipients {
		if eligible != nil && !eligible(r) {
			continue
		}
		recipientID := r.ID
		ss = append(ss, steps.Step{
			Name: "notify " + recipientID.Hex(),
			Run: func(ctx context.Context) error {
				n := template
				n.ID = uuid.NewString()
				n.CreatedAt = time.Now().UTC()
				if err := b.inbox.Append(ctx, recipientID, n); err != nil {
					metrics.FanoutFailed.WithLabelValues(kind).Inc()
					return err
				}
				metrics.FanoutDelivered.WithLabelValues(kind).Inc()
				return nil
			},
		})
	}
	return steps.Run(ctx, b.log, "fanout_"+kind, ss)
}
