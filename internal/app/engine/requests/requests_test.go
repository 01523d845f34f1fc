package requests_test

import (
	"errors"
	"testing"

	"github.com/jmestre/hearth/internal/app/engine/inbox"
	"github.com/jmestre/hearth/internal/app/engine/requests"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/jmestre/hearth/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*requests.Service, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	users := userstore.New(db)
	groups := groupstore.New(db)
	ib := inbox.New(users, nil, zap.NewNop())
	// A nil client keeps Cancel on the ordered-steps path; the test
	// database is standalone and has no transaction support anyway.
	return requests.New(users, groups, ib, nil, zap.NewNop()), fx
}

func promoteToAdmin(t *testing.T, fx *testutil.Fixtures, userID primitive.ObjectID) {
	t.Helper()
	ctx := testutil.TestContext(t)
	_, err := fx.DB().Collection("users").UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"role": models.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("promote admin: %v", err)
	}
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

func TestCreate(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")

	req, err := svc.Create(ctx, g.ID, applicant.ID)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if req.Status != models.RequestPending {
		t.Errorf("status: got %q, want %q", req.Status, models.RequestPending)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if _, ok := gotGroup.PendingRequestFor(applicant.ID); !ok {
		t.Error("group holds no pending request")
	}
	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if gotApplicant.RequestedGroupID == nil || *gotApplicant.RequestedGroupID != g.ID {
		t.Error("mirror pointer not set")
	}
	gotOwner := fx.LoadUser(ctx, owner.ID)
	if countByType(gotOwner, models.NotifJoinRequest) != 1 {
		t.Error("admin did not receive a join_request notification")
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	fx.CreatePendingRequest(ctx, g.ID, applicant.ID)

	_, err := svc.Create(ctx, g.ID, applicant.ID)
	if !errors.Is(err, requests.ErrDuplicateRequest) {
		t.Fatalf("expected ErrDuplicateRequest, got %v", err)
	}
}

func TestCreate_MemberCannotApply(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	member := fx.CreateMember(ctx, "Member", "member@test.com", g.ID)

	_, err := svc.Create(ctx, g.ID, member.ID)
	if !errors.Is(err, requests.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestAccept(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Accept(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if !gotGroup.HasMember(applicant.ID) {
		t.Error("applicant missing from roster")
	}
	if _, pending := gotGroup.PendingRequestFor(applicant.ID); pending {
		t.Error("request still pending after accept")
	}

	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if gotApplicant.GroupID == nil || *gotApplicant.GroupID != g.ID {
		t.Error("member pointer not set")
	}
	if gotApplicant.RequestedGroupID != nil {
		t.Error("mirror pointer not cleared")
	}
	if countByType(gotApplicant, models.NotifAcceptedRequest) != 1 {
		t.Error("applicant missing accepted_request notification")
	}

	gotOwner := fx.LoadUser(ctx, owner.ID)
	if countByType(gotOwner, models.NotifJoinRequest) != 0 {
		t.Error("admin join_request notification not retracted")
	}
}

func TestAccept_RetryIsIdempotent(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Accept(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("first Accept failed: %v", err)
	}
	// A retry after a partial failure replays the whole operation; every
	// step must detect its work is done and change nothing.
	if err := svc.Accept(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("retried Accept failed: %v", err)
	}

	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if countByType(gotApplicant, models.NotifAcceptedRequest) != 1 {
		t.Errorf("accepted_request notifications: got %d, want 1",
			countByType(gotApplicant, models.NotifAcceptedRequest))
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	members := 0
	for _, id := range gotGroup.Users {
		if id == applicant.ID {
			members++
		}
	}
	if members != 1 {
		t.Errorf("roster entries for applicant: got %d, want 1", members)
	}
}

func TestAccept_RetractsFromEveryAdmin(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	second := fx.CreateMember(ctx, "Second Admin", "second@test.com", g.ID)
	promoteToAdmin(t, fx, second.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if countByType(fx.LoadUser(ctx, second.ID), models.NotifJoinRequest) != 1 {
		t.Fatal("second admin did not receive a join_request notification")
	}

	// Only one admin acts; the notification must leave every admin inbox.
	if err := svc.Accept(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	for _, adminID := range []primitive.ObjectID{owner.ID, second.ID} {
		if got := countByType(fx.LoadUser(ctx, adminID), models.NotifJoinRequest); got != 0 {
			t.Errorf("admin %s still holds %d join_request notifications", adminID.Hex(), got)
		}
	}
}

func TestAccept_NoPendingRequest(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	stranger := fx.CreateUser(ctx, "Stranger", "stranger@test.com")

	err := svc.Accept(ctx, g.ID, stranger.ID, owner.ID)
	if !errors.Is(err, requests.ErrNoPendingRequest) {
		t.Fatalf("expected ErrNoPendingRequest, got %v", err)
	}
}

func TestDecline(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Decline(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if gotGroup.HasMember(applicant.ID) {
		t.Error("declined applicant landed on roster")
	}
	if _, pending := gotGroup.PendingRequestFor(applicant.ID); pending {
		t.Error("request still pending after decline")
	}

	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if gotApplicant.GroupID != nil {
		t.Error("declined applicant has a member pointer")
	}
	if gotApplicant.RequestedGroupID != nil {
		t.Error("mirror pointer not cleared")
	}
	if countByType(gotApplicant, models.NotifDeclinedRequest) != 1 {
		t.Error("applicant missing declined_request notification")
	}

	gotOwner := fx.LoadUser(ctx, owner.ID)
	if countByType(gotOwner, models.NotifJoinRequest) != 0 {
		t.Error("admin join_request notification not retracted")
	}
}

func TestDecline_RetractsFromEveryAdmin(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	second := fx.CreateMember(ctx, "Second Admin", "second@test.com", g.ID)
	promoteToAdmin(t, fx, second.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Decline(ctx, g.ID, applicant.ID, second.ID); err != nil {
		t.Fatalf("Decline failed: %v", err)
	}

	for _, adminID := range []primitive.ObjectID{owner.ID, second.ID} {
		if got := countByType(fx.LoadUser(ctx, adminID), models.NotifJoinRequest); got != 0 {
			t.Errorf("admin %s still holds %d join_request notifications", adminID.Hex(), got)
		}
	}
}

func TestDecline_RetryAfterPartialFailure(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Simulate a decline interrupted after its first step: the group
	// write committed but the mirror pointer and notifications remain.
	if _, err := fx.DB().Collection("groups").UpdateByID(ctx, g.ID, bson.M{
		"$set": bson.M{"requests": []models.JoinRequest{}},
	}); err != nil {
		t.Fatalf("seed partial decline: %v", err)
	}

	if err := svc.Decline(ctx, g.ID, applicant.ID, owner.ID); err != nil {
		t.Fatalf("retried Decline failed: %v", err)
	}

	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if gotApplicant.RequestedGroupID != nil {
		t.Error("mirror pointer not cleared by retry")
	}
	if countByType(gotApplicant, models.NotifDeclinedRequest) != 1 {
		t.Error("applicant missing declined_request notification after retry")
	}
	if countByType(fx.LoadUser(ctx, owner.ID), models.NotifJoinRequest) != 0 {
		t.Error("admin join_request notification not retracted by retry")
	}

	// With all steps applied the marker is gone; a further decline is
	// rejected cleanly.
	if err := svc.Decline(ctx, g.ID, applicant.ID, owner.ID); !errors.Is(err, requests.ErrNoPendingRequest) {
		t.Fatalf("expected ErrNoPendingRequest after full decline, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	svc, fx := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Maple Court", owner.ID)
	applicant := fx.CreateUser(ctx, "Applicant", "applicant@test.com")
	if _, err := svc.Create(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Cancel(ctx, g.ID, applicant.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if _, pending := gotGroup.PendingRequestFor(applicant.ID); pending {
		t.Error("request still pending after cancel")
	}
	gotApplicant := fx.LoadUser(ctx, applicant.ID)
	if gotApplicant.RequestedGroupID != nil {
		t.Error("mirror pointer not cleared")
	}
	gotOwner := fx.LoadUser(ctx, owner.ID)
	if countByType(gotOwner, models.NotifJoinRequest) != 0 {
		t.Error("admin join_request notification not retracted")
	}

	if err := svc.Cancel(ctx, g.ID, applicant.ID); !errors.Is(err, requests.ErrNoPendingRequest) {
		t.Fatalf("expected ErrNoPendingRequest on second cancel, got %v", err)
	}
}
