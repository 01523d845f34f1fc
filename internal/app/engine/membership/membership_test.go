package membership_test

import (
	"errors"
	"testing"

	"github.com/jmestre/hearth/internal/app/engine/membership"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/jmestre/hearth/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newService(t *testing.T) (*membership.Service, *testutil.Fixtures, *userstore.Store, *groupstore.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	users := userstore.New(db)
	groups := groupstore.New(db)
	return membership.New(users, groups, zap.NewNop()), fx, users, groups
}

func assertConsistent(t *testing.T, svc *membership.Service, fx *testutil.Fixtures, groupID primitive.ObjectID) {
	t.Helper()
	ctx := testutil.TestContext(t)
	problems, err := svc.VerifyInvariant(ctx, groupID)
	if err != nil {
		t.Fatalf("VerifyInvariant failed: %v", err)
	}
	for _, p := range problems {
		t.Errorf("membership divergence: %s", p)
	}
}

func TestCreateGroup_LinksCreatorBothWays(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	creator := fx.CreateUser(ctx, "Creator", "creator@test.com")
	g, err := svc.CreateGroup(ctx, creator.ID, "Willow Bend", "a friendly block", "America/Chicago", "open-sesame")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	gotUser := fx.LoadUser(ctx, creator.ID)
	if gotUser.GroupID == nil || *gotUser.GroupID != g.ID {
		t.Error("creator pointer not set")
	}
	if !gotUser.IsGroupCreator || gotUser.Role != models.RoleAdmin {
		t.Errorf("creator flags: creator=%v role=%q", gotUser.IsGroupCreator, gotUser.Role)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if !gotGroup.HasMember(creator.ID) {
		t.Error("creator missing from roster")
	}
	if gotGroup.JoinCodeHash == "open-sesame" || gotGroup.JoinCodeHash == "" {
		t.Error("join code not stored as a hash")
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestCreateGroup_RejectsExistingMember(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	fx.CreateGroup(ctx, "First Group", owner.ID)

	_, err := svc.CreateGroup(ctx, owner.ID, "Second Group", "", "UTC", "code")
	if !errors.Is(err, membership.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestJoinByCode(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	creator := fx.CreateUser(ctx, "Creator", "creator@test.com")
	g, err := svc.CreateGroup(ctx, creator.ID, "Cedar Walk", "", "UTC", "sesame")
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	joiner := fx.CreateUser(ctx, "Joiner", "joiner@test.com")

	if err := svc.JoinByCode(ctx, joiner.ID, g.ID, "wrong"); !errors.Is(err, membership.ErrWrongJoinCode) {
		t.Fatalf("expected ErrWrongJoinCode, got %v", err)
	}

	if err := svc.JoinByCode(ctx, joiner.ID, g.ID, "sesame"); err != nil {
		t.Fatalf("JoinByCode failed: %v", err)
	}

	gotUser := fx.LoadUser(ctx, joiner.ID)
	if gotUser.GroupID == nil || *gotUser.GroupID != g.ID {
		t.Error("joiner pointer not set")
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	if !gotGroup.HasMember(joiner.ID) {
		t.Error("joiner missing from roster")
	}

	if err := svc.JoinByCode(ctx, joiner.ID, g.ID, "sesame"); !errors.Is(err, membership.ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember on rejoin, got %v", err)
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestLeave(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Fern Row", owner.ID)
	member := fx.CreateMember(ctx, "Member", "member@test.com", g.ID)

	if err := svc.Leave(ctx, member.ID); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}

	gotUser := fx.LoadUser(ctx, member.ID)
	if gotUser.GroupID != nil {
		t.Error("pointer not cleared")
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	if gotGroup.HasMember(member.ID) {
		t.Error("roster entry not removed")
	}

	if err := svc.Leave(ctx, member.ID); !errors.Is(err, membership.ErrNotMember) {
		t.Fatalf("expected ErrNotMember, got %v", err)
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestLeave_CreatorNeedsResolution(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	fx.CreateGroup(ctx, "Locked In", owner.ID)

	if err := svc.Leave(ctx, owner.ID); !errors.Is(err, membership.ErrSoleCreator) {
		t.Fatalf("expected ErrSoleCreator, got %v", err)
	}
}

func TestRemoveMember_CreatorResolutions(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Resolution Req", owner.ID)
	member := fx.CreateMember(ctx, "Member", "member@test.com", g.ID)

	// No resolution: refused.
	err := svc.RemoveMember(ctx, owner.ID, g.ID, owner.ID, "")
	if !errors.Is(err, membership.ErrSoleCreator) {
		t.Fatalf("expected ErrSoleCreator, got %v", err)
	}

	// Nonsense resolution: refused.
	err = svc.RemoveMember(ctx, owner.ID, g.ID, owner.ID, "abdicate")
	if !errors.Is(err, membership.ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution, got %v", err)
	}

	// Transfer to the other member, then removal proceeds.
	err = svc.RemoveMember(ctx, owner.ID, g.ID, owner.ID, "transfer:"+member.ID.Hex())
	if err != nil {
		t.Fatalf("RemoveMember with transfer failed: %v", err)
	}

	gotGroup := fx.LoadGroup(ctx, g.ID)
	if gotGroup.CreatorID != member.ID {
		t.Error("ownership not transferred")
	}
	if gotGroup.HasMember(owner.ID) {
		t.Error("old owner still on roster")
	}
	newOwner := fx.LoadUser(ctx, member.ID)
	if !newOwner.IsGroupCreator || newOwner.Role != models.RoleAdmin {
		t.Errorf("new owner flags: creator=%v role=%q", newOwner.IsGroupCreator, newOwner.Role)
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestRemoveMember_DeleteGroupResolution(t *testing.T) {
	svc, fx, _, groups := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Short Lived", owner.ID)
	member := fx.CreateMember(ctx, "Member", "member@test.com", g.ID)

	err := svc.RemoveMember(ctx, owner.ID, g.ID, owner.ID, membership.ResolutionDeleteGroup)
	if err != nil {
		t.Fatalf("RemoveMember with delete_group failed: %v", err)
	}

	if _, err := groups.GetByID(ctx, g.ID); err == nil {
		t.Error("group record still exists")
	}
	for _, id := range []primitive.ObjectID{owner.ID, member.ID} {
		if u := fx.LoadUser(ctx, id); u.GroupID != nil {
			t.Errorf("user %s still points at deleted group", id.Hex())
		}
	}
}

func TestReconcile_RemovesDivergentRosterEntry(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Drifted", owner.ID)
	stray := fx.CreateUser(ctx, "Stray", "stray@test.com")

	// Simulate an interrupted leave: roster entry without a pointer.
	_, err := fx.DB().Collection("groups").UpdateByID(ctx, g.ID, bson.M{
		"$addToSet": bson.M{"users": stray.ID},
	})
	if err != nil {
		t.Fatalf("seed divergence: %v", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.RosterEntriesRemoved != 1 {
		t.Errorf("roster entries removed: got %d, want 1", report.RosterEntriesRemoved)
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	if gotGroup.HasMember(stray.ID) {
		t.Error("divergent roster entry survived reconcile")
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestReconcile_RestoresPointerHolder(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Half Joined", owner.ID)
	joiner := fx.CreateUser(ctx, "Joiner", "joiner@test.com")

	// Simulate an interrupted join completed the other way round: pointer
	// set but roster entry missing.
	_, err := fx.DB().Collection("users").UpdateByID(ctx, joiner.ID, bson.M{
		"$set": bson.M{"group_id": g.ID},
	})
	if err != nil {
		t.Fatalf("seed divergence: %v", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.RosterEntriesAdded != 1 {
		t.Errorf("roster entries added: got %d, want 1", report.RosterEntriesAdded)
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	if !gotGroup.HasMember(joiner.ID) {
		t.Error("pointer holder not restored to roster")
	}
	assertConsistent(t, svc, fx, g.ID)
}

func TestReconcile_ClearsPointerAtMissingGroup(t *testing.T) {
	svc, fx, _, _ := newService(t)
	ctx := testutil.TestContext(t)

	ghost := fx.CreateUser(ctx, "Ghost", "ghost@test.com")
	missing := primitive.NewObjectID()
	_, err := fx.DB().Collection("users").UpdateByID(ctx, ghost.ID, bson.M{
		"$set": bson.M{"group_id": missing},
	})
	if err != nil {
		t.Fatalf("seed divergence: %v", err)
	}

	report, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if report.PointersCleared != 1 {
		t.Errorf("pointers cleared: got %d, want 1", report.PointersCleared)
	}
	if u := fx.LoadUser(ctx, ghost.ID); u.GroupID != nil {
		t.Error("dangling pointer survived reconcile")
	}
}

func TestDeleteOwnerAccount_TransferResolution(t *testing.T) {
	svc, fx, users, _ := newService(t)
	ctx := testutil.TestContext(t)

	owner := fx.CreateUser(ctx, "Owner", "owner@test.com")
	g := fx.CreateGroup(ctx, "Inherited", owner.ID)
	heir := fx.CreateMember(ctx, "Heir", "heir@test.com", g.ID)

	err := svc.DeleteOwnerAccount(ctx, owner.ID, "transfer:"+heir.ID.Hex())
	if err != nil {
		t.Fatalf("DeleteOwnerAccount failed: %v", err)
	}

	if _, err := users.GetByID(ctx, owner.ID); err == nil {
		t.Error("owner record still exists")
	}
	gotGroup := fx.LoadGroup(ctx, g.ID)
	if gotGroup.CreatorID != heir.ID {
		t.Error("ownership not transferred before deletion")
	}
	if gotGroup.HasMember(owner.ID) {
		t.Error("deleted owner still on roster")
	}
	assertConsistent(t, svc, fx, g.ID)
}
