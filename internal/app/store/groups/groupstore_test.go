package groupstore_test

import (
	"errors"
	"testing"

	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	"github.com/jmestre/hearth/internal/app/store/guard"
	"github.com/jmestre/hearth/internal/app/system/indexes"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/jmestre/hearth/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate_InitializesLists(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := groupstore.New(db)

	creator := primitive.NewObjectID()
	g, err := store.Create(ctx, models.Group{
		Name:      "Birch Hollow",
		CreatorID: creator,
		Users:     []primitive.ObjectID{creator},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if g.Version != 1 {
		t.Errorf("version: got %d, want 1", g.Version)
	}
	if g.Requests == nil || g.Events == nil || g.News == nil || g.Reports == nil {
		t.Error("embedded lists not initialized")
	}
	if len(g.Users) != 1 || g.Users[0] != creator {
		t.Errorf("roster: got %v", g.Users)
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := groupstore.New(db)

	if _, err := store.Create(ctx, models.Group{Name: "Twice", CreatorID: primitive.NewObjectID()}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.Group{Name: "Twice", CreatorID: primitive.NewObjectID()})
	if !errors.Is(err, groupstore.ErrDuplicateGroupName) {
		t.Fatalf("expected ErrDuplicateGroupName, got %v", err)
	}
}

func TestUpdateFields_StaleVersionConflicts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := groupstore.New(db)

	g, err := store.Create(ctx, models.Group{Name: "Contested", CreatorID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.UpdateFields(ctx, g.ID, g.Version, bson.M{"description": "first"}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}
	err = store.UpdateFields(ctx, g.ID, g.Version, bson.M{"description": "second"})
	if !errors.Is(err, guard.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestForEach_VisitsAllGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := groupstore.New(db)

	want := map[string]bool{}
	for _, name := range []string{"One", "Two", "Three"} {
		g, err := store.Create(ctx, models.Group{Name: name, CreatorID: primitive.NewObjectID()})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		want[g.ID.Hex()] = false
	}

	err := store.ForEach(ctx, func(g models.Group) error {
		want[g.ID.Hex()] = true
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	for id, seen := range want {
		if !seen {
			t.Errorf("group %s not visited", id)
		}
	}
}

func TestFindByMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := groupstore.New(db)

	member := primitive.NewObjectID()
	g, err := store.Create(ctx, models.Group{
		Name:      "Findable",
		CreatorID: member,
		Users:     []primitive.ObjectID{member},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.FindByMember(ctx, member)
	if err != nil {
		t.Fatalf("FindByMember failed: %v", err)
	}
	if got.ID != g.ID {
		t.Errorf("got group %s, want %s", got.ID.Hex(), g.ID.Hex())
	}
}

func TestDelete_ReportsCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := testutil.TestContext(t)
	store := groupstore.New(db)

	g, err := store.Create(ctx, models.Group{Name: "Doomed", CreatorID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := store.Delete(ctx, g.ID)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted count: got %d, want 1", n)
	}

	n, err = store.Delete(ctx, g.ID)
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second delete count: got %d, want 0", n)
	}
}
