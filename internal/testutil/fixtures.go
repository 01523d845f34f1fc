package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmestre/hearth/internal/app/system/normalize"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts a member user with notification preferences enabled.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:            primitive.NewObjectID(),
		FullName:      fullName,
		Email:         normalize.Email(email),
		Role:          models.RoleMember,
		Notifications: []models.Notification{},
		NotifyEvents:  true,
		NotifyNews:    true,
		NotifyChecks:  true,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateMember inserts a user already belonging to the given group and
// appends them to the group's roster.
func (f *Fixtures) CreateMember(ctx context.Context, fullName, email string, groupID primitive.ObjectID) models.User {
	f.t.Helper()

	user := f.CreateUser(ctx, fullName, email)
	_, err := f.db.Collection("users").UpdateByID(ctx, user.ID, map[string]any{
		"$set": map[string]any{"group_id": groupID},
	})
	if err != nil {
		f.t.Fatalf("failed to set group pointer: %v", err)
	}
	user.GroupID = &groupID

	_, err = f.db.Collection("groups").UpdateByID(ctx, groupID, map[string]any{
		"$addToSet": map[string]any{"users": user.ID},
	})
	if err != nil {
		f.t.Fatalf("failed to add user to roster: %v", err)
	}
	return user
}

// CreateGroup inserts a group owned by creatorID, with the creator on the
// roster and their pointer set. The creator is promoted to admin.
func (f *Fixtures) CreateGroup(ctx context.Context, name string, creatorID primitive.ObjectID) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	group := models.Group{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: "Test group description",
		CreatorID:   creatorID,
		TimeZone:    "America/New_York",
		Users:       []primitive.ObjectID{creatorID},
		Requests:    []models.JoinRequest{},
		Events:      []models.Event{},
		News:        []models.NewsStory{},
		Reports:     []models.IncidentReport{},
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, group); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}

	_, err := f.db.Collection("users").UpdateByID(ctx, creatorID, map[string]any{
		"$set": map[string]any{
			"group_id":         group.ID,
			"role":             models.RoleAdmin,
			"is_group_creator": true,
		},
	})
	if err != nil {
		f.t.Fatalf("failed to point creator at group: %v", err)
	}
	return group
}

// CreatePendingRequest appends a pending join request to the group and
// sets the user's mirror pointer.
func (f *Fixtures) CreatePendingRequest(ctx context.Context, groupID, userID primitive.ObjectID) models.JoinRequest {
	f.t.Helper()

	req := models.JoinRequest{
		ID:          uuid.NewString(),
		UserID:      userID,
		Status:      models.RequestPending,
		RequestedAt: time.Now().UTC(),
	}

	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, map[string]any{
		"$push": map[string]any{"requests": req},
	})
	if err != nil {
		f.t.Fatalf("failed to append join request: %v", err)
	}

	_, err = f.db.Collection("users").UpdateByID(ctx, userID, map[string]any{
		"$set": map[string]any{"requested_group_id": groupID},
	})
	if err != nil {
		f.t.Fatalf("failed to set requested group pointer: %v", err)
	}
	return req
}

// CreateEvent appends an event to the group starting at the given time.
func (f *Fixtures) CreateEvent(ctx context.Context, groupID primitive.ObjectID, title string, startsAt time.Time, attendees ...primitive.ObjectID) models.Event {
	f.t.Helper()

	if attendees == nil {
		attendees = []primitive.ObjectID{}
	}
	ev := models.Event{
		ID:        uuid.NewString(),
		Title:     title,
		Details:   "Test event details",
		Location:  "Test Hall",
		StartsAt:  startsAt,
		Attendees: attendees,
		CreatedAt: time.Now().UTC(),
	}

	_, err := f.db.Collection("groups").UpdateByID(ctx, groupID, map[string]any{
		"$push": map[string]any{"events": ev},
	})
	if err != nil {
		f.t.Fatalf("failed to append event: %v", err)
	}
	return ev
}

// LoadUser re-reads a user document.
func (f *Fixtures) LoadUser(ctx context.Context, id primitive.ObjectID) models.User {
	f.t.Helper()
	var u models.User
	if err := f.db.Collection("users").FindOne(ctx, map[string]any{"_id": id}).Decode(&u); err != nil {
		f.t.Fatalf("failed to load user %s: %v", id.Hex(), err)
	}
	return u
}

// LoadGroup re-reads a group document.
func (f *Fixtures) LoadGroup(ctx context.Context, id primitive.ObjectID) models.Group {
	f.t.Helper()
	var g models.Group
	if err := f.db.Collection("groups").FindOne(ctx, map[string]any{"_id": id}).Decode(&g); err != nil {
		f.t.Fatalf("failed to load group %s: %v", id.Hex(), err)
	}
	return g
}
