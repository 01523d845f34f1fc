// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/jmestre/hearth/internal/app/store/guard"
	"github.com/jmestre/hearth/internal/app/system/normalize"
	"github.com/jmestre/hearth/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateEmail = errors.New("a user with this email already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create inserts a new user with fresh timestamps and version 1.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = normalize.Email(u.Email)
	u.FullName = normalize.Name(u.FullName)
	if u.Role == "" {
		u.Role = models.RoleMember
	}
	if u.Notifications == nil {
		u.Notifications = []models.Notification{}
	}
	if u.AttendedEvents == nil {
		u.AttendedEvents = []string{}
	}
	u.Version = 1
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

// GetByID loads a user. Returns mongo.ErrNoDocuments when absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail looks a user up by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByIDs bulk-fetches users. Missing ids are silently absent from the
// result; callers that care compare lengths.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListByGroup returns all users whose membership pointer is groupID.
func (s *Store) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListWithPointer returns every user whose membership pointer is set.
// Used by the consistency sweep to find pointers at vanished groups.
func (s *Store) ListWithPointer(ctx context.Context) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": bson.M{"$ne": nil}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListAdminsByGroup returns admin-role users pointing at groupID. These
// are the inboxes that receive join_request notifications.
func (s *Store) ListAdminsByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.User, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID, "role": models.RoleAdmin})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateFields performs a version-guarded partial update. The caller
// supplies the version it read; a stale version yields
// guard.ErrVersionConflict, a missing document mongo.ErrNoDocuments.
// List-valued fields must be supplied whole; the store offers no
// append/remove-by-id primitive.
func (s *Store) UpdateFields(ctx context.Context, id primitive.ObjectID, version int64, fields bson.M) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "version": version},
		bson.M{"$set": set, "$inc": bson.M{"version": 1}},
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a lost race from a vanished document.
		if exists, err2 := s.exists(ctx, id); err2 != nil {
			return err2
		} else if exists {
			return guard.ErrVersionConflict
		}
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a user record.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (s *Store) exists(ctx context.Context, id primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
