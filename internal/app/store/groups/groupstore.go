// internal/app/store/groups/groupstore.go
package groupstore

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

var ErrDuplicateGroupName = errors.New("a group with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("groups")}
}

// Create inserts a new group with an initialized roster and version 1.
func (s *Store) Create(ctx context.Context, g models.Group) (models.Group, error) {
	now := time.Now().UTC()
	g.ID = primitive.NewObjectID()
	g.Name = normalize.Name(g.Name)
	if g.Users == nil {
		g.Users = []primitive.ObjectID{}
	}
	if g.Requests == nil {
		g.Requests = []models.JoinRequest{}
	}
	if g.Events == nil {
		g.Events = []models.Event{}
	}
	if g.News == nil {
		g.News = []models.NewsStory{}
	}
	if g.Reports == nil {
		g.Reports = []models.IncidentReport{}
	}
	g.Version = 1
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, g); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Group{}, ErrDuplicateGroupName
		}
		return models.Group{}, err
	}
	return g, nil
}

// GetByID loads a group. Returns mongo.ErrNoDocuments when absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateFields performs a version-guarded partial update; see the users
// store for the guard contract. List fields are replaced whole.
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
			return ErrDuplicateGroupName
		}
		return err
	}
	if res.MatchedCount == 0 {
		if exists, err2 := s.exists(ctx, id); err2 != nil {
			return err2
		} else if exists {
			return guard.ErrVersionConflict
		}
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes a group. Returns the number of documents deleted.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ForEach streams every group through fn. Used by the sweeps, which visit
// all groups without loading them into memory at once.
func (s *Store) ForEach(ctx context.Context, fn func(g models.Group) error) error {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var g models.Group
		if err := cur.Decode(&g); err != nil {
			return err
		}
		if err := fn(g); err != nil {
			return err
		}
	}
	return cur.Err()
}

// FindByMember returns the group whose roster contains userID, if any.
func (s *Store) FindByMember(ctx context.Context, userID primitive.ObjectID) (*models.Group, error) {
	var g models.Group
	if err := s.c.FindOne(ctx, bson.M{"users": userID}).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
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
