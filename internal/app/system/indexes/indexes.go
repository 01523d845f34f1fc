// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureAll is called at startup. Each ensure* function is idempotent;
// problems are aggregated so startup can fail fast with everything visible.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("users").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_email"),
		},
		{
			// Membership pointer lookups: "all members of group G" during
			// cascade deletes and the consistency sweep.
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("by_group_id"),
		},
		{
			Keys:    bson.D{{Key: "requested_group_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("by_requested_group_id"),
		},
	})
	return err
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("groups").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_name"),
		},
		{
			// Multikey over the roster, for reverse membership lookups.
			Keys:    bson.D{{Key: "users", Value: 1}},
			Options: options.Index().SetName("by_member"),
		},
		{
			Keys:    bson.D{{Key: "creator_id", Value: 1}},
			Options: options.Index().SetName("by_creator"),
		},
	})
	return err
}
