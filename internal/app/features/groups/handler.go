// internal/app/features/groups/handler.go
package groups

import (
	"github.com/jmestre/hearth/internal/app/engine/membership"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the groups feature.
// Group lifecycle and membership changes go through the membership
// service so both sides of the relationship stay consistent.
type Handler struct {
	Users   *userstore.Store
	Groups  *groupstore.Store
	Members *membership.Service
	Log     *zap.Logger
}

// NewHandler constructs a groups Handler. It is typically called from
// the bootstrap BuildHandler function, where the application's DB and
// logger are already initialized.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	users := userstore.New(db)
	groups := groupstore.New(db)
	return &Handler{
		Users:   users,
		Groups:  groups,
		Members: membership.New(users, groups, logger),
		Log:     logger,
	}
}
