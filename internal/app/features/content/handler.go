// internal/app/features/content/handler.go
package content

import (
	"github.com/jmestre/hearth/internal/app/engine/delivery"
	"github.com/jmestre/hearth/internal/app/engine/fanout"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for group content: events,
// news stories, and incident reports, plus attendance and view counts.
type Handler struct {
	Users  *userstore.Store
	Groups *groupstore.Store
	Posts  *fanout.Broadcaster
	Log    *zap.Logger
}

// NewHandler constructs a content Handler.
func NewHandler(db *mongo.Database, del *delivery.Adapter, logger *zap.Logger) *Handler {
	users := userstore.New(db)
	groups := groupstore.New(db)
	ib := inbox.New(users, del, logger)
	return &Handler{
		Users:  users,
		Groups: groups,
		Posts:  fanout.New(users, groups, ib, logger),
		Log:    logger,
	}
}
