// internal/app/features/requests/handler.go
package requests

import (
	"github.com/jmestre/hearth/internal/app/engine/delivery"
	"github.com/jmestre/hearth/internal/app/engine/inbox"
	enginereq "github.com/jmestre/hearth/internal/app/engine/requests"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the join-request
// feature. The request lifecycle runs through the engine service so the
// pending request, the requester's mirror pointer, and the admins'
// notifications move together.
type Handler struct {
	Users    *userstore.Store
	Groups   *groupstore.Store
	Requests *enginereq.Service
	Log      *zap.Logger
}

// NewHandler constructs a requests Handler. The Mongo client is used
// for multi-document transactions where the deployment supports them.
func NewHandler(client *mongo.Client, db *mongo.Database, del *delivery.Adapter, logger *zap.Logger) *Handler {
	users := userstore.New(db)
	groups := groupstore.New(db)
	ib := inbox.New(users, del, logger)
	return &Handler{
		Users:    users,
		Groups:   groups,
		Requests: enginereq.New(users, groups, ib, client, logger),
		Log:      logger,
	}
}
