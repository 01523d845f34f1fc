// internal/app/features/inbox/handler.go
package inbox

import (
	"github.com/jmestre/hearth/internal/app/engine/delivery"
	engineinbox "github.com/jmestre/hearth/internal/app/engine/inbox"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the notification
// inbox: listing, read state, deletion, notification preferences, and
// push token registration.
type Handler struct {
	Users *userstore.Store
	Inbox *engineinbox.Inbox
	Log   *zap.Logger
}

// NewHandler constructs an inbox Handler.
func NewHandler(db *mongo.Database, del *delivery.Adapter, logger *zap.Logger) *Handler {
	users := userstore.New(db)
	return &Handler{
		Users: users,
		Inbox: engineinbox.New(users, del, logger),
		Log:   logger,
	}
}
