// internal/app/features/auth/handler.go
package auth

import (
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler is the shared dependency container for the auth feature:
// sign-up, sign-in, and sign-out.
type Handler struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// NewHandler constructs an auth Handler. It is typically called from
// the bootstrap BuildHandler function, where the application's DB and
// logger are already initialized.
func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{DB: db, Log: logger}
}
