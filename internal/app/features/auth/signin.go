// internal/app/features/auth/signin.go
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	sessions "github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type signInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleSignIn verifies credentials and starts a session. Bad email and
// bad password produce the same response.
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users := userstore.New(h.DB)
	user, err := users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.Log.Error("lookup user by email", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respond.Error(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	if err := sessions.SignIn(w, r, sessions.SessionUser{
		ID:   user.ID.Hex(),
		Name: user.FullName,
		Role: user.Role,
	}); err != nil {
		h.Log.Error("start session", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	respond.JSON(w, http.StatusOK, accountResponse{
		ID:       user.ID.Hex(),
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	})
}
