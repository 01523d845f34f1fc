// internal/app/features/auth/signup.go
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	userstore "github.com/jmestre/hearth/internal/app/store/users"
	sessions "github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/normalize"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type signUpRequest struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type accountResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// HandleSignUp creates an account and starts a session for it.
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("hash password", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	users := userstore.New(h.DB)
	user, err := users.Create(ctx, models.User{
		FullName:     normalize.Name(req.FullName),
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			respond.Error(w, http.StatusConflict, "an account with that email already exists")
			return
		}
		h.Log.Error("create user", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := sessions.SignIn(w, r, sessions.SessionUser{
		ID:   user.ID.Hex(),
		Name: user.FullName,
		Role: user.Role,
	}); err != nil {
		h.Log.Error("start session after signup", zap.Error(err))
	}

	respond.JSON(w, http.StatusCreated, accountResponse{
		ID:       user.ID.Hex(),
		FullName: user.FullName,
		Email:    user.Email,
		Role:     user.Role,
	})
}
