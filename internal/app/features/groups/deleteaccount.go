// internal/app/features/groups/deleteaccount.go
package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/engine/membership"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type deleteAccountRequest struct {
	// Resolution is required when the caller owns a group:
	// "delete_group" or "transfer:<user id>".
	Resolution string `json:"resolution" validate:"omitempty,max=128"`
}

// HandleDeleteAccount deletes the caller's account. An account that owns
// a group must settle the group first via the resolution field; the
// account is deleted only after the group has been handled.
func (h *Handler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req deleteAccountRequest
	if r.ContentLength > 0 && !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if err := h.Members.DeleteOwnerAccount(ctx, userID, req.Resolution); err != nil {
		switch {
		case errors.Is(err, membership.ErrSoleCreator),
			errors.Is(err, membership.ErrInvalidResolution),
			errors.Is(err, membership.ErrNotMember):
			respond.Error(w, http.StatusConflict, err.Error())
		default:
			h.Log.Error("delete account", zap.String("user", userID.Hex()), zap.Error(err))
			respond.EngineError(w, err, "user not found")
		}
		return
	}

	if err := auth.SignOut(w, r); err != nil {
		h.Log.Warn("clear session after account deletion", zap.Error(err))
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
