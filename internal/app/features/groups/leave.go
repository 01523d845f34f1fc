// internal/app/features/groups/leave.go
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

// HandleLeave removes the caller from their current group.
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.Leave(ctx, userID); err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			respond.Error(w, http.StatusConflict, "you do not belong to a group")
			return
		}
		if errors.Is(err, membership.ErrSoleCreator) {
			respond.Error(w, http.StatusConflict, err.Error())
			return
		}
		h.Log.Error("leave group", zap.String("user", userID.Hex()), zap.Error(err))
		respond.EngineError(w, err, "user not found")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "left"})
}
