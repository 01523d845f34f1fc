// internal/app/features/requests/cancel.go
package requests

import (
	"context"
	"errors"
	"net/http"

	enginereq "github.com/jmestre/hearth/internal/app/engine/requests"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HandleCancel withdraws the caller's own pending request. The target
// group is read from the caller's mirror pointer.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user.RequestedGroupID == nil {
		respond.Error(w, http.StatusNotFound, "no pending request to cancel")
		return
	}
	groupID := *user.RequestedGroupID

	if err := h.Requests.Cancel(ctx, groupID, userID); err != nil {
		if errors.Is(err, enginereq.ErrNoPendingRequest) {
			respond.Error(w, http.StatusNotFound, "no pending request to cancel")
			return
		}
		h.Log.Error("cancel join request",
			zap.String("group", groupID.Hex()),
			zap.String("user", userID.Hex()),
			zap.Error(err))
		respond.EngineError(w, err, "group not found")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
