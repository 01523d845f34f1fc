// internal/app/features/requests/resolve.go
package requests

import (
	"context"
	"errors"
	"net/http"

	enginereq "github.com/jmestre/hearth/internal/app/engine/requests"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandleAccept approves a pending join request. Group admin only.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "accepted", h.Requests.Accept)
}

// HandleDecline rejects a pending join request. Group admin only.
func (h *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "declined", h.Requests.Decline)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, status string,
	fn func(ctx context.Context, groupID, userID, adminID primitive.ObjectID) error) {

	adminID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	admin, err := h.Users.GetByID(ctx, adminID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if admin.GroupID == nil || *admin.GroupID != groupID || admin.Role != models.RoleAdmin {
		respond.Error(w, http.StatusForbidden, "group admin access required")
		return
	}

	if err := fn(ctx, groupID, userID, adminID); err != nil {
		switch {
		case errors.Is(err, enginereq.ErrNoPendingRequest):
			respond.Error(w, http.StatusNotFound, "no pending request for this user")
		case errors.Is(err, enginereq.ErrAlreadyMember):
			respond.Error(w, http.StatusConflict, "user already belongs to a group")
		default:
			h.Log.Error("resolve join request",
				zap.String("status", status),
				zap.String("group", groupID.Hex()),
				zap.String("user", userID.Hex()),
				zap.Error(err))
			respond.EngineError(w, err, "group not found")
		}
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": status})
}
