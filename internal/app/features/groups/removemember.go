// internal/app/features/groups/removemember.go
package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/engine/membership"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type removeMemberRequest struct {
	// Resolution is required only when removing the group creator:
	// "delete_group" or "transfer:<user id>".
	Resolution string `json:"resolution" validate:"omitempty,max=128"`
}

// HandleRemoveMember removes a member from the group. Admin only.
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}
	targetID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad user id")
		return
	}

	var req removeMemberRequest
	if r.ContentLength > 0 && !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.requireGroupAdmin(ctx, w, adminID, groupID) {
		return
	}

	if err := h.Members.RemoveMember(ctx, adminID, groupID, targetID, req.Resolution); err != nil {
		switch {
		case errors.Is(err, membership.ErrNotMember):
			respond.Error(w, http.StatusNotFound, "user is not a member of this group")
		case errors.Is(err, membership.ErrSoleCreator),
			errors.Is(err, membership.ErrInvalidResolution):
			respond.Error(w, http.StatusConflict, err.Error())
		default:
			h.Log.Error("remove member",
				zap.String("group", groupID.Hex()),
				zap.String("target", targetID.Hex()),
				zap.Error(err))
			respond.EngineError(w, err, "group not found")
		}
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// HandleTransferOwnership reassigns the group creator role. Admin only.
func (h *Handler) HandleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	adminID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}
	newOwnerID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad user id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.requireGroupAdmin(ctx, w, adminID, groupID) {
		return
	}

	if err := h.Members.TransferOwnership(ctx, groupID, newOwnerID); err != nil {
		if errors.Is(err, membership.ErrNotMember) {
			respond.Error(w, http.StatusConflict, "new owner must already be a member")
			return
		}
		h.Log.Error("transfer ownership",
			zap.String("group", groupID.Hex()),
			zap.String("new_owner", newOwnerID.Hex()),
			zap.Error(err))
		respond.EngineError(w, err, "group not found")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

// requireGroupAdmin verifies the acting user is an admin member of the
// group, writing the error response itself when not.
func (h *Handler) requireGroupAdmin(ctx context.Context, w http.ResponseWriter, userID, groupID primitive.ObjectID) bool {
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return false
	}
	if u.GroupID == nil || *u.GroupID != groupID || u.Role != models.RoleAdmin {
		respond.Error(w, http.StatusForbidden, "group admin access required")
		return false
	}
	return true
}
