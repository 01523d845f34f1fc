// internal/app/features/groups/join.go
package groups

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/engine/membership"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type joinRequest struct {
	JoinCode string `json:"join_code" validate:"required"`
}

// HandleJoinByCode adds the caller to the group when the join code
// matches. Membership via code skips the request/approval flow.
func (h *Handler) HandleJoinByCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}

	var req joinRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Members.JoinByCode(ctx, userID, groupID, req.JoinCode); err != nil {
		switch {
		case errors.Is(err, membership.ErrAlreadyMember):
			respond.Error(w, http.StatusConflict, "you already belong to a group")
		case errors.Is(err, membership.ErrWrongJoinCode):
			respond.Error(w, http.StatusForbidden, "join code does not match")
		default:
			h.Log.Error("join by code", zap.String("group", groupID.Hex()), zap.Error(err))
			respond.EngineError(w, err, "group not found")
		}
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "joined"})
}
