// internal/app/features/requests/create.go
package requests

import (
	"context"
	"errors"
	"net/http"
	"time"

	enginereq "github.com/jmestre/hearth/internal/app/engine/requests"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type createRequest struct {
	GroupID string `json:"group_id" validate:"required,len=24,hexadecimal"`
}

type requestResponse struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	Status      string `json:"status"`
	RequestedAt string `json:"requested_at"`
}

// HandleCreate files a pending join request for the caller.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	groupID, err := primitive.ObjectIDFromHex(req.GroupID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Requests.Create(ctx, groupID, userID)
	if err != nil {
		switch {
		case errors.Is(err, enginereq.ErrDuplicateRequest):
			respond.Error(w, http.StatusConflict, "you already have a pending request for this group")
		case errors.Is(err, enginereq.ErrAlreadyMember):
			respond.Error(w, http.StatusConflict, "you already belong to a group")
		default:
			h.Log.Error("create join request",
				zap.String("group", groupID.Hex()),
				zap.String("user", userID.Hex()),
				zap.Error(err))
			respond.EngineError(w, err, "group not found")
		}
		return
	}

	respond.JSON(w, http.StatusCreated, requestResponse{
		ID:          created.ID,
		GroupID:     groupID.Hex(),
		Status:      created.Status,
		RequestedAt: created.RequestedAt.Format(time.RFC3339),
	})
}
