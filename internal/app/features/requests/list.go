// internal/app/features/requests/list.go
package requests

import (
	"context"
	"net/http"
	"time"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type pendingEntry struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	FullName    string `json:"full_name"`
	RequestedAt string `json:"requested_at"`
}

// ServeList returns the group's pending join requests. Group admin only.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
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

	g, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		h.Log.Error("list join requests", zap.String("group", groupID.Hex()), zap.Error(err))
		respond.EngineError(w, err, "group not found")
		return
	}

	pending := make([]models.JoinRequest, 0, len(g.Requests))
	requesterIDs := make([]primitive.ObjectID, 0, len(g.Requests))
	for _, req := range g.Requests {
		if req.Status != models.RequestPending {
			continue
		}
		pending = append(pending, req)
		requesterIDs = append(requesterIDs, req.UserID)
	}

	names := make(map[primitive.ObjectID]string, len(requesterIDs))
	if len(requesterIDs) > 0 {
		requesters, err := h.Users.GetByIDs(ctx, requesterIDs)
		if err != nil {
			h.Log.Error("load requesters", zap.String("group", groupID.Hex()), zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		for _, u := range requesters {
			names[u.ID] = u.FullName
		}
	}

	entries := make([]pendingEntry, 0, len(pending))
	for _, req := range pending {
		entries = append(entries, pendingEntry{
			ID:          req.ID,
			UserID:      req.UserID.Hex(),
			FullName:    names[req.UserID],
			RequestedAt: req.RequestedAt.Format(time.RFC3339),
		})
	}
	respond.JSON(w, http.StatusOK, map[string][]pendingEntry{"requests": entries})
}
