// internal/app/features/groups/groupview.go
package groups

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type memberEntry struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Creator  bool   `json:"creator,omitempty"`
}

type requestEntry struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	RequestedAt string `json:"requested_at"`
}

type groupViewResponse struct {
	groupResponse
	Members  []memberEntry  `json:"members"`
	Requests []requestEntry `json:"requests,omitempty"`
}

// ServeGroupView returns the group with its resolved member list.
// Pending join requests are included only for group admins.
func (h *Handler) ServeGroupView(w http.ResponseWriter, r *http.Request) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	group, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "group not found")
			return
		}
		h.Log.Error("load group", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !group.HasMember(userID) {
		respond.Error(w, http.StatusForbidden, "you are not a member of this group")
		return
	}

	members, err := h.Users.GetByIDs(ctx, group.Users)
	if err != nil {
		h.Log.Error("load group members", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := groupViewResponse{
		groupResponse: groupResponse{
			ID:          group.ID.Hex(),
			Name:        group.Name,
			Description: group.Description,
			TimeZone:    group.TimeZone,
			CreatorID:   group.CreatorID.Hex(),
			MemberCount: len(group.Users),
		},
		Members: make([]memberEntry, 0, len(members)),
	}
	viewerIsAdmin := false
	for _, m := range members {
		resp.Members = append(resp.Members, memberEntry{
			ID:       m.ID.Hex(),
			FullName: m.FullName,
			Role:     m.Role,
			Creator:  m.ID == group.CreatorID,
		})
		if m.ID == userID && m.Role == models.RoleAdmin {
			viewerIsAdmin = true
		}
	}
	if viewerIsAdmin {
		for _, req := range group.Requests {
			resp.Requests = append(resp.Requests, requestEntry{
				ID:          req.ID,
				UserID:      req.UserID.Hex(),
				RequestedAt: req.RequestedAt.Format(time.RFC3339),
			})
		}
	}

	respond.JSON(w, http.StatusOK, resp)
}
