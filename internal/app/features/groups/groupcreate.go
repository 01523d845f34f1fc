// internal/app/features/groups/groupcreate.go
package groups

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmestre/hearth/internal/app/engine/steps"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	groupstore "github.com/jmestre/hearth/internal/app/store/groups"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type createGroupRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	TimeZone    string `json:"time_zone" validate:"omitempty,max=64"`
	JoinCode    string `json:"join_code" validate:"required,min=4,max=64"`
}

type groupResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TimeZone    string `json:"time_zone"`
	CreatorID   string `json:"creator_id"`
	MemberCount int    `json:"member_count"`
}

// HandleCreateGroup creates a group with the caller as its creator and
// sole member. A user who already belongs to a group cannot create one.
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createGroupRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	if req.TimeZone != "" {
		if _, err := time.LoadLocation(req.TimeZone); err != nil {
			respond.Error(w, http.StatusBadRequest, "unknown time zone")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	group, err := h.Members.CreateGroup(ctx, userID, req.Name, req.Description, req.TimeZone, req.JoinCode)
	if err != nil {
		var pf *steps.PartialFailure
		switch {
		case errors.Is(err, groupstore.ErrDuplicateGroupName):
			respond.Error(w, http.StatusConflict, "a group with that name already exists")
		case errors.As(err, &pf):
			// The group record exists; the creator pointer needs repair.
			h.Log.Warn("group created with incomplete creator linkage",
				zap.String("group", group.ID.Hex()), zap.Error(err))
			respond.EngineError(w, err, "")
		default:
			h.Log.Error("create group", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respond.JSON(w, http.StatusCreated, groupResponse{
		ID:          group.ID.Hex(),
		Name:        group.Name,
		Description: group.Description,
		TimeZone:    group.TimeZone,
		CreatorID:   group.CreatorID.Hex(),
		MemberCount: len(group.Users),
	})
}
