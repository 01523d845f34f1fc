// internal/app/features/content/view.go
package content

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/store/guard"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// HandleRecordView bumps an event's view counter. Lost increments under
// concurrent views are prevented by the version guard.
func (h *Handler) HandleRecordView(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return
	}
	eventID := chi.URLParam(r, "eventID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	var views int64
	err = guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := h.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		if !cur.HasMember(userID) {
			return errMembersOnly
		}
		events := make([]models.Event, len(cur.Events))
		copy(events, cur.Events)
		found := false
		for i := range events {
			if events[i].ID == eventID {
				events[i].Views++
				views = events[i].Views
				found = true
				break
			}
		}
		if !found {
			return errNoSuchEvent
		}
		return h.Groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"events": events})
	})
	if err != nil {
		switch {
		case errors.Is(err, errMembersOnly):
			respond.Error(w, http.StatusForbidden, "you are not a member of this group")
		case errors.Is(err, errNoSuchEvent):
			respond.Error(w, http.StatusNotFound, "event not found")
		case errors.Is(err, mongo.ErrNoDocuments):
			respond.Error(w, http.StatusNotFound, "group not found")
		default:
			h.Log.Error("record view",
				zap.String("group", groupID.Hex()),
				zap.String("event", eventID),
				zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, map[string]int64{"views": views})
}

var (
	errMembersOnly = errors.New("members only")
	errNoSuchEvent = errors.New("no such event")
)
