// internal/app/features/content/attend.go
package content

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmestre/hearth/internal/app/engine/steps"
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

// HandleAttend RSVPs the caller to an event. The attendee entry on the
// event and the attended-events entry on the user move together.
func (h *Handler) HandleAttend(w http.ResponseWriter, r *http.Request) {
	h.setAttendance(w, r, true)
}

// HandleUnattend withdraws the caller's RSVP.
func (h *Handler) HandleUnattend(w http.ResponseWriter, r *http.Request) {
	h.setAttendance(w, r, false)
}

func (h *Handler) setAttendance(w http.ResponseWriter, r *http.Request, attending bool) {
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

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	group, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "group not found")
			return
		}
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !group.HasMember(userID) {
		respond.Error(w, http.StatusForbidden, "you are not a member of this group")
		return
	}
	if _, ok := group.EventByID(eventID); !ok {
		respond.Error(w, http.StatusNotFound, "event not found")
		return
	}

	op := "attend_event"
	if !attending {
		op = "unattend_event"
	}
	ss := []steps.Step{
		{
			Name: "update event attendees",
			Run: func(ctx context.Context) error {
				return h.updateAttendees(ctx, groupID, eventID, userID, attending)
			},
		},
		{
			Name: "update attended events",
			Run: func(ctx context.Context) error {
				return h.updateAttendedList(ctx, userID, eventID, attending)
			},
		},
	}
	if err := steps.Run(ctx, h.Log, op, ss); err != nil {
		h.Log.Error(op,
			zap.String("group", groupID.Hex()),
			zap.String("event", eventID),
			zap.Error(err))
		respond.EngineError(w, err, "event not found")
		return
	}

	status := "attending"
	if !attending {
		status = "not_attending"
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *Handler) updateAttendees(ctx context.Context, groupID primitive.ObjectID, eventID string, userID primitive.ObjectID, attending bool) error {
	return guard.Retry(ctx, "groups", func(ctx context.Context) error {
		cur, err := h.Groups.GetByID(ctx, groupID)
		if err != nil {
			return err
		}
		events := make([]models.Event, len(cur.Events))
		copy(events, cur.Events)
		changed := false
		for i := range events {
			if events[i].ID != eventID {
				continue
			}
			if attending && !events[i].HasAttendee(userID) {
				events[i].Attendees = append(append([]primitive.ObjectID{}, events[i].Attendees...), userID)
				changed = true
			} else if !attending && events[i].HasAttendee(userID) {
				kept := make([]primitive.ObjectID, 0, len(events[i].Attendees))
				for _, id := range events[i].Attendees {
					if id != userID {
						kept = append(kept, id)
					}
				}
				events[i].Attendees = kept
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return h.Groups.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"events": events})
	})
}

func (h *Handler) updateAttendedList(ctx context.Context, userID primitive.ObjectID, eventID string, attending bool) error {
	return guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := h.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if attending == cur.HasAttended(eventID) {
			return nil
		}
		var list []string
		if attending {
			list = append(append([]string{}, cur.AttendedEvents...), eventID)
		} else {
			for _, id := range cur.AttendedEvents {
				if id != eventID {
					list = append(list, id)
				}
			}
			if list == nil {
				list = []string{}
			}
		}
		return h.Users.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"attended_events": list})
	})
}
