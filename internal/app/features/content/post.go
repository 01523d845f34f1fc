// internal/app/features/content/post.go
package content

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmestre/hearth/internal/app/engine/fanout"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/htmlsanitize"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/jmestre/hearth/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type postEventRequest struct {
	Title    string    `json:"title" validate:"required,max=300"`
	Details  string    `json:"details" validate:"max=10000"`
	Location string    `json:"location" validate:"max=500"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

type postNewsRequest struct {
	Title string `json:"title" validate:"required,max=300"`
	Body  string `json:"body" validate:"max=20000"`
}

type postReportRequest struct {
	Title   string `json:"title" validate:"required,max=300"`
	Details string `json:"details" validate:"max=20000"`
}

// HandlePostEvent stores an event on the group and notifies members who
// have event notifications enabled.
func (h *Handler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	authorID, groupID, ok := h.postContext(w, r)
	if !ok {
		return
	}
	var req postEventRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	ev, err := h.Posts.PostEvent(ctx, groupID, authorID, models.Event{
		Title:    htmlsanitize.PlainText(req.Title),
		Details:  htmlsanitize.Sanitize(req.Details),
		Location: htmlsanitize.PlainText(req.Location),
		StartsAt: req.StartsAt,
	})
	if err != nil {
		h.postError(w, "post event", groupID, err)
		return
	}
	respond.JSON(w, http.StatusCreated, ev)
}

// HandlePostNews stores a news story on the group and notifies members
// who have news notifications enabled.
func (h *Handler) HandlePostNews(w http.ResponseWriter, r *http.Request) {
	authorID, groupID, ok := h.postContext(w, r)
	if !ok {
		return
	}
	var req postNewsRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	story, err := h.Posts.PostNews(ctx, groupID, authorID, models.NewsStory{
		Title: htmlsanitize.PlainText(req.Title),
		Body:  htmlsanitize.Sanitize(req.Body),
	})
	if err != nil {
		h.postError(w, "post news", groupID, err)
		return
	}
	respond.JSON(w, http.StatusCreated, story)
}

// HandlePostReport stores an incident report on the group and notifies
// every other member. Reports have no opt-out.
func (h *Handler) HandlePostReport(w http.ResponseWriter, r *http.Request) {
	authorID, groupID, ok := h.postContext(w, r)
	if !ok {
		return
	}
	var req postReportRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	rep, err := h.Posts.PostReport(ctx, groupID, authorID, models.IncidentReport{
		Title:   htmlsanitize.PlainText(req.Title),
		Details: htmlsanitize.Sanitize(req.Details),
	})
	if err != nil {
		h.postError(w, "post report", groupID, err)
		return
	}
	respond.JSON(w, http.StatusCreated, rep)
}

func (h *Handler) postContext(w http.ResponseWriter, r *http.Request) (authorID, groupID primitive.ObjectID, ok bool) {
	authorID, ok = auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return authorID, groupID, false
	}
	groupID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "bad group id")
		return authorID, groupID, false
	}
	return authorID, groupID, true
}

func (h *Handler) postError(w http.ResponseWriter, op string, groupID primitive.ObjectID, err error) {
	if errors.Is(err, fanout.ErrNotMember) {
		respond.Error(w, http.StatusForbidden, "you are not a member of this group")
		return
	}
	h.Log.Error(op, zap.String("group", groupID.Hex()), zap.Error(err))
	respond.EngineError(w, err, "group not found")
}
