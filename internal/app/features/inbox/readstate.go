// internal/app/features/inbox/readstate.go
package inbox

import (
	"context"
	"errors"
	"net/http"

	engineinbox "github.com/jmestre/hearth/internal/app/engine/inbox"
	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleMarkRead flags one notification read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notifID := chi.URLParam(r, "notifID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Inbox.MarkRead(ctx, userID, notifID); err != nil {
		if errors.Is(err, engineinbox.ErrNotificationNotFound) {
			respond.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		h.Log.Error("mark read", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// HandleMarkAllRead flags every unread notification read.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	marked, err := h.Inbox.MarkAllRead(ctx, userID)
	if err != nil {
		h.Log.Error("mark all read", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int{"marked": marked})
}

// HandleDelete removes one notification from the inbox.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	notifID := chi.URLParam(r, "notifID")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Inbox.Remove(ctx, userID, notifID); err != nil {
		if errors.Is(err, engineinbox.ErrNotificationNotFound) {
			respond.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		h.Log.Error("delete notification", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
