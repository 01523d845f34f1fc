// internal/app/features/inbox/list.go
package inbox

import (
	"context"
	"net/http"
	"time"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type notificationEntry struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	EventID   string `json:"event_id,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

type listResponse struct {
	Notifications []notificationEntry `json:"notifications"`
	Unread        int                 `json:"unread"`
}

// ServeList returns the caller's notifications, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		h.Log.Error("load inbox", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := listResponse{Notifications: make([]notificationEntry, 0, len(user.Notifications))}
	for idx := len(user.Notifications) - 1; idx >= 0; idx-- {
		n := user.Notifications[idx]
		entry := notificationEntry{
			ID:        n.ID,
			Type:      n.Type,
			Message:   n.Message,
			EventID:   n.EventID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
		if n.GroupID != nil {
			entry.GroupID = n.GroupID.Hex()
		}
		if n.UserID != nil {
			entry.UserID = n.UserID.Hex()
		}
		if !n.Read {
			resp.Unread++
		}
		resp.Notifications = append(resp.Notifications, entry)
	}

	respond.JSON(w, http.StatusOK, resp)
}
