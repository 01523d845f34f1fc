// internal/app/features/inbox/prefs.go
package inbox

import (
	"context"
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"github.com/jmestre/hearth/internal/app/store/guard"
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/jmestre/hearth/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

type prefsRequest struct {
	NotifyEvents *bool `json:"notify_events"`
	NotifyNews   *bool `json:"notify_news"`
	NotifyChecks *bool `json:"notify_checks"`
}

type pushTokenRequest struct {
	// An empty token unregisters the device.
	Token string `json:"token" validate:"max=4096"`
}

// HandleUpdatePrefs updates the caller's notification opt-ins. Only the
// fields present in the body change.
func (h *Handler) HandleUpdatePrefs(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req prefsRequest
	if !respond.Decode(w, r, &req) {
		return
	}
	fields := bson.M{}
	if req.NotifyEvents != nil {
		fields["notify_events"] = *req.NotifyEvents
	}
	if req.NotifyNews != nil {
		fields["notify_news"] = *req.NotifyNews
	}
	if req.NotifyChecks != nil {
		fields["notify_checks"] = *req.NotifyChecks
	}
	if len(fields) == 0 {
		respond.Error(w, http.StatusBadRequest, "no preferences given")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := h.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		return h.Users.UpdateFields(ctx, cur.ID, cur.Version, fields)
	})
	if err != nil {
		h.Log.Error("update prefs", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// HandleRegisterPushToken stores the caller's device push token.
func (h *Handler) HandleRegisterPushToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.CurrentUserID(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req pushTokenRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	err := guard.Retry(ctx, "users", func(ctx context.Context) error {
		cur, err := h.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		return h.Users.UpdateFields(ctx, cur.ID, cur.Version, bson.M{"push_token": req.Token})
	})
	if err != nil {
		h.Log.Error("register push token", zap.String("user", userID.Hex()), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
