// internal/app/features/auth/signout.go
package auth

import (
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	sessions "github.com/jmestre/hearth/internal/app/system/auth"
	"go.uber.org/zap"
)

// HandleSignOut clears the session cookie. Always succeeds.
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := sessions.SignOut(w, r); err != nil {
		h.Log.Warn("clear session", zap.Error(err))
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
