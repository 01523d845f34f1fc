// internal/app/features/tasks/sweeps.go
package tasks

import (
	"context"
	"net/http"

	"github.com/jmestre/hearth/internal/app/features/shared/respond"
	"go.uber.org/zap"
)

// HandleReminderSweep runs the event-reminder sweep now.
func (h *Handler) HandleReminderSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), sweepTimeout)
	defer cancel()

	if err := h.Sweeper.Run(ctx); err != nil {
		// Partial errors are expected; the sweep visits everything it can.
		h.Log.Warn("manual reminder sweep finished with errors", zap.Error(err))
		respond.JSON(w, http.StatusOK, map[string]string{
			"status": "completed_with_errors",
			"detail": err.Error(),
		})
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// HandleConsistencySweep runs the membership reconcile now and reports
// what it repaired.
func (h *Handler) HandleConsistencySweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), sweepTimeout)
	defer cancel()

	report, err := h.Members.Reconcile(ctx)
	resp := map[string]any{
		"roster_entries_removed": report.RosterEntriesRemoved,
		"roster_entries_added":   report.RosterEntriesAdded,
		"pointers_cleared":       report.PointersCleared,
	}
	if err != nil {
		h.Log.Warn("manual consistency sweep finished with errors", zap.Error(err))
		resp["status"] = "completed_with_errors"
		resp["detail"] = err.Error()
	} else {
		resp["status"] = "completed"
	}
	respond.JSON(w, http.StatusOK, resp)
}
