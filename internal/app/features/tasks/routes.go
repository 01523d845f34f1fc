// internal/app/features/tasks/routes.go
package tasks

import "github.com/go-chi/chi/v5"

// Routes returns the operational task triggers. Mount these behind
// network-level protection; they are not part of the member-facing API.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/reminder-sweep", h.HandleReminderSweep)
	r.Post("/consistency-sweep", h.HandleConsistencySweep)

	return r
}
