// internal/app/features/content/routes.go
package content

import (
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// POST content (fans out to subscribed members)
		pr.Post("/{groupID}/events", h.HandlePostEvent)
		pr.Post("/{groupID}/news", h.HandlePostNews)
		pr.Post("/{groupID}/reports", h.HandlePostReport)

		// ATTENDANCE
		pr.Post("/{groupID}/events/{eventID}/attend", h.HandleAttend)
		pr.Post("/{groupID}/events/{eventID}/unattend", h.HandleUnattend)

		// VIEW COUNT
		pr.Post("/{groupID}/events/{eventID}/view", h.HandleRecordView)
	})

	return r
}
