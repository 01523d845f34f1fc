// internal/app/features/groups/routes.go
package groups

import (
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Everything under /groups requires authentication.
	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// CREATE
		pr.Post("/", h.HandleCreateGroup)

		// VIEW
		pr.Get("/{id}", h.ServeGroupView)

		// MEMBERSHIP
		pr.Post("/{id}/join", h.HandleJoinByCode)
		pr.Post("/leave", h.HandleLeave)
		pr.Post("/{id}/members/{userID}/remove", h.HandleRemoveMember)
		pr.Post("/{id}/transfer/{userID}", h.HandleTransferOwnership)

		// ACCOUNT REMOVAL (cascades through owned group per resolution)
		pr.Post("/account/delete", h.HandleDeleteAccount)
	})

	return r
}
