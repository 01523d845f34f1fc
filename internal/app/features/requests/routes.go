// internal/app/features/requests/routes.go
package requests

import (
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		// Requester side.
		pr.Post("/", h.HandleCreate)
		pr.Post("/cancel", h.HandleCancel)

		// Admin side.
		pr.Get("/{groupID}", h.ServeList)
		pr.Post("/{groupID}/{userID}/accept", h.HandleAccept)
		pr.Post("/{groupID}/{userID}/decline", h.HandleDecline)
	})

	return r
}
