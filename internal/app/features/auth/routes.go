// internal/app/features/auth/routes.go
package auth

import (
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.HandleSignUp)
	r.Post("/signin", h.HandleSignIn)
	r.Post("/signout", h.HandleSignOut)

	return r
}
