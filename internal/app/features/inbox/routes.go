// internal/app/features/inbox/routes.go
package inbox

import (
	"github.com/jmestre/hearth/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Post("/read-all", h.HandleMarkAllRead)
		pr.Post("/{notifID}/read", h.HandleMarkRead)
		pr.Delete("/{notifID}", h.HandleDelete)

		pr.Put("/prefs", h.HandleUpdatePrefs)
		pr.Put("/push-token", h.HandleRegisterPushToken)
	})

	return r
}
