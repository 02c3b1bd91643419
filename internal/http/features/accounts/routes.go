package accounts

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the account administration routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/v1/accounts", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.Find)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Patch("/", h.Update)
			r.Delete("/", h.Delete)
			r.Put("/password", h.SetPassword)
			r.Post("/roles", h.AddRole)
			r.Delete("/roles/{role}", h.RemoveRole)
			r.Post("/claims", h.AddClaim)
			r.Delete("/claims", h.RemoveClaim)
			r.Post("/logins", h.AddLogin)
			r.Delete("/logins/{provider}/{key}", h.RemoveLogin)
			r.Put("/lockout", h.SetLockout)
			r.Post("/access-failures", h.RecordAccessFailure)
			r.Delete("/access-failures", h.ResetAccessFailures)
		})
	})
}
