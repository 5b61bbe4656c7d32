// internal/app/features/session/routes.go
package session

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// LoginRoutes serves POST /api/session. The handler reads the bearer token
// itself so first sign-ins go through Login rather than Resolve.
func LoginRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleLogin)
	return r
}

// MeRoutes serves /api/me for authenticated users.
func MeRoutes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Get("/", h.ServeMe)
	r.Put("/company", h.HandleSelectCompany)
	return r
}
