// internal/app/features/companies/routes.go
package companies

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves /api/companies. Any signed-in user may list their own
// companies or create a new one.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	return r
}
