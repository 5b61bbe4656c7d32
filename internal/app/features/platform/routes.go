// internal/app/features/platform/routes.go
package platform

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes serves /api/platform for the super admin. No company is involved.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate, mw.RequireSuperAdmin)

	r.Get("/users", h.ServeUsers)
	r.Post("/users/{userID}/deactivate", h.setUserActive(false))
	r.Post("/users/{userID}/reactivate", h.setUserActive(true))

	r.Get("/companies", h.ServeCompanies)
	r.Post("/companies/{companyID}/deactivate", h.setCompanyActive(false))
	r.Post("/companies/{companyID}/reactivate", h.setCompanyActive(true))
	return r
}
