// internal/app/features/joinrequests/routes.go
package joinrequests

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes serves /api/join-requests for any signed-in user.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate)
	r.Get("/", h.ServeMine)
	r.Post("/", h.HandleRequest)
	return r
}

// CompanyRoutes serves /api/company/join-requests. It must be mounted
// under a router that already ran Authenticate and RequireCompany.
func CompanyRoutes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(models.RoleCompanyAdmin))
	r.Get("/", h.ServePending)
	r.Post("/{userID}", h.HandleDecision)
	return r
}
