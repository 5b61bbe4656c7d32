// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// CompanyRoutes serves /api/company/audit. It must be mounted behind
// Authenticate and RequireCompany; only company admins may read.
func CompanyRoutes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(models.RoleCompanyAdmin))
	r.Get("/", h.ServeCompanyEvents)
	return r
}

// PlatformRoutes serves /api/platform/audit for the super admin.
func PlatformRoutes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.Authenticate, mw.RequireSuperAdmin)
	r.Get("/", h.ServePlatformEvents)
	return r
}
