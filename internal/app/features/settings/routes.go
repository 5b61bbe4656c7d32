// internal/app/features/settings/routes.go
package settings

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes serves /api/company/settings. All routes require company_admin in
// the named company; the router it is mounted under resolves the company.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(models.RoleCompanyAdmin))
	r.Get("/", h.ServeSettings)
	r.Put("/", h.HandleSettings)
	r.Get("/timezones", h.ServeTimeZones)
	return r
}
