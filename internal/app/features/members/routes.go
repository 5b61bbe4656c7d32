// internal/app/features/members/routes.go
package members

import (
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes serves /api/company/members. It must be mounted under a router
// that already ran Authenticate and RequireCompany.
//
// The mutations are gated inside access.Service, which checks self-targeting
// before the company_admin role so callers get the specific error.
func Routes(h *Handler, mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.With(mw.RequireRole(models.RoleCompanyAdmin, models.RoleManager, models.RoleEmployee)).
		Get("/", h.ServeList)
	r.Put("/{userID}/role", h.HandleUpdateRole)
	r.Delete("/{userID}", h.HandleRemove)
	return r
}
