// internal/app/features/roles/handler.go
package roles

import (
	"net/http"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/authz"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// ServeRoles handles GET /api/company/roles: the fixed role table with each
// role's capabilities, for the role picker in the members screen.
func ServeRoles(w http.ResponseWriter, r *http.Request) {
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"roles": authz.Describe()})
}

// Routes serves /api/company/roles for company admins.
func Routes(mw *auth.Middleware) chi.Router {
	r := chi.NewRouter()
	r.Use(mw.RequireRole(models.RoleCompanyAdmin))
	r.Get("/", ServeRoles)
	return r
}
