// internal/app/features/companies/handler.go
package companies

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/companypref"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves the caller's own company list and company creation.
type Handler struct {
	Access *access.Service
	Prefs  *companypref.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler wires the companies handler. prefs may be nil.
func NewHandler(svc *access.Service, prefs *companypref.Store, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Access: svc, Prefs: prefs, ErrLog: errLog, Log: logger}
}

type listResponse struct {
	Companies        []access.MyCompany  `json:"companies"`
	DefaultCompanyID *primitive.ObjectID `json:"default_company_id,omitempty"`
}

// ServeList handles GET /api/companies.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	remembered := primitive.NilObjectID
	if h.Prefs != nil {
		remembered = h.Prefs.Remembered(r)
	}
	cos, def, err := h.Access.MyCompanies(ctx, u, remembered)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	resp := listResponse{Companies: cos}
	if !def.IsZero() {
		resp.DefaultCompanyID = &def
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

type createRequest struct {
	Name     string                 `json:"name"`
	Settings models.CompanySettings `json:"settings"`
}

// HandleCreate handles POST /api/companies. The caller becomes the new
// company's company_admin.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	var req createRequest
	if err := reqbody.Decode(w, r, &req, 0); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	co, err := h.Access.CreateCompany(ctx, u, req.Name, req.Settings)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/company/settings?companyId="+co.ID.Hex())
	uierrors.WriteJSON(w, http.StatusCreated, co)
}
