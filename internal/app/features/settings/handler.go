// internal/app/features/settings/handler.go
package settings

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/limits"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/app/system/timezones"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler owns the company settings endpoints.
type Handler struct {
	Access *access.Service
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

// NewHandler constructs a settings Handler.
func NewHandler(svc *access.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Access: svc, Log: logger, ErrLog: errLog}
}

type settingsResponse struct {
	CompanyID     string                 `json:"company_id"`
	Name          string                 `json:"name"`
	Settings      models.CompanySettings `json:"settings"`
	TimeZoneLabel string                 `json:"time_zone_label,omitempty"`
}

func respond(co models.Company) settingsResponse {
	resp := settingsResponse{
		CompanyID: co.ID.Hex(),
		Name:      co.Name,
		Settings:  co.Settings,
	}
	if co.Settings.TimeZone != "" {
		resp.TimeZoneLabel = timezones.Label(co.Settings.TimeZone)
	}
	return resp
}

// ServeSettings handles GET /api/company/settings.
func (h *Handler) ServeSettings(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	co, err := h.Access.CompanySettings(ctx, cc)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, respond(co))
}

// HandleSettings handles PUT /api/company/settings. The body replaces all
// settings fields; omitted fields are cleared.
func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}

	var in models.CompanySettings
	if err := reqbody.Decode(w, r, &in, limits.MaxSettingsBody); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	co, err := h.Access.UpdateCompanySettings(ctx, cc, in)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, respond(co))
}

// ServeTimeZones handles GET /api/company/settings/timezones: the choices
// for the time_zone setting, grouped by region.
func (h *Handler) ServeTimeZones(w http.ResponseWriter, r *http.Request) {
	groups, err := timezones.Groups()
	if err != nil {
		h.ErrLog.WriteError(w, r, apperr.Wrap(apperr.Internal, err))
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"groups": groups})
}
