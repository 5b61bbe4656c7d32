// internal/app/features/session/handler.go
package session

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/companypref"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LoginResolver signs a bearer token in, creating the user on first sight.
type LoginResolver interface {
	Login(ctx context.Context, rawToken string) (*models.User, error)
}

// Handler serves the session endpoints: sign-in, the current user and the
// remembered company.
type Handler struct {
	Login  LoginResolver
	Access *access.Service
	Prefs  *companypref.Store
	Audit  *auditlog.Logger
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler wires the session handler.
func NewHandler(login LoginResolver, svc *access.Service, prefs *companypref.Store, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Login:  login,
		Access: svc,
		Prefs:  prefs,
		Audit:  audit,
		ErrLog: errLog,
		Log:    logger,
	}
}

// meResponse is returned by sign-in and GET /api/me.
type meResponse struct {
	User             *models.User        `json:"user"`
	Companies        []access.MyCompany  `json:"companies"`
	DefaultCompanyID *primitive.ObjectID `json:"default_company_id,omitempty"`
}

func (h *Handler) remembered(r *http.Request) primitive.ObjectID {
	if h.Prefs == nil {
		return primitive.NilObjectID
	}
	return h.Prefs.Remembered(r)
}

func (h *Handler) me(ctx context.Context, r *http.Request, u *models.User) (meResponse, error) {
	cos, def, err := h.Access.MyCompanies(ctx, u, h.remembered(r))
	if err != nil {
		return meResponse{}, err
	}
	resp := meResponse{User: u, Companies: cos}
	if !def.IsZero() {
		resp.DefaultCompanyID = &def
	}
	return resp, nil
}

// HandleLogin handles POST /api/session.
//
// The bearer token is verified and the user record is created, refreshed or
// promoted as needed. The response lists the user's companies and a
// suggested default so the client can pick one without another round trip.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r)
	if token == "" {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Login.Login(ctx, token)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	resp, err := h.me(ctx, r, u)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

// ServeMe handles GET /api/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	resp, err := h.me(ctx, r, u)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, resp)
}

type selectRequest struct {
	CompanyID primitive.ObjectID `json:"company_id"`
}

// HandleSelectCompany handles PUT /api/me/company.
//
// The choice is only remembered for this browser as the default for the
// next sign-in. It grants nothing: every request still names its company.
func (h *Handler) HandleSelectCompany(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	var req selectRequest
	if err := reqbody.Decode(w, r, &req, 0); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if req.CompanyID.IsZero() {
		h.ErrLog.BadRequest(w, r, "company_id is required")
		return
	}

	cc, err := h.Access.Select(r.Context(), u, req.CompanyID)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if h.Prefs != nil {
		if err := h.Prefs.Remember(w, r, cc.CompanyID); err != nil {
			h.ErrLog.WriteError(w, r, apperr.Wrap(apperr.Internal, err))
			return
		}
	}
	h.Audit.CompanySelected(r.Context(), u.ID, cc.CompanyID)

	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"company_id": cc.CompanyID,
		"role":       cc.Role,
	})
}
