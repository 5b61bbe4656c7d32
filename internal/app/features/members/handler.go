// internal/app/features/members/handler.go
package members

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the member list of the caller's company and the admin
// operations on it.
type Handler struct {
	Access *access.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler wires the members handler.
func NewHandler(svc *access.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Access: svc, ErrLog: errLog, Log: logger}
}

// ServeList handles GET /api/company/members.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Access.ListMembers(ctx, cc.CompanyID)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []access.Member{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"members": list})
}

type roleRequest struct {
	Role string `json:"role"`
}

// HandleUpdateRole handles PUT /api/company/members/{userID}/role.
func (h *Handler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}
	targetID, err := reqbody.ObjectIDParam(r, "userID")
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	var req roleRequest
	if err := reqbody.Decode(w, r, &req, 0); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	// An unparseable role is passed through as-is so the service applies
	// its own ordering of checks (self before validity).
	role, perr := models.ParseRole(req.Role)
	if perr != nil {
		role = models.Role(req.Role)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	m, err := h.Access.UpdateRole(ctx, cc, targetID, role)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, m)
}

// HandleRemove handles DELETE /api/company/members/{userID}. The membership
// is deactivated, never deleted.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}
	targetID, err := reqbody.ObjectIDParam(r, "userID")
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Access.RemoveMember(ctx, cc, targetID); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
