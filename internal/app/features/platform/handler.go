// internal/app/features/platform/handler.go
package platform

import (
	"context"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/paging"
	"github.com/dalemusser/crmhub/internal/app/system/reqbody"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Handler serves the super-admin platform console.
type Handler struct {
	Access *access.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler wires the platform console handler.
func NewHandler(svc *access.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Access: svc, ErrLog: errLog, Log: logger}
}

// includeInactive reads ?inactive=true.
func includeInactive(r *http.Request) bool {
	v, _ := strconv.ParseBool(query.Get(r, "inactive"))
	return v
}

// ServeUsers handles GET /api/platform/users?q=&inactive=&start=&limit=.
func (h *Handler) ServeUsers(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}
	page := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	users, err := h.Access.ListUsers(ctx, u, userstore.SearchFilter{
		Query:           query.Get(r, "q"),
		IncludeInactive: includeInactive(r),
		Limit:           page.LimitPlusOne(),
		Offset:          page.Offset(),
	})
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	users, hasNext := paging.Trim(users, page)
	if users == nil {
		users = []models.User{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"users": users,
		"range": paging.ComputeRange(page, len(users), hasNext),
	})
}

// ServeCompanies handles GET /api/platform/companies?q=&inactive=&start=&limit=.
func (h *Handler) ServeCompanies(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}
	page := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cos, err := h.Access.ListCompanies(ctx, u, companystore.ListFilter{
		Query:           query.Get(r, "q"),
		IncludeInactive: includeInactive(r),
		Limit:           page.LimitPlusOne(),
		Offset:          page.Offset(),
	})
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	cos, hasNext := paging.Trim(cos, page)
	if cos == nil {
		cos = []models.Company{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{
		"companies": cos,
		"range":     paging.ComputeRange(page, len(cos), hasNext),
	})
}

// setUserActive returns the handler for POST .../users/{userID}/deactivate
// and .../reactivate.
func (h *Handler) setUserActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
			return
		}
		targetID, err := reqbody.ObjectIDParam(r, "userID")
		if err != nil {
			h.ErrLog.WriteError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		if err := h.Access.SetUserActive(ctx, u, targetID, active); err != nil {
			h.ErrLog.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) setCompanyActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.CurrentUser(r)
		if !ok {
			h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
			return
		}
		companyID, err := reqbody.ObjectIDParam(r, "companyID")
		if err != nil {
			h.ErrLog.WriteError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()

		if err := h.Access.SetCompanyActive(ctx, u, companyID, active); err != nil {
			h.ErrLog.WriteError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
