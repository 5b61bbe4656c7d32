// internal/app/features/joinrequests/handler.go
package joinrequests

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
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Handler serves both sides of the join-request workflow: users asking to
// join and company admins deciding.
type Handler struct {
	Access *access.Service
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler wires the join-request handler.
func NewHandler(svc *access.Service, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Access: svc, ErrLog: errLog, Log: logger}
}

/* ---------------------------- requester side ---------------------------- */

type joinRequest struct {
	CompanyID primitive.ObjectID `json:"company_id"`
	Role      string             `json:"role"`
}

// HandleRequest handles POST /api/join-requests.
//
// 201 when a new request was recorded, 200 when an identical pending
// request already existed (it is returned unchanged).
func (h *Handler) HandleRequest(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	var req joinRequest
	if err := reqbody.Decode(w, r, &req, 0); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if req.CompanyID.IsZero() {
		h.ErrLog.BadRequest(w, r, "company_id is required")
		return
	}
	role, err := models.ParseRole(req.Role)
	if err != nil {
		h.ErrLog.BadRequest(w, r, "role must be one of company_admin, manager, employee, client")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	jr, created, err := h.Access.RequestJoin(ctx, u, req.CompanyID, role)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	uierrors.WriteJSON(w, status, jr)
}

// ServeMine handles GET /api/join-requests: the caller's own requests.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Access.MyJoinRequests(ctx, u)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []models.JoinRequest{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"join_requests": list})
}

/* ----------------------------- company side ----------------------------- */

// ServePending handles GET /api/company/join-requests.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Access.ListPendingJoinRequests(ctx, cc)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if list == nil {
		list = []access.PendingRequest{}
	}
	uierrors.WriteJSON(w, http.StatusOK, map[string]any{"join_requests": list})
}

type decision struct {
	Action string `json:"action"`
}

// HandleDecision handles POST /api/company/join-requests/{userID} with
// {"action": "approve" | "reject"}.
func (h *Handler) HandleDecision(w http.ResponseWriter, r *http.Request) {
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
	var req decision
	if err := reqbody.Decode(w, r, &req, 0); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	action, err := access.ParseJoinAction(req.Action)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	jr, err := h.Access.HandleJoinRequest(ctx, cc, targetID, action)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	uierrors.WriteJSON(w, http.StatusOK, jr)
}
