// internal/app/features/auditlog/list.go
package auditlog

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/store/audit"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/paging"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ServeCompanyEvents handles GET /api/company/audit. Events are always
// scoped to the caller's active company.
func (h *Handler) ServeCompanyEvents(w http.ResponseWriter, r *http.Request) {
	cc, ok := auth.Caller(r)
	if !ok || cc.CompanyID.IsZero() {
		h.ErrLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	companyID := cc.CompanyID
	filter.CompanyID = &companyID
	h.serve(w, r, filter)
}

// ServePlatformEvents handles GET /api/platform/audit. The super admin may
// narrow by company_id and user_id.
func (h *Handler) ServePlatformEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if filter.CompanyID, err = optionalID(r, "company_id"); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	if filter.UserID, err = optionalID(r, "user_id"); err != nil {
		h.ErrLog.WriteError(w, r, err)
		return
	}
	h.serve(w, r, filter)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, filter audit.QueryFilter) {
	page := paging.Parse(r)
	filter.Offset = page.Offset()
	filter.Limit = page.LimitPlusOne()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.WriteError(w, r, apperr.Wrap(apperr.Internal, err))
		return
	}
	events, hasNext := paging.Trim(events, page)

	views := make([]eventView, 0, len(events))
	emails := h.emailResolver(ctx)
	for _, e := range events {
		views = append(views, eventView{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			CompanyID:     e.CompanyID,
			ActorID:       e.ActorID,
			ActorEmail:    emails(e.ActorID),
			UserID:        e.UserID,
			UserEmail:     emails(e.UserID),
			CorrelationID: e.CorrelationID,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}

	uierrors.WriteJSON(w, http.StatusOK, listResponse{
		Events: views,
		Range:  paging.ComputeRange(page, len(views), hasNext),
	})
}

// emailResolver memoizes id-to-email lookups for one response. Lookup
// failures leave the email blank; the id is still present.
func (h *Handler) emailResolver(ctx context.Context) func(*primitive.ObjectID) string {
	seen := map[primitive.ObjectID]string{}
	return func(id *primitive.ObjectID) string {
		if id == nil || h.Users == nil {
			return ""
		}
		if email, ok := seen[*id]; ok {
			return email
		}
		email := ""
		u, err := h.Users.GetByID(ctx, *id)
		switch {
		case err != nil && !errors.Is(err, userstore.ErrNotFound):
			h.Log.Warn("audit email lookup failed", zap.String("user_id", id.Hex()), zap.Error(err))
		case u != nil:
			email = u.Email
		}
		seen[*id] = email
		return email
	}
}

// parseFilter reads category, event_type, since and until. Dates are
// RFC 3339 timestamps or plain YYYY-MM-DD days; until covers its whole day.
func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	var f audit.QueryFilter

	f.Category = strings.ToLower(strings.TrimSpace(query.Get(r, "category")))
	if f.Category != "" && !categories[f.Category] {
		return f, apperr.Newf(apperr.InvalidInput, "category must be auth, admin or security")
	}
	f.EventType = strings.TrimSpace(query.Get(r, "event_type"))

	since, err := parseTime(query.Get(r, "since"), false)
	if err != nil {
		return f, apperr.Newf(apperr.InvalidInput, "since must be a date or RFC 3339 time")
	}
	until, err := parseTime(query.Get(r, "until"), true)
	if err != nil {
		return f, apperr.Newf(apperr.InvalidInput, "until must be a date or RFC 3339 time")
	}
	if since != nil && until != nil && until.Before(*since) {
		return f, apperr.Newf(apperr.InvalidInput, "until is before since")
	}
	f.StartTime, f.EndTime = since, until
	return f, nil
}

func parseTime(s string, endOfDay bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func optionalID(r *http.Request, name string) (*primitive.ObjectID, error) {
	raw := strings.TrimSpace(query.Get(r, name))
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, apperr.Newf(apperr.InvalidInput, name+" is malformed")
	}
	return &id, nil
}
