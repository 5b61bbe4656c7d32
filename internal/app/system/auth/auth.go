// Package auth is the HTTP face of the access guard: bearer-token
// authentication, per-request company resolution and role/capability gates.
package auth

import (
	"context"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/authz"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Request inputs                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	// HeaderCompanyID names the company a request acts in.
	HeaderCompanyID = "X-Company-ID"
	// QueryCompanyID is the query-string fallback for HeaderCompanyID.
	QueryCompanyID = "companyId"
)

// BearerToken returns the token from "Authorization: Bearer <token>", or "".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// CompanyIDFrom reads the explicit company id of r. Absent yields the zero
// id; present but malformed is InvalidInput.
func CompanyIDFrom(r *http.Request) (primitive.ObjectID, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderCompanyID))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get(QueryCompanyID))
	}
	if raw == "" {
		return primitive.NilObjectID, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperr.Newf(apperr.InvalidInput, "company id is malformed")
	}
	return id, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Context helpers                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const (
	currentUserKey ctxKey = "currentUser"
	callerKey      ctxKey = "caller"
)

// WithUser returns ctx carrying u.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

// WithCaller returns ctx carrying cc (and cc.User).
func WithCaller(ctx context.Context, cc access.CallerContext) context.Context {
	ctx = WithUser(ctx, cc.User)
	return context.WithValue(ctx, callerKey, cc)
}

// CurrentUser returns the authenticated user & "found?" flag.
func CurrentUser(r *http.Request) (*models.User, bool) {
	u, ok := r.Context().Value(currentUserKey).(*models.User)
	return u, ok && u != nil
}

// Caller returns the resolved CallerContext & "found?" flag.
func Caller(r *http.Request) (access.CallerContext, bool) {
	cc, ok := r.Context().Value(callerKey).(access.CallerContext)
	return cc, ok
}

/*─────────────────────────────────────────────────────────────────────────────*
| Middleware                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// Guard is what the middleware needs from access.Service.
type Guard interface {
	Authenticate(ctx context.Context, rawToken string) (*models.User, error)
	Select(ctx context.Context, u *models.User, companyID primitive.ObjectID) (access.CallerContext, error)
	Denied(ctx context.Context, u *models.User, companyID primitive.ObjectID, err error, operation string)
}

// Middleware holds the guard and the error writer.
type Middleware struct {
	guard  Guard
	errLog *uierrors.ErrorLogger
	log    *zap.Logger
}

// NewMiddleware builds the auth middleware set.
func NewMiddleware(guard Guard, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{guard: guard, errLog: errLog, log: logger}
}

// Authenticate resolves the bearer token and stores the user in context.
// Every failure is written as an error response.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			m.errLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
			return
		}
		u, err := m.guard.Authenticate(r.Context(), token)
		if err != nil {
			m.log.Debug("authentication failed",
				zap.String("path", r.URL.Path),
				zap.String("kind", string(apperr.KindOf(err))))
			m.errLog.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
	})
}

// RequireCompany resolves the membership for the request's explicit company
// id and stores the CallerContext. It must run after Authenticate.
func (m *Middleware) RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			m.errLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
			return
		}
		companyID, err := CompanyIDFrom(r)
		if err != nil {
			m.errLog.WriteError(w, r, err)
			return
		}
		cc, err := m.guard.Select(r.Context(), u, companyID)
		if err != nil {
			m.errLog.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), cc)))
	})
}

// RequireRole allows the request only if the resolved role is in allowed.
func (m *Middleware) RequireRole(allowed ...models.Role) func(http.Handler) http.Handler {
	return m.gate(func(cc access.CallerContext) error { return cc.RequireRole(allowed...) })
}

// RequireCapability allows the request only if the resolved role grants c.
func (m *Middleware) RequireCapability(c authz.Capability) func(http.Handler) http.Handler {
	return m.gate(func(cc access.CallerContext) error { return cc.RequireCapability(c) })
}

func (m *Middleware) gate(check func(access.CallerContext) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cc, ok := Caller(r)
			if !ok {
				m.errLog.WriteError(w, r, apperr.New(apperr.NoActiveCompany))
				return
			}
			if err := check(cc); err != nil {
				m.guard.Denied(r.Context(), cc.User, cc.CompanyID, err, r.Method+" "+r.URL.Path)
				m.errLog.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin allows only the super admin. It must run after
// Authenticate and needs no company.
func (m *Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := CurrentUser(r)
		if !ok {
			m.errLog.WriteError(w, r, apperr.New(apperr.Unauthenticated))
			return
		}
		if !u.IsSuperAdmin() {
			err := apperr.New(apperr.Forbidden)
			m.guard.Denied(r.Context(), u, primitive.NilObjectID, err, r.Method+" "+r.URL.Path)
			m.errLog.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
