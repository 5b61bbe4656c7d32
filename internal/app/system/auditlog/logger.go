// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/crmhub/internal/app/store/audit"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
// Each value is one of "all" (MongoDB + zap), "db" (MongoDB only),
// "log" (zap only) or "off" (disabled). Empty means "all".
type Config struct {
	// Auth covers sign-in, token failures and company selection.
	Auth string
	// Admin covers company, membership and join-request changes.
	Admin string
	// Security covers super-admin promotion/demotion and denied access.
	Security string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger. store may be nil when every category is
// configured as "log" or "off".
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

/* ---------------------------- request metadata ---------------------------- */

type metaKey struct{}

// RequestMeta is the per-request context attached to every event.
type RequestMeta struct {
	CorrelationID string
	IP            string
	UserAgent     string
}

// HeaderRequestID is read from inbound requests and echoed on responses.
const HeaderRequestID = "X-Request-ID"

// Middleware attaches RequestMeta to the request context. An inbound
// X-Request-ID is reused as the correlation id; otherwise a UUID is minted.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		meta := RequestMeta{
			CorrelationID: id,
			IP:            clientIP(r),
			UserAgent:     r.UserAgent(),
		}
		next.ServeHTTP(w, r.WithContext(WithMeta(r.Context(), meta)))
	})
}

// WithMeta returns ctx carrying meta.
func WithMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, metaKey{}, meta)
}

// MetaFrom returns the RequestMeta stored in ctx, if any.
func MetaFrom(ctx context.Context) (RequestMeta, bool) {
	m, ok := ctx.Value(metaKey{}).(RequestMeta)
	return m, ok
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	m, _ := MetaFrom(ctx)
	return m.CorrelationID
}

// clientIP extracts the client IP from the request.
func clientIP(r *http.Request) string {
	// Check X-Forwarded-For header first (for reverse proxies); first hop wins.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

/* --------------------------------- core ---------------------------------- */

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("correlation_id", event.CorrelationID),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.CompanyID != nil {
		fields = append(fields, zap.String("company_id", event.CompanyID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryAdmin:
		s = l.config.Admin
	case audit.CategorySecurity:
		s = l.config.Security
	}
	if s == "" {
		return "all"
	}
	return s
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Request metadata from ctx fills any fields the caller left empty.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	setting := l.setting(event.Category)
	if setting == "off" {
		return
	}

	if meta, ok := MetaFrom(ctx); ok {
		if event.CorrelationID == "" {
			event.CorrelationID = meta.CorrelationID
		}
		if event.IP == "" {
			event.IP = meta.IP
		}
		if event.UserAgent == "" {
			event.UserAgent = meta.UserAgent
		}
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func oid(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Authentication Events ---

// LoginSuccess logs a verified sign-in of an existing user.
func (l *Logger) LoginSuccess(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    oid(userID),
		Success:   true,
	})
}

// FirstLogin logs the creation of a user record on first sign-in.
func (l *Logger) FirstLogin(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventFirstLogin,
		UserID:    oid(userID),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailedInvalidToken logs a rejected bearer token.
func (l *Logger) LoginFailedInvalidToken(ctx context.Context, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedInvalidToken,
		Success:       false,
		FailureReason: reason,
	})
}

// LoginFailedUserDisabled logs a valid token for a deactivated user.
func (l *Logger) LoginFailedUserDisabled(ctx context.Context, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserDisabled,
		UserID:        oid(userID),
		Success:       false,
		FailureReason: "user deactivated",
	})
}

// IdentityUnavailable logs a verification that failed because the provider
// could not be reached.
func (l *Logger) IdentityUnavailable(ctx context.Context, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventIdentityUnavailable,
		Success:       false,
		FailureReason: reason,
	})
}

// CompanySelected logs an explicit switch of the remembered company.
func (l *Logger) CompanySelected(ctx context.Context, userID, companyID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventCompanySelected,
		UserID:    oid(userID),
		CompanyID: oid(companyID),
		Success:   true,
	})
}

// --- Admin Events ---

// CompanyCreated logs a new tenant and its founding admin.
func (l *Logger) CompanyCreated(ctx context.Context, actorID, companyID primitive.ObjectID, name string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventCompanyCreated,
		ActorID:   oid(actorID),
		UserID:    oid(actorID),
		CompanyID: oid(companyID),
		Success:   true,
		Details:   map[string]string{"name": name},
	})
}

// CompanySettingsUpdated logs a settings change.
func (l *Logger) CompanySettingsUpdated(ctx context.Context, actorID, companyID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventCompanySettingsUpdated,
		ActorID:   oid(actorID),
		CompanyID: oid(companyID),
		Success:   true,
	})
}

// CompanyActiveChanged logs a platform-level activation toggle.
func (l *Logger) CompanyActiveChanged(ctx context.Context, actorID, companyID primitive.ObjectID, active bool) {
	et := audit.EventCompanyDeactivated
	if active {
		et = audit.EventCompanyReactivated
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: et,
		ActorID:   oid(actorID),
		CompanyID: oid(companyID),
		Success:   true,
	})
}

// MemberRoleChanged logs a role update of targetID within companyID.
func (l *Logger) MemberRoleChanged(ctx context.Context, actorID, targetID, companyID primitive.ObjectID, from, to string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventMemberRoleChanged,
		ActorID:   oid(actorID),
		UserID:    oid(targetID),
		CompanyID: oid(companyID),
		Success:   true,
		Details:   map[string]string{"from": from, "to": to},
	})
}

// MemberRemoved logs a deactivated membership.
func (l *Logger) MemberRemoved(ctx context.Context, actorID, targetID, companyID primitive.ObjectID, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventMemberRemoved,
		ActorID:   oid(actorID),
		UserID:    oid(targetID),
		CompanyID: oid(companyID),
		Success:   true,
		Details:   map[string]string{"role": role},
	})
}

// JoinRequested logs a new pending join request.
func (l *Logger) JoinRequested(ctx context.Context, userID, companyID primitive.ObjectID, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventJoinRequested,
		ActorID:   oid(userID),
		UserID:    oid(userID),
		CompanyID: oid(companyID),
		Success:   true,
		Details:   map[string]string{"requested_role": role},
	})
}

// JoinHandled logs an approval or rejection.
func (l *Logger) JoinHandled(ctx context.Context, actorID, userID, companyID primitive.ObjectID, approved bool, role string) {
	et := audit.EventJoinRejected
	if approved {
		et = audit.EventJoinApproved
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: et,
		ActorID:   oid(actorID),
		UserID:    oid(userID),
		CompanyID: oid(companyID),
		Success:   true,
		Details:   map[string]string{"role": role},
	})
}

// UserActiveChanged logs a platform-level user activation toggle.
func (l *Logger) UserActiveChanged(ctx context.Context, actorID, targetID primitive.ObjectID, active bool) {
	et := audit.EventUserDeactivated
	if active {
		et = audit.EventUserReactivated
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: et,
		ActorID:   oid(actorID),
		UserID:    oid(targetID),
		Success:   true,
		Details:   map[string]string{"active": strconv.FormatBool(active)},
	})
}

// --- Security Events ---

// SuperAdminPromoted logs a user gaining the super_admin global role.
func (l *Logger) SuperAdminPromoted(ctx context.Context, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		EventType: audit.EventSuperAdminPromoted,
		UserID:    oid(userID),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// SuperAdminDemoted logs a user losing the super_admin global role.
func (l *Logger) SuperAdminDemoted(ctx context.Context, userID primitive.ObjectID, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		EventType: audit.EventSuperAdminDemoted,
		UserID:    oid(userID),
		Success:   true,
		Details:   map[string]string{"email": email, "reason": reason},
	})
}

// AccessDenied logs a refused operation. kind is the error kind returned to
// the caller; companyID may be zero.
func (l *Logger) AccessDenied(ctx context.Context, userID, companyID primitive.ObjectID, kind, operation string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventAccessDenied,
		UserID:        oid(userID),
		CompanyID:     oid(companyID),
		Success:       false,
		FailureReason: kind,
		Details:       map[string]string{"operation": operation},
	})
}
