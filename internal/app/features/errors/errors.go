// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"go.uber.org/zap"
)

// body is the JSON envelope for every error response:
//
//	{"error": {"kind": "not_a_member", "message": "you don't have access to this company"}}
type body struct {
	Error detail `json:"error"`
}

type detail struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.Unauthenticated:
		return http.StatusUnauthorized
	case apperr.NoActiveCompany:
		return http.StatusConflict
	case apperr.NotAMember, apperr.Forbidden, apperr.SelfModificationDenied, apperr.SelfRemovalDenied:
		return http.StatusForbidden
	case apperr.AlreadyMember, apperr.RequestAlreadyHandled:
		return http.StatusConflict
	case apperr.IdentityUnavailable:
		return http.StatusServiceUnavailable
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.InvalidInput:
		return http.StatusBadRequest
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteJSON writes v as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorLogger writes error responses and logs the ones that are our fault.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger wraps logger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{log: logger}
}

// WriteError writes err as the JSON error envelope. Internal errors are
// logged with their cause; the client only sees the stable message.
func (el *ErrorLogger) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError && el != nil {
		el.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(kind)),
			zap.String("correlation_id", auditlog.CorrelationID(r.Context())),
			zap.Error(err))
	}
	WriteJSON(w, status, body{Error: detail{Kind: kind, Message: apperr.MessageOf(err)}})
}

// BadRequest writes an InvalidInput error with msg.
func (el *ErrorLogger) BadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	el.WriteError(w, r, apperr.Newf(apperr.InvalidInput, msg))
}

// NotFound answers unknown routes in the JSON error shape.
func (el *ErrorLogger) NotFound(w http.ResponseWriter, r *http.Request) {
	el.WriteError(w, r, apperr.Newf(apperr.NotFound, "no such endpoint"))
}

// MethodNotAllowed answers known routes called with the wrong verb.
func (el *ErrorLogger) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusMethodNotAllowed, body{Error: detail{Kind: apperr.InvalidInput, Message: "method not allowed"}})
}
