// internal/app/features/auditlog/handler.go
package auditlog

import (
	"context"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/store/audit"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// EventQuerier reads recorded audit events, newest first.
type EventQuerier interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
}

// UserLookup resolves actor and target ids to emails for display.
type UserLookup interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Handler serves the audit trail to company admins and the super admin.
type Handler struct {
	Events EventQuerier
	Users  UserLookup
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler constructs an audit log feature handler. users may be nil, in
// which case events carry ids only.
func NewHandler(events EventQuerier, users UserLookup, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Users:  users,
		ErrLog: errLog,
		Log:    logger,
	}
}
