package access

import (
	"context"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Authenticate resolves rawToken to a user. Failures are Unauthenticated,
// IdentityUnavailable or Forbidden (deactivated account).
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*models.User, error) {
	u, err := s.identity.Resolve(ctx, rawToken)
	if err != nil {
		s.metrics.Guard(string(apperr.KindOf(err)))
		return nil, err
	}
	return u, nil
}

// Select runs SelectCompany for an already authenticated user and records
// the outcome.
func (s *Service) Select(ctx context.Context, u *models.User, companyID primitive.ObjectID) (CallerContext, error) {
	cc, err := SelectCompany(u, companyID)
	if err != nil {
		s.Denied(ctx, u, companyID, err, "select_company")
		return CallerContext{}, err
	}
	s.metrics.Guard("allowed")
	return cc, nil
}

// ResolveCallerContext authenticates rawToken and resolves the membership
// for companyID (zero when the request named none).
func (s *Service) ResolveCallerContext(ctx context.Context, rawToken string, companyID primitive.ObjectID) (CallerContext, error) {
	u, err := s.Authenticate(ctx, rawToken)
	if err != nil {
		return CallerContext{}, err
	}
	return s.Select(ctx, u, companyID)
}

// Denied records a refused request. Membership and permission refusals are
// audited; the rest only count.
func (s *Service) Denied(ctx context.Context, u *models.User, companyID primitive.ObjectID, err error, operation string) {
	kind := apperr.KindOf(err)
	s.metrics.Guard(string(kind))
	switch kind {
	case apperr.NotAMember, apperr.Forbidden, apperr.SelfModificationDenied, apperr.SelfRemovalDenied:
	default:
		return
	}
	var uid primitive.ObjectID
	if u != nil {
		uid = u.ID
	}
	s.audit.AccessDenied(ctx, uid, companyID, string(kind), operation)
	s.log.Debug("access denied",
		zap.String("user_id", uid.Hex()),
		zap.String("company_id", companyID.Hex()),
		zap.String("kind", string(kind)),
		zap.String("operation", operation))
}
