package access

import (
	"context"
	"errors"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// requireSuperAdmin gates the platform console.
func (s *Service) requireSuperAdmin(ctx context.Context, u *models.User, op string) error {
	if u != nil && u.IsSuperAdmin() {
		return nil
	}
	err := apperr.New(apperr.Forbidden)
	s.Denied(ctx, u, primitive.NilObjectID, err, op)
	return err
}

// ListUsers searches all users. Super admin only.
func (s *Service) ListUsers(ctx context.Context, actor *models.User, f userstore.SearchFilter) ([]models.User, error) {
	if err := s.requireSuperAdmin(ctx, actor, "list_users"); err != nil {
		return nil, err
	}
	users, err := s.users.Search(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}
	return users, nil
}

// SetUserActive deactivates or reactivates a user. A super admin can never
// deactivate themself.
func (s *Service) SetUserActive(ctx context.Context, actor *models.User, targetID primitive.ObjectID, active bool) error {
	const op = "set_user_active"
	if err := s.requireSuperAdmin(ctx, actor, op); err != nil {
		return err
	}
	if actor.ID == targetID {
		err := apperr.Newf(apperr.SelfModificationDenied, "you can't deactivate your own account")
		s.Denied(ctx, actor, primitive.NilObjectID, err, op)
		return err
	}
	err := s.users.SetActive(ctx, targetID, active)
	if errors.Is(err, userstore.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "user not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}
	s.audit.UserActiveChanged(ctx, actor.ID, targetID, active)
	s.log.Info("user active state changed",
		zap.String("actor_id", actor.ID.Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.Bool("active", active))
	return nil
}

// ListCompanies lists companies across tenants. Super admin only.
func (s *Service) ListCompanies(ctx context.Context, actor *models.User, f companystore.ListFilter) ([]models.Company, error) {
	if err := s.requireSuperAdmin(ctx, actor, "list_companies"); err != nil {
		return nil, err
	}
	cos, err := s.companies.List(ctx, f)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err)
	}
	return cos, nil
}

// SetCompanyActive deactivates or reactivates a company. A deactivated
// company accepts no join requests; existing memberships are untouched.
func (s *Service) SetCompanyActive(ctx context.Context, actor *models.User, companyID primitive.ObjectID, active bool) error {
	if err := s.requireSuperAdmin(ctx, actor, "set_company_active"); err != nil {
		return err
	}
	err := s.companies.SetActive(ctx, companyID, active)
	if errors.Is(err, companystore.ErrNotFound) {
		return apperr.Newf(apperr.NotFound, "company not found")
	}
	if err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}
	s.audit.CompanyActiveChanged(ctx, actor.ID, companyID, active)
	return nil
}
