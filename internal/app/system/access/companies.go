package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MyCompany is one of the caller's memberships with its company name.
type MyCompany struct {
	CompanyID primitive.ObjectID `json:"company_id"`
	Name      string             `json:"name"`
	Role      models.Role        `json:"role"`
	IsActive  bool               `json:"is_active"`
	JoinedAt  time.Time          `json:"joined_at"`
}

// CreateCompany creates a company and makes u its company_admin. The
// company write and the membership write commit together.
func (s *Service) CreateCompany(ctx context.Context, u *models.User, name string, settings models.CompanySettings) (models.Company, error) {
	if u == nil {
		return models.Company{}, apperr.New(apperr.Unauthenticated)
	}

	var created models.Company
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		co, err := s.companies.Create(ctx, models.Company{Name: name, AdminID: u.ID, Settings: settings})
		if err != nil {
			return err
		}
		created = co
		_, err = s.updateUser(ctx, u.ID, func(u *models.User) error {
			u.Companies = append(u.Companies, models.Membership{
				CompanyID: co.ID,
				Role:      models.RoleCompanyAdmin,
				IsActive:  true,
				JoinedAt:  s.now(),
			})
			return nil
		})
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, companystore.ErrNameRequired):
			return models.Company{}, apperr.Newf(apperr.InvalidInput, "company name is required")
		case errors.Is(err, companystore.ErrInvalidSettings):
			return models.Company{}, apperr.Newf(apperr.InvalidInput, settingsMessage(err))
		}
		if !created.ID.IsZero() {
			// Sequential fallback left a company nobody administers; hide it.
			if derr := s.companies.SetActive(context.WithoutCancel(ctx), created.ID, false); derr != nil {
				s.log.Error("deactivate orphan company", zap.String("company_id", created.ID.Hex()), zap.Error(derr))
			}
		}
		return models.Company{}, classify(err)
	}

	s.audit.CompanyCreated(ctx, u.ID, created.ID, created.Name)
	s.log.Info("company created",
		zap.String("company_id", created.ID.Hex()),
		zap.String("user_id", u.ID.Hex()))
	return created, nil
}

// MyCompanies lists every membership of u, active and removed, with company
// names, plus the suggested default company.
func (s *Service) MyCompanies(ctx context.Context, u *models.User, remembered primitive.ObjectID) ([]MyCompany, primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(u.Companies))
	for _, m := range u.Companies {
		ids = append(ids, m.CompanyID)
	}
	cos, err := s.companies.GetByIDs(ctx, ids)
	if err != nil {
		return nil, primitive.NilObjectID, apperr.Wrap(apperr.Internal, fmt.Errorf("load companies: %w", err))
	}
	names := make(map[primitive.ObjectID]string, len(cos))
	for _, co := range cos {
		names[co.ID] = co.Name
	}

	out := make([]MyCompany, 0, len(u.Companies))
	for _, m := range u.Companies {
		out = append(out, MyCompany{
			CompanyID: m.CompanyID,
			Name:      names[m.CompanyID],
			Role:      m.Role,
			IsActive:  m.IsActive,
			JoinedAt:  m.JoinedAt,
		})
	}
	def, _ := DefaultCompany(u, remembered)
	return out, def, nil
}

// CompanySettings returns the settings of the actor's company.
func (s *Service) CompanySettings(ctx context.Context, actor CallerContext) (models.Company, error) {
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, "read_settings")
		return models.Company{}, err
	}
	co, err := s.companies.GetByID(ctx, actor.CompanyID)
	if errors.Is(err, companystore.ErrNotFound) {
		return models.Company{}, apperr.Newf(apperr.NotFound, "company not found")
	}
	if err != nil {
		return models.Company{}, apperr.Wrap(apperr.Internal, err)
	}
	return co, nil
}

// UpdateCompanySettings replaces the settings of the actor's company.
func (s *Service) UpdateCompanySettings(ctx context.Context, actor CallerContext, settings models.CompanySettings) (models.Company, error) {
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, "update_settings")
		return models.Company{}, err
	}
	co, err := s.companies.UpdateSettings(ctx, actor.CompanyID, settings)
	switch {
	case errors.Is(err, companystore.ErrNotFound):
		return models.Company{}, apperr.Newf(apperr.NotFound, "company not found")
	case errors.Is(err, companystore.ErrInvalidSettings):
		return models.Company{}, apperr.Newf(apperr.InvalidInput, settingsMessage(err))
	case err != nil:
		return models.Company{}, apperr.Wrap(apperr.Internal, err)
	}
	s.audit.CompanySettingsUpdated(ctx, actor.UserID(), actor.CompanyID)
	return co, nil
}

// settingsMessage strips the sentinel prefix from a settings validation error.
func settingsMessage(err error) string {
	return strings.TrimPrefix(err.Error(), companystore.ErrInvalidSettings.Error()+": ")
}
