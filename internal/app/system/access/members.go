package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Member is one row of a company's member list.
type Member struct {
	UserID      primitive.ObjectID `json:"user_id"`
	Email       string             `json:"email"`
	DisplayName string             `json:"display_name"`
	Role        models.Role        `json:"role"`
	JoinedAt    time.Time          `json:"joined_at"`
}

// errNoChange tells updateUser that fn found nothing to write.
var errNoChange = errors.New("no change")

// updateUser loads id, applies fn and saves with the version guard,
// reloading and re-applying on conflict. fn may return errNoChange.
func (s *Service) updateUser(ctx context.Context, id primitive.ObjectID, fn func(u *models.User) error) (*models.User, error) {
	for attempt := 1; ; attempt++ {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(u); err != nil {
			if errors.Is(err, errNoChange) {
				return u, nil
			}
			return nil, err
		}
		err = s.users.Save(ctx, u)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, userstore.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return nil, err
		}
		s.metrics.MembershipConflict()
		s.log.Debug("user version conflict, retrying",
			zap.String("user_id", id.Hex()), zap.Int("attempt", attempt))
	}
}

// classify maps store errors that escaped an operation to apperr kinds.
func classify(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, userstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, err)
	default:
		return apperr.Wrap(apperr.Internal, err)
	}
}

// ListMembers returns the active users holding an active membership in
// companyID, ordered by display name.
func (s *Service) ListMembers(ctx context.Context, companyID primitive.ObjectID) ([]Member, error) {
	users, err := s.users.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, fmt.Errorf("list members: %w", err))
	}
	out := make([]Member, 0, len(users))
	for i := range users {
		idx := users[i].ActiveMembership(companyID)
		if idx < 0 {
			continue
		}
		m := users[i].Companies[idx]
		out = append(out, Member{
			UserID:      users[i].ID,
			Email:       users[i].Email,
			DisplayName: users[i].DisplayName,
			Role:        m.Role,
			JoinedAt:    m.JoinedAt,
		})
	}
	return out, nil
}

// requireAdmin is the gate for membership administration. Self checks run
// before it so that an admin acting on themself sees the specific error.
func requireAdmin(actor CallerContext) error {
	return actor.RequireRole(models.RoleCompanyAdmin)
}

// UpdateRole sets targetID's role in the actor's company to newRole.
func (s *Service) UpdateRole(ctx context.Context, actor CallerContext, targetID primitive.ObjectID, newRole models.Role) (Member, error) {
	const op = "update_role"
	if actor.UserID() == targetID {
		err := apperr.New(apperr.SelfModificationDenied)
		s.Denied(ctx, actor.User, actor.CompanyID, err, op)
		return Member{}, err
	}
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, op)
		return Member{}, err
	}
	if !newRole.Valid() {
		return Member{}, apperr.Newf(apperr.InvalidInput, "role must be one of company_admin, manager, employee, client")
	}
	if actor.CompanyID.IsZero() {
		return Member{}, apperr.New(apperr.NoActiveCompany)
	}

	var from models.Role
	u, err := s.updateUser(ctx, targetID, func(u *models.User) error {
		i := u.ActiveMembership(actor.CompanyID)
		if i < 0 {
			return apperr.Newf(apperr.NotFound, "that user is not a member of this company")
		}
		from = u.Companies[i].Role
		if from == newRole {
			return errNoChange
		}
		u.Companies[i].Role = newRole
		return nil
	})
	if err != nil {
		return Member{}, classify(err)
	}

	if from != newRole {
		s.audit.MemberRoleChanged(ctx, actor.UserID(), targetID, actor.CompanyID, string(from), string(newRole))
		s.log.Info("member role changed",
			zap.String("actor_id", actor.UserID().Hex()),
			zap.String("user_id", targetID.Hex()),
			zap.String("company_id", actor.CompanyID.Hex()),
			zap.String("from", string(from)),
			zap.String("to", string(newRole)))
	}
	m := u.Companies[u.ActiveMembership(actor.CompanyID)]
	return Member{UserID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Role: m.Role, JoinedAt: m.JoinedAt}, nil
}

// RemoveMember deactivates targetID's membership in the actor's company. The
// entry stays in the user's history.
func (s *Service) RemoveMember(ctx context.Context, actor CallerContext, targetID primitive.ObjectID) error {
	const op = "remove_member"
	if actor.UserID() == targetID {
		err := apperr.New(apperr.SelfRemovalDenied)
		s.Denied(ctx, actor.User, actor.CompanyID, err, op)
		return err
	}
	if err := requireAdmin(actor); err != nil {
		s.Denied(ctx, actor.User, actor.CompanyID, err, op)
		return err
	}
	if actor.CompanyID.IsZero() {
		return apperr.New(apperr.NoActiveCompany)
	}

	var role models.Role
	_, err := s.updateUser(ctx, targetID, func(u *models.User) error {
		i := u.ActiveMembership(actor.CompanyID)
		if i < 0 {
			return apperr.Newf(apperr.NotFound, "that user is not a member of this company")
		}
		role = u.Companies[i].Role
		u.Companies[i].IsActive = false
		return nil
	})
	if err != nil {
		return classify(err)
	}

	s.audit.MemberRemoved(ctx, actor.UserID(), targetID, actor.CompanyID, string(role))
	s.log.Info("member removed",
		zap.String("actor_id", actor.UserID().Hex()),
		zap.String("user_id", targetID.Hex()),
		zap.String("company_id", actor.CompanyID.Hex()))
	return nil
}
