package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/crmhub/internal/app/system/metrics"
	"github.com/dalemusser/crmhub/internal/app/system/normalize"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// maxSaveAttempts bounds the reload-and-reapply loop on version conflicts.
const maxSaveAttempts = 3

// UserStore is the slice of the user store the resolver needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetBySubject(ctx context.Context, subjectID string) (*models.User, error)
	Create(ctx context.Context, u models.User) (models.User, error)
	Save(ctx context.Context, u *models.User) error
	ListSuperAdmins(ctx context.Context) ([]models.User, error)
}

// Resolver maps verified identities to users and keeps the single
// super-admin invariant: at most one super_admin, and its email equals the
// configured super-admin email.
type Resolver struct {
	verifier        Verifier
	users           UserStore
	superAdminEmail string
	audit           *auditlog.Logger
	metrics         *metrics.Metrics
	log             *zap.Logger
	group           singleflight.Group
	now             func() time.Time
}

// NewResolver wires a Resolver. audit and m may be nil.
func NewResolver(v Verifier, users UserStore, superAdminEmail string, audit *auditlog.Logger, m *metrics.Metrics, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		verifier:        v,
		users:           users,
		superAdminEmail: normalize.Email(superAdminEmail),
		audit:           audit,
		metrics:         m,
		log:             log,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Resolve verifies rawToken and returns the matching user, creating it on
// first sight. It runs on every authenticated request.
func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*models.User, error) {
	return r.resolve(ctx, rawToken, false)
}

// Login is Resolve plus a last-login stamp and a login audit entry. It backs
// the explicit sign-in endpoint.
func (r *Resolver) Login(ctx context.Context, rawToken string) (*models.User, error) {
	return r.resolve(ctx, rawToken, true)
}

func (r *Resolver) resolve(ctx context.Context, rawToken string, login bool) (*models.User, error) {
	id, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			r.metrics.Identity("unavailable")
			r.audit.IdentityUnavailable(ctx, err.Error())
			r.log.Warn("identity provider unavailable", zap.Error(err))
			return nil, apperr.Wrap(apperr.IdentityUnavailable, err)
		}
		r.metrics.Identity("invalid")
		if login {
			r.audit.LoginFailedInvalidToken(ctx, err.Error())
		}
		return nil, apperr.Wrap(apperr.Unauthenticated, err)
	}

	key := id.SubjectID
	if login {
		key = "login:" + key
	}
	// The shared call outlives any one caller; only its own budget ends it.
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
		defer cancel()
		return r.resolveIdentity(sctx, id, login)
	})
	if err != nil {
		return nil, err
	}
	// singleflight shares one result between callers; hand each its own copy.
	return cloneUser(v.(*models.User)), nil
}

func (r *Resolver) resolveIdentity(ctx context.Context, id Identity, login bool) (*models.User, error) {
	email := normalize.Email(id.Email)
	name := displayName(id.DisplayName, email)

	u, err := r.users.GetBySubject(ctx, id.SubjectID)
	switch {
	case errors.Is(err, userstore.ErrNotFound):
		return r.create(ctx, id.SubjectID, email, name, id.EmailVerified, login)
	case err != nil:
		return nil, apperr.Wrap(apperr.Internal, err)
	}

	if !u.IsActive {
		r.metrics.Identity("deactivated")
		r.audit.LoginFailedUserDisabled(ctx, u.ID)
		return nil, apperr.Newf(apperr.Forbidden, "account is deactivated")
	}

	wantSuper := id.EmailVerified && r.isSuperAdminEmail(email)
	if wantSuper && !u.IsSuperAdmin() {
		if err := r.demoteOthers(ctx, u.ID, "superseded"); err != nil {
			return nil, err
		}
	}

	wasSuper := u.IsSuperAdmin()
	now := r.now()
	err = r.mutate(ctx, u, func(u *models.User) bool {
		changed := false
		if u.Email != email {
			u.Email = email
			changed = true
		}
		if u.DisplayName != name {
			u.DisplayName = name
			changed = true
		}
		role := models.GlobalRoleUser
		if wantSuper {
			role = models.GlobalRoleSuperAdmin
		}
		if u.GlobalRole != role {
			u.GlobalRole = role
			changed = true
		}
		if login {
			u.LastLoginAt = &now
			changed = true
		}
		return changed
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicate) {
			r.log.Warn("email drift collides with another user",
				zap.String("user_id", u.ID.Hex()), zap.String("email", email))
			return nil, apperr.Newf(apperr.Forbidden, "this email is already linked to another account")
		}
		return nil, apperr.Wrap(apperr.Internal, err)
	}

	switch {
	case wantSuper && !wasSuper:
		r.audit.SuperAdminPromoted(ctx, u.ID, u.Email)
		r.log.Info("super admin promoted", zap.String("user_id", u.ID.Hex()), zap.String("email", u.Email))
	case !wantSuper && wasSuper:
		reason := "email does not match configured super-admin email"
		if !id.EmailVerified && r.isSuperAdminEmail(email) {
			reason = "super-admin email is not verified by the identity provider"
		}
		r.audit.SuperAdminDemoted(ctx, u.ID, u.Email, reason)
		r.metrics.SuperAdminDemoted()
		r.log.Warn("super admin demoted: "+reason,
			zap.String("user_id", u.ID.Hex()), zap.String("email", u.Email))
	}

	r.metrics.Identity("existing")
	if login {
		r.audit.LoginSuccess(ctx, u.ID)
	}
	return u, nil
}

func (r *Resolver) create(ctx context.Context, subjectID, email, name string, verified, login bool) (*models.User, error) {
	role := models.GlobalRoleUser
	if verified && r.isSuperAdminEmail(email) {
		if err := r.demoteOthers(ctx, primitive.NilObjectID, "superseded"); err != nil {
			return nil, err
		}
		role = models.GlobalRoleSuperAdmin
	}

	nu := models.User{
		SubjectID:   subjectID,
		Email:       email,
		DisplayName: name,
		GlobalRole:  role,
		Companies:   []models.Membership{},
	}
	if login {
		now := r.now()
		nu.LastLoginAt = &now
	}

	created, err := r.users.Create(ctx, nu)
	if err != nil {
		if !errors.Is(err, userstore.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Internal, err)
		}
		// Another instance created the record first; use theirs.
		winner, getErr := r.users.GetBySubject(ctx, subjectID)
		if getErr == nil {
			r.metrics.Identity("existing")
			return winner, nil
		}
		if errors.Is(getErr, userstore.ErrNotFound) {
			r.log.Warn("first login with an email already linked to another subject",
				zap.String("subject_id", subjectID), zap.String("email", email))
			return nil, apperr.Newf(apperr.Forbidden, "this email is already linked to another account")
		}
		return nil, apperr.Wrap(apperr.Internal, getErr)
	}

	r.metrics.Identity("created")
	r.audit.FirstLogin(ctx, created.ID, created.Email)
	if created.IsSuperAdmin() {
		r.audit.SuperAdminPromoted(ctx, created.ID, created.Email)
		r.log.Info("super admin created", zap.String("user_id", created.ID.Hex()), zap.String("email", created.Email))
	}
	return &created, nil
}

// demoteOthers demotes every super_admin except keep. It runs before any
// promotion is saved.
func (r *Resolver) demoteOthers(ctx context.Context, keep primitive.ObjectID, reason string) error {
	admins, err := r.users.ListSuperAdmins(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}
	for i := range admins {
		if admins[i].ID == keep {
			continue
		}
		if err := r.demote(ctx, &admins[i], reason); err != nil {
			return err
		}
	}
	return nil
}

// Sweep demotes every super_admin whose email no longer matches the
// configured super-admin email. It returns the number demoted.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	admins, err := r.users.ListSuperAdmins(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range admins {
		if r.isSuperAdminEmail(admins[i].Email) {
			continue
		}
		if err := r.demote(ctx, &admins[i], "email does not match configured super-admin email"); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *Resolver) demote(ctx context.Context, u *models.User, reason string) error {
	err := r.mutate(ctx, u, func(u *models.User) bool {
		if !u.IsSuperAdmin() {
			return false
		}
		u.GlobalRole = models.GlobalRoleUser
		return true
	})
	if err != nil {
		return apperr.Wrap(apperr.Internal, err)
	}
	r.audit.SuperAdminDemoted(ctx, u.ID, u.Email, reason)
	r.metrics.SuperAdminDemoted()
	r.log.Warn("super admin demoted",
		zap.String("user_id", u.ID.Hex()),
		zap.String("email", u.Email),
		zap.String("reason", reason))
	return nil
}

// mutate applies fn and saves, reloading and re-applying on version
// conflicts. fn returning false means nothing to save.
func (r *Resolver) mutate(ctx context.Context, u *models.User, fn func(*models.User) bool) error {
	for attempt := 1; ; attempt++ {
		if !fn(u) {
			return nil
		}
		err := r.users.Save(ctx, u)
		if err == nil {
			return nil
		}
		if !errors.Is(err, userstore.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return err
		}
		r.metrics.MembershipConflict()
		fresh, getErr := r.users.GetByID(ctx, u.ID)
		if getErr != nil {
			return getErr
		}
		*u = *fresh
	}
}

func (r *Resolver) isSuperAdminEmail(email string) bool {
	return normalize.SameEmail(email, r.superAdminEmail)
}

// displayName prefers the provider's name and falls back to the email's
// local part.
func displayName(raw, email string) string {
	name := normalize.Name(htmlsanitize.PlainText(raw))
	if name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}

func cloneUser(u *models.User) *models.User {
	c := *u
	c.Companies = append([]models.Membership(nil), u.Companies...)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}
