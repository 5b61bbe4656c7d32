package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/crmhub/internal/app/features/errors"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AccessEnv is an access.Service over in-memory stores, for handler tests.
type AccessEnv struct {
	Service   *access.Service
	Users     *MemUsers
	Companies *MemCompanies
	Joins     *MemJoinRequests
	Tokens    *TokenResolver
}

// NewAccessEnv builds an AccessEnv with no audit sink or metrics.
func NewAccessEnv() *AccessEnv {
	env := &AccessEnv{
		Users:     NewMemUsers(),
		Companies: NewMemCompanies(),
		Joins:     NewMemJoinRequests(),
	}
	env.Tokens = NewTokenResolver(env.Users)
	env.Service = access.New(access.Deps{
		Identity:     env.Tokens,
		Users:        env.Users,
		Companies:    env.Companies,
		JoinRequests: env.Joins,
		Tx:           InlineTx{},
		Logger:       zap.NewNop(),
	})
	return env
}

// Company creates an active company.
func (e *AccessEnv) Company(t *testing.T, name string) models.Company {
	t.Helper()
	co, err := e.Companies.Create(context.Background(), models.Company{Name: name})
	if err != nil {
		t.Fatalf("create company %q: %v", name, err)
	}
	return co
}

// User stores an active user with memberships ms and registers the bearer
// token "tok-"+email for it.
func (e *AccessEnv) User(t *testing.T, email string, ms ...models.Membership) *models.User {
	t.Helper()
	for i := range ms {
		if ms[i].JoinedAt.IsZero() {
			ms[i].JoinedAt = time.Now().UTC().Add(-time.Hour)
		}
	}
	u := e.Users.Put(models.User{
		SubjectID:   "sub-" + email,
		Email:       email,
		DisplayName: email,
		GlobalRole:  models.GlobalRoleUser,
		Companies:   ms,
		IsActive:    true,
	})
	e.Tokens.Tokens["tok-"+email] = u.ID
	return &u
}

// SuperAdmin stores an active super admin with no memberships.
func (e *AccessEnv) SuperAdmin(t *testing.T, email string) *models.User {
	t.Helper()
	u := e.User(t, email)
	u.GlobalRole = models.GlobalRoleSuperAdmin
	saved := e.Users.Put(*u)
	return &saved
}

// Reload reads the current stored copy of a user.
func (e *AccessEnv) Reload(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := e.Users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user %s: %v", id.Hex(), err)
	}
	return u
}

// Middleware returns the real auth middleware backed by the env's service.
func (e *AccessEnv) Middleware() *auth.Middleware {
	return auth.NewMiddleware(e.Service, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
}

// Bearer sets the Authorization header for the user registered under email.
func Bearer(r *http.Request, email string) *http.Request {
	r.Header.Set("Authorization", "Bearer tok-"+email)
	return r
}

// InCompany sets the explicit company header.
func InCompany(r *http.Request, companyID primitive.ObjectID) *http.Request {
	r.Header.Set(auth.HeaderCompanyID, companyID.Hex())
	return r
}

// CompanyScoped wraps h the way the /api/company router does: bearer
// authentication, then company resolution from the explicit company id.
func (e *AccessEnv) CompanyScoped(h http.Handler) http.Handler {
	mw := e.Middleware()
	return mw.Authenticate(mw.RequireCompany(h))
}
