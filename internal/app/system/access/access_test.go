package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/dalemusser/crmhub/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixture struct {
	svc       *access.Service
	users     *testutil.MemUsers
	companies *testutil.MemCompanies
	joins     *testutil.MemJoinRequests
	tokens    *testutil.TokenResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:     testutil.NewMemUsers(),
		companies: testutil.NewMemCompanies(),
		joins:     testutil.NewMemJoinRequests(),
	}
	f.tokens = testutil.NewTokenResolver(f.users)
	f.svc = access.New(access.Deps{
		Identity:     f.tokens,
		Users:        f.users,
		Companies:    f.companies,
		JoinRequests: f.joins,
		Tx:           testutil.InlineTx{},
	})
	return f
}

func (f *fixture) company(t *testing.T, name string) models.Company {
	t.Helper()
	co, err := f.companies.Create(context.Background(), models.Company{Name: name})
	require.NoError(t, err)
	return co
}

func (f *fixture) user(t *testing.T, email string, ms ...models.Membership) *models.User {
	t.Helper()
	for i := range ms {
		if ms[i].JoinedAt.IsZero() {
			ms[i].JoinedAt = time.Now().UTC().Add(-time.Hour)
		}
	}
	u := f.users.Put(models.User{
		SubjectID:   "sub-" + email,
		Email:       email,
		DisplayName: email,
		GlobalRole:  models.GlobalRoleUser,
		Companies:   ms,
		IsActive:    true,
	})
	f.tokens.Tokens["tok-"+email] = u.ID
	return &u
}

func (f *fixture) caller(t *testing.T, u *models.User, companyID primitive.ObjectID) access.CallerContext {
	t.Helper()
	fresh, err := f.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	cc, err := access.SelectCompany(fresh, companyID)
	require.NoError(t, err)
	return cc
}

func (f *fixture) reload(t *testing.T, id primitive.ObjectID) *models.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func member(companyID primitive.ObjectID, role models.Role) models.Membership {
	return models.Membership{CompanyID: companyID, Role: role, IsActive: true, JoinedAt: time.Now().UTC().Add(-time.Hour)}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "error: %v", err)
}
