package access_test

import (
	"context"
	"testing"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func companyFilterAll() companystore.ListFilter {
	return companystore.ListFilter{IncludeInactive: true}
}

func TestPlatform_RequiresSuperAdmin(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	other := f.user(t, "o@example.com")
	ctx := context.Background()

	_, err := f.svc.ListUsers(ctx, admin, userstore.SearchFilter{})
	requireKind(t, err, apperr.Forbidden)
	_, err = f.svc.ListCompanies(ctx, admin, companyFilterAll())
	requireKind(t, err, apperr.Forbidden)
	requireKind(t, f.svc.SetUserActive(ctx, admin, other.ID, false), apperr.Forbidden)
	requireKind(t, f.svc.SetCompanyActive(ctx, admin, co.ID, false), apperr.Forbidden)
}

func TestPlatform_SetUserActive(t *testing.T) {
	f := newFixture(t)
	boss := f.users.Put(models.User{SubjectID: "boss", Email: "boss@example.com", GlobalRole: models.GlobalRoleSuperAdmin, IsActive: true})
	u := f.user(t, "u@example.com")
	ctx := context.Background()

	requireKind(t, f.svc.SetUserActive(ctx, &boss, boss.ID, false), apperr.SelfModificationDenied)

	require.NoError(t, f.svc.SetUserActive(ctx, &boss, u.ID, false))
	assert.False(t, f.reload(t, u.ID).IsActive)

	active, err := f.svc.ListUsers(ctx, &boss, userstore.SearchFilter{})
	require.NoError(t, err)
	for _, x := range active {
		assert.NotEqual(t, u.ID, x.ID)
	}

	all, err := f.svc.ListUsers(ctx, &boss, userstore.SearchFilter{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, f.svc.SetUserActive(ctx, &boss, u.ID, true))
	assert.True(t, f.reload(t, u.ID).IsActive)
}

func TestPlatform_SetCompanyActive(t *testing.T) {
	f := newFixture(t)
	boss := f.users.Put(models.User{SubjectID: "boss", Email: "boss@example.com", GlobalRole: models.GlobalRoleSuperAdmin, IsActive: true})
	co := f.company(t, "Acme")
	u := f.user(t, "u@example.com")
	ctx := context.Background()

	require.NoError(t, f.svc.SetCompanyActive(ctx, &boss, co.ID, false))

	_, _, err := f.svc.RequestJoin(ctx, u, co.ID, models.RoleEmployee)
	requireKind(t, err, apperr.NotFound)

	cos, err := f.svc.ListCompanies(ctx, &boss, companyFilterAll())
	require.NoError(t, err)
	require.Len(t, cos, 1)
	assert.False(t, cos[0].IsActive)
}
