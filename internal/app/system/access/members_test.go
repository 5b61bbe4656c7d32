package access_test

import (
	"context"
	"testing"

	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestListMembers(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	other := f.company(t, "Other")
	f.user(t, "b@example.com", member(co.ID, models.RoleManager))
	f.user(t, "a@example.com", member(co.ID, models.RoleEmployee), member(other.ID, models.RoleClient))
	f.user(t, "gone@example.com", models.Membership{CompanyID: co.ID, Role: models.RoleClient, IsActive: false})
	f.user(t, "elsewhere@example.com", member(other.ID, models.RoleManager))

	members, err := f.svc.ListMembers(context.Background(), co.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "a@example.com", members[0].Email)
	assert.Equal(t, models.RoleEmployee, members[0].Role)
	assert.Equal(t, "b@example.com", members[1].Email)
}

func TestUpdateRole(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))
	joined := emp.Companies[0].JoinedAt

	m, err := f.svc.UpdateRole(context.Background(), f.caller(t, admin, co.ID), emp.ID, models.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, m.Role)

	stored := f.reload(t, emp.ID)
	require.Len(t, stored.Companies, 1)
	assert.Equal(t, models.RoleManager, stored.Companies[0].Role)
	assert.True(t, stored.Companies[0].JoinedAt.Equal(joined), "joined_at must not change")
}

func TestUpdateRole_Denials(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	mgr := f.user(t, "m@example.com", member(co.ID, models.RoleManager))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))
	outsider := f.user(t, "x@example.com")

	ctx := context.Background()

	// Self checks run before role checks, for admins and non-admins alike.
	_, err := f.svc.UpdateRole(ctx, f.caller(t, admin, co.ID), admin.ID, models.RoleClient)
	requireKind(t, err, apperr.SelfModificationDenied)
	_, err = f.svc.UpdateRole(ctx, f.caller(t, mgr, co.ID), mgr.ID, models.RoleCompanyAdmin)
	requireKind(t, err, apperr.SelfModificationDenied)

	_, err = f.svc.UpdateRole(ctx, f.caller(t, mgr, co.ID), emp.ID, models.RoleManager)
	requireKind(t, err, apperr.Forbidden)

	_, err = f.svc.UpdateRole(ctx, f.caller(t, admin, co.ID), emp.ID, models.Role("owner"))
	requireKind(t, err, apperr.InvalidInput)

	_, err = f.svc.UpdateRole(ctx, f.caller(t, admin, co.ID), outsider.ID, models.RoleManager)
	requireKind(t, err, apperr.NotFound)

	_, err = f.svc.UpdateRole(ctx, f.caller(t, admin, co.ID), primitive.NewObjectID(), models.RoleManager)
	requireKind(t, err, apperr.NotFound)

	assert.Equal(t, models.RoleEmployee, f.reload(t, emp.ID).Companies[0].Role)
}

func TestUpdateRole_RetriesOnVersionConflict(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	other := f.company(t, "Other")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))

	// A concurrent approval adds a second membership between read and write.
	bumped := false
	f.users.BeforeSave = func(u *models.User) {
		if bumped || u.ID != emp.ID {
			return
		}
		bumped = true
		f.users.Bump(emp.ID, func(u *models.User) {
			u.Companies = append(u.Companies, member(other.ID, models.RoleClient))
		})
	}

	_, err := f.svc.UpdateRole(context.Background(), f.caller(t, admin, co.ID), emp.ID, models.RoleManager)
	require.NoError(t, err)

	stored := f.reload(t, emp.ID)
	require.Len(t, stored.Companies, 2, "the concurrent write must survive")
	assert.Equal(t, models.RoleManager, stored.Companies[0].Role)
	assert.Equal(t, other.ID, stored.Companies[1].CompanyID)
}

func TestUpdateRole_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))

	f.users.BeforeSave = func(u *models.User) { f.users.Bump(u.ID, nil) }

	_, err := f.svc.UpdateRole(context.Background(), f.caller(t, admin, co.ID), emp.ID, models.RoleManager)
	requireKind(t, err, apperr.Internal)
}

func TestRemoveMember(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	admin := f.user(t, "admin@example.com", member(co.ID, models.RoleCompanyAdmin))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))
	ctx := context.Background()

	err := f.svc.RemoveMember(ctx, f.caller(t, admin, co.ID), admin.ID)
	requireKind(t, err, apperr.SelfRemovalDenied)

	require.NoError(t, f.svc.RemoveMember(ctx, f.caller(t, admin, co.ID), emp.ID))

	stored := f.reload(t, emp.ID)
	require.Len(t, stored.Companies, 1, "removal keeps the history entry")
	assert.False(t, stored.Companies[0].IsActive)

	err = f.svc.RemoveMember(ctx, f.caller(t, admin, co.ID), emp.ID)
	requireKind(t, err, apperr.NotFound)

	members, err := f.svc.ListMembers(ctx, co.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, admin.ID, members[0].UserID)
}

func TestRemoveMember_RequiresCompanyAdmin(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	mgr := f.user(t, "m@example.com", member(co.ID, models.RoleManager))
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))

	err := f.svc.RemoveMember(context.Background(), f.caller(t, mgr, co.ID), emp.ID)
	requireKind(t, err, apperr.Forbidden)
	assert.True(t, f.reload(t, emp.ID).Companies[0].IsActive)
}

func TestSuperAdminManagesAnyCompany(t *testing.T) {
	f := newFixture(t)
	co := f.company(t, "Acme")
	emp := f.user(t, "e@example.com", member(co.ID, models.RoleEmployee))
	boss := f.users.Put(models.User{SubjectID: "boss", Email: "boss@example.com", GlobalRole: models.GlobalRoleSuperAdmin, IsActive: true})

	cc := f.caller(t, &boss, co.ID)
	require.True(t, cc.AllAccess)

	m, err := f.svc.UpdateRole(context.Background(), cc, emp.ID, models.RoleCompanyAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleCompanyAdmin, m.Role)
}
