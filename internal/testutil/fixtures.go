package testutil

import (
	"context"
	"testing"
	"time"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	joinrequeststore "github.com/dalemusser/crmhub/internal/app/store/joinrequests"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data in a real database.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateCompany creates an active company with the given name.
func (f *Fixtures) CreateCompany(ctx context.Context, name string) models.Company {
	f.t.Helper()
	co, err := companystore.New(f.db).Create(ctx, models.Company{Name: name})
	if err != nil {
		f.t.Fatalf("CreateCompany(%q): %v", name, err)
	}
	return co
}

// CreateUser creates an active user with email and the given memberships.
// The subject id is derived from email.
func (f *Fixtures) CreateUser(ctx context.Context, email string, ms ...models.Membership) models.User {
	f.t.Helper()
	for i := range ms {
		if ms[i].JoinedAt.IsZero() {
			ms[i].JoinedAt = time.Now().UTC()
		}
	}
	u, err := userstore.New(f.db).Create(ctx, models.User{
		SubjectID:   "sub-" + email,
		Email:       email,
		DisplayName: email,
		Companies:   ms,
	})
	if err != nil {
		f.t.Fatalf("CreateUser(%q): %v", email, err)
	}
	return u
}

// CreateSuperAdmin creates the super admin with email.
func (f *Fixtures) CreateSuperAdmin(ctx context.Context, email string) models.User {
	f.t.Helper()
	u, err := userstore.New(f.db).Create(ctx, models.User{
		SubjectID:   "sub-" + email,
		Email:       email,
		DisplayName: "Super Admin",
		GlobalRole:  models.GlobalRoleSuperAdmin,
	})
	if err != nil {
		f.t.Fatalf("CreateSuperAdmin(%q): %v", email, err)
	}
	return u
}

// CreateJoinRequest creates a pending join request.
func (f *Fixtures) CreateJoinRequest(ctx context.Context, userID, companyID primitive.ObjectID, role models.Role) models.JoinRequest {
	f.t.Helper()
	jr, err := joinrequeststore.New(f.db).Create(ctx, userID, companyID, role)
	if err != nil {
		f.t.Fatalf("CreateJoinRequest: %v", err)
	}
	return jr
}

// Active returns an active membership in companyID with role.
func Active(companyID primitive.ObjectID, role models.Role) models.Membership {
	return models.Membership{CompanyID: companyID, Role: role, IsActive: true, JoinedAt: time.Now().UTC()}
}
