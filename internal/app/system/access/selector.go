package access

import (
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/app/system/authz"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallerContext is the resolved identity of one request. Handlers trust only
// this value; role claims supplied by the client are never consulted.
type CallerContext struct {
	User      *models.User
	CompanyID primitive.ObjectID
	Role      models.Role
	// AllAccess is set for the super admin. Role is then company_admin and
	// CompanyID is whatever the request named, possibly zero.
	AllAccess bool
}

// UserID returns the caller's user id.
func (c CallerContext) UserID() primitive.ObjectID {
	if c.User == nil {
		return primitive.NilObjectID
	}
	return c.User.ID
}

// Can reports whether the caller holds capability c in the resolved company.
func (c CallerContext) Can(capability authz.Capability) bool {
	return c.AllAccess || authz.CheckCapability(c.Role, capability)
}

// RequireCapability returns Forbidden unless the caller holds capability.
func (c CallerContext) RequireCapability(capability authz.Capability) error {
	if c.AllAccess {
		return nil
	}
	return authz.RequireCapability(c.Role, capability)
}

// RequireRole returns Forbidden unless the caller's role is in allowed.
func (c CallerContext) RequireRole(allowed ...models.Role) error {
	if c.AllAccess {
		return nil
	}
	return authz.RequireRole(c.Role, allowed...)
}

// SelectCompany resolves which membership applies to this request.
//
// The super admin gets an all-access context for whatever id was named.
// Everyone else needs an active membership in companyID. With no id, a user
// whose only active membership is unambiguous gets that one; otherwise the
// request fails with NoActiveCompany.
func SelectCompany(u *models.User, companyID primitive.ObjectID) (CallerContext, error) {
	if u == nil {
		return CallerContext{}, apperr.New(apperr.Unauthenticated)
	}
	if u.IsSuperAdmin() {
		return CallerContext{User: u, CompanyID: companyID, Role: models.RoleCompanyAdmin, AllAccess: true}, nil
	}

	if companyID.IsZero() {
		active := u.ActiveMemberships()
		if len(active) == 1 {
			return CallerContext{User: u, CompanyID: active[0].CompanyID, Role: active[0].Role}, nil
		}
		return CallerContext{}, apperr.New(apperr.NoActiveCompany)
	}

	i := u.ActiveMembership(companyID)
	if i < 0 {
		return CallerContext{}, apperr.New(apperr.NotAMember)
	}
	return CallerContext{User: u, CompanyID: companyID, Role: u.Companies[i].Role}, nil
}

// DefaultCompany suggests a company for a client that has no selection yet:
// the remembered id if the user still belongs to it, then the first active
// membership, then the first membership of any state. It is advisory only;
// the id it returns still goes through SelectCompany.
func DefaultCompany(u *models.User, remembered primitive.ObjectID) (primitive.ObjectID, bool) {
	if u == nil || len(u.Companies) == 0 {
		return primitive.NilObjectID, false
	}
	if !remembered.IsZero() && u.ActiveMembership(remembered) >= 0 {
		return remembered, true
	}
	if active := u.ActiveMemberships(); len(active) > 0 {
		return active[0].CompanyID, true
	}
	return u.Companies[0].CompanyID, true
}
