// internal/app/system/authz/authz.go
package authz

import (
	"github.com/dalemusser/crmhub/internal/app/system/apperr"
	"github.com/dalemusser/crmhub/internal/domain/models"
)

// CheckCapability reports whether role grants capability c.
func CheckCapability(role models.Role, c Capability) bool {
	return PermissionsFor(role).Allows(c)
}

// RequireCapability returns a Forbidden error unless role grants c.
func RequireCapability(role models.Role, c Capability) error {
	if CheckCapability(role, c) {
		return nil
	}
	return apperr.New(apperr.Forbidden)
}

// RequireRole returns a Forbidden error unless role is one of allowed.
// An empty allowed set admits nobody.
func RequireRole(role models.Role, allowed ...models.Role) error {
	if HasAnyRole(role, allowed...) {
		return nil
	}
	return apperr.New(apperr.Forbidden)
}

// HasAnyRole reports whether role is one of roles.
func HasAnyRole(role models.Role, roles ...models.Role) bool {
	if !role.Valid() {
		return false
	}
	for _, want := range roles {
		if role == want {
			return true
		}
	}
	return false
}
