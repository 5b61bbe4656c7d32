// internal/domain/models/role.go
package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Role is a user's role inside one company.
//
// The set is closed: only the four constants below are ever written to or
// accepted from MongoDB or JSON. Encoding an unknown value is an error.
type Role string

const (
	RoleCompanyAdmin Role = "company_admin"
	RoleManager      Role = "manager"
	RoleEmployee     Role = "employee"
	RoleClient       Role = "client"
)

// AllRoles lists every company role in display order.
var AllRoles = []Role{RoleCompanyAdmin, RoleManager, RoleEmployee, RoleClient}

// ParseRole normalizes s and returns the matching Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is one of the four company roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCompanyAdmin, RoleManager, RoleEmployee, RoleClient:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// MarshalBSONValue refuses to persist a role outside the closed set.
func (r Role) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if !r.Valid() {
		return 0, nil, fmt.Errorf("refusing to encode unknown role %q", string(r))
	}
	return bson.MarshalValue(string(r))
}

// UnmarshalBSONValue rejects stored roles outside the closed set.
func (r *Role) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("role: expected string, got %s", t)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// UnmarshalText lets JSON request bodies carry roles as plain strings.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// GlobalRole is the platform-wide role of a user.
type GlobalRole string

const (
	GlobalRoleUser       GlobalRole = "user"
	GlobalRoleSuperAdmin GlobalRole = "super_admin"
)
