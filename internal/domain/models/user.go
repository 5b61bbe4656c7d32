// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an authenticated person known to the CRM.
//
// NOTE:
//   - Company memberships are embedded in Companies and are only written by the
//     membership operations in the access package.
//   - Version is bumped on every save and is used as a compare-and-swap guard.
type User struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SubjectID     string             `bson:"subject_id" json:"subject_id"`
	Email         string             `bson:"email" json:"email"`
	DisplayName   string             `bson:"display_name" json:"display_name"`
	DisplayNameCI string             `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	GlobalRole    GlobalRole         `bson:"global_role" json:"global_role"`
	Companies     []Membership       `bson:"companies" json:"companies"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	Version       int64              `bson:"version" json:"-"`

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// Membership is one (company, role) relationship of a user.
// Entries are never removed; IsActive is flipped off instead.
type Membership struct {
	CompanyID primitive.ObjectID `bson:"company_id" json:"company_id"`
	Role      Role               `bson:"role" json:"role"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	JoinedAt  time.Time          `bson:"joined_at" json:"joined_at"`
}

// IsSuperAdmin reports whether the stored global role is super_admin.
func (u *User) IsSuperAdmin() bool {
	return u.GlobalRole == GlobalRoleSuperAdmin
}

// ActiveMembership returns the index of the active membership for companyID,
// or -1 if there is none.
func (u *User) ActiveMembership(companyID primitive.ObjectID) int {
	for i := range u.Companies {
		if u.Companies[i].CompanyID == companyID && u.Companies[i].IsActive {
			return i
		}
	}
	return -1
}

// ActiveMemberships returns the active memberships in list order.
func (u *User) ActiveMemberships() []Membership {
	var out []Membership
	for _, m := range u.Companies {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}
