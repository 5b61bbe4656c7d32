// internal/domain/models/company.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Company is a tenant. Profile management beyond these fields lives elsewhere.
//
// AdminID records who created the company. It is provenance only and is not
// kept in sync with company_admin memberships; never authorize from it.
type Company struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	Name      string             `bson:"name" json:"name"`
	NameCI    string             `bson:"name_ci" json:"-"`
	AdminID   primitive.ObjectID `bson:"admin_id" json:"admin_id"`
	Settings  CompanySettings    `bson:"settings" json:"settings"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// CompanySettings holds the company-wide preferences editable by company admins.
type CompanySettings struct {
	TimeZone string `bson:"time_zone" json:"time_zone"`
	Currency string `bson:"currency" json:"currency"`
	Industry string `bson:"industry" json:"industry"`
	Website  string `bson:"website" json:"website"`
}
