// internal/domain/models/joinrequest.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JoinStatus is the state of a JoinRequest. Approved and rejected are terminal.
type JoinStatus string

const (
	JoinPending  JoinStatus = "pending"
	JoinApproved JoinStatus = "approved"
	JoinRejected JoinStatus = "rejected"
)

// JoinRequest is a user's ask to become a member of a company.
// At most one pending request exists per (company_id, user_id).
type JoinRequest struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID  `bson:"user_id" json:"user_id"`
	CompanyID     primitive.ObjectID  `bson:"company_id" json:"company_id"`
	RequestedRole Role                `bson:"requested_role" json:"requested_role"`
	Status        JoinStatus          `bson:"status" json:"status"`
	RequestedAt   time.Time           `bson:"requested_at" json:"requested_at"`
	HandledAt     *time.Time          `bson:"handled_at,omitempty" json:"handled_at,omitempty"`
	HandledBy     *primitive.ObjectID `bson:"handled_by,omitempty" json:"handled_by,omitempty"`
}
