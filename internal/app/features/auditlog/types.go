// internal/app/features/auditlog/types.go
package auditlog

import (
	"time"

	"github.com/dalemusser/crmhub/internal/app/store/audit"
	"github.com/dalemusser/crmhub/internal/app/system/paging"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// eventView is one audit event as returned by the API.
type eventView struct {
	ID            primitive.ObjectID  `json:"id"`
	Timestamp     time.Time           `json:"timestamp"`
	Category      string              `json:"category"`
	EventType     string              `json:"event_type"`
	CompanyID     *primitive.ObjectID `json:"company_id,omitempty"`
	ActorID       *primitive.ObjectID `json:"actor_id,omitempty"`
	ActorEmail    string              `json:"actor_email,omitempty"`
	UserID        *primitive.ObjectID `json:"user_id,omitempty"`
	UserEmail     string              `json:"user_email,omitempty"`
	CorrelationID string              `json:"correlation_id"`
	IP            string              `json:"ip"`
	Success       bool                `json:"success"`
	FailureReason string              `json:"failure_reason,omitempty"`
	Details       map[string]string   `json:"details,omitempty"`
}

type listResponse struct {
	Events []eventView  `json:"events"`
	Range  paging.Range `json:"range"`
}

// categories are the values accepted by the category filter.
var categories = map[string]bool{
	audit.CategoryAuth:     true,
	audit.CategoryAdmin:    true,
	audit.CategorySecurity: true,
}
