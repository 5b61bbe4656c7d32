// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth     = "auth"
	CategoryAdmin    = "admin"
	CategorySecurity = "security"
)

// Auth event types
const (
	EventLoginSuccess            = "login_success"
	EventFirstLogin              = "first_login"
	EventLoginFailedInvalidToken = "login_failed_invalid_token"
	EventLoginFailedUserDisabled = "login_failed_user_disabled"
	EventIdentityUnavailable     = "identity_provider_unavailable"
	EventCompanySelected         = "company_selected"
)

// Admin event types
const (
	EventCompanyCreated         = "company_created"
	EventCompanySettingsUpdated = "company_settings_updated"
	EventCompanyDeactivated     = "company_deactivated"
	EventCompanyReactivated     = "company_reactivated"
	EventMemberRoleChanged      = "member_role_changed"
	EventMemberRemoved          = "member_removed"
	EventJoinRequested          = "join_requested"
	EventJoinApproved           = "join_approved"
	EventJoinRejected           = "join_rejected"
	EventUserDeactivated        = "user_deactivated"
	EventUserReactivated        = "user_reactivated"
)

// Security event types
const (
	EventSuperAdminPromoted = "superadmin_promoted"
	EventSuperAdminDemoted  = "superadmin_demoted"
	EventAccessDenied       = "access_denied"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty"`
	Timestamp time.Time           `bson:"timestamp"`
	CompanyID *primitive.ObjectID `bson:"company_id,omitempty"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`  // affected user
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // who performed the action

	// CorrelationID ties together events emitted by one request.
	CorrelationID string `bson:"correlation_id"`

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	CompanyID     *primitive.ObjectID
	UserID        *primitive.ObjectID
	ActorID       *primitive.ObjectID
	Category      string
	EventType     string
	CorrelationID string
	StartTime     *time.Time
	EndTime       *time.Time
	Limit         int64
	Offset        int64
}

// Store manages audit event records. Indexes live in system/indexes.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event, filling in ID, Timestamp and CorrelationID
// when the caller left them empty.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = uuid.NewString()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func (f QueryFilter) toBSON() bson.M {
	query := bson.M{}
	if f.CompanyID != nil {
		query["company_id"] = f.CompanyID
	}
	if f.UserID != nil {
		query["user_id"] = f.UserID
	}
	if f.ActorID != nil {
		query["actor_id"] = f.ActorID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.CorrelationID != "" {
		query["correlation_id"] = f.CorrelationID
	}

	// Time range
	if f.StartTime != nil || f.EndTime != nil {
		timeQuery := bson.M{}
		if f.StartTime != nil {
			timeQuery["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			timeQuery["$lte"] = *f.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, filter.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
