// Package access is the per-request authorization core: it turns a bearer
// token and an explicit company id into a CallerContext, and owns every write
// to a user's company memberships.
//
// Decisions here depend only on the caller's user record, the company id the
// request names, and that company's active membership role. Nothing is read
// from a remembered or ambient "current company".
package access

import (
	"context"
	"time"

	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	joinrequeststore "github.com/dalemusser/crmhub/internal/app/store/joinrequests"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/metrics"
	"github.com/dalemusser/crmhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxSaveAttempts bounds the reload-and-reapply loop on user version conflicts.
const maxSaveAttempts = 3

// IdentityResolver maps a bearer token to a user record.
type IdentityResolver interface {
	Resolve(ctx context.Context, rawToken string) (*models.User, error)
}

// UserStore is the slice of userstore.Store used here.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Save(ctx context.Context, u *models.User) error
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	ListByCompany(ctx context.Context, companyID primitive.ObjectID) ([]models.User, error)
	Search(ctx context.Context, f userstore.SearchFilter) ([]models.User, error)
}

// CompanyStore is the slice of companystore.Store used here.
type CompanyStore interface {
	Create(ctx context.Context, co models.Company) (models.Company, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Company, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Company, error)
	UpdateSettings(ctx context.Context, id primitive.ObjectID, s models.CompanySettings) (models.Company, error)
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	List(ctx context.Context, f companystore.ListFilter) ([]models.Company, error)
}

// JoinRequestStore is the slice of joinrequeststore.Store used here.
type JoinRequestStore interface {
	Create(ctx context.Context, userID, companyID primitive.ObjectID, role models.Role) (models.JoinRequest, error)
	FindPending(ctx context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error)
	FindLatest(ctx context.Context, companyID, userID primitive.ObjectID) (models.JoinRequest, error)
	ListPending(ctx context.Context, companyID primitive.ObjectID) ([]models.JoinRequest, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.JoinRequest, error)
	Transition(ctx context.Context, id primitive.ObjectID, to models.JoinStatus, handledBy primitive.ObjectID) (models.JoinRequest, error)
	Reopen(ctx context.Context, id, handledBy primitive.ObjectID) error
}

// Transactor runs fn atomically when the backing store can. txn.Runner
// satisfies it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deps are the collaborators of a Service. Audit and Metrics may be nil.
type Deps struct {
	Identity     IdentityResolver
	Users        UserStore
	Companies    CompanyStore
	JoinRequests JoinRequestStore
	Tx           Transactor
	Audit        *auditlog.Logger
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
}

// Service implements the access operations.
type Service struct {
	identity  IdentityResolver
	users     UserStore
	companies CompanyStore
	joins     JoinRequestStore
	tx        Transactor
	audit     *auditlog.Logger
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

// New builds a Service from d.
func New(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		identity:  d.Identity,
		users:     d.Users,
		companies: d.Companies,
		joins:     d.JoinRequests,
		tx:        d.Tx,
		audit:     d.Audit,
		metrics:   d.Metrics,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// compile-time checks that the Mongo stores fit.
var (
	_ UserStore        = (*userstore.Store)(nil)
	_ CompanyStore     = (*companystore.Store)(nil)
	_ JoinRequestStore = (*joinrequeststore.Store)(nil)
)
