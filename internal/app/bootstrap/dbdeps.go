// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/crmhub/internal/app/store/audit"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/identity"
	"github.com/dalemusser/crmhub/internal/app/system/metrics"
	"github.com/dalemusser/crmhub/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook, so the services built in
// Startup hang off the Services pointer allocated in ConnectDB.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Services *Services
}

// Services are the long-lived components shared by the HTTP handlers.
type Services struct {
	Metrics  *metrics.Metrics
	Events   *audit.Store
	Users    *userstore.Store
	Audit    *auditlog.Logger
	Resolver *identity.Resolver
	Access   *access.Service
	Sweep    *workers.SuperAdminSweep

	// cancelKeys stops the identity provider's background key refresh.
	cancelKeys context.CancelFunc
}
