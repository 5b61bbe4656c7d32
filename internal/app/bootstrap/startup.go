// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/crmhub/internal/app/store/audit"
	companystore "github.com/dalemusser/crmhub/internal/app/store/companies"
	joinrequeststore "github.com/dalemusser/crmhub/internal/app/store/joinrequests"
	userstore "github.com/dalemusser/crmhub/internal/app/store/users"
	"github.com/dalemusser/crmhub/internal/app/system/access"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/identity"
	"github.com/dalemusser/crmhub/internal/app/system/metrics"
	"github.com/dalemusser/crmhub/internal/app/system/timeouts"
	"github.com/dalemusser/crmhub/internal/app/system/timezones"
	"github.com/dalemusser/crmhub/internal/app/system/txn"
	"github.com/dalemusser/crmhub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup builds the shared services once the database is reachable and
// starts the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if err := timezones.Load(); err != nil {
		return fmt.Errorf("load time zones: %w", err)
	}
	timeouts.Configure(timeouts.Config{Verify: appCfg.IdentityVerifyTimeout})

	s := deps.Services
	s.Metrics = metrics.New()
	s.Events = audit.New(deps.MongoDatabase)
	s.Users = userstore.New(deps.MongoDatabase)
	s.Audit = auditlog.New(s.Events, logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Admin:    appCfg.AuditLogAdmin,
		Security: appCfg.AuditLogSecurity,
	})

	// Key refresh must outlive the startup context.
	keyCtx, cancelKeys := context.WithCancel(context.WithoutCancel(ctx))
	v, err := buildVerifier(keyCtx, appCfg, s.Metrics)
	if err != nil {
		cancelKeys()
		return err
	}
	s.cancelKeys = cancelKeys

	s.Resolver = identity.NewResolver(v, s.Users, appCfg.SuperAdminEmail, s.Audit, s.Metrics, logger)
	s.Access = access.New(access.Deps{
		Identity:     s.Resolver,
		Users:        s.Users,
		Companies:    companystore.New(deps.MongoDatabase),
		JoinRequests: joinrequeststore.New(deps.MongoDatabase),
		Tx:           txn.New(deps.MongoClient, logger),
		Audit:        s.Audit,
		Metrics:      s.Metrics,
		Logger:       logger,
	})

	if appCfg.SuperAdminSweepInterval > 0 {
		s.Sweep = workers.NewSuperAdminSweep(s.Resolver, logger, appCfg.SuperAdminSweepInterval)
		s.Sweep.Start()
	}

	logger.Info("crmhub services ready",
		zap.String("identity_provider", appCfg.IdentityProvider),
		zap.Bool("superadmin_configured", appCfg.SuperAdminEmail != ""),
	)
	return nil
}

// buildVerifier selects the token verifier and wraps it in the
// verified-token cache when a TTL is configured.
func buildVerifier(ctx context.Context, appCfg AppConfig, m *metrics.Metrics) (identity.Verifier, error) {
	var v identity.Verifier
	switch appCfg.IdentityProvider {
	case providerFirebase:
		fv, err := identity.NewFirebaseVerifier(ctx, appCfg.FirebaseProjectID)
		if err != nil {
			return nil, fmt.Errorf("firebase verifier: %w", err)
		}
		v = fv
	case providerHMAC:
		hv, err := identity.NewHMACVerifier(appCfg.IdentityHMACSecret)
		if err != nil {
			return nil, fmt.Errorf("hmac verifier: %w", err)
		}
		v = hv
	default:
		return nil, fmt.Errorf("unknown identity provider %q", appCfg.IdentityProvider)
	}

	if appCfg.IdentityCacheTTL <= 0 {
		return v, nil
	}
	size := appCfg.IdentityCacheSize
	if size <= 0 {
		size = 10000
	}
	return identity.NewCachingVerifier(v, size, appCfg.IdentityCacheTTL, m), nil
}
