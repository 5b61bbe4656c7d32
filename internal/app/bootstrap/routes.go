// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	auditlogfeature "github.com/dalemusser/crmhub/internal/app/features/auditlog"
	companiesfeature "github.com/dalemusser/crmhub/internal/app/features/companies"
	errorsfeature "github.com/dalemusser/crmhub/internal/app/features/errors"
	healthfeature "github.com/dalemusser/crmhub/internal/app/features/health"
	joinrequestsfeature "github.com/dalemusser/crmhub/internal/app/features/joinrequests"
	membersfeature "github.com/dalemusser/crmhub/internal/app/features/members"
	platformfeature "github.com/dalemusser/crmhub/internal/app/features/platform"
	rolesfeature "github.com/dalemusser/crmhub/internal/app/features/roles"
	sessionfeature "github.com/dalemusser/crmhub/internal/app/features/session"
	settingsfeature "github.com/dalemusser/crmhub/internal/app/features/settings"
	"github.com/dalemusser/crmhub/internal/app/system/auditlog"
	"github.com/dalemusser/crmhub/internal/app/system/auth"
	"github.com/dalemusser/crmhub/internal/app/system/companypref"
	"github.com/dalemusser/crmhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Services is populated.
//
// Layout:
//
//	/health, /metrics            unauthenticated
//	/api/session, /api/me        sign-in and the caller's own view
//	/api/companies               create and list own companies
//	/api/join-requests           the requesting user's side of joining
//	/api/company/...             scoped to the active company
//	/api/platform/...            super admin only, including /audit
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	s := deps.Services
	if s == nil || s.Access == nil {
		return nil, errors.New("services not initialized; Startup must run before BuildHandler")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	key := appCfg.SessionKey
	if key == "" {
		logger.Warn("session_key not set; using a per-process key (remembered companies reset on restart)")
		key = companypref.DevKey()
	}
	prefs, err := companypref.New(key, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("company preference store init failed", zap.Error(err))
		return nil, err
	}

	errLog := errorsfeature.NewErrorLogger(logger)
	mw := auth.NewMiddleware(s.Access, errLog, logger)

	r := chi.NewRouter()
	r.Use(auditlog.Middleware)
	r.Use(s.Metrics.Middleware)

	// Set before mounting so sub-routers inherit them.
	r.NotFound(errLog.NotFound)
	r.MethodNotAllowed(errLog.MethodNotAllowed)

	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, logger)))
	r.Handle("/metrics", s.Metrics.Handler())

	loginLimit := ratelimit.New(appCfg.LoginRatePerMinute, appCfg.LoginRateBurst, 0, 10*time.Minute)

	sessionHandler := sessionfeature.NewHandler(s.Resolver, s.Access, prefs, s.Audit, errLog, logger)
	companiesHandler := companiesfeature.NewHandler(s.Access, prefs, errLog, logger)
	joinHandler := joinrequestsfeature.NewHandler(s.Access, errLog, logger)
	membersHandler := membersfeature.NewHandler(s.Access, errLog, logger)
	settingsHandler := settingsfeature.NewHandler(s.Access, errLog, logger)
	platformHandler := platformfeature.NewHandler(s.Access, errLog, logger)
	var users auditlogfeature.UserLookup
	if s.Users != nil {
		users = s.Users
	}
	auditHandler := auditlogfeature.NewHandler(s.Events, users, errLog, logger)

	r.Route("/api", func(api chi.Router) {
		api.Mount("/session", loginLimit.Middleware(errLog.WriteError)(sessionfeature.LoginRoutes(sessionHandler)))
		api.Mount("/me", sessionfeature.MeRoutes(sessionHandler, mw))
		api.Mount("/companies", companiesfeature.Routes(companiesHandler, mw))
		api.Mount("/join-requests", joinrequestsfeature.Routes(joinHandler, mw))

		api.Route("/company", func(cr chi.Router) {
			cr.Use(mw.Authenticate, mw.RequireCompany)
			cr.Mount("/members", membersfeature.Routes(membersHandler, mw))
			cr.Mount("/roles", rolesfeature.Routes(mw))
			cr.Mount("/settings", settingsfeature.Routes(settingsHandler, mw))
			cr.Mount("/join-requests", joinrequestsfeature.CompanyRoutes(joinHandler, mw))
			cr.Mount("/audit", auditlogfeature.CompanyRoutes(auditHandler, mw))
		})

		api.Route("/platform", func(pr chi.Router) {
			pr.Mount("/audit", auditlogfeature.PlatformRoutes(auditHandler, mw))
			pr.Mount("/", platformfeature.Routes(platformHandler, mw))
		})
	})

	return r, nil
}
