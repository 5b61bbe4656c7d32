// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/crmhub/internal/app/system/normalize"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	providerFirebase = "firebase"
	providerHMAC     = "hmac"
)

// appConfigKeys defines the configuration keys for CRMHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, identity_provider, etc.
//   - Environment variables: CRMHUB_MONGO_URI, CRMHUB_IDENTITY_PROVIDER, etc.
//   - Command-line flags: --mongo_uri, --identity_provider, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "crmhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// SuperAdmin
	{Name: "superadmin_email", Default: "", Desc: "Email of the single super admin (promoted on sign-in)"},

	// Identity provider
	{Name: "identity_provider", Default: providerFirebase, Desc: "Token verifier: 'firebase' or 'hmac'"},
	{Name: "firebase_project_id", Default: "", Desc: "Firebase project ID (audience of ID tokens)"},
	{Name: "identity_hmac_secret", Default: "", Desc: "HS256 secret for the hmac provider (development only)"},
	{Name: "identity_cache_ttl", Default: "2m", Desc: "How long a verified token is cached (0 disables)"},
	{Name: "identity_cache_size", Default: 10000, Desc: "Max cached verified tokens"},
	{Name: "identity_verify_timeout", Default: "5s", Desc: "Upper bound on one token verification"},

	// Remembered-company cookie
	{Name: "session_key", Default: "", Desc: "Cookie signing key (blank generates a per-process key outside prod)"},
	{Name: "session_name", Default: "crmhub-company", Desc: "Remembered-company cookie name"},
	{Name: "session_domain", Default: "", Desc: "Cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Remembered-company cookie lifetime"},

	// Sign-in rate limit
	{Name: "login_rate_per_minute", Default: 30, Desc: "Sign-in attempts per IP per minute (0 disables)"},
	{Name: "login_rate_burst", Default: 10, Desc: "Sign-in attempts an IP may make back to back"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_security", Default: "all", Desc: "Security event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Background work
	{Name: "superadmin_sweep_interval", Default: "15m", Desc: "Super-admin reconciliation interval (0 disables)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CRMHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CRMHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SuperAdminEmail: normalize.Email(appValues.String("superadmin_email")),

		IdentityProvider:      strings.ToLower(strings.TrimSpace(appValues.String("identity_provider"))),
		FirebaseProjectID:     strings.TrimSpace(appValues.String("firebase_project_id")),
		IdentityHMACSecret:    appValues.String("identity_hmac_secret"),
		IdentityCacheTTL:      appValues.Duration("identity_cache_ttl", 2*time.Minute),
		IdentityCacheSize:     appValues.Int("identity_cache_size"),
		IdentityVerifyTimeout: appValues.Duration("identity_verify_timeout", 5*time.Second),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		LoginRatePerMinute: appValues.Int("login_rate_per_minute"),
		LoginRateBurst:     appValues.Int("login_rate_burst"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),
		AuditLogSecurity: appValues.String("audit_log_security"),

		SuperAdminSweepInterval: appValues.Duration("superadmin_sweep_interval", 15*time.Minute),
	}

	if appCfg.SuperAdminEmail == "" {
		logger.Warn("superadmin_email is not set; no account will hold super_admin")
	}
	return coreCfg, appCfg, nil
}

var auditSettings = map[string]bool{"": true, "all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked before connecting, and the identity provider
// must have the settings it needs.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.IdentityProvider {
	case providerFirebase:
		if appCfg.FirebaseProjectID == "" {
			return fmt.Errorf("identity_provider=firebase requires firebase_project_id")
		}
	case providerHMAC:
		if len(appCfg.IdentityHMACSecret) < 32 {
			return fmt.Errorf("identity_provider=hmac requires identity_hmac_secret of 32+ chars")
		}
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("hmac identity provider is meant for development; prefer firebase in prod")
		}
	default:
		return fmt.Errorf("identity_provider must be %q or %q, got %q", providerFirebase, providerHMAC, appCfg.IdentityProvider)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.SessionKey == "" {
		return fmt.Errorf("session_key is required in prod")
	}

	for name, v := range map[string]string{
		"audit_log_auth":     appCfg.AuditLogAuth,
		"audit_log_admin":    appCfg.AuditLogAdmin,
		"audit_log_security": appCfg.AuditLogSecurity,
	} {
		if !auditSettings[v] {
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", name, v)
		}
	}
	return nil
}
