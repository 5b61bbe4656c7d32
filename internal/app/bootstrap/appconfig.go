// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, log level, CORS); everything specific
// to the CRM access core lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// The one email allowed to hold super_admin. Blank means nobody.
	SuperAdminEmail string

	// Identity provider
	IdentityProvider      string        // "firebase" or "hmac"
	FirebaseProjectID     string        // required for firebase
	IdentityHMACSecret    string        // required for hmac (development and tests)
	IdentityCacheTTL      time.Duration // 0 disables the verified-token cache
	IdentityCacheSize     int
	IdentityVerifyTimeout time.Duration

	// Remembered-company cookie
	SessionKey    string // Secret key for signing the cookie (must be strong in production)
	SessionName   string // Cookie name (default: crmhub-company)
	SessionDomain string // Cookie domain (blank means current host)
	SessionMaxAge time.Duration

	// Per-IP limit on sign-in attempts. 0 disables it.
	LoginRatePerMinute int
	LoginRateBurst     int

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogAuth     string
	AuditLogAdmin    string
	AuditLogSecurity string

	// How often stray super_admin records are demoted. 0 disables the worker.
	SuperAdminSweepInterval time.Duration
}
