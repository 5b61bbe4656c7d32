// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the default cap for JSON request bodies.
	MaxJSONBody = 64 << 10 // 64 KB

	// MaxSettingsBody caps company settings updates.
	MaxSettingsBody = 16 << 10 // 16 KB
)
