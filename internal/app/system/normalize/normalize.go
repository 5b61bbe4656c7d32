// Package normalize canonicalizes user-supplied identity fields before they
// are compared or stored.
package normalize

import "strings"

// Email trims surrounding whitespace and lowercases. The super-admin check and
// the users.email unique index both rely on this form.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and collapses inner runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SameEmail reports whether a and b are the same address after normalization.
// Two empty inputs never match.
func SameEmail(a, b string) bool {
	na, nb := Email(a), Email(b)
	return na != "" && na == nb
}
