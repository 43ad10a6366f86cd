package cache

import "strings"

// Policy selects how the fast tier tracks expiry for persisted entries.
type Policy int

const (
	// PolicyPreferDurable tracks the durable expiry for persisted entries,
	// so a persisted value can be read from the fast tier past its nominal
	// fast TTL. This trades TTL precision for fewer remote recomputations
	// and is the default.
	PolicyPreferDurable Policy = iota

	// PolicyStrict honors the fast TTL exactly; after it passes the value
	// is only served via durable-tier promotion.
	PolicyStrict
)

// ParsePolicy maps a config string to a Policy. Unknown values fall back
// to PolicyPreferDurable.
func ParsePolicy(s string) Policy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return PolicyStrict
	default:
		return PolicyPreferDurable
	}
}
