package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key written by the gateway.
const KeyPrefix = "snowball"

// CacheKey identifies a cached upstream response.
type CacheKey struct {
	// Operation is the upstream operation name (e.g. "quotec").
	Operation string

	// Params are the operation arguments after defaults were applied.
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: snowball:operation:param1=val1:param2=val2
//
// Example:
//
//	snowball:kline:count=-284:period=day:symbol=SH600000
//
// Multi-valued parameters are joined with commas in their given order.
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	if op := strings.TrimSpace(k.Operation); op != "" {
		parts = append(parts, op)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Params[key], ",")))
		}
	}

	return strings.Join(parts, ":")
}
