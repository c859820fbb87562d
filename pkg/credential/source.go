package credential

import (
	"fmt"
	"os"
	"strings"
)

// Delimiter separates credentials inside a single source value.
const Delimiter = ","

// DefaultMaxIndexed bounds the scan of numbered fallback sources.
const DefaultMaxIndexed = 9

// Sources are the raw configuration values credentials are loaded from.
type Sources struct {
	// Primary is a delimited list of credentials.
	Primary string

	// Indexed are the values of the numbered fallback sources, in order.
	Indexed []string
}

// Load parses sources into a deduplicated credential list.
func Load(src Sources) []string {
	var all []string
	all = append(all, split(src.Primary)...)
	for _, v := range src.Indexed {
		all = append(all, split(v)...)
	}
	return dedupe(all)
}

// SourcesFromEnv reads name, then name_1 ... name_maxIndexed, stopping at the
// first missing or empty slot.
func SourcesFromEnv(lookup func(string) (string, bool), name string, maxIndexed int) Sources {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if maxIndexed <= 0 {
		maxIndexed = DefaultMaxIndexed
	}

	var src Sources
	if v, ok := lookup(name); ok {
		src.Primary = v
	}
	for i := 1; i <= maxIndexed; i++ {
		v, ok := lookup(fmt.Sprintf("%s_%d", name, i))
		if !ok || strings.TrimSpace(v) == "" {
			break
		}
		src.Indexed = append(src.Indexed, v)
	}
	return src
}

func split(v string) []string {
	parts := strings.Split(v, Delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupe(creds []string) []string {
	seen := make(map[string]struct{}, len(creds))
	out := make([]string, 0, len(creds))
	for _, c := range creds {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
