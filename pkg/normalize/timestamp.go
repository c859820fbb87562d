package normalize

import (
	"encoding/json"
	"strings"
	"time"
)

// TimeLayout is the layout canonicalized timestamps are rendered with.
const TimeLayout = "2006-01-02 15:04:05"

const (
	millisThreshold  = 1e12
	secondsThreshold = 1e9
)

// Default key matching for timestamp canonicalization.
var (
	DefaultTimestampKeys = []string{"timestamp"}
	DefaultDateSuffixes  = []string{"_date"}
)

// CanonicalizeTimestamps rewrites epoch values under timestamp-like keys with
// the default key rules, in place, and returns v. Maps and slices are walked
// recursively. Numbers may be json.Number or float64.
func CanonicalizeTimestamps(v any, loc *time.Location) any {
	c := canonicalizer{keys: DefaultTimestampKeys, suffixes: DefaultDateSuffixes, loc: loc}
	return c.walk(v)
}

type canonicalizer struct {
	keys     []string
	suffixes []string
	loc      *time.Location
}

func (c canonicalizer) walk(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if c.matches(k) {
				if s, ok := c.convert(child); ok {
					t[k] = s
					continue
				}
			}
			t[k] = c.walk(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = c.walk(child)
		}
		return t
	default:
		return v
	}
}

func (c canonicalizer) matches(key string) bool {
	for _, k := range c.keys {
		if key == k {
			return true
		}
	}
	for _, s := range c.suffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

func (c canonicalizer) convert(v any) (string, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return "", false
		}
		f = parsed
	case float64:
		f = n
	case int64:
		f = float64(n)
	case int:
		f = float64(n)
	default:
		return "", false
	}
	return formatEpoch(f, c.loc)
}

// formatEpoch renders an epoch in ms (> 1e12) or s (> 1e9). Anything smaller
// is not treated as a timestamp.
func formatEpoch(v float64, loc *time.Location) (string, bool) {
	if loc == nil {
		loc = time.Local
	}
	var t time.Time
	switch {
	case v > millisThreshold:
		t = time.UnixMilli(int64(v))
	case v > secondsThreshold:
		t = time.Unix(int64(v), 0)
	default:
		return "", false
	}
	return t.In(loc).Format(TimeLayout), true
}
