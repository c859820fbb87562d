package normalize

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Normalizer applies timestamp canonicalization and profile compaction.
// It holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	loc               *time.Location
	convertTimestamps bool
	keys              []string
	suffixes          []string
	logger            zerolog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLocation sets the location timestamps are rendered in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithoutTimestamps disables the canonicalization pass.
func WithoutTimestamps() Option {
	return func(n *Normalizer) { n.convertTimestamps = false }
}

// WithTimestampKeys overrides the exact keys and key suffixes treated as timestamps.
func WithTimestampKeys(keys, suffixes []string) Option {
	return func(n *Normalizer) {
		n.keys = keys
		n.suffixes = suffixes
	}
}

// WithLogger sets the logger used to report degraded profiles.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Normalizer) { n.logger = logger }
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		loc:               time.Local,
		convertTimestamps: true,
		keys:              DefaultTimestampKeys,
		suffixes:          DefaultDateSuffixes,
		logger:            zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Location returns the location timestamps are rendered in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize decodes raw and applies both passes. The result is a Table,
// a map[string]any, or the canonicalized document when profile is
// ProfileNone or the document has an unexpected shape. Undecodable input is
// returned as a string.
func (n *Normalizer) Normalize(raw []byte, profile Profile) any {
	doc, ok := decode(raw)
	if !ok {
		return string(raw)
	}

	if n.convertTimestamps {
		c := canonicalizer{keys: n.keys, suffixes: n.suffixes, loc: n.loc}
		doc = c.walk(doc)
	}

	if profile == ProfileNone {
		return doc
	}

	fn, ok := profiles[profile]
	if !ok {
		n.logger.Warn().Str("profile", string(profile)).Msg("Unknown profile, returning document unchanged")
		return doc
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return doc
	}

	out, ok := n.apply(fn, profile, canonical)
	if !ok {
		return doc
	}
	return out
}

// apply runs fn, turning a panic into a degraded result.
func (n *Normalizer) apply(fn profileFunc, profile Profile, canonical []byte) (out any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error().
				Str("profile", string(profile)).
				Interface("panic", r).
				Msg("Profile panicked, returning document unchanged")
			out, ok = nil, false
		}
	}()

	out, ok = fn(gjson.ParseBytes(canonical), n.loc)
	if !ok {
		n.logger.Debug().Str("profile", string(profile)).Msg("Document shape does not match profile")
	}
	return out, ok
}

func decode(raw []byte) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, false
	}
	// Trailing data means raw was not a single JSON document.
	if dec.More() {
		return nil, false
	}
	return doc, true
}
