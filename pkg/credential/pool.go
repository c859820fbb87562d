// Package credential manages the pool of Snowball auth tokens used by the gateway.
// It rotates credentials round-robin and puts a credential into cooldown after
// repeated failures, so that a single bad token does not burn every request.
package credential

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Defaults for pool tunables.
const (
	DefaultCooldown    = 60 * time.Second
	DefaultMaxFailures = 3
)

// Config holds the pool tunables.
type Config struct {
	// Cooldown is how long a credential is excluded from rotation once it
	// reaches MaxFailures consecutive failures.
	Cooldown time.Duration

	// MaxFailures is the consecutive failure count that triggers a cooldown.
	MaxFailures int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Cooldown:    DefaultCooldown,
		MaxFailures: DefaultMaxFailures,
	}
}

// Status is the health record the pool keeps for one credential.
type Status struct {
	Credential          string    `json:"credential"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	DisabledUntil       time.Time `json:"disabled_until"`
}

// CoolingDown reports whether the credential is excluded from rotation at t.
func (s Status) CoolingDown(t time.Time) bool {
	return s.DisabledUntil.After(t)
}

// Pool rotates credentials and tracks their health.
// All methods are safe for concurrent use.
type Pool struct {
	mu     sync.Mutex
	creds  []string
	status map[string]*Status
	cursor int

	config Config
	now    func() time.Time
	logger zerolog.Logger
}

// NewPool creates a pool over the given credentials. Duplicates and empty
// values are dropped; order of first occurrence is kept.
// An empty pool is valid: Next reports no credential and callers forward
// requests unauthenticated.
func NewPool(creds []string, cfg Config, logger zerolog.Logger) *Pool {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}

	unique := dedupe(creds)
	status := make(map[string]*Status, len(unique))
	for _, c := range unique {
		status[c] = &Status{Credential: c}
	}

	credentialsTotal.Set(float64(len(unique)))

	return &Pool{
		creds:  unique,
		status: status,
		config: cfg,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the pool's time source (for testing).
func (p *Pool) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

// Size returns the number of unique credentials.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Next selects the credential for the next upstream call.
// It returns false only when the pool is empty.
//
// A single-credential pool always returns its credential. Larger pools scan
// from the round-robin cursor for the first credential not cooling down; the
// cursor advances for every candidate examined. When every credential is
// cooling down the first credential is returned anyway.
func (p *Pool) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	switch n {
	case 0:
		return "", false
	case 1:
		return p.creds[0], true
	}

	now := p.now()
	for i := 0; i < n; i++ {
		candidate := p.creds[p.cursor]
		p.cursor = (p.cursor + 1) % n
		if !p.status[candidate].CoolingDown(now) {
			return candidate, true
		}
	}

	// A call must still be attempted; pool order gives callers a stable fallback.
	credentialForcedTotal.Inc()
	p.logger.Warn().
		Int("pool_size", n).
		Str("credential", Mask(p.creds[0])).
		Msg("All credentials cooling down, forcing first credential")
	return p.creds[0], true
}

// ReportSuccess clears the failure streak of a credential.
func (p *Pool) ReportSuccess(credential string) {
	if credential == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if st, ok := p.status[credential]; ok {
		st.ConsecutiveFailures = 0
	}
}

// ReportFailure records a failed call. Once a credential reaches MaxFailures
// consecutive failures it is put into cooldown. Single-credential pools never
// disable their credential.
func (p *Pool) ReportFailure(credential string) {
	if credential == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) <= 1 {
		return
	}
	st, ok := p.status[credential]
	if !ok {
		return
	}

	st.ConsecutiveFailures++
	credentialFailuresTotal.Inc()

	if st.ConsecutiveFailures >= p.config.MaxFailures {
		st.DisabledUntil = p.now().Add(p.config.Cooldown)
		credentialCooldownsTotal.Inc()
		p.logger.Warn().
			Str("credential", Mask(credential)).
			Int("consecutive_failures", st.ConsecutiveFailures).
			Time("disabled_until", st.DisabledUntil).
			Msg("Credential entering cooldown")
	}
}

// Snapshot returns a copy of every credential's status in pool order, with
// credentials masked.
func (p *Pool) Snapshot() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.creds))
	for _, c := range p.creds {
		st := *p.status[c]
		st.Credential = Mask(c)
		out = append(out, st)
	}
	return out
}

// Mask hides all but the first and last four characters of a credential.
func Mask(credential string) string {
	if len(credential) <= 8 {
		return "****"
	}
	return credential[:4] + "****" + credential[len(credential)-4:]
}
