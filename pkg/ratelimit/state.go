// Package ratelimit implements the gateway's client-side courtesy throttle.
// A single shared pacing interval spaces out upstream calls; the interval grows
// after failures and relaxes back to its minimum once the upstream has been
// left alone long enough.
package ratelimit

import (
	"errors"
	"time"
)

// Defaults for limiter tunables.
const (
	DefaultMinInterval     = 1500 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
	DefaultRecoveryTimeout = 60 * time.Second

	// BackoffFactor is applied to the interval on every Backoff call.
	BackoffFactor = 1.2
)

// Config holds limiter tunables.
type Config struct {
	// MinInterval is the spacing used while the upstream is healthy.
	MinInterval time.Duration

	// MaxInterval caps the spacing no matter how many backoffs occur.
	MaxInterval time.Duration

	// RecoveryTimeout is the idle gap after which the interval resets to MinInterval.
	RecoveryTimeout time.Duration
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		MinInterval:     DefaultMinInterval,
		MaxInterval:     DefaultMaxInterval,
		RecoveryTimeout: DefaultRecoveryTimeout,
	}
}

// Validate checks the tunables are consistent.
func (c Config) Validate() error {
	if c.MinInterval <= 0 {
		return errors.New("min_interval must be > 0")
	}
	if c.MaxInterval < c.MinInterval {
		return errors.New("max_interval must be >= min_interval")
	}
	if c.RecoveryTimeout <= 0 {
		return errors.New("recovery_timeout must be > 0")
	}
	return nil
}

// State is a point-in-time view of the limiter.
type State struct {
	// CurrentInterval is the spacing the next Wait will enforce.
	CurrentInterval time.Duration `json:"current_interval"`

	// LastRequest is when the last caller was admitted. Zero before the first call.
	LastRequest time.Time `json:"last_request"`

	MinInterval time.Duration `json:"min_interval"`
	MaxInterval time.Duration `json:"max_interval"`
}

// IsBackedOff reports whether failures have pushed the interval above its minimum.
func (s State) IsBackedOff() bool {
	return s.CurrentInterval > s.MinInterval
}

// IsSaturated reports whether the interval has reached its cap.
func (s State) IsSaturated() bool {
	return s.CurrentInterval >= s.MaxInterval
}

// IdleFor returns how long the limiter has been idle at t.
// Returns 0 if no request has been admitted yet.
func (s State) IdleFor(t time.Time) time.Duration {
	if s.LastRequest.IsZero() {
		return 0
	}
	d := t.Sub(s.LastRequest)
	if d < 0 {
		return 0
	}
	return d
}
