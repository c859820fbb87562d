package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for pacing.
var (
	limiterInterval = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snowball_limiter_interval_seconds",
		Help: "Current spacing enforced between upstream calls",
	})

	limiterWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snowball_limiter_wait_seconds",
		Help:    "Time callers spent sleeping in the limiter",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	limiterBackoffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowball_limiter_backoffs_total",
		Help: "Total number of interval backoffs",
	})

	limiterRecoveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snowball_limiter_recoveries_total",
		Help: "Total number of idle recoveries to the minimum interval",
	})
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Limiter paces upstream calls through one shared interval.
//
// The mutex is held through the sleep in Wait on purpose: concurrent callers
// queue behind each other and leave as a single paced stream.
type Limiter struct {
	mu          sync.Mutex
	interval    time.Duration
	lastRequest time.Time

	config Config
	now    func() time.Time
	sleep  SleepFunc
	logger zerolog.Logger
}

// NewLimiter creates a limiter starting at MinInterval.
func NewLimiter(cfg Config, logger zerolog.Logger) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid limiter config: %w", err)
	}

	limiterInterval.Set(cfg.MinInterval.Seconds())

	return &Limiter{
		interval: cfg.MinInterval,
		config:   cfg,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logger,
	}, nil
}

// SetClock replaces the time source and sleeper (for testing).
func (l *Limiter) SetClock(now func() time.Time, sleep SleepFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now != nil {
		l.now = now
	}
	if sleep != nil {
		l.sleep = sleep
	}
}

// Wait blocks until the caller may issue its upstream call.
//
// After an idle gap longer than RecoveryTimeout the interval resets to
// MinInterval. If less than the current interval has passed since the last
// admitted call, Wait sleeps for the remainder. If ctx is cancelled during the
// sleep the caller is not admitted and the last request time is unchanged.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	elapsed := l.now().Sub(l.lastRequest)

	if elapsed > l.config.RecoveryTimeout && l.interval != l.config.MinInterval {
		l.logger.Info().
			Dur("idle", elapsed).
			Dur("from_interval", l.interval).
			Dur("to_interval", l.config.MinInterval).
			Msg("Upstream idle, interval recovered")
		l.interval = l.config.MinInterval
		limiterInterval.Set(l.interval.Seconds())
		limiterRecoveriesTotal.Inc()
	}

	if elapsed < l.interval {
		wait := l.interval - elapsed
		l.logger.Debug().Dur("wait", wait).Dur("interval", l.interval).Msg("Pacing upstream call")
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
		limiterWaitSeconds.Observe(wait.Seconds())
	}

	l.lastRequest = l.now()
	return nil
}

// Backoff widens the interval by BackoffFactor, capped at MaxInterval.
func (l *Limiter) Backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := time.Duration(float64(l.interval) * BackoffFactor)
	if next > l.config.MaxInterval {
		next = l.config.MaxInterval
	}
	l.interval = next

	limiterInterval.Set(next.Seconds())
	limiterBackoffsTotal.Inc()

	l.logger.Warn().Dur("interval", next).Msg("Limiter backing off")
}

// Interval returns the current pacing interval.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// State returns a snapshot of the limiter.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		CurrentInterval: l.interval,
		LastRequest:     l.lastRequest,
		MinInterval:     l.config.MinInterval,
		MaxInterval:     l.config.MaxInterval,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
