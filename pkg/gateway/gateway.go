// Package gateway is the single choke point for outbound Snowball calls.
// Every invocation is paced by a shared limiter, authenticated with a pooled
// credential, retried once on failure and normalized before it is returned.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/cache"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRetryDelay is the pause between the failed first attempt and the retry.
	DefaultRetryDelay = 2 * time.Second

	// DefaultCacheTTL applies when WithCache is given a non-positive TTL.
	DefaultCacheTTL = 30 * time.Second

	// DefaultSharedCallTimeout bounds a shared cache-miss call whose starting
	// caller had no deadline.
	DefaultSharedCallTimeout = 2 * time.Minute

	maxAttempts = 2
)

// Normalizer shapes a raw payload for a profile. Satisfied by *normalize.Normalizer.
type Normalizer interface {
	Normalize(raw []byte, profile normalize.Profile) any
}

// OperationValidator is implemented by upstreams that can reject an operation
// before any call is made. A rejected operation is not paced and does not
// count against a credential.
type OperationValidator interface {
	Validate(op Operation) error
}

// Gateway invokes upstream operations.
type Gateway struct {
	upstream   Upstream
	pool       CredentialSource
	pacer      Pacer
	normalizer Normalizer

	retryDelay    time.Duration
	cache         ResponseCache
	cacheTTL      time.Duration
	inflight      singleflight.Group
	sharedTimeout time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	logger        zerolog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithRetryDelay sets the pause before the single retry.
func WithRetryDelay(d time.Duration) Option {
	return func(g *Gateway) { g.retryDelay = d }
}

// WithCache enables response caching. Raw payloads are stored for ttl.
func WithCache(c ResponseCache, ttl time.Duration) Option {
	return func(g *Gateway) {
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		g.cache = c
		g.cacheTTL = ttl
	}
}

// WithSharedCallTimeout bounds shared cache-miss calls started without a deadline.
func WithSharedCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.sharedTimeout = d
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// New creates a Gateway. The pool and pacer are shared by every invocation
// and must outlive the Gateway.
func New(upstream Upstream, pool CredentialSource, pacer Pacer, normalizer Normalizer, opts ...Option) (*Gateway, error) {
	if upstream == nil {
		return nil, fmt.Errorf("upstream is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("credential source is required")
	}
	if pacer == nil {
		return nil, fmt.Errorf("pacer is required")
	}
	if normalizer == nil {
		normalizer = normalize.New()
	}

	g := &Gateway{
		upstream:      upstream,
		pool:          pool,
		pacer:         pacer,
		normalizer:    normalizer,
		retryDelay:    DefaultRetryDelay,
		sharedTimeout: DefaultSharedCallTimeout,
		sleep:         sleepContext,
		logger:        log.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Invoke runs op and returns its normalized result.
//
// The call is paced once. The first failure backs off the pacer, reports
// the credential as failed, waits the retry delay and tries once more with a
// freshly selected credential, without waiting on the pacer again. A second failure is classified and returned. Cancelling ctx
// stops the invocation at the next wait point.
func (g *Gateway) Invoke(ctx context.Context, op Operation, profile normalize.Profile) (any, error) {
	payload, err := g.Fetch(ctx, op)
	if err != nil {
		return nil, err
	}
	return g.normalizer.Normalize(payload, profile), nil
}

// Fetch runs op and returns the raw payload without normalization.
func (g *Gateway) Fetch(ctx context.Context, op Operation) ([]byte, error) {
	callID := uuid.NewString()
	logger := g.logger.With().
		Str("call_id", callID).
		Str("operation", op.Name).
		Logger()

	if v, ok := g.upstream.(OperationValidator); ok {
		if err := v.Validate(op); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(op.Name).Observe(time.Since(start).Seconds())
	}()

	if g.cache == nil {
		return g.call(ctx, logger, op, cache.CacheKey{})
	}

	key := cache.CacheKey{Operation: op.Name, Params: op.Params}
	if payload, ok := g.cached(ctx, logger, key); ok {
		return payload, nil
	}

	// Concurrent misses for one key share a single upstream call. The shared
	// call outlives any one caller; each caller stops waiting on its own ctx.
	ch := g.inflight.DoChan(key.String(), func() (any, error) {
		callCtx, cancel := g.detach(ctx)
		defer cancel()
		return g.call(callCtx, logger, op, key)
	})

	select {
	case res := <-ch:
		if res.Shared {
			logger.Debug().Msg("Shared in-flight upstream call")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		requestsTotal.WithLabelValues(op.Name, "cancelled").Inc()
		return nil, fmt.Errorf("%s cancelled: %w", op.Name, ctx.Err())
	}
}

// detach returns a context for a shared call: it keeps ctx's values and
// deadline but ignores its cancellation. Without a deadline the shared call
// is bounded by the shared call timeout.
func (g *Gateway) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if deadline, ok := ctx.Deadline(); ok {
		return context.WithDeadline(base, deadline)
	}
	return context.WithTimeout(base, g.sharedTimeout)
}

// call runs the two-attempt upstream sequence and stores a successful payload.
func (g *Gateway) call(ctx context.Context, logger zerolog.Logger, op Operation, key cache.CacheKey) ([]byte, error) {
	// Only the first attempt is paced; the retry delay spaces the second.
	if err := g.pacer.Wait(ctx); err != nil {
		return nil, fmt.Errorf("pacing %s: %w", op.Name, err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cred, _ := g.pool.Next()

		logger.Debug().
			Int("attempt", attempt).
			Str("credential", credential.Mask(cred)).
			Msg("Calling upstream")

		payload, err := g.upstream.Call(ctx, cred, op)
		if err == nil {
			g.pool.ReportSuccess(cred)
			requestsTotal.WithLabelValues(op.Name, "success").Inc()
			if attempt > 1 {
				logger.Info().Int("attempt", attempt).Msg("Upstream call succeeded after retry")
			}
			g.store(ctx, logger, key, payload)
			return payload, nil
		}

		// A cancelled call says nothing about the credential.
		if ctxErr := ctx.Err(); ctxErr != nil {
			requestsTotal.WithLabelValues(op.Name, "cancelled").Inc()
			return nil, fmt.Errorf("%s cancelled: %w", op.Name, errors.Join(ctxErr, err))
		}

		lastErr = err
		requestsTotal.WithLabelValues(op.Name, "failure").Inc()

		if attempt == maxAttempts {
			break
		}

		errorsTotal.WithLabelValues(ClassTransient).Inc()
		retriesTotal.WithLabelValues(op.Name).Inc()
		g.pacer.Backoff()
		g.pool.ReportFailure(cred)

		logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Str("credential", credential.Mask(cred)).
			Dur("retry_delay", g.retryDelay).
			Msg("Upstream call failed, retrying")

		if err := g.sleep(ctx, g.retryDelay); err != nil {
			return nil, fmt.Errorf("%s retry cancelled: %w", op.Name, errors.Join(err, lastErr))
		}
	}

	classified := Classify(lastErr)
	class := ClassTerminal
	if errors.Is(classified, ErrAuthExpired) {
		class = ClassAuthExpired
	}
	errorsTotal.WithLabelValues(class).Inc()

	logger.Error().
		Err(classified).
		Str("error_class", class).
		Msg("Upstream call failed after retry")

	return nil, classified
}

func (g *Gateway) cached(ctx context.Context, logger zerolog.Logger, key cache.CacheKey) ([]byte, bool) {
	if g.cache == nil {
		return nil, false
	}

	entry, err := g.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil, false
	}

	requestsTotal.WithLabelValues(key.Operation, "cache_hit").Inc()
	logger.Debug().Dur("age", entry.Age()).Msg("Serving cached payload")
	return entry.Data, true
}

func (g *Gateway) store(ctx context.Context, logger zerolog.Logger, key cache.CacheKey, payload []byte) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Set(ctx, key, cache.NewEntry(key.Operation, payload, g.cacheTTL)); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache payload")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
