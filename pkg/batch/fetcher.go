package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrNoSymbolParam is returned for operations that take no symbol-like argument.
var ErrNoSymbolParam = errors.New("operation has no symbol parameter")

// symbolParams are the argument names a batch symbol can fill, in priority order.
var symbolParams = []string{"stock_code", "fund_code", "index_code", "cube_symbol"}

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of invocations in flight.
	MaxConcurrency int
	// Timeout bounds one symbol's invocation, including its pacing waits.
	Timeout time.Duration
}

// DefaultConfig returns the default batch configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        60 * time.Second,
	}
}

// Invoker runs one operation. Satisfied by *gateway.Gateway.
type Invoker interface {
	Invoke(ctx context.Context, op gateway.Operation, profile normalize.Profile) (any, error)
}

// Result is the outcome for one symbol.
type Result struct {
	Symbol string
	Data   any
	Err    error
}

// Fetcher fans operations out over symbols.
type Fetcher struct {
	invoker Invoker
	config  Config
	logger  zerolog.Logger
}

// NewFetcher creates a new batch fetcher.
func NewFetcher(invoker Invoker, config Config) *Fetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &Fetcher{
		invoker: invoker,
		config:  config,
		logger:  log.With().Str("component", "batch").Logger(),
	}
}

// SymbolParam returns the argument of operation name that a batch symbol fills.
func SymbolParam(name string) (string, error) {
	spec, ok := snowball.Lookup(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", snowball.ErrUnknownOperation, name)
	}
	for _, want := range symbolParams {
		for _, p := range spec.Params {
			if p.Name == want {
				return want, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoSymbolParam, name)
}

// FetchSymbols invokes operation name once per symbol, with args shared by
// every call. The returned map holds the symbols that succeeded; failed
// symbols are reported in the joined error, each prefixed with its symbol.
func (f *Fetcher) FetchSymbols(ctx context.Context, name string, symbols []string, args map[string]string, profile normalize.Profile) (map[string]any, error) {
	start := time.Now()

	param, err := SymbolParam(name)
	if err != nil {
		return nil, err
	}

	symbols = dedupe(symbols)
	ops := make(map[string]gateway.Operation, len(symbols))
	for _, sym := range symbols {
		callArgs := make(map[string]string, len(args)+1)
		for k, v := range args {
			callArgs[k] = v
		}
		callArgs[param] = sym

		op, err := snowball.BuildOperation(name, callArgs)
		if err != nil {
			return nil, err
		}
		ops[sym] = op
	}

	f.logger.Info().
		Str("operation", name).
		Int("symbols", len(symbols)).
		Int("workers", f.config.MaxConcurrency).
		Msg("Starting batch fetch")

	// An expired credential fails every remaining symbol the same way.
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	queue := make(chan string, len(symbols))
	for _, sym := range symbols {
		queue <- sym
	}
	close(queue)

	results := make(chan Result, len(symbols))

	var g errgroup.Group
	for i := 0; i < min(f.config.MaxConcurrency, len(symbols)); i++ {
		g.Go(func() error {
			f.worker(ctx, cancel, profile, ops, queue, results, i)
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	data := make(map[string]any, len(symbols))
	var errs []error
	for r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Symbol, r.Err))
			continue
		}
		data[r.Symbol] = r.Data
	}

	if len(errs) > 0 {
		f.logger.Warn().
			Str("operation", name).
			Int("succeeded", len(data)).
			Int("failed", len(errs)).
			Dur("duration", time.Since(start)).
			Msg("Batch fetch incomplete - returning partial results")
		return data, errors.Join(errs...)
	}

	f.logger.Info().
		Str("operation", name).
		Int("symbols", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return data, nil
}

// worker processes symbols from the queue.
func (f *Fetcher) worker(ctx context.Context, cancel context.CancelCauseFunc, profile normalize.Profile,
	ops map[string]gateway.Operation, queue <-chan string, results chan<- Result, workerID int) {
	processed := 0

	for sym := range queue {
		if ctx.Err() != nil {
			results <- Result{Symbol: sym, Err: context.Cause(ctx)}
			continue
		}

		callCtx, callCancel := context.WithTimeout(ctx, f.config.Timeout)
		data, err := f.invoker.Invoke(callCtx, ops[sym], profile)
		callCancel()

		if errors.Is(err, gateway.ErrAuthExpired) {
			cancel(err)
		}
		results <- Result{Symbol: sym, Data: data, Err: err}
		processed++
	}

	f.logger.Debug().
		Int("worker_id", workerID).
		Int("symbols_processed", processed).
		Msg("Worker completed")
}

func dedupe(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
