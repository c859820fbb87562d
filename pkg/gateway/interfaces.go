package gateway

import (
	"context"
	"net/url"

	"github.com/Sternrassler/snowball-gateway/pkg/cache"
)

//go:generate mockgen -package=gateway_test -destination=mock_gateway_test.go -source=interfaces.go

// Operation identifies one upstream call and its arguments.
type Operation struct {
	Name   string
	Params url.Values
}

// Upstream executes an operation against the data provider. An empty
// credential means the call is made unauthenticated. On failure the returned
// error should be an *UpstreamError carrying the response body so it can be
// classified.
type Upstream interface {
	Call(ctx context.Context, credential string, op Operation) ([]byte, error)
}

// CredentialSource hands out credentials and records their health.
// Satisfied by *credential.Pool.
type CredentialSource interface {
	Next() (string, bool)
	ReportSuccess(credential string)
	ReportFailure(credential string)
}

// Pacer spaces out upstream calls. Satisfied by *ratelimit.Limiter.
type Pacer interface {
	Wait(ctx context.Context) error
	Backoff()
}

// ResponseCache stores raw upstream payloads. Satisfied by *cache.Manager.
type ResponseCache interface {
	Get(ctx context.Context, key cache.CacheKey) (*cache.CacheEntry, error)
	Set(ctx context.Context, key cache.CacheKey, entry *cache.CacheEntry) error
}
