//go:build integration

package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/Sternrassler/snowball-gateway/internal/testutil"
	"github.com/Sternrassler/snowball-gateway/pkg/cache"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/normalize"
	"github.com/Sternrassler/snowball-gateway/pkg/ratelimit"
	"github.com/Sternrassler/snowball-gateway/pkg/snowball"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// TestFullRequestFlow covers pacing, rotation, upstream call, cache store and cache hit.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockSnowball()
	defer mock.Close()

	mock.RequireToken("/v5/stock/realtime/quotec.json",
		`{"data":[{"symbol":"SH600000","current":7.12,"percent":0.85,"timestamp":1700000000000}],"error_code":0}`,
		"fresh-token-0002")

	pool := credential.NewPool([]string{"stale-token-0001", "fresh-token-0002"}, credential.DefaultConfig(), zerolog.Nop())
	limiter, err := ratelimit.NewLimiter(ratelimit.Config{
		MinInterval:     10 * time.Millisecond,
		MaxInterval:     50 * time.Millisecond,
		RecoveryTimeout: time.Minute,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}

	client := snowball.NewClient(
		snowball.WithBaseURL(snowball.HostStock, mock.URL()),
		snowball.WithLogger(zerolog.Nop()),
	)

	gw, err := gateway.New(client, pool, limiter, normalize.New(normalize.WithLocation(time.UTC)),
		gateway.WithRetryDelay(0),
		gateway.WithCache(cache.NewManager(redisClient), time.Minute),
		gateway.WithLogger(zerolog.Nop()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	op, err := snowball.BuildOperation("quotec", map[string]string{"stock_code": "SH600000"})
	if err != nil {
		t.Fatalf("BuildOperation() error = %v", err)
	}

	ctx := context.Background()

	// Request 1: stale token rejected, retry with the fresh one, payload cached.
	t.Log("Request 1: cache miss, rotate past expired token")
	out, err := gw.Invoke(ctx, op, normalize.ProfileQuotec)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}

	table, ok := out.(normalize.Table)
	if !ok {
		t.Fatalf("Request 1 result = %T, want normalize.Table", out)
	}
	if len(table.Data) != 1 {
		t.Fatalf("Request 1 rows = %d, want 1", len(table.Data))
	}

	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("Upstream requests after request 1 = %d, want 2", got)
	}

	// Request 2: served from Redis without touching the upstream.
	t.Log("Request 2: cache hit")
	if _, err := gw.Invoke(ctx, op, normalize.ProfileQuotec); err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("Upstream requests after request 2 = %d, want 2 (cache hit)", got)
	}

	key := cache.CacheKey{Operation: op.Name, Params: op.Params}
	ttl, err := redisClient.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("Cached entry TTL = %v, want (0, 1m]", ttl)
	}

	// The pool still remembers the stale token's failure.
	for _, st := range pool.Snapshot() {
		if st.Credential == credential.Mask("stale-token-0001") && st.ConsecutiveFailures != 1 {
			t.Errorf("stale token failures = %d, want 1", st.ConsecutiveFailures)
		}
	}
}
