package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv unsets every variable the tests touch and restores them afterwards.
func isolateEnv(t *testing.T, extra ...string) {
	t.Helper()
	keys := []string{TokenEnv, "XUEQIU_LOG_LEVEL", "XUEQIU_NORMALIZE_TIMEZONE"}
	for i := 1; i <= 9; i++ {
		keys = append(keys, fmt.Sprintf("%s_%d", TokenEnv, i))
	}
	keys = append(keys, extra...)
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Empty(t, cfg.Tokens)
	assert.Equal(t, 60*time.Second, cfg.Pool.Cooldown)
	assert.Equal(t, 3, cfg.Pool.MaxFailures)
	assert.Equal(t, 1500*time.Millisecond, cfg.Limiter.MinInterval)
	assert.Equal(t, 5*time.Second, cfg.Limiter.MaxInterval)
	assert.Equal(t, 60*time.Second, cfg.Limiter.RecoveryTimeout)
	assert.Equal(t, 2*time.Second, cfg.Gateway.RetryDelay)
	assert.Equal(t, 30*time.Second, cfg.Gateway.Timeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "Asia/Shanghai", cfg.Normalize.Location.String())
	assert.True(t, cfg.Normalize.ConvertTimestamps)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrency)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, logging.LevelInfo, cfg.Log.Level)
}

func TestLoad_Environment(t *testing.T) {
	isolateEnv(t)
	t.Setenv(TokenEnv, "tok-a, tok-b")
	t.Setenv(TokenEnv+"_1", "tok-c")
	t.Setenv(TokenEnv+"_2", "tok-a")
	t.Setenv("XUEQIU_POOL_COOLDOWN", "2m")
	t.Setenv("XUEQIU_LIMITER_MIN_INTERVAL", "2s")
	t.Setenv("XUEQIU_LIMITER_MAX_INTERVAL", "8s")
	t.Setenv("XUEQIU_CACHE_ENABLED", "true")
	t.Setenv("XUEQIU_REDIS_ADDR", "redis:6379")
	t.Setenv("XUEQIU_NORMALIZE_TIMEZONE", "UTC")
	t.Setenv("XUEQIU_SERVER_PORT", "9000")
	t.Setenv("XUEQIU_LOG_LEVEL", "debug")

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"tok-a", "tok-b", "tok-c"}, cfg.Tokens)
	assert.Equal(t, 2*time.Minute, cfg.Pool.Cooldown)
	assert.Equal(t, 2*time.Second, cfg.Limiter.MinInterval)
	assert.Equal(t, 8*time.Second, cfg.Limiter.MaxInterval)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, time.UTC, cfg.Normalize.Location)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, logging.LevelDebug, cfg.Log.Level)
}

func TestLoad_IndexedTokensStopAtGap(t *testing.T) {
	isolateEnv(t)
	t.Setenv(TokenEnv+"_1", "tok-1")
	t.Setenv(TokenEnv+"_3", "tok-3")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1"}, cfg.Tokens)
}

func TestLoad_ConfigFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv(TokenEnv, "env-token")

	path := writeFile(t, "gateway.yaml", `
tokens:
  - file-token
  - env-token
limiter:
  min_interval: 1s
  max_interval: 3s
gateway:
  retry_delay: 500ms
server:
  port: 8181
  rate_limit: 0
log:
  level: warn
  pretty: true
`)

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, []string{"env-token", "file-token"}, cfg.Tokens)
	assert.Equal(t, time.Second, cfg.Limiter.MinInterval)
	assert.Equal(t, 3*time.Second, cfg.Limiter.MaxInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Gateway.RetryDelay)
	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Zero(t, cfg.Server.RateLimit)
	assert.Equal(t, logging.LevelWarn, cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
}

func TestLoad_EnvFile(t *testing.T) {
	isolateEnv(t)

	path := writeFile(t, ".env", "XUEQIU_TOKEN=dotenv-token\nXUEQIU_LOG_LEVEL=error\n")

	cfg, err := Load(Options{EnvFiles: []string{path, filepath.Join(t.TempDir(), "missing.env")}})
	require.NoError(t, err)

	assert.Equal(t, []string{"dotenv-token"}, cfg.Tokens)
	assert.Equal(t, logging.LevelError, cfg.Log.Level)
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	isolateEnv(t)
	t.Setenv(TokenEnv, "process-token")

	path := writeFile(t, ".env", "XUEQIU_TOKEN=dotenv-token\n")

	cfg, err := Load(Options{EnvFiles: []string{path}})
	require.NoError(t, err)
	assert.Equal(t, []string{"process-token"}, cfg.Tokens)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "max below min", env: map[string]string{"XUEQIU_LIMITER_MAX_INTERVAL": "1s"}},
		{name: "zero min interval", env: map[string]string{"XUEQIU_LIMITER_MIN_INTERVAL": "0s"}},
		{name: "bad timezone", env: map[string]string{"XUEQIU_NORMALIZE_TIMEZONE": "Mars/Olympus"}},
		{name: "bad log level", env: map[string]string{"XUEQIU_LOG_LEVEL": "loud"}},
		{name: "bad port", env: map[string]string{"XUEQIU_SERVER_PORT": "70000"}},
		{name: "zero max failures", env: map[string]string{"XUEQIU_POOL_MAX_FAILURES": "0"}},
		{name: "rate limit without burst", env: map[string]string{"XUEQIU_SERVER_RATE_LIMIT": "5", "XUEQIU_SERVER_RATE_BURST": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(Options{})
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	isolateEnv(t)
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml")})
	assert.Error(t, err)
}

func TestLoad_RateLimitDisabledIgnoresBurst(t *testing.T) {
	isolateEnv(t)
	t.Setenv("XUEQIU_SERVER_RATE_LIMIT", "0")
	t.Setenv("XUEQIU_SERVER_RATE_BURST", "0")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Zero(t, cfg.Server.RateLimit)
}
