// Package config loads the gateway configuration from an optional YAML file,
// .env files and XUEQIU_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/Sternrassler/snowball-gateway/pkg/batch"
	"github.com/Sternrassler/snowball-gateway/pkg/credential"
	"github.com/Sternrassler/snowball-gateway/pkg/gateway"
	"github.com/Sternrassler/snowball-gateway/pkg/logging"
	"github.com/Sternrassler/snowball-gateway/pkg/ratelimit"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the gateway reads.
const EnvPrefix = "XUEQIU"

// TokenEnv is the primary credential variable. XUEQIU_TOKEN_1 ... _9 are
// read as fallbacks.
const TokenEnv = EnvPrefix + "_TOKEN"

// DefaultTimezone is the zone timestamps are rendered in.
const DefaultTimezone = "Asia/Shanghai"

// Config is the complete gateway configuration.
type Config struct {
	Tokens []string

	Pool      credential.Config
	Limiter   ratelimit.Config
	Gateway   GatewayConfig
	Cache     CacheConfig
	Normalize NormalizeConfig
	Batch     batch.Config
	Server    ServerConfig
	Log       logging.Config
}

// GatewayConfig holds call gateway tunables.
type GatewayConfig struct {
	RetryDelay time.Duration
	Timeout    time.Duration // per HTTP exchange
	UserAgent  string
}

// CacheConfig holds the optional Redis response cache settings.
type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NormalizeConfig holds response normalization settings.
type NormalizeConfig struct {
	Timezone          string
	Location          *time.Location
	ConvertTimestamps bool
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// RateLimit is the inbound request budget per second; 0 disables it.
	RateLimit float64
	RateBurst int
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Options controls where Load reads from.
type Options struct {
	// ConfigFile is an optional YAML file. Empty skips file loading.
	ConfigFile string

	// EnvFiles are loaded into the process environment before anything is
	// read. Existing variables win. Missing files are ignored.
	EnvFiles []string
}

// DefaultOptions loads ./.env and no config file.
func DefaultOptions() Options {
	return Options{EnvFiles: []string{".env"}}
}

// Load reads and validates the configuration. It is meant to run once at startup.
func Load(opts Options) (*Config, error) {
	for _, f := range opts.EnvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", opts.ConfigFile, err)
		}
	}

	return fromViper(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("tokens", []string{})

	v.SetDefault("pool.cooldown", credential.DefaultCooldown)
	v.SetDefault("pool.max_failures", credential.DefaultMaxFailures)

	v.SetDefault("limiter.min_interval", ratelimit.DefaultMinInterval)
	v.SetDefault("limiter.max_interval", ratelimit.DefaultMaxInterval)
	v.SetDefault("limiter.recovery_timeout", ratelimit.DefaultRecoveryTimeout)

	v.SetDefault("gateway.retry_delay", gateway.DefaultRetryDelay)
	v.SetDefault("gateway.timeout", "30s")
	v.SetDefault("gateway.user_agent", "")

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttl", gateway.DefaultCacheTTL)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("normalize.timezone", DefaultTimezone)
	v.SetDefault("normalize.timestamps", true)

	v.SetDefault("batch.max_concurrency", batch.DefaultConfig().MaxConcurrency)
	v.SetDefault("batch.timeout", batch.DefaultConfig().Timeout)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func fromViper(v *viper.Viper) (*Config, error) {
	level, err := logging.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Pool: credential.Config{
			Cooldown:    v.GetDuration("pool.cooldown"),
			MaxFailures: v.GetInt("pool.max_failures"),
		},
		Limiter: ratelimit.Config{
			MinInterval:     v.GetDuration("limiter.min_interval"),
			MaxInterval:     v.GetDuration("limiter.max_interval"),
			RecoveryTimeout: v.GetDuration("limiter.recovery_timeout"),
		},
		Gateway: GatewayConfig{
			RetryDelay: v.GetDuration("gateway.retry_delay"),
			Timeout:    v.GetDuration("gateway.timeout"),
			UserAgent:  v.GetString("gateway.user_agent"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("cache.enabled"),
			TTL:           v.GetDuration("cache.ttl"),
			RedisAddr:     v.GetString("redis.addr"),
			RedisPassword: v.GetString("redis.password"),
			RedisDB:       v.GetInt("redis.db"),
		},
		Normalize: NormalizeConfig{
			Timezone:          v.GetString("normalize.timezone"),
			ConvertTimestamps: v.GetBool("normalize.timestamps"),
		},
		Batch: batch.Config{
			MaxConcurrency: v.GetInt("batch.max_concurrency"),
			Timeout:        v.GetDuration("batch.timeout"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			RateLimit:       v.GetFloat64("server.rate_limit"),
			RateBurst:       v.GetInt("server.rate_burst"),
		},
		Log: logging.Config{
			Level:  level,
			Pretty: v.GetBool("log.pretty"),
			Output: os.Stderr,
		},
	}

	// Environment tokens come first so they take the head of the rotation.
	src := credential.SourcesFromEnv(os.LookupEnv, TokenEnv, credential.DefaultMaxIndexed)
	src.Indexed = append(src.Indexed, v.GetStringSlice("tokens")...)
	cfg.Tokens = credential.Load(src)

	loc, err := time.LoadLocation(cfg.Normalize.Timezone)
	if err != nil {
		return nil, fmt.Errorf("normalize.timezone: %w", err)
	}
	cfg.Normalize.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded values are usable.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Limiter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("limiter: %w", err))
	}
	if c.Pool.Cooldown <= 0 {
		errs = append(errs, errors.New("pool.cooldown must be > 0"))
	}
	if c.Pool.MaxFailures <= 0 {
		errs = append(errs, errors.New("pool.max_failures must be > 0"))
	}
	if c.Gateway.RetryDelay < 0 {
		errs = append(errs, errors.New("gateway.retry_delay must be >= 0"))
	}
	if c.Cache.Enabled && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("redis.addr is required when the cache is enabled"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must be >= 0"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be >= 1 when server.rate_limit is set"))
	}
	return errors.Join(errs...)
}
