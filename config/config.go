package config

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	App   AppConfig
	Cache CacheConfig
	HTTP  HTTPConfig
}

// AppConfig identifies the bot application to the platform.
type AppConfig struct {
	ID      string `env:"FEISHU_APP_ID, required"`
	Secret  string `env:"FEISHU_APP_SECRET, required"`
	BaseURL string `env:"FEISHU_BASE_URL, default=https://open.feishu.cn/open-apis"`
}

// CacheConfig specifies the TTLs and sizes of the client's caches. The
// token TTL should stay below the platform's advertised token lifetime
// so the client refreshes before the platform rejects.
type CacheConfig struct {
	TokenTTLSeconds int `env:"FEISHU_TOKEN_TTL_SECS, default=3600"`
	GroupTTLSeconds int `env:"FEISHU_GROUP_TTL_SECS, default=300"`
	UserTTLSeconds  int `env:"FEISHU_USER_TTL_SECS, default=86400"`
	UserCacheSize   int `env:"FEISHU_USER_CACHE_SIZE, default=32"`
}

// HTTPConfig tunes the outgoing HTTP transport.
type HTTPConfig struct {
	MaxIdleConns    int `env:"FEISHU_HTTP_MAX_IDLE_CONNS, default=100"`
	MaxConnsPerHost int `env:"FEISHU_HTTP_MAX_CONNS_PER_HOST, default=20"`
	TimeoutSeconds  int `env:"FEISHU_HTTP_TIMEOUT_SECS, default=30"`

	// TraceEnabled wraps the outgoing transport with OpenTelemetry
	// HTTP instrumentation.
	TraceEnabled bool `env:"FEISHU_HTTP_TRACE_ENABLED, default=false"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	err = cfg.Validate()
	if err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks cross-field configuration rules.
func (c *Config) Validate() error {
	if c.App.BaseURL != "" {
		u, err := url.Parse(c.App.BaseURL)
		if err != nil {
			return fmt.Errorf("FEISHU_BASE_URL is not a valid URL: %w", err)
		}
		if !u.IsAbs() {
			return fmt.Errorf("FEISHU_BASE_URL must be absolute: %s", c.App.BaseURL)
		}
	}

	if c.Cache.TokenTTLSeconds < 0 {
		return fmt.Errorf("FEISHU_TOKEN_TTL_SECS must not be negative")
	}
	if c.Cache.GroupTTLSeconds < 0 {
		return fmt.Errorf("FEISHU_GROUP_TTL_SECS must not be negative")
	}
	if c.Cache.UserTTLSeconds < 0 {
		return fmt.Errorf("FEISHU_USER_TTL_SECS must not be negative")
	}
	if c.Cache.UserCacheSize < 0 {
		return fmt.Errorf("FEISHU_USER_CACHE_SIZE must not be negative")
	}

	return nil
}
