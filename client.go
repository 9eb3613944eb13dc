// Package feishubot is a client for the Feishu (Lark) bot HTTP API. It
// authenticates with the tenant access token endpoint, caches the
// short-lived credential, discovers the group chats the bot belongs to,
// and sends text, image, rich post and interactive card messages to
// them.
//
// All platform requests flow through a single authenticated pipeline
// that attaches the bearer token, decodes the uniform {code, msg, data}
// envelope, and transparently refreshes the credential when the
// platform rejects it.
package feishubot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/feishubot/feishubot/config"
	"github.com/feishubot/feishubot/internal/cache"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the production API root used when no base URL is
// configured.
const DefaultBaseURL = "https://open.feishu.cn/open-apis"

const (
	defaultTokenTTL      = time.Hour
	defaultGroupTTL      = 5 * time.Minute
	defaultUserTTL       = 24 * time.Hour
	defaultUserCacheSize = 32
)

const (
	// requestAttempts caps the credential-refresh retry loop: the
	// initial attempt plus two retries.
	requestAttempts = 3
	retryDelay      = time.Second
)

// Client is a Feishu bot API client. A Client owns its own credential
// cache: tokens are never shared between instances. Methods are safe
// for concurrent use.
type Client struct {
	appID     string
	appSecret string
	baseURL   string

	httpClient *http.Client

	credentials cache.Store[string]
	groups      cache.Store[[]Group]
	users       cache.Store[User]

	retryDelay  time.Duration
	maxAttempts uint
}

type clientOptions struct {
	httpClient *http.Client
	tokenTTL   time.Duration
	groupTTL   time.Duration
	userTTL    time.Duration
}

// Option customises client construction beyond what Config expresses.
type Option func(*clientOptions)

// WithHTTPClient replaces the default HTTP client. The caller's client
// is used as-is: transport tuning and instrumentation from the HTTP
// configuration are not applied to it.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithTokenTTL overrides the credential cache TTL with sub-second
// precision. The configuration's second-granularity TTL suffices for
// production use.
func WithTokenTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.tokenTTL = ttl
	}
}

// WithGroupCacheTTL overrides the group list cache TTL.
func WithGroupCacheTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.groupTTL = ttl
	}
}

// WithUserCacheTTL overrides the per-user detail cache TTL.
func WithUserCacheTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.userTTL = ttl
	}
}

// New creates a client for the bot application identified by the
// configuration. Zero cache TTLs select the defaults (token 1h, groups
// 5m, users 1d).
func New(cfg config.Config, opts ...Option) (*Client, error) {
	if cfg.App.ID == "" || cfg.App.Secret == "" {
		return nil, errors.New("app ID and app secret must be configured")
	}

	options := clientOptions{
		tokenTTL: secondsOrDefault(cfg.Cache.TokenTTLSeconds, defaultTokenTTL),
		groupTTL: secondsOrDefault(cfg.Cache.GroupTTLSeconds, defaultGroupTTL),
		userTTL:  secondsOrDefault(cfg.Cache.UserTTLSeconds, defaultUserTTL),
	}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.httpClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.HTTP)
	}

	baseURL := strings.TrimSuffix(cfg.App.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	userCacheSize := cfg.Cache.UserCacheSize
	if userCacheSize == 0 {
		userCacheSize = defaultUserCacheSize
	}

	// single-slot: only one tenant credential exists at a time
	credentials, err := cache.NewMemory[string](options.tokenTTL, 1)
	if err != nil {
		return nil, fmt.Errorf("credential cache configuration failed: %w", err)
	}

	groups, err := cache.NewMemory[[]Group](options.groupTTL, 1)
	if err != nil {
		return nil, fmt.Errorf("group cache configuration failed: %w", err)
	}

	users, err := cache.NewMemory[User](options.userTTL, userCacheSize)
	if err != nil {
		return nil, fmt.Errorf("user cache configuration failed: %w", err)
	}

	return &Client{
		appID:       cfg.App.ID,
		appSecret:   cfg.App.Secret,
		baseURL:     baseURL,
		httpClient:  httpClient,
		credentials: credentials,
		groups:      groups,
		users:       users,
		retryDelay:  retryDelay,
		maxAttempts: requestAttempts,
	}, nil
}

func newHTTPClient(cfg config.HTTPConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.MaxIdleConns > 0 {
		transport.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxConnsPerHost > 0 {
		transport.MaxConnsPerHost = cfg.MaxConnsPerHost
	}

	var rt http.RoundTripper = transport
	if cfg.TraceEnabled {
		rt = otelhttp.NewTransport(rt)
	}

	client := &http.Client{Transport: rt}
	if cfg.TimeoutSeconds > 0 {
		client.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return client
}

func secondsOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
