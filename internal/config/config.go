// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, cart persistence, the catalog upstreams and
// their cache, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "aneria-storefront")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CartConfig defines cart persistence and cross-replica propagation.
type CartConfig struct {
	Store          string        // CART_STORE: sqlite|memory
	EventsBackend  string        // CART_EVENTS_BACKEND: local|redis
	SettleDelay    time.Duration // CART_SETTLE_DELAY
	SessionIdleTTL time.Duration // CART_SESSION_IDLE_TTL (0 disables eviction)
	MaxQuantity    int           // CART_MAX_QUANTITY
}

// CacheConfig defines where fetched catalogs are cached.
type CacheConfig struct {
	Backend string // CACHE_BACKEND: file|sqlite|redis
	Dir     string // CACHE_DIR (file backend)
}

// RedisConfig defines the Redis connection shared by the redis backends.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// EtsyConfig defines the Etsy upstream.
type EtsyConfig struct {
	APIKey   string        // ETSY_API_KEY (empty disables the upstream)
	ShopID   string        // ETSY_SHOP_ID
	BaseURL  string        // ETSY_BASE_URL
	CacheTTL time.Duration // ETSY_CACHE_TTL
}

// PrintfulConfig defines the Printful upstream.
type PrintfulConfig struct {
	Token          string        // PRINTFUL_API_TOKEN (empty disables the upstream)
	StoreID        string        // PRINTFUL_STORE_ID
	BaseURL        string        // PRINTFUL_BASE_URL
	ProductURLBase string        // PRINTFUL_PRODUCT_URL_BASE
	CacheTTL       time.Duration // PRINTFUL_CACHE_TTL
}

// YouTubeConfig defines the YouTube upstream.
type YouTubeConfig struct {
	APIKey     string        // YOUTUBE_API_KEY (empty disables the upstream)
	PlaylistID string        // YOUTUBE_PLAYLIST_ID
	BaseURL    string        // YOUTUBE_BASE_URL
	CacheTTL   time.Duration // YOUTUBE_CACHE_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath          string        // SQLite path
	Locale          string        // STOREFRONT_LOCALE, BCP 47 tag for price display
	UpstreamTimeout time.Duration // per-request timeout for catalog upstreams
	LogRedact       bool          // scrub PII from access logs

	// Storefront
	Cart     CartConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Etsy     EtsyConfig
	Printful PrintfulConfig
	YouTube  YouTubeConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:          getenv("DB_PATH", "storefront.db"),
		Locale:          getenv("STOREFRONT_LOCALE", "en-US"),
		UpstreamTimeout: getdur("UPSTREAM_TIMEOUT", 10*time.Second),
		LogRedact:       getbool("LOG_REDACT", true),

		// Storefront
		Cart: CartConfig{
			Store:          strings.ToLower(getenv("CART_STORE", "sqlite")),
			EventsBackend:  strings.ToLower(getenv("CART_EVENTS_BACKEND", "local")),
			SettleDelay:    getdur("CART_SETTLE_DELAY", 100*time.Millisecond),
			SessionIdleTTL: getdur("CART_SESSION_IDLE_TTL", 30*time.Minute),
			MaxQuantity:    getint("CART_MAX_QUANTITY", 10),
		},
		Cache: CacheConfig{
			Backend: strings.ToLower(getenv("CACHE_BACKEND", "file")),
			Dir:     getenv("CACHE_DIR", "cache"),
		},
		Redis: RedisConfig{
			Addr:     getenv("REDIS_ADDR", "localhost:6379"),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getint("REDIS_DB", 0),
		},
		Etsy: EtsyConfig{
			APIKey:   getenv("ETSY_API_KEY", ""),
			ShopID:   getenv("ETSY_SHOP_ID", ""),
			BaseURL:  getenv("ETSY_BASE_URL", "https://openapi.etsy.com"),
			CacheTTL: getdur("ETSY_CACHE_TTL", time.Hour),
		},
		Printful: PrintfulConfig{
			Token:          getenv("PRINTFUL_API_TOKEN", ""),
			StoreID:        getenv("PRINTFUL_STORE_ID", ""),
			BaseURL:        getenv("PRINTFUL_BASE_URL", "https://api.printful.com"),
			ProductURLBase: getenv("PRINTFUL_PRODUCT_URL_BASE", "https://talesofaneria.com/shop/product"),
			CacheTTL:       getdur("PRINTFUL_CACHE_TTL", time.Hour),
		},
		YouTube: YouTubeConfig{
			APIKey:     getenv("YOUTUBE_API_KEY", ""),
			PlaylistID: getenv("YOUTUBE_PLAYLIST_ID", ""),
			BaseURL:    getenv("YOUTUBE_BASE_URL", ""),
			CacheTTL:   getdur("YOUTUBE_CACHE_TTL", 6*time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "aneria-storefront"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	if !oneOf(c.GinMode, "debug", "release", "test") {
		c.GinMode = "release"
	}
}

// validate reports every invalid setting at once, joined.
func (c Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	// server
	check(oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	if _, err := language.Parse(c.Locale); err != nil {
		errs = append(errs, fmt.Errorf("STOREFRONT_LOCALE: %w", err))
	}
	check(c.UpstreamTimeout > 0, "UPSTREAM_TIMEOUT must be > 0")

	// cart and catalog cache
	check(oneOf(c.Cart.Store, "sqlite", "memory"), "CART_STORE must be one of: sqlite, memory")
	check(oneOf(c.Cart.EventsBackend, "local", "redis"), "CART_EVENTS_BACKEND must be one of: local, redis")
	check(c.Cart.SettleDelay >= 0 && c.Cart.SessionIdleTTL >= 0,
		"CART_SETTLE_DELAY and CART_SESSION_IDLE_TTL must be >= 0")
	check(c.Cart.MaxQuantity >= 1, "CART_MAX_QUANTITY must be >= 1")
	check(oneOf(c.Cache.Backend, "file", "sqlite", "redis"), "CACHE_BACKEND must be one of: file, sqlite, redis")
	check(c.Cache.Backend != "file" || strings.TrimSpace(c.Cache.Dir) != "", "CACHE_DIR must not be empty")
	check(c.Etsy.CacheTTL > 0 && c.Printful.CacheTTL > 0 && c.YouTube.CacheTTL > 0,
		"cache TTLs must be positive durations")

	// protection and observability
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.Cart.EventsBackend == "redis" || c.Cache.Backend == "redis"
}

// LocaleTag returns the parsed storefront locale, falling back to en-US.
func (c Config) LocaleTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.AmericanEnglish
	}
	return tag
}

// ---- env helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
