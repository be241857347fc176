// Package httpapi wires the HTTP transport (Gin) to the storefront services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, session identity, logging/redaction, panic
// recovery, compression, metrics, CORS, security headers, idempotency, and
// rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → Session → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/talesofaneria/storefront/internal/config"
	"github.com/talesofaneria/storefront/internal/http/handlers"
	"github.com/talesofaneria/storefront/internal/http/middleware"
	"github.com/talesofaneria/storefront/internal/repo"
)

// catalogMaxAge bounds how long browsers and CDNs may reuse catalog reads.
// It is well below the upstream cache TTLs.
const catalogMaxAge = 5 * time.Minute

// Services bundles the application services exposed over HTTP.
type Services struct {
	Cart    handlers.CartService
	Catalog handlers.CatalogService
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health, metrics and docs endpoints, and
// then mounts the versioned public API under /api/v*.
//
// db stores idempotency records; it may be nil, in which case Idempotency-Key
// headers are validated but not remembered.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Session: resolve X-Session-ID (issued when absent)
//  4. RedactingLogger (or Logger): structured logs
//  5. Recovery: capture panics after logger
//  6. Body size limiter
//  7. Gzip (not for /metrics or the SSE stream)
//  8. Metrics
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per session/IP, bypass on replay)
//  11. CORS, security headers and cache policy
func RegisterRoutes(r *gin.Engine, db *gorm.DB, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath // e.g. "/api/v1"

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Session identity for carts, analytics and rate limiting
	r.Use(middleware.Session())

	// 4) Structured logging, with redaction unless disabled
	if cfg.LogRedact {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderIdempotencyKey},
		}))
	} else {
		r.Use(middleware.Logger())
	}

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 7) Response compression; event streams must be flushed uncompressed
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/metrics",
		joinPath(apiBase, "/cart/events"),
	})))

	// 8) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics(middleware.MetricsOptions{
		StreamRoutes: []string{joinPath(apiBase, "/cart/events")},
		SkipPaths:    []string{"/metrics"},
	}))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 9) Idempotency validation (before rate limiting)
	var (
		lookup middleware.IdempotencyLookup
		claim  handlers.IdempotencyClaimer
	)
	if db != nil {
		keys := repo.NewIdempotencyKeys(db, cfg.IdempotencyTTL)
		lookup, claim = keys.Seen, keys.Claim
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}, lookup))

	// 10) Token-bucket rate limiter per session/IP
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:    cfg.RateRPS,
		Burst:  cfg.RateBurst,
		Key:    middleware.KeyBySessionOrIP(),
		Exempt: []string{"/health", "/metrics", joinPath(apiBase, "/cart/events")},
	})
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "If-None-Match",
		middleware.HeaderSessionID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag",
		middleware.HeaderSessionID, middleware.HeaderIdempotentReplay}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers and cache policy: session data private, catalogs public
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:      cfg.Security.EnableHSTS,
		HSTSMaxAge:      cfg.Security.HSTSMaxAge,
		EnablePolicy:    true,
		PrivatePrefixes: []string{joinPath(apiBase, "/cart"), joinPath(apiBase, "/analytics")},
		PublicPrefixes:  []string{joinPath(apiBase, "/shop"), joinPath(apiBase, "/videos")},
		PublicMaxAge:    catalogMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc.Cart, svc.Catalog, claim)
	h.MaxQuantity = cfg.Cart.MaxQuantity

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Cart
		api.GET("/cart", h.GetCart)
		api.DELETE("/cart", h.ClearCart)
		api.POST("/cart/items", h.AddItem)
		api.PATCH("/cart/items/:id", h.UpdateItem)
		api.DELETE("/cart/items/:id", h.RemoveItem)
		api.GET("/cart/validation", h.ValidateCart)
		api.GET("/cart/events", h.CartEvents)

		// Shop
		api.GET("/shop/etsy", h.EtsyListings)
		api.GET("/shop/printful", h.PrintfulProducts)
		api.GET("/shop/search", h.SearchProducts)

		// Videos
		api.GET("/videos", h.PlaylistVideos)
		api.GET("/videos/:playlistId", h.PlaylistVideos)

		// Analytics
		api.POST("/analytics/events", h.TrackEvent)
		api.GET("/analytics", h.AnalyticsSnapshot)
		api.DELETE("/analytics", h.ResetAnalytics)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

// joinPath appends p to the API base, treating "/" (or empty) as root.
func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
