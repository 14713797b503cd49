// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → Identity → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-timezones-backend/docs"
	"github.com/tbourn/go-timezones-backend/internal/catalog"
	"github.com/tbourn/go-timezones-backend/internal/config"
	"github.com/tbourn/go-timezones-backend/internal/domain"
	"github.com/tbourn/go-timezones-backend/internal/enrichment"
	"github.com/tbourn/go-timezones-backend/internal/http/handlers"
	"github.com/tbourn/go-timezones-backend/internal/http/middleware"
	"github.com/tbourn/go-timezones-backend/internal/repo"
	"github.com/tbourn/go-timezones-backend/internal/services"
)

// HeaderAdminToken authenticates calls to the admin routes.
const HeaderAdminToken = "X-Admin-Token"

// selectionRepoShim adapts the repository free functions to the
// services.SelectionRepo interface expected by the SelectionService.
type selectionRepoShim struct{}

// CreateSelection proxies repo.CreateSelection.
func (selectionRepoShim) CreateSelection(ctx context.Context, db *gorm.DB, userID, zoneID string, isHome bool) (*domain.Selection, error) {
	return repo.CreateSelection(ctx, db, userID, zoneID, isHome)
}

// ListSelections proxies repo.ListSelections.
func (selectionRepoShim) ListSelections(ctx context.Context, db *gorm.DB, userID string) ([]domain.Selection, error) {
	return repo.ListSelections(ctx, db, userID)
}

// GetSelection proxies repo.GetSelection.
func (selectionRepoShim) GetSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) (*domain.Selection, error) {
	return repo.GetSelection(ctx, db, userID, zoneID)
}

// DeleteSelection proxies repo.DeleteSelection.
func (selectionRepoShim) DeleteSelection(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.DeleteSelection(ctx, db, userID, zoneID)
}

// ClearHome proxies repo.ClearHome.
func (selectionRepoShim) ClearHome(ctx context.Context, db *gorm.DB, userID, exceptZoneID string) error {
	return repo.ClearHome(ctx, db, userID, exceptZoneID)
}

// MarkHome proxies repo.MarkHome.
func (selectionRepoShim) MarkHome(ctx context.Context, db *gorm.DB, userID, zoneID string) error {
	return repo.MarkHome(ctx, db, userID, zoneID)
}

// SelectionsStats proxies repo.SelectionsStats (ETag support).
func (selectionRepoShim) SelectionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return repo.SelectionsStats(ctx, db, userID)
}

// DistinctZoneIDs proxies repo.DistinctZoneIDs (prewarm support).
func (selectionRepoShim) DistinctZoneIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	return repo.DistinctZoneIDs(ctx, db)
}

// Deps are the long-lived components the routes are served from.
type Deps struct {
	DB      *gorm.DB
	Catalog *catalog.Provider
	// Weather is the enrichment cache; nil serves views without weather.
	Weather *enrichment.Cache
	// Selections is built from DB when nil.
	Selections *services.SelectionService
}

// NewSelectionService builds the selection store over the GORM repository.
// Newly selected zones are prefetched into weather when it is enabled.
func NewSelectionService(db *gorm.DB, cat *catalog.Provider, weather *enrichment.Cache) *services.SelectionService {
	var pf services.Prefetcher
	if weather.Enabled() {
		pf = weather
	}
	return services.NewSelectionService(db, selectionRepoShim{}, cat, pf)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health, metrics and docs endpoints, and
// then mounts the versioned public API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: resolve the caller before anything keys on it
//  4. Logger: structured logs with PII scrubbing
//  5. Recovery: capture panics after logger
//  6. Body size limiter and gzip
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	db := deps.DB

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2-3) Correlate requests and identify the caller
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())

	// 4) Structured logging with redaction
	r.Use(middleware.Logger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key", HeaderAdminToken},
	}))

	// 5) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 6) Global body size limit (1 MiB), compressed responses
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	metrics := middleware.NewHTTPMetrics(prometheus.DefaultRegisterer)
	r.Use(metrics.Handler())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (*middleware.IdempotencyHit, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return &middleware.IdempotencyHit{Method: rec.Method, Status: rec.Status}, nil
		},
		func(ctx context.Context, userID, scope, key, method string, status int) error {
			_, err := repo.CreateIdempotency(ctx, db, userID, scope, key, method, status, cfg.IdempotencyTTL)
			if errors.Is(err, repo.ErrDuplicate) {
				return nil
			}
			return err
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP(), metrics)
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotentReplay}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
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
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
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
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/catalog/enrichment
	selSvc := deps.Selections
	if selSvc == nil {
		selSvc = NewSelectionService(db, deps.Catalog, deps.Weather)
	}
	var weather services.WeatherCache
	if deps.Weather.Enabled() {
		weather = deps.Weather
	}
	viewSvc := services.NewViewService(selSvc, deps.Catalog, weather, cfg.Weather.Timeout)
	h := handlers.New(selSvc, viewSvc, deps.Catalog)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Catalog
		api.GET("/timezones", h.ListTimeZones)
		api.GET("/timezones/lookup", h.LookupTimeZone)

		// Per-user selections
		me := api.Group("/me", middleware.PrivateRevalidate())
		me.GET("/timezones", h.ListMyTimeZones)
		me.POST("/timezones", h.AddMyTimeZone)
		me.DELETE("/timezones", h.RemoveMyTimeZone)
		me.PUT("/timezones/home", h.SetMyHomeTimeZone)

		// Operator routes exist only when a token is configured
		if cfg.Security.AdminToken != "" {
			admin := api.Group("/admin", requireToken(cfg.Security.AdminToken))
			admin.POST("/catalog/refresh", h.RefreshCatalog)
		}
	}
}

// requireToken rejects requests whose X-Admin-Token does not match token.
func requireToken(token string) gin.HandlerFunc {
	want := []byte(token)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderAdminToken))
		if len(got) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			handlers.Fail(c, http.StatusUnauthorized, handlers.ErrCodeUnauthorized, "admin token required")
			return
		}
		c.Next()
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
