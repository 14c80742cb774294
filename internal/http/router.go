// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Two surfaces share the engine:
//   - provider webhooks, which always answer 200 and are limited per sender
//   - the admin API (tenants, menus, staff inbox), limited per client IP
package httpapi

import (
	"context"
	"errors"
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

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/config"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/http/handlers"
	"github.com/tbourn/orderflow-agent/internal/http/middleware"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/repo"
	"github.com/tbourn/orderflow-agent/internal/services"
)

// threadRepoShim adapts the repository free functions to services.ThreadRepo.
type threadRepoShim struct{}

func (threadRepoShim) GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error) {
	return repo.GetThread(ctx, db, id)
}

func (threadRepoShim) CountThreads(ctx context.Context, db *gorm.DB, f repo.ThreadFilter) (int64, error) {
	return repo.CountThreads(ctx, db, f)
}

func (threadRepoShim) ListThreadsPage(ctx context.Context, db *gorm.DB, f repo.ThreadFilter, offset, limit int) ([]domain.Thread, error) {
	return repo.ListThreadsPage(ctx, db, f, offset, limit)
}

func (threadRepoShim) ResolveAttention(ctx context.Context, db *gorm.DB, id string) error {
	return repo.ResolveAttention(ctx, db, id)
}

func (threadRepoShim) SetDraftRequiresHuman(ctx context.Context, db *gorm.DB, threadID string, v bool) error {
	return repo.SetDraftRequiresHuman(ctx, db, threadID, v)
}

func (threadRepoShim) CloseThread(ctx context.Context, db *gorm.DB, id string) error {
	return repo.CloseThread(ctx, db, id)
}

func (threadRepoShim) CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	return repo.CountMessages(ctx, db, threadID)
}

func (threadRepoShim) ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.ThreadMessage, error) {
	return repo.ListMessagesPage(ctx, db, threadID, offset, limit)
}

// ledgerIdempotency stores admin Idempotency-Keys in their own append-only
// table; a key reused after ttl gets a fresh row.
type ledgerIdempotency struct {
	db  *gorm.DB
	ttl time.Duration
}

func (l ledgerIdempotency) Remember(ctx context.Context, scope, key, resourceID string) error {
	_, err := repo.RememberIdempotencyKey(ctx, l.db, scope, key, resourceID, time.Now())
	return err
}

func (l ledgerIdempotency) Lookup(ctx context.Context, scope, key string, now time.Time) (string, error) {
	rec, err := repo.LookupIdempotencyKey(ctx, l.db, scope, key, now.Add(-l.ttl))
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.ResourceID, nil
}

// Deps are the long-lived components built by main.
type Deps struct {
	DB *gorm.DB
	// Ingest is the synchronous webhook pipeline.
	Ingest handlers.Ingester
	// Catalogs is shared with the conversation service so menu
	// replacements invalidate its cache.
	Catalogs *services.CatalogService
	Events   notify.Publisher
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with sender and body scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Compression, CORS and security headers
//
// Admin routes additionally run Idempotency before the per-IP limiter so
// replays bypass it.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-Api-Key"},
	}))
	r.Use(middleware.Recovery())

	// Provider payloads are small; 1 MiB leaves room for Meta batches.
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{
		"/metrics",
		joinPath(apiBase, "/webhooks"),
	})))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{middleware.HeaderRequestID, "ETag", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header, so health checks see it too.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	catalogs := deps.Catalogs
	if catalogs == nil {
		catalogs = services.NewCatalogService(deps.DB, cfg.Agent.CatalogCacheTTL)
	}
	tenants := services.NewTenantService(deps.DB)
	threads := services.NewThreadService(deps.DB, threadRepoShim{}, deps.Events)
	idem := ledgerIdempotency{db: deps.DB, ttl: cfg.IdempotencyTTL}

	h := handlers.New(deps.Ingest, tenants, catalogs, threads, handlers.Options{
		Parser:          channel.Parser{CountryCode: cfg.Agent.CountryCode},
		MetaVerifyToken: cfg.Channels.MetaVerifyToken,
		MetaAppSecret:   cfg.Channels.MetaAppSecret,
	}).
		WithLimiter(middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)).
		WithIdempotency(idem)

	api := groupWithPrefix(r, apiBase)

	// Webhooks: 200 for every outcome, limited per sender inside the handler.
	hooks := api.Group("/webhooks")
	{
		hooks.POST("/sms", h.SMSWebhook)
		hooks.GET("/meta", h.MetaVerify)
		hooks.POST("/meta", h.MetaWebhook)
	}

	adminRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	admin := api.Group("")
	admin.Use(
		middleware.Idempotency(middleware.IdempotencyOptions{MaxLen: 200}, idem.Lookup),
		adminRL.Handler(middleware.KeyByIP()),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		admin.POST("/tenants", h.CreateTenant)
		admin.PUT("/tenants/:id/menu", h.ReplaceMenu)

		admin.GET("/threads", h.ListThreads)
		admin.GET("/threads/:id/messages", h.ListMessages)
		admin.POST("/threads/:id/resolve", h.ResolveThread)
		admin.POST("/threads/:id/close", h.CloseThread)
	}
}

// limitBody caps the request body size to maxBytes using
// http.MaxBytesReader. Oversized bodies make downstream reads fail.
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

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
