// Package handlers implements the HTTP endpoints: provider webhooks that
// feed the conversation pipeline, and the admin API used to register
// tenants, load menus and work the escalation inbox.
//
// Handlers are transport-thin. They bind and validate input, call a service
// through a narrow interface and translate the result. Webhook handlers
// always answer 200 with a status body; only the admin API uses HTTP error
// statuses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/orderflow-agent/internal/channel"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/services"
	"github.com/tbourn/orderflow-agent/internal/utils"
)

// Ingester stores an inbound message and schedules its reply.
type Ingester interface {
	Ingest(ctx context.Context, msg channel.InboundMessage) (services.IngestResult, error)
}

// TenantService registers restaurants.
type TenantService interface {
	Create(ctx context.Context, in services.TenantInput) (*domain.Tenant, error)
	Get(ctx context.Context, id string) (*domain.Tenant, error)
}

// CatalogService replaces tenant menus.
type CatalogService interface {
	Replace(ctx context.Context, tenantID string, feed services.MenuFeed) (int, error)
}

// ThreadService backs the staff inbox.
type ThreadService interface {
	Inbox(ctx context.Context, tenantID string, attentionOnly bool, page, pageSize int) ([]domain.Thread, services.Page, error)
	Messages(ctx context.Context, threadID string, page, pageSize int) ([]domain.ThreadMessage, services.Page, error)
	Get(ctx context.Context, id string) (*domain.Thread, error)
	Resolve(ctx context.Context, id string) (*domain.Thread, error)
	Close(ctx context.Context, id string) error
}

// Limiter throttles webhook traffic per sender.
type Limiter interface {
	Allow(key string) bool
}

// IdempotencyStore remembers which resource an Idempotency-Key produced.
type IdempotencyStore interface {
	Remember(ctx context.Context, scope, key, resourceID string) error
}

// Options carries webhook settings.
type Options struct {
	// Parser decodes SMS gateway payloads.
	Parser channel.Parser
	// MetaVerifyToken answers Meta's subscription handshake.
	MetaVerifyToken string
	// MetaAppSecret enables X-Hub-Signature-256 checks when set.
	MetaAppSecret string
	// IngestTimeout bounds the synchronous part of a webhook (default 10s).
	IngestTimeout time.Duration
}

// Handlers groups all endpoints. Any service may be nil when its routes
// are not mounted.
type Handlers struct {
	ingest  Ingester
	tenants TenantService
	menus   CatalogService
	threads ThreadService
	limiter Limiter
	idem    IdempotencyStore
	opts    Options
}

// New wires the handlers.
func New(ingest Ingester, tenants TenantService, menus CatalogService, threads ThreadService, opts Options) *Handlers {
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 10 * time.Second
	}
	return &Handlers{ingest: ingest, tenants: tenants, menus: menus, threads: threads, opts: opts}
}

// WithLimiter sets the per-sender webhook limiter.
func (h *Handlers) WithLimiter(l Limiter) *Handlers {
	h.limiter = l
	return h
}

// WithIdempotency sets the store used to record admin writes.
func (h *Handlers) WithIdempotency(s IdempotencyStore) *Handlers {
	h.idem = s
	return h
}

// pagination reads page and page_size; the service clamps them.
func pagination(c *gin.Context) (page, pageSize int) {
	return utils.AtoiDefault(c.Query("page"), 1), utils.AtoiDefault(c.Query("page_size"), 20)
}
