// Package services – ThreadService
//
// ThreadService backs the staff inbox: paginated thread listings (optionally
// only those waiting for a human), conversation history, resolving an
// escalation and closing a thread. Resolving clears both the thread flag
// and the draft's handoff flag, so the agent answers the customer again.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/notify"
	"github.com/tbourn/orderflow-agent/internal/repo"
	"github.com/tbourn/orderflow-agent/internal/utils"
)

// ThreadRepo defines the repository contract required by ThreadService.
type ThreadRepo interface {
	// GetThread fetches a thread by id.
	GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error)

	// CountThreads returns the number of threads matching f.
	CountThreads(ctx context.Context, db *gorm.DB, f repo.ThreadFilter) (int64, error)

	// ListThreadsPage returns a page of threads matching f.
	ListThreadsPage(ctx context.Context, db *gorm.DB, f repo.ThreadFilter, offset, limit int) ([]domain.Thread, error)

	// ResolveAttention clears the thread's requires_attention flag.
	ResolveAttention(ctx context.Context, db *gorm.DB, id string) error

	// SetDraftRequiresHuman sets or clears the draft's handoff flag.
	SetDraftRequiresHuman(ctx context.Context, db *gorm.DB, threadID string, v bool) error

	// CloseThread marks the thread closed.
	CloseThread(ctx context.Context, db *gorm.DB, id string) error

	// CountMessages returns the number of messages in a thread.
	CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error)

	// ListMessagesPage returns a page of a thread's messages.
	ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.ThreadMessage, error)
}

// Page describes a slice of a listing.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// ThreadService provides the staff inbox operations.
type ThreadService struct {
	DB     *gorm.DB
	Repo   ThreadRepo
	Events notify.Publisher

	// MaxPageSize caps page_size.
	MaxPageSize int
}

// NewThreadService constructs a ThreadService.
func NewThreadService(db *gorm.DB, r ThreadRepo, events notify.Publisher) *ThreadService {
	if events == nil {
		events = notify.Nop{}
	}
	return &ThreadService{DB: db, Repo: r, Events: events, MaxPageSize: 100}
}

// Inbox lists threads most recently active first. attentionOnly restricts
// the listing to threads waiting for a human.
func (s *ThreadService) Inbox(ctx context.Context, tenantID string, attentionOnly bool, page, pageSize int) ([]domain.Thread, Page, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "Inbox",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Bool("attention_only", attentionOnly),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = s.clamp(page, pageSize)
	f := repo.ThreadFilter{TenantID: tenantID, AttentionOnly: attentionOnly}
	total, err := s.Repo.CountThreads(ctx, s.DB, f)
	if err != nil {
		return nil, Page{}, err
	}
	items, err := s.Repo.ListThreadsPage(ctx, s.DB, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return items, makePage(page, pageSize, total), nil
}

// Messages returns a page of a thread's history in conversation order.
func (s *ThreadService) Messages(ctx context.Context, threadID string, page, pageSize int) ([]domain.ThreadMessage, Page, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "Messages",
		trace.WithAttributes(
			attribute.String("thread.id", threadID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := s.Get(ctx, threadID); err != nil {
		return nil, Page{}, err
	}
	page, pageSize = s.clamp(page, pageSize)
	total, err := s.Repo.CountMessages(ctx, s.DB, threadID)
	if err != nil {
		return nil, Page{}, err
	}
	items, err := s.Repo.ListMessagesPage(ctx, s.DB, threadID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, Page{}, err
	}
	return items, makePage(page, pageSize, total), nil
}

// Get returns a thread or ErrThreadNotFound.
func (s *ThreadService) Get(ctx context.Context, id string) (*domain.Thread, error) {
	th, err := s.Repo.GetThread(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrThreadNotFound
	}
	return th, err
}

// Resolve hands the thread back to the agent.
func (s *ThreadService) Resolve(ctx context.Context, id string) (*domain.Thread, error) {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "Resolve", trace.WithAttributes(attribute.String("thread.id", id)))
	defer span.End()

	th, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.ResolveAttention(ctx, s.DB, id); err != nil {
		return nil, err
	}
	if err := s.Repo.SetDraftRequiresHuman(ctx, s.DB, id, false); err != nil {
		return nil, err
	}
	th.RequiresAttention = false

	if err := s.Events.Publish(ctx, notify.Event{
		Type:     notify.EventResolved,
		TenantID: th.TenantID,
		ThreadID: th.ID,
		Channel:  th.Channel,
		At:       time.Now().UTC(),
	}); err != nil {
		log.Warn().Err(err).Str("thread_id", id).Msg("publish resolved event")
	}
	return th, nil
}

// Close ends the thread; the customer's next message opens a new one.
func (s *ThreadService) Close(ctx context.Context, id string) error {
	tr := otel.Tracer("services/ThreadService")
	ctx, span := tr.Start(ctx, "Close", trace.WithAttributes(attribute.String("thread.id", id)))
	defer span.End()

	err := s.Repo.CloseThread(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrThreadNotFound
	}
	return err
}

func (s *ThreadService) clamp(page, pageSize int) (int, int) {
	max := s.MaxPageSize
	if max <= 0 {
		max = 100
	}
	return utils.ClampPage(page, pageSize, 20, max)
}

func makePage(page, pageSize int, total int64) Page {
	pages := 0
	if total > 0 {
		pages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Page{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}
}
