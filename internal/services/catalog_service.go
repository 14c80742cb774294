// Package services – CatalogService
//
// CatalogService owns tenant menus: it validates catalog feeds, replaces the
// stored menu, and serves compiled menu.Catalog values to the conversation
// worker from a short-lived cache. Concurrent cache misses for the same
// tenant share one load.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/menu"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

// MenuItemInput is one entry of a catalog feed.
type MenuItemInput struct {
	ID        string   `json:"id"        validate:"required,max=64"`
	Name      string   `json:"name"      validate:"required,max=255"`
	Price     float64  `json:"price"     validate:"gte=0"`
	Category  string   `json:"category"  validate:"max=64"`
	// Allergens are quoted back verbatim when a customer asks about a dish.
	Allergens []string `json:"allergens" validate:"dive,required,max=64"`
	Synonyms  []string `json:"synonyms"  validate:"dive,required,max=128"`
	// Available defaults to true when omitted.
	Available *bool `json:"available"`
}

// MenuFeed replaces a tenant's whole catalog.
type MenuFeed struct {
	Items []MenuItemInput `json:"items" validate:"required,min=1,max=2000,unique=ID,dive"`
}

// TenantMenu is a tenant together with its compiled catalog.
type TenantMenu struct {
	Tenant  domain.Tenant
	Catalog *menu.Catalog
}

type cachedMenu struct {
	tm  *TenantMenu
	exp time.Time
}

// CatalogService validates, stores and caches tenant menus.
type CatalogService struct {
	DB *gorm.DB
	// TTL bounds how long a compiled catalog is reused. Zero disables caching.
	TTL time.Duration
	// MinSimilarity is passed to the matcher; zero keeps its default.
	MinSimilarity float64

	validate *validator.Validate
	group    singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedMenu
	now   func() time.Time
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(db *gorm.DB, ttl time.Duration) *CatalogService {
	return &CatalogService{
		DB:       db,
		TTL:      ttl,
		validate: validator.New(),
		cache:    map[string]cachedMenu{},
		now:      time.Now,
	}
}

// Replace validates feed and swaps the tenant's stored menu for it.
func (s *CatalogService) Replace(ctx context.Context, tenantID string, feed MenuFeed) (int, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Replace",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.Int("menu.items", len(feed.Items)),
		),
	)
	defer span.End()

	if err := s.validate.Struct(feed); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMenu, describeValidation(err))
	}
	if _, err := repo.GetTenant(ctx, s.DB, tenantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, ErrTenantNotFound
		}
		return 0, err
	}

	rows := make([]domain.MenuItem, 0, len(feed.Items))
	for _, in := range feed.Items {
		avail := true
		if in.Available != nil {
			avail = *in.Available
		}
		rows = append(rows, domain.MenuItem{
			ID:        strings.TrimSpace(in.ID),
			Name:      strings.TrimSpace(in.Name),
			Price:     in.Price,
			Category:  strings.TrimSpace(in.Category),
			Allergens: in.Allergens,
			Synonyms:  in.Synonyms,
			Available: avail,
		})
	}
	if err := repo.ReplaceMenu(ctx, s.DB, tenantID, rows); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return 0, fmt.Errorf("%w: duplicate item id", ErrInvalidMenu)
		}
		return 0, err
	}
	s.Invalidate(tenantID)
	return len(rows), nil
}

// Load returns the tenant and its compiled catalog, from cache when fresh.
func (s *CatalogService) Load(ctx context.Context, tenantID string) (*TenantMenu, error) {
	if tm, ok := s.cached(tenantID); ok {
		return tm, nil
	}
	v, err, _ := s.group.Do(tenantID, func() (any, error) {
		tm, err := s.load(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if s.TTL > 0 {
			s.mu.Lock()
			s.cache[tenantID] = cachedMenu{tm: tm, exp: s.now().Add(s.TTL)}
			s.mu.Unlock()
		}
		return tm, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TenantMenu), nil
}

// Invalidate drops the cached catalog of a tenant.
func (s *CatalogService) Invalidate(tenantID string) {
	s.mu.Lock()
	delete(s.cache, tenantID)
	s.mu.Unlock()
	s.group.Forget(tenantID)
}

func (s *CatalogService) cached(tenantID string) (*TenantMenu, bool) {
	if s.TTL <= 0 {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[tenantID]
	if !ok || s.now().After(e.exp) {
		return nil, false
	}
	return e.tm, true
}

func (s *CatalogService) load(ctx context.Context, tenantID string) (*TenantMenu, error) {
	tr := otel.Tracer("services/CatalogService")
	ctx, span := tr.Start(ctx, "Load", trace.WithAttributes(attribute.String("tenant.id", tenantID)))
	defer span.End()

	t, err := repo.GetTenant(ctx, s.DB, tenantID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, err
	}
	rows, err := repo.ListMenu(ctx, s.DB, tenantID)
	if err != nil {
		return nil, err
	}
	var opts []menu.Option
	if s.MinSimilarity > 0 {
		opts = append(opts, menu.WithMinSimilarity(s.MinSimilarity))
	}
	return &TenantMenu{Tenant: *t, Catalog: menu.FromDomain(rows, opts...)}, nil
}

// describeValidation renders validator errors as "field:tag" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Namespace()+":"+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
