// Package services – OrderService
//
// OrderService turns a confirmed draft into a persisted order. Creation is
// idempotent on (thread, summary hash): confirming the same draft twice, or
// two workers racing on it, yields exactly one order row.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/orderflow-agent/internal/conversation"
	"github.com/tbourn/orderflow-agent/internal/domain"
	"github.com/tbourn/orderflow-agent/internal/repo"
)

// orderNumberAttempts bounds retries on an order number collision.
const orderNumberAttempts = 3

// OrderService materializes orders.
type OrderService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewOrderService constructs an OrderService.
func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{DB: db, Now: time.Now}
}

// CreateOrder persists the order described by d. If the thread already has
// an order for the same summary, that order is returned instead. The order
// and the "order created" system message are written in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, tenantID, threadID, customerID string, d domain.Draft) (*domain.Order, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "CreateOrder",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("thread.id", threadID),
		),
	)
	defer span.End()

	if !materializable(d) {
		return nil, ErrNotMaterializable
	}
	hash := conversation.SummaryHash(d)

	currency := "DKK"
	if t, err := repo.GetTenant(ctx, s.DB, tenantID); err == nil && t.Currency != "" {
		currency = t.Currency
	} else if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		var out *domain.Order
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			existing, err := repo.FindOrderBySummary(ctx, tx, threadID, hash)
			if err == nil {
				out = existing
				return nil
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return err
			}

			o := s.build(tenantID, threadID, customerID, hash, currency, d)
			if err := repo.InsertOrder(ctx, tx, o); err != nil {
				return err
			}
			_, err = repo.AppendMessage(ctx, tx, threadID, repo.NewMessage{
				Direction:  domain.DirectionOutbound,
				SenderType: domain.SenderSystem,
				Content:    orderCreatedText(d.Language, o.OrderNumber),
				Metadata: map[string]any{
					"order_id":     o.ID,
					"order_number": o.OrderNumber,
					"total":        o.Total,
				},
			})
			if err != nil {
				return err
			}
			out = o
			ordersCreated.Inc()
			return nil
		})
		if err == nil {
			span.SetAttributes(attribute.String("order.number", out.OrderNumber))
			return out, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
		// Lost the race on (thread, summary), or the order number collided.
		existing, ferr := repo.FindOrderBySummary(ctx, s.DB, threadID, hash)
		if ferr == nil {
			log.Info().Str("thread_id", threadID).Str("order_number", existing.OrderNumber).Msg("order already materialized")
			return existing, nil
		}
		if !errors.Is(ferr, repo.ErrNotFound) {
			return nil, ferr
		}
	}
	return nil, fmt.Errorf("create order: %w", repo.ErrDuplicate)
}

func (s *OrderService) build(tenantID, threadID, customerID, hash, currency string, d domain.Draft) *domain.Order {
	now := s.now()
	o := &domain.Order{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		ThreadID:        threadID,
		CustomerID:      customerID,
		SummaryHash:     hash,
		OrderNumber:     NewOrderNumber(now),
		Status:          domain.OrderStatusDraft,
		Channel:         d.Channel,
		FulfillmentType: d.Fulfillment,
		Phone:           d.Phone,
		CustomerName:    d.Name,
		Currency:        currency,
		CreatedAt:       now,
	}
	if d.Fulfillment == domain.FulfillmentDelivery {
		o.Address = strings.TrimSpace(d.Address)
	}
	for _, it := range d.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.LineTotal(),
			Modifiers:  it.Modifiers,
		})
		o.Subtotal += it.LineTotal()
	}
	o.Total = o.Subtotal
	return o
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXX with six random hex digits.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}

func orderCreatedText(lang, number string) string {
	if lang == "en" {
		return "Order created: " + number
	}
	return "Ordre oprettet: " + number
}

func materializable(d domain.Draft) bool {
	if len(d.Items) == 0 || d.Phone == "" {
		return false
	}
	switch d.Fulfillment {
	case domain.FulfillmentPickup:
		return true
	case domain.FulfillmentDelivery:
		return strings.TrimSpace(d.Address) != ""
	}
	return false
}
