package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

func TestInsertOrder_UniquePerSummary(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()
	th := seedThread(t, db)

	mk := func(number string) *domain.Order {
		id := uuid.NewString()
		return &domain.Order{
			ID: id, TenantID: th.TenantID, ThreadID: th.ID, CustomerID: th.CustomerID,
			SummaryHash: "h1", OrderNumber: number, Status: domain.OrderStatusDraft,
			Channel: domain.ChannelSMS, FulfillmentType: domain.FulfillmentPickup,
			Subtotal: 89, Total: 89, Currency: "DKK", CreatedAt: time.Now().UTC(),
			Items: []domain.OrderItem{{ID: uuid.NewString(), OrderID: id, MenuItemID: "p1", Name: "Margherita Pizza", Quantity: 1, UnitPrice: 89, TotalPrice: 89}},
		}
	}
	if err := InsertOrder(ctx, db, mk("ORD-1")); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if err := InsertOrder(ctx, db, mk("ORD-2")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate for same summary, got %v", err)
	}

	got, err := FindOrderBySummary(ctx, db, th.ID, "h1")
	if err != nil || got.OrderNumber != "ORD-1" || len(got.Items) != 1 {
		t.Fatalf("FindOrderBySummary = %+v, %v", got, err)
	}
	if _, err := FindOrderBySummary(ctx, db, th.ID, "other"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if n, _ := CountOrders(ctx, db, th.ID); n != 1 {
		t.Fatalf("CountOrders = %d; want 1", n)
	}
}

func TestReplaceMenu(t *testing.T) {
	db := newTestDB(t, true)
	ctx := context.Background()

	items := []domain.MenuItem{
		{ID: "p1", Name: "Margherita Pizza", Price: 89, Category: "pizza", Available: true, Synonyms: []string{"margherita"}},
		{ID: "p4", Name: "Cola", Price: 30, Category: "drinks", Available: true},
		{ID: "x9", Name: "Sold out", Price: 10, Category: "drinks", Available: false},
	}
	if err := ReplaceMenu(ctx, db, "t1", items); err != nil {
		t.Fatalf("ReplaceMenu: %v", err)
	}
	got, err := ListMenu(ctx, db, "t1")
	if err != nil || len(got) != 2 {
		t.Fatalf("ListMenu = %+v, %v", got, err)
	}
	if got[0].Name != "Cola" || got[1].Synonyms[0] != "margherita" {
		t.Fatalf("unexpected order or synonyms: %+v", got)
	}

	if err := ReplaceMenu(ctx, db, "t1", items[:1]); err != nil {
		t.Fatalf("ReplaceMenu again: %v", err)
	}
	got, _ = ListMenu(ctx, db, "t1")
	if len(got) != 1 || got[0].ID != "p1" {
		t.Fatalf("menu not replaced: %+v", got)
	}

	dup := []domain.MenuItem{{ID: "a", Name: "A", Available: true}, {ID: "a", Name: "B", Available: true}}
	if err := ReplaceMenu(ctx, db, "t1", dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("want ErrDuplicate, got %v", err)
	}
	got, _ = ListMenu(ctx, db, "t1")
	if len(got) != 1 {
		t.Fatalf("failed replace must roll back, got %+v", got)
	}
}
