package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Enforce FKs so cascades actually execute.
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(
		&Tenant{}, &TenantAddress{}, &Customer{}, &Thread{}, &ThreadMessage{},
		&ProcessedMessage{}, &IdempotencyKey{}, &Draft{}, &MenuItem{}, &Order{}, &OrderItem{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(Tenant{}).TableName():           "tenants",
		(TenantAddress{}).TableName():    "tenant_addresses",
		(Customer{}).TableName():         "customers",
		(Thread{}).TableName():           "threads",
		(ThreadMessage{}).TableName():    "thread_messages",
		(ProcessedMessage{}).TableName(): "processed_messages",
		(IdempotencyKey{}).TableName():   "idempotency_keys",
		(Draft{}).TableName():            "drafts",
		(MenuItem{}).TableName():         "menu_items",
		(Order{}).TableName():            "orders",
		(OrderItem{}).TableName():        "order_items",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	checks := []struct {
		model any
		index string
	}{
		{&ProcessedMessage{}, "ux_ledger_channel_ext"},
		{&IdempotencyKey{}, "idx_idem_scope_key"},
		{&TenantAddress{}, "ux_tenant_address"},
		{&Customer{}, "ux_customer_phone"},
		{&Customer{}, "ux_customer_email"},
		{&Thread{}, "ux_thread_open"},
		{&ThreadMessage{}, "idx_thread_msgs"},
		{&Order{}, "ux_order_thread_summary"},
	}
	for _, c := range checks {
		if !m.HasIndex(c.model, c.index) {
			t.Fatalf("expected index %s on %T", c.index, c.model)
		}
	}
}

func seedCustomer(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Create(&Tenant{ID: "t1", Name: "Pizzeria", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert tenant: %v", err)
	}
	if err := db.Create(&Customer{ID: "c1", TenantID: "t1", Phone: "+4512345678", CreatedAt: now}).Error; err != nil {
		t.Fatalf("insert customer: %v", err)
	}
}

func TestThread_OneOpenPerTriple(t *testing.T) {
	db := newDomainDB(t)
	seedCustomer(t, db)
	now := time.Now().UTC()

	open := &Thread{ID: "th1", TenantID: "t1", CustomerID: "c1", Channel: ChannelSMS, Status: ThreadOpen, LastMessageAt: now}
	if err := db.Create(open).Error; err != nil {
		t.Fatalf("insert open thread: %v", err)
	}
	dup := &Thread{ID: "th2", TenantID: "t1", CustomerID: "c1", Channel: ChannelSMS, Status: ThreadOpen, LastMessageAt: now}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected unique violation for second open thread")
	}

	// Closed threads do not count against the open-thread index.
	if err := db.Model(open).Update("status", ThreadClosed).Error; err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.Create(dup).Error; err != nil {
		t.Fatalf("insert after close: %v", err)
	}
	other := &Thread{ID: "th3", TenantID: "t1", CustomerID: "c1", Channel: ChannelFacebook, Status: ThreadOpen, LastMessageAt: now}
	if err := db.Create(other).Error; err != nil {
		t.Fatalf("insert other channel: %v", err)
	}
}

func TestThreadMessage_CascadeAndMetadata(t *testing.T) {
	db := newDomainDB(t)
	seedCustomer(t, db)
	now := time.Now().UTC()

	th := &Thread{ID: "th1", TenantID: "t1", CustomerID: "c1", Channel: ChannelSMS, Status: ThreadOpen, LastMessageAt: now}
	if err := db.Create(th).Error; err != nil {
		t.Fatalf("insert thread: %v", err)
	}
	msg := &ThreadMessage{
		ID: "m1", ThreadID: "th1", Direction: DirectionInbound, SenderType: SenderCustomer,
		Content: "hej", Metadata: map[string]any{"intent": "greeting"}, CreatedAt: now,
	}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	bad := &ThreadMessage{ID: "m2", ThreadID: "th1", Direction: "sideways", SenderType: SenderCustomer, Content: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected check constraint failure for direction")
	}

	var got ThreadMessage
	if err := db.First(&got, "id = ?", "m1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Metadata["intent"] != "greeting" {
		t.Fatalf("metadata not round-tripped: %#v", got.Metadata)
	}

	if err := db.Delete(&Thread{}, "id = ?", "th1").Error; err != nil {
		t.Fatalf("delete thread: %v", err)
	}
	var cnt int64
	db.Model(&ThreadMessage{}).Where("thread_id = ?", "th1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("expected messages to cascade-delete, got %d", cnt)
	}
}

func TestDraft_Totals(t *testing.T) {
	d := Draft{Items: []DraftItem{
		{MenuItemID: "p1", Name: "Margherita Pizza", Quantity: 2, UnitPrice: 89},
		{MenuItemID: "p4", Name: "Cola", Quantity: 1, UnitPrice: 30},
	}}
	if d.TotalQuantity() != 3 {
		t.Fatalf("TotalQuantity = %d; want 3", d.TotalQuantity())
	}
	if d.Subtotal() != 208 {
		t.Fatalf("Subtotal = %v; want 208", d.Subtotal())
	}
	if !StateCompleted.Terminal() || !StateCancelled.Terminal() || StateConfirming.Terminal() {
		t.Fatalf("Terminal() classification wrong")
	}
}
