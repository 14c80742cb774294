package domain

import "time"

// OrderStatusDraft is the status of a freshly materialized order; later
// statuses belong to the external order store.
const OrderStatusDraft = "draft"

// MenuItem is a tenant catalog entry. The catalog is replaced as a whole
// from the catalog feed and is read-only for conversations.
type MenuItem struct {
	TenantID  string    `json:"tenant_id" gorm:"type:char(36);primaryKey"`
	ID        string    `json:"id"        gorm:"type:varchar(64);primaryKey"`
	Name      string    `json:"name"      gorm:"type:varchar(255);not null"`
	Price     float64   `json:"price"     gorm:"not null;check:price >= 0"`
	Category  string    `json:"category"  gorm:"type:varchar(64);not null;default:''"`
	Allergens []string  `json:"allergens" gorm:"type:text;serializer:json"`
	Synonyms  []string  `json:"synonyms"  gorm:"type:text;serializer:json"`
	Available bool      `json:"available" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for MenuItem.
func (MenuItem) TableName() string { return "menu_items" }

// Order is the persisted result of a confirmed draft. The unique
// (thread_id, summary_hash) pair makes materialization idempotent.
type Order struct {
	ID              string      `json:"id"               gorm:"type:char(36);primaryKey"`
	TenantID        string      `json:"tenant_id"        gorm:"type:char(36);not null;index"`
	ThreadID        string      `json:"thread_id"        gorm:"type:char(36);not null;uniqueIndex:ux_order_thread_summary,priority:1"`
	CustomerID      string      `json:"customer_id"      gorm:"type:char(36);not null;index"`
	SummaryHash     string      `json:"summary_hash"     gorm:"type:varchar(64);not null;uniqueIndex:ux_order_thread_summary,priority:2"`
	OrderNumber     string      `json:"order_number"     gorm:"type:varchar(32);not null;uniqueIndex"`
	Status          string      `json:"status"           gorm:"type:varchar(16);not null;default:'draft'"`
	Channel         string      `json:"channel"          gorm:"type:varchar(32);not null"`
	FulfillmentType string      `json:"fulfillment_type" gorm:"type:varchar(16);not null;check:fulfillment_type IN ('pickup','delivery')"`
	Address         string      `json:"address,omitempty" gorm:"type:varchar(512);not null;default:''"`
	Phone           string      `json:"phone"            gorm:"type:varchar(32);not null;default:''"`
	CustomerName    string      `json:"customer_name,omitempty" gorm:"type:varchar(255);not null;default:''"`
	Subtotal        float64     `json:"subtotal"         gorm:"not null"`
	Total           float64     `json:"total"            gorm:"not null"`
	Currency        string      `json:"currency"         gorm:"type:varchar(8);not null;default:'DKK'"`
	CreatedAt       time.Time   `json:"created_at"`
	Items           []OrderItem `json:"items"            gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is a line item of an Order, priced at the time of ordering.
type OrderItem struct {
	ID         string   `json:"id"           gorm:"type:char(36);primaryKey"`
	OrderID    string   `json:"order_id"     gorm:"type:char(36);not null;index"`
	MenuItemID string   `json:"menu_item_id" gorm:"type:varchar(64);not null"`
	Name       string   `json:"name"         gorm:"type:varchar(255);not null"`
	Quantity   int      `json:"quantity"     gorm:"not null;check:quantity >= 1"`
	UnitPrice  float64  `json:"unit_price"   gorm:"not null"`
	TotalPrice float64  `json:"total_price"  gorm:"not null"`
	Modifiers  []string `json:"modifiers,omitempty" gorm:"type:text;serializer:json"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }
