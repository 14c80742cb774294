package domain

import "time"

// DraftState is the position of an order draft in the conversation flow.
type DraftState string

const (
	StateGreeting              DraftState = "greeting"
	StateCollectingItems       DraftState = "collecting_items"
	StateCollectingFulfillment DraftState = "collecting_fulfillment"
	StateCollectingContact     DraftState = "collecting_contact"
	StateConfirming            DraftState = "confirming"
	StateCompleted             DraftState = "completed"
	StateCancelled             DraftState = "cancelled"
)

// Terminal reports whether no further transitions happen without a reset.
func (s DraftState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Fulfillment types.
const (
	FulfillmentPickup   = "pickup"
	FulfillmentDelivery = "delivery"
)

// DraftItem is one line of an order draft.
type DraftItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	UnitPrice  float64  `json:"unit_price"`
	Modifiers  []string `json:"modifiers,omitempty"`
}

// LineTotal is quantity times unit price.
func (it DraftItem) LineTotal() float64 { return float64(it.Quantity) * it.UnitPrice }

// Draft is the in-progress order of a thread. It is stored one row per
// thread and saved with an optimistic version check so concurrent writers
// never silently overwrite each other.
//
// FrustrationCount and LowConfidenceTurns feed the escalation policy; they
// only grow until the draft is reset or staff hand the thread back.
type Draft struct {
	ThreadID           string      `json:"thread_id"            gorm:"type:char(36);primaryKey"`
	Channel            string      `json:"channel"              gorm:"type:varchar(32);not null"`
	State              DraftState  `json:"state"                gorm:"type:varchar(32);not null;default:'greeting'"`
	Items              []DraftItem `json:"items"                gorm:"type:text;serializer:json"`
	Fulfillment        string      `json:"fulfillment,omitempty" gorm:"type:varchar(16);not null;default:''"`
	Address            string      `json:"address,omitempty"    gorm:"type:varchar(512);not null;default:''"`
	Phone              string      `json:"phone,omitempty"      gorm:"type:varchar(32);not null;default:''"`
	Name               string      `json:"name,omitempty"       gorm:"type:varchar(255);not null;default:''"`
	Notes              string      `json:"notes,omitempty"      gorm:"type:text;not null;default:''"`
	Language           string      `json:"language"             gorm:"type:varchar(8);not null;default:'da'"`
	FrustrationCount   int         `json:"frustration_count"    gorm:"not null;default:0"`
	LowConfidenceTurns int         `json:"low_confidence_turns" gorm:"not null;default:0"`
	RetryCount         int         `json:"retry_count"          gorm:"not null;default:0"`
	LastIntent         string      `json:"last_intent,omitempty" gorm:"type:varchar(32);not null;default:''"`
	SummaryHash        string      `json:"summary_hash,omitempty" gorm:"type:varchar(64);not null;default:''"`
	OrderNumber        string      `json:"order_number,omitempty" gorm:"type:varchar(32);not null;default:''"`
	RequiresHuman      bool        `json:"requires_human"       gorm:"not null;default:false"`
	Version            int64       `json:"version"              gorm:"not null;default:0"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Draft.
func (Draft) TableName() string { return "drafts" }

// TotalQuantity sums item quantities.
func (d *Draft) TotalQuantity() int {
	n := 0
	for _, it := range d.Items {
		n += it.Quantity
	}
	return n
}

// Subtotal sums line totals.
func (d *Draft) Subtotal() float64 {
	var sum float64
	for _, it := range d.Items {
		sum += it.LineTotal()
	}
	return sum
}
