package domain

import (
	"time"

	"gorm.io/gorm"
)

// Channel names used across the pipeline.
const (
	ChannelSMS       = "sms"
	ChannelFacebook  = "facebook"
	ChannelInstagram = "instagram"
)

// Thread statuses.
const (
	ThreadOpen   = "open"
	ThreadClosed = "closed"
)

// Message directions and sender types.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	SenderCustomer = "customer"
	SenderAI       = "ai"
	SenderSystem   = "system"
	SenderHuman    = "human"
)

// Tenant is a restaurant. Inbound messages are routed to a tenant through
// the receiving address (short code, phone number or page id) they were
// sent to.
type Tenant struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	Name        string    `json:"name"         gorm:"type:varchar(255);not null"`
	Language    string    `json:"language"     gorm:"type:varchar(8);not null;default:'da'"`
	CountryCode string    `json:"country_code" gorm:"type:varchar(4);not null;default:'45'"`
	Currency    string    `json:"currency"     gorm:"type:varchar(8);not null;default:'DKK'"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Addresses []TenantAddress `json:"addresses,omitempty" gorm:"foreignKey:TenantID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Tenant.
func (Tenant) TableName() string { return "tenants" }

// TenantAddress maps one receiving address to its tenant. An address can
// belong to at most one tenant.
type TenantAddress struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:char(36);not null;index"`
	Channel   string    `json:"channel"   gorm:"type:varchar(32);not null"`
	Address   string    `json:"address"   gorm:"type:varchar(255);not null;uniqueIndex:ux_tenant_address"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for TenantAddress.
func (TenantAddress) TableName() string { return "tenant_addresses" }

// Customer is owned by a tenant and is created on first contact. Phone,
// email and external (social) ids are each unique per tenant when set.
type Customer struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	TenantID   string         `json:"tenant_id"   gorm:"type:char(36);not null;uniqueIndex:ux_customer_phone,priority:1,where:phone <> '';uniqueIndex:ux_customer_email,priority:1,where:email <> '';uniqueIndex:ux_customer_external,priority:1,where:external_id <> ''"`
	Phone      string         `json:"phone"       gorm:"type:varchar(32);not null;default:'';uniqueIndex:ux_customer_phone,priority:2"`
	Email      string         `json:"email"       gorm:"type:varchar(255);not null;default:'';uniqueIndex:ux_customer_email,priority:2"`
	ExternalID string         `json:"external_id" gorm:"type:varchar(255);not null;default:'';uniqueIndex:ux_customer_external,priority:2"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null;default:''"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Customer.
func (Customer) TableName() string { return "customers" }

// Thread is a conversation session between one customer and one tenant on
// one channel. At most one thread per (tenant, customer, channel) is open at
// any time; the partial unique index enforces it at the store.
//
// AIConfidence holds the classifier confidence of the latest automated turn.
// RequiresAttention is raised by escalation or processing failures and is
// only cleared by a human operator.
type Thread struct {
	ID                string     `json:"id"                 gorm:"type:char(36);primaryKey"`
	TenantID          string     `json:"tenant_id"          gorm:"type:char(36);not null;index:idx_thread_lookup,priority:1;uniqueIndex:ux_thread_open,priority:1,where:status = 'open'"`
	CustomerID        string     `json:"customer_id"        gorm:"type:char(36);not null;index:idx_thread_lookup,priority:2;uniqueIndex:ux_thread_open,priority:2"`
	Channel           string     `json:"channel"            gorm:"type:varchar(32);not null;index:idx_thread_lookup,priority:3;uniqueIndex:ux_thread_open,priority:3"`
	ExternalThreadID  string     `json:"external_thread_id" gorm:"type:varchar(255);not null;default:''"`
	Status            string     `json:"status"             gorm:"type:varchar(16);not null;default:'open';check:status IN ('open','closed')"`
	AIConfidence      float64    `json:"ai_confidence"      gorm:"not null;default:0"`
	RequiresAttention bool       `json:"requires_attention" gorm:"not null;default:false;index"`
	LastMessageAt     time.Time  `json:"last_message_at"    gorm:"not null"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"         gorm:"index"`
	UpdatedAt         time.Time  `json:"updated_at"`

	Customer Customer `json:"-" gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Thread.
func (Thread) TableName() string { return "threads" }

// ThreadMessage is a single append-only entry of a thread's history.
// Ordering by (created_at, id) is the conversation order.
type ThreadMessage struct {
	ID                string         `json:"id"                            gorm:"type:char(36);primaryKey"`
	ThreadID          string         `json:"thread_id"                     gorm:"type:char(36);not null;index:idx_thread_msgs,priority:1"`
	Direction         string         `json:"direction"                     gorm:"type:varchar(16);not null;check:direction IN ('inbound','outbound')"`
	SenderType        string         `json:"sender_type"                   gorm:"type:varchar(16);not null;check:sender_type IN ('customer','ai','system','human')"`
	Content           string         `json:"content"                       gorm:"type:text;not null"`
	ExternalMessageID *string        `json:"external_message_id,omitempty" gorm:"type:varchar(255)"`
	Metadata          map[string]any `json:"metadata,omitempty"            gorm:"type:text;serializer:json"`
	CreatedAt         time.Time      `json:"created_at"                    gorm:"index:idx_thread_msgs,priority:2"`

	Thread Thread `json:"-" gorm:"foreignKey:ThreadID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ThreadMessage.
func (ThreadMessage) TableName() string { return "thread_messages" }
