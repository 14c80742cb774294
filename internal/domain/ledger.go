// Package domain defines the core persistence models for the ordering agent.
// These types are used by GORM for database schema mapping and are shared
// across the repository, conversation and service layers.
package domain

import "time"

// ProcessedMessage is one row of the idempotency ledger, keyed by
// (channel, external_message_id). Rows are append-only: once a provider
// message id is recorded, retries of the same webhook are reported as
// duplicates and never reach the conversation pipeline again.
type ProcessedMessage struct {
	ID                string    `json:"id"                  gorm:"type:char(36);primaryKey"`
	Channel           string    `json:"channel"             gorm:"type:varchar(32);not null;uniqueIndex:ux_ledger_channel_ext,priority:1"`
	ExternalMessageID string    `json:"external_message_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_ledger_channel_ext,priority:2"`
	TenantID          string    `json:"tenant_id"           gorm:"type:char(36);not null;index"`
	ProcessedAt       time.Time `json:"processed_at"        gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (ProcessedMessage) TableName() string { return "processed_messages" }

// IdempotencyKey records an admin Idempotency-Key and the resource it
// produced. Rows are never updated: reusing a key after it expires appends
// a new row, and lookups read the newest one inside the TTL.
type IdempotencyKey struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Scope      string    `json:"scope"       gorm:"type:varchar(128);not null;index:idx_idem_scope_key,priority:1"`
	Key        string    `json:"key"         gorm:"column:idem_key;type:varchar(255);not null;index:idx_idem_scope_key,priority:2"`
	ResourceID string    `json:"resource_id" gorm:"type:varchar(64);not null"`
	CreatedAt  time.Time `json:"created_at"  gorm:"not null;index:idx_idem_scope_key,priority:3"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyKey) TableName() string { return "idempotency_keys" }
