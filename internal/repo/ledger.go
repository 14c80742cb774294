// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the idempotency ledger: the record of
// (channel, external_message_id) pairs already processed.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// IsDuplicate reports whether (channel, externalID) was already marked.
// Store errors are returned as-is so callers can fail closed.
func IsDuplicate(ctx context.Context, db *gorm.DB, channel, externalID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProcessedMessage{}).
		Where("channel = ? AND external_message_id = ?", channel, externalID).
		Limit(1).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkProcessed appends a ledger row. A concurrent mark of the same key
// returns ErrDuplicate.
func MarkProcessed(ctx context.Context, db *gorm.DB, channel, externalID, tenantID string) (*domain.ProcessedMessage, error) {
	rec := &domain.ProcessedMessage{
		ID:                uuid.NewString(),
		Channel:           channel,
		ExternalMessageID: externalID,
		TenantID:          tenantID,
		ProcessedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}
