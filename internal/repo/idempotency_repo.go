// Package repo – admin idempotency keys
//
// Append-only store for admin Idempotency-Key headers, kept apart from the
// inbound message ledger.

package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// RememberIdempotencyKey appends a row binding (scope, key) to resourceID.
// Earlier rows for the same key are left untouched.
func RememberIdempotencyKey(ctx context.Context, db *gorm.DB, scope, key, resourceID string, at time.Time) (*domain.IdempotencyKey, error) {
	rec := &domain.IdempotencyKey{
		ID:         uuid.NewString(),
		Scope:      scope,
		Key:        key,
		ResourceID: resourceID,
		CreatedAt:  at.UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// LookupIdempotencyKey returns the newest row for (scope, key) created at
// or after since, or ErrNotFound.
func LookupIdempotencyKey(ctx context.Context, db *gorm.DB, scope, key string, since time.Time) (*domain.IdempotencyKey, error) {
	var rec domain.IdempotencyKey
	err := db.WithContext(ctx).
		Where("scope = ? AND idem_key = ? AND created_at >= ?", scope, key, since.UTC()).
		Order("created_at DESC").
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
