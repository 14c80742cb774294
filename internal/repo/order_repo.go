// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores materialized orders.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// FindOrderBySummary returns the order already created for (threadID,
// summaryHash), or ErrNotFound.
func FindOrderBySummary(ctx context.Context, db *gorm.DB, threadID, summaryHash string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("thread_id = ? AND summary_hash = ?", threadID, summaryHash).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertOrder writes o and its items. A unique violation (same thread and
// summary, or a colliding order number) returns ErrDuplicate.
func InsertOrder(ctx context.Context, db *gorm.DB, o *domain.Order) error {
	err := db.WithContext(ctx).Create(o).Error
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// CountOrders returns how many orders a thread produced.
func CountOrders(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Where("thread_id = ?", threadID).Count(&n).Error
	return n, err
}
