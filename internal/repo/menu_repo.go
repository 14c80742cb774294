// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores tenant menu catalogs.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// ReplaceMenu swaps the tenant's catalog for items atomically.
func ReplaceMenu(ctx context.Context, db *gorm.DB, tenantID string, items []domain.MenuItem) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&domain.MenuItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		rows := make([]domain.MenuItem, len(items))
		for i, it := range items {
			it.TenantID = tenantID
			it.CreatedAt = now
			it.UpdatedAt = now
			rows[i] = it
		}
		err := tx.CreateInBatches(rows, 100).Error
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	})
}

// ListMenu returns the tenant's available items ordered by category, name.
func ListMenu(ctx context.Context, db *gorm.DB, tenantID string) ([]domain.MenuItem, error) {
	var out []domain.MenuItem
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND available = ?", tenantID, true).
		Order("category ASC, name ASC, id ASC").
		Find(&out).Error
	return out, err
}
