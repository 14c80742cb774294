// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for tenants and
// their receiving addresses.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// AddressInput is one receiving address registered for a tenant.
type AddressInput struct {
	Channel string
	Address string
}

// CreateTenant inserts a tenant with its addresses in one transaction.
// An address already owned by another tenant yields ErrDuplicate.
func CreateTenant(ctx context.Context, db *gorm.DB, name, lang, countryCode, currency string, addrs []AddressInput) (*domain.Tenant, error) {
	now := time.Now().UTC()
	t := &domain.Tenant{
		ID:          uuid.NewString(),
		Name:        name,
		Language:    lang,
		CountryCode: countryCode,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Addresses").Create(t).Error; err != nil {
			return err
		}
		for _, a := range addrs {
			row := domain.TenantAddress{
				ID:        uuid.NewString(),
				TenantID:  t.ID,
				Channel:   a.Channel,
				Address:   a.Address,
				CreatedAt: now,
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return ErrDuplicate
				}
				return err
			}
			t.Addresses = append(t.Addresses, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetTenant fetches a tenant by id, or ErrNotFound.
func GetTenant(ctx context.Context, db *gorm.DB, id string) (*domain.Tenant, error) {
	var t domain.Tenant
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ResolveTenant maps a receiving address to its tenant id by exact match.
// It returns ("", nil) when no tenant owns the address.
func ResolveTenant(ctx context.Context, db *gorm.DB, address string) (string, error) {
	var row domain.TenantAddress
	err := db.WithContext(ctx).
		Where("address = ?", address).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.TenantID, nil
}
