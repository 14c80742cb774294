// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the customer half of the
// customer & thread registry.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// CustomerInfo carries what a channel knows about the sender.
type CustomerInfo struct {
	Phone      string
	Email      string
	Name       string
	ExternalID string // page-scoped id for social channels
}

// GetOrCreateCustomer finds the tenant's customer by phone, then email,
// then external id, and creates one when none matches. Empty name/email
// on an existing customer are filled from info. Two concurrent creators
// are resolved by the unique indexes: the loser re-reads the winner's row.
func GetOrCreateCustomer(ctx context.Context, db *gorm.DB, tenantID string, info CustomerInfo) (*domain.Customer, error) {
	info.Phone = strings.TrimSpace(info.Phone)
	info.Email = strings.ToLower(strings.TrimSpace(info.Email))
	info.Name = strings.TrimSpace(info.Name)

	c, err := findCustomer(ctx, db, tenantID, info)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if c != nil {
		return c, fillCustomer(ctx, db, c, info)
	}

	now := time.Now().UTC()
	c = &domain.Customer{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		Phone:      info.Phone,
		Email:      info.Email,
		Name:       info.Name,
		ExternalID: info.ExternalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		// Lost the race; the row exists now.
		return findCustomer(ctx, db, tenantID, info)
	}
	return c, nil
}

func findCustomer(ctx context.Context, db *gorm.DB, tenantID string, info CustomerInfo) (*domain.Customer, error) {
	lookups := []struct {
		col, val string
	}{
		{"phone", info.Phone},
		{"email", info.Email},
		{"external_id", info.ExternalID},
	}
	for _, l := range lookups {
		if l.val == "" {
			continue
		}
		var c domain.Customer
		err := db.WithContext(ctx).
			Where("tenant_id = ? AND "+l.col+" = ?", tenantID, l.val).
			Order("created_at ASC").
			First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// fillCustomer updates empty fields with newly learned contact info.
func fillCustomer(ctx context.Context, db *gorm.DB, c *domain.Customer, info CustomerInfo) error {
	updates := map[string]any{}
	if c.Name == "" && info.Name != "" {
		updates["name"] = info.Name
		c.Name = info.Name
	}
	if c.Email == "" && info.Email != "" {
		updates["email"] = info.Email
		c.Email = info.Email
	}
	if c.Phone == "" && info.Phone != "" {
		updates["phone"] = info.Phone
		c.Phone = info.Phone
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updated_at"] = time.Now().UTC()
	err := db.WithContext(ctx).Model(&domain.Customer{}).Where("id = ?", c.ID).Updates(updates).Error
	if isUniqueViolation(err) {
		// Another customer of the tenant already owns the value; keep the
		// existing row untouched.
		return nil
	}
	return err
}

// UpdateCustomerContact stores the phone or name collected during a
// conversation.
func UpdateCustomerContact(ctx context.Context, db *gorm.DB, customerID, phone, name string) error {
	var c domain.Customer
	if err := db.WithContext(ctx).Where("id = ?", customerID).First(&c).Error; err != nil {
		return err
	}
	return fillCustomer(ctx, db, &c, CustomerInfo{Phone: phone, Name: name})
}
