// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores order drafts, one row per thread.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// GetDraft loads the draft of a thread, or ErrNotFound.
func GetDraft(ctx context.Context, db *gorm.DB, threadID string) (*domain.Draft, error) {
	var d domain.Draft
	if err := db.WithContext(ctx).Where("thread_id = ?", threadID).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDraft persists d with an optimistic version check. A draft loaded at
// version v is written only if the stored row is still at v; the stored
// version becomes v+1 and d.Version is updated. A brand new draft
// (Version 0, no row) is inserted. Losing either race yields ErrStaleDraft.
func SaveDraft(ctx context.Context, db *gorm.DB, d *domain.Draft) error {
	now := time.Now().UTC()
	next := d.Version + 1

	if d.Version == 0 {
		row := *d
		row.Version = next
		row.UpdatedAt = now
		res := db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 1 {
			d.Version = next
			d.UpdatedAt = now
			return nil
		}
		// A row exists already: fall through to the versioned update,
		// which only succeeds if it is still at version 0.
	}

	res := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("thread_id = ? AND version = ?", d.ThreadID, d.Version).
		Select("*").
		Omit("thread_id").
		Updates(&domain.Draft{
			ThreadID:           d.ThreadID,
			Channel:            d.Channel,
			State:              d.State,
			Items:              d.Items,
			Fulfillment:        d.Fulfillment,
			Address:            d.Address,
			Phone:              d.Phone,
			Name:               d.Name,
			Notes:              d.Notes,
			Language:           d.Language,
			FrustrationCount:   d.FrustrationCount,
			LowConfidenceTurns: d.LowConfidenceTurns,
			RetryCount:         d.RetryCount,
			LastIntent:         d.LastIntent,
			SummaryHash:        d.SummaryHash,
			OrderNumber:        d.OrderNumber,
			RequiresHuman:      d.RequiresHuman,
			Version:            next,
			UpdatedAt:          now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleDraft
	}
	d.Version = next
	d.UpdatedAt = now
	return nil
}

// SetDraftRequiresHuman raises or clears the handoff flag on a thread's
// draft without touching items or contact details. Clearing it also zeroes
// the escalation counters, so a thread handed back by staff starts with a
// clean slate. A missing draft is not an error.
func SetDraftRequiresHuman(ctx context.Context, db *gorm.DB, threadID string, v bool) error {
	updates := map[string]any{
		"requires_human": v,
		"version":        gorm.Expr("version + 1"),
		"updated_at":     time.Now().UTC(),
	}
	if !v {
		updates["frustration_count"] = 0
		updates["low_confidence_turns"] = 0
		updates["retry_count"] = 0
	}
	err := db.WithContext(ctx).
		Model(&domain.Draft{}).
		Where("thread_id = ?", threadID).
		Updates(updates).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}
