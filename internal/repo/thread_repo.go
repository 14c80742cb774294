// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for conversation
// threads.
//
// Functions:
//
//   - GetOrCreateThread(ctx, db, key, now, idleTTL) -> *domain.Thread, error
//     Reuses the most recent open thread for (tenant, customer, channel),
//     closing it first when it has been idle longer than idleTTL.
//
//   - GetThread(ctx, db, id) -> *domain.Thread, error
//
//   - RecordTurn(ctx, db, id, confidence) -> error
//     Stores the classifier confidence of the latest automated turn.
//
//   - FlagAttention(ctx, db, id, confidence) / ResolveAttention(ctx, db, id)
//     Raise or clear the human-handoff flag.
//
//   - CloseThread(ctx, db, id) -> error
//
//   - CountThreads / ListThreadsPage
//     Paginated inbox queries, optionally restricted to flagged threads.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// ThreadKey identifies the open-thread slot of a customer on a channel.
type ThreadKey struct {
	TenantID         string
	CustomerID       string
	Channel          string
	ExternalThreadID string
}

// GetOrCreateThread returns the open thread for key, bumping its
// last_message_at, or creates one. An open thread idle for longer than
// idleTTL is closed and replaced, unless it is waiting for a human.
// idleTTL <= 0 disables the idle check.
func GetOrCreateThread(ctx context.Context, db *gorm.DB, key ThreadKey, now time.Time, idleTTL time.Duration) (*domain.Thread, error) {
	now = now.UTC()
	for attempt := 0; attempt < 2; attempt++ {
		th, err := findOpenThread(ctx, db, key)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if th != nil {
			if idleTTL > 0 && !th.RequiresAttention && now.Sub(th.LastMessageAt) > idleTTL {
				if err := CloseThread(ctx, db, th.ID); err != nil && !errors.Is(err, ErrNotFound) {
					return nil, err
				}
			} else {
				err := db.WithContext(ctx).
					Model(&domain.Thread{}).
					Where("id = ?", th.ID).
					Updates(map[string]any{"last_message_at": now, "updated_at": now}).Error
				if err != nil {
					return nil, err
				}
				th.LastMessageAt = now
				return th, nil
			}
		}

		th = &domain.Thread{
			ID:               uuid.NewString(),
			TenantID:         key.TenantID,
			CustomerID:       key.CustomerID,
			Channel:          key.Channel,
			ExternalThreadID: key.ExternalThreadID,
			Status:           domain.ThreadOpen,
			LastMessageAt:    now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		err = db.WithContext(ctx).Omit("Customer").Create(th).Error
		if err == nil {
			return th, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		// A concurrent request opened the thread first; loop to reuse it.
	}
	return nil, ErrDuplicate
}

func findOpenThread(ctx context.Context, db *gorm.DB, key ThreadKey) (*domain.Thread, error) {
	var th domain.Thread
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND customer_id = ? AND channel = ? AND status = ?",
			key.TenantID, key.CustomerID, key.Channel, domain.ThreadOpen).
		Order("created_at DESC").
		First(&th).Error
	if err != nil {
		return nil, err
	}
	return &th, nil
}

// GetThread fetches a thread by id, or ErrNotFound.
func GetThread(ctx context.Context, db *gorm.DB, id string) (*domain.Thread, error) {
	var th domain.Thread
	if err := db.WithContext(ctx).Where("id = ?", id).First(&th).Error; err != nil {
		return nil, err
	}
	return &th, nil
}

// RecordTurn stores the confidence of the latest automated turn.
func RecordTurn(ctx context.Context, db *gorm.DB, id string, confidence float64) error {
	return updateThread(ctx, db, id, map[string]any{"ai_confidence": confidence})
}

// FlagAttention raises requires_attention and records the confidence that
// led to it.
func FlagAttention(ctx context.Context, db *gorm.DB, id string, confidence float64) error {
	return updateThread(ctx, db, id, map[string]any{
		"requires_attention": true,
		"ai_confidence":      confidence,
	})
}

// ResolveAttention clears requires_attention after a human took over.
func ResolveAttention(ctx context.Context, db *gorm.DB, id string) error {
	return updateThread(ctx, db, id, map[string]any{"requires_attention": false})
}

// CloseThread marks an open thread closed. Closing an already closed
// thread is a no-op; an unknown id returns ErrNotFound.
func CloseThread(ctx context.Context, db *gorm.DB, id string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Thread{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": domain.ThreadClosed, "closed_at": now, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func updateThread(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := db.WithContext(ctx).Model(&domain.Thread{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ThreadFilter restricts inbox queries.
type ThreadFilter struct {
	TenantID      string // optional
	AttentionOnly bool
	Status        string // optional: open|closed
}

func (f ThreadFilter) apply(q *gorm.DB) *gorm.DB {
	if f.TenantID != "" {
		q = q.Where("tenant_id = ?", f.TenantID)
	}
	if f.AttentionOnly {
		q = q.Where("requires_attention = ?", true)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// CountThreads returns how many threads match f.
func CountThreads(ctx context.Context, db *gorm.DB, f ThreadFilter) (int64, error) {
	var total int64
	err := f.apply(db.WithContext(ctx).Model(&domain.Thread{})).Count(&total).Error
	return total, err
}

// ListThreadsPage returns a page of threads matching f, most recently
// active first.
func ListThreadsPage(ctx context.Context, db *gorm.DB, f ThreadFilter, offset, limit int) ([]domain.Thread, error) {
	var out []domain.Thread
	err := f.apply(db.WithContext(ctx)).
		Order("last_message_at DESC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
