// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) on the inbox endpoints.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// ThreadsStats returns the number of threads matching f and the greatest
// UpdatedAt among them (nil when there are none).
func ThreadsStats(ctx context.Context, db *gorm.DB, f ThreadFilter) (count int64, maxUpdatedAt *time.Time, err error) {
	q := f.apply(db.WithContext(ctx).Model(&domain.Thread{}))

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns the number of messages in a thread and the
// creation time of the newest one. Messages are append-only, so the pair
// changes whenever the history does.
func MessagesStats(ctx context.Context, db *gorm.DB, threadID string) (count int64, lastCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ThreadMessage{}).Where("thread_id = ?", threadID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
