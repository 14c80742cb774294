// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// append-only thread message history.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// NewMessage describes a row to append to a thread.
type NewMessage struct {
	Direction         string
	SenderType        string
	Content           string
	ExternalMessageID string
	Metadata          map[string]any
}

// AppendMessage inserts a new thread message.
func AppendMessage(ctx context.Context, db *gorm.DB, threadID string, in NewMessage) (*domain.ThreadMessage, error) {
	m := &domain.ThreadMessage{
		ID:         uuid.NewString(),
		ThreadID:   threadID,
		Direction:  in.Direction,
		SenderType: in.SenderType,
		Content:    in.Content,
		Metadata:   in.Metadata,
		CreatedAt:  time.Now().UTC(),
	}
	if in.ExternalMessageID != "" {
		ext := in.ExternalMessageID
		m.ExternalMessageID = &ext
	}
	return m, db.WithContext(ctx).Omit("Thread").Create(m).Error
}

// ListMessages returns messages ordered deterministically (CreatedAt ASC, ID ASC).
func ListMessages(ctx context.Context, db *gorm.DB, threadID string, limit int) ([]domain.ThreadMessage, error) {
	var out []domain.ThreadMessage
	q := db.WithContext(ctx).Where("thread_id = ?", threadID).Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// RecentMessages returns the last n messages of a thread in conversation order.
func RecentMessages(ctx context.Context, db *gorm.DB, threadID string, n int) ([]domain.ThreadMessage, error) {
	var out []domain.ThreadMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at DESC, id DESC").
		Limit(n).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, threadID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM thread_messages WHERE thread_id = ?", threadID).Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, threadID string, offset, limit int) ([]domain.ThreadMessage, error) {
	var out []domain.ThreadMessage
	err := db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
