package repository

import (
	"fmt"
	"strings"

	"tg-monitor-relay-go/internal/models"
)

// Event levels.
const (
	EventLevelInfo  = "info"
	EventLevelError = "error"
)

// AppendEvent writes one append-only audit record.
func (r *Repository) AppendEvent(level, status, message string) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "unknown event"
	}
	entry := models.EventLog{
		Level:   level,
		Status:  status,
		Message: truncate(msg, maxErrorLen),
	}
	if err := r.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. The limit is
// clamped to 1..200.
func (r *Repository) ListEvents(limit int) ([]models.EventLog, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	var items []models.EventLog
	if err := r.db.Order("id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return items, nil
}
