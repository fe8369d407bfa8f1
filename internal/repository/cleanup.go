package repository

import (
	"fmt"
	"time"

	"tg-monitor-relay-go/internal/models"
)

// CleanupResult reports how many rows a retention sweep removed.
type CleanupResult struct {
	EventLogs         int64 `json:"event_logs"`
	ForwardedMessages int64 `json:"forwarded_messages"`
}

// Cleanup deletes event log rows older than eventLogDays and ledger rows
// older than ledgerDays. Deletion is purely age-based, status plays no role.
// Best-effort: a missed sweep only costs storage.
func (r *Repository) Cleanup(eventLogDays, ledgerDays int) (CleanupResult, error) {
	if eventLogDays < 1 {
		eventLogDays = 1
	}
	if ledgerDays < 1 {
		ledgerDays = 1
	}

	var result CleanupResult
	now := nowUTC()

	res := r.db.
		Where("created_at < ?", now.Add(-time.Duration(eventLogDays)*24*time.Hour)).
		Delete(&models.EventLog{})
	if res.Error != nil {
		return result, fmt.Errorf("failed to clean event logs: %w", res.Error)
	}
	result.EventLogs = res.RowsAffected

	res = r.db.
		Where("created_at < ?", now.Add(-time.Duration(ledgerDays)*24*time.Hour)).
		Delete(&models.LedgerEntry{})
	if res.Error != nil {
		return result, fmt.Errorf("failed to clean ledger entries: %w", res.Error)
	}
	result.ForwardedMessages = res.RowsAffected

	return result, nil
}
