package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"tg-monitor-relay-go/internal/models"
)

// ClaimResult is the outcome of a claim attempt.
type ClaimResult int

const (
	// ClaimGranted means the caller owns the message and must forward it.
	ClaimGranted ClaimResult = iota
	// ClaimAlreadyHandled means the message reached a terminal state (sent
	// or failed); duplicate delivery, nothing to do.
	ClaimAlreadyHandled
	// ClaimAlreadyClaimed means another worker holds a live lease on the
	// message; nothing to do.
	ClaimAlreadyClaimed
)

func (c ClaimResult) String() string {
	switch c {
	case ClaimGranted:
		return "granted"
	case ClaimAlreadyHandled:
		return "already_handled"
	case ClaimAlreadyClaimed:
		return "already_claimed"
	}
	return "unknown"
}

// Claim attempts to take exclusive ownership of a message for forwarding.
// The insert races on the (source_chat_id, source_message_id) unique index:
// exactly one of N concurrent callers gets the new pending row. When a row
// already exists, a sent or failed status wins outright (at-most-once), a
// pending row with a live lease belongs to another worker, and a pending row
// whose lease expired (worker died mid-attempt) or whose claim was cleared
// by a retryable failure is re-claimed through a conditional update.
func (r *Repository) Claim(ref models.MessageRef, leaseWindow time.Duration) (ClaimResult, error) {
	now := nowUTC()
	entry := models.LedgerEntry{
		SourceChatID:    ref.ChatID,
		SourceMessageID: ref.MessageID,
		Status:          models.LedgerStatusPending,
		ClaimedAt:       &now,
	}

	err := r.db.Create(&entry).Error
	if err == nil {
		return ClaimGranted, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return 0, fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	var existing models.LedgerEntry
	if err := r.db.
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		First(&existing).Error; err != nil {
		return 0, fmt.Errorf("failed to load ledger entry: %w", err)
	}

	if existing.Status != models.LedgerStatusPending {
		return ClaimAlreadyHandled, nil
	}

	// Re-claim only when the previous lease is gone. RowsAffected decides
	// the race between concurrent re-claimers.
	cutoff := now.Add(-leaseWindow)
	res := r.db.Model(&models.LedgerEntry{}).
		Where("source_chat_id = ? AND source_message_id = ? AND status = ? AND (claimed_at IS NULL OR claimed_at <= ?)",
			ref.ChatID, ref.MessageID, models.LedgerStatusPending, cutoff).
		Update("claimed_at", now)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to re-claim ledger entry: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return ClaimGranted, nil
	}
	return ClaimAlreadyClaimed, nil
}

// MarkSent finalizes a claimed message as successfully forwarded. Terminal:
// every later claim for the same message returns ClaimAlreadyHandled.
func (r *Repository) MarkSent(ref models.MessageRef) error {
	now := nowUTC()
	res := r.db.Model(&models.LedgerEntry{}).
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		Updates(map[string]interface{}{
			"status":  models.LedgerStatusSent,
			"sent_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark entry sent: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no ledger entry for chat %d message %d", ref.ChatID, ref.MessageID)
	}
	return nil
}

// MarkRetry records a retryable failure: the fail count grows, the error is
// kept for diagnostics and the lease is released so any worker can attempt
// again. Once the fail count exceeds maxFailures the entry turns terminal
// failed and reports terminal=true. Only the lease holder calls this, so a
// read-modify-write is safe.
func (r *Repository) MarkRetry(ref models.MessageRef, cause string, maxFailures int) (terminal bool, err error) {
	var entry models.LedgerEntry
	if err := r.db.
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		First(&entry).Error; err != nil {
		return false, fmt.Errorf("failed to load ledger entry: %w", err)
	}

	failCount := entry.FailCount + 1
	status := models.LedgerStatusPending
	if failCount > maxFailures {
		status = models.LedgerStatusFailed
	}

	res := r.db.Model(&models.LedgerEntry{}).
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		Updates(map[string]interface{}{
			"status":     status,
			"fail_count": failCount,
			"last_error": truncate(cause, maxErrorLen),
			"claimed_at": nil,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark entry for retry: %w", res.Error)
	}
	return status == models.LedgerStatusFailed, nil
}

// MarkFailed finalizes a claimed message as terminally failed regardless of
// the fail count (fatal classification: destination rejected permanently).
func (r *Repository) MarkFailed(ref models.MessageRef, cause string) error {
	res := r.db.Model(&models.LedgerEntry{}).
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		Updates(map[string]interface{}{
			"status":     models.LedgerStatusFailed,
			"fail_count": gorm.Expr("fail_count + 1"),
			"last_error": truncate(cause, maxErrorLen),
			"claimed_at": nil,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to mark entry failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no ledger entry for chat %d message %d", ref.ChatID, ref.MessageID)
	}
	return nil
}

// HasPendingBefore reports whether the chat has an unresolved (pending)
// ledger entry older than the given message. The checkpoint must not pass
// such an entry: backfill pulls strictly after the checkpoint, so a pending
// message left behind it would never be revisited.
func (r *Repository) HasPendingBefore(chatID, messageID int64) (bool, error) {
	var count int64
	err := r.db.Model(&models.LedgerEntry{}).
		Where("source_chat_id = ? AND source_message_id < ? AND status = ?",
			chatID, messageID, models.LedgerStatusPending).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check pending entries: %w", err)
	}
	return count > 0, nil
}

// GetLedgerEntry returns the ledger row for a message, or nil when the
// message was never claimed.
func (r *Repository) GetLedgerEntry(ref models.MessageRef) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := r.db.
		Where("source_chat_id = ? AND source_message_id = ?", ref.ChatID, ref.MessageID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger entry: %w", err)
	}
	return &entry, nil
}
