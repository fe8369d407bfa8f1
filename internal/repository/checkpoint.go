package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tg-monitor-relay-go/internal/models"
)

// GetCheckpoint returns the checkpoint for a chat, or nil if the chat has
// never been checkpointed.
func (r *Repository) GetCheckpoint(chatID int64) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	err := r.db.Where("chat_id = ?", chatID).First(&cp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &cp, nil
}

// ListCheckpoints returns all known checkpoints.
func (r *Repository) ListCheckpoints() ([]models.Checkpoint, error) {
	var cps []models.Checkpoint
	if err := r.db.Order("chat_id ASC").Find(&cps).Error; err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return cps, nil
}

// AdvanceCheckpoint moves the high-water mark of a chat forward. The row is
// created lazily on the first message from a chat. A messageID that is not
// strictly greater than the stored one is a regression: rejected, logged,
// never applied. Returns whether the checkpoint moved.
func (r *Repository) AdvanceCheckpoint(chatID, messageID int64, messageDate time.Time) (bool, error) {
	var date *time.Time
	if !messageDate.IsZero() {
		d := messageDate.UTC()
		date = &d
	}

	res := r.db.Model(&models.Checkpoint{}).
		Where("chat_id = ? AND last_message_id < ?", chatID, messageID).
		Updates(map[string]interface{}{
			"last_message_id":   messageID,
			"last_message_date": date,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance checkpoint: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	// Either the chat has no checkpoint yet or the id is not greater.
	cp := models.Checkpoint{ChatID: chatID, LastMessageID: messageID, LastMessageDate: date}
	err := r.db.Create(&cp).Error
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, fmt.Errorf("failed to create checkpoint: %w", err)
	}

	// Lost the creation race to another worker: retry the conditional
	// update once before calling it a regression.
	res = r.db.Model(&models.Checkpoint{}).
		Where("chat_id = ? AND last_message_id < ?", chatID, messageID).
		Updates(map[string]interface{}{
			"last_message_id":   messageID,
			"last_message_date": date,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to advance checkpoint: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}

	logrus.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"message_id": messageID,
	}).Warn("Checkpoint regression rejected")
	return false, nil
}
