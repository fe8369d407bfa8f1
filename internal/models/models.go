package models

import (
	"time"
)

// MessageRef identifies one observed message: the monitored chat it came
// from plus its message id within that chat.
type MessageRef struct {
	ChatID    int64
	MessageID int64
}

// LedgerEntry status values. A row moves pending -> sent, stays pending on a
// retryable failure until the fail budget runs out, or moves straight to
// failed on a fatal outcome. sent and failed are terminal.
const (
	LedgerStatusPending = "pending"
	LedgerStatusSent    = "sent"
	LedgerStatusFailed  = "failed"
)

// LedgerEntry is the durable idempotency record, one per (chat, message)
// pair ever attempted for forwarding. The composite unique index is what
// arbitrates concurrent claims.
type LedgerEntry struct {
	ID              uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	SourceChatID    int64      `json:"source_chat_id" gorm:"not null;uniqueIndex:idx_source_message"`
	SourceMessageID int64      `json:"source_message_id" gorm:"not null;uniqueIndex:idx_source_message"`
	Status          string     `json:"status" gorm:"type:varchar(16);not null;default:pending"`
	ClaimedAt       *time.Time `json:"claimed_at"`
	SentAt          *time.Time `json:"sent_at"`
	FailCount       int        `json:"fail_count" gorm:"not null;default:0"`
	LastError       string     `json:"last_error" gorm:"type:text"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "forwarded_messages"
}

// Ref returns the message identity of this entry.
func (e *LedgerEntry) Ref() MessageRef {
	return MessageRef{ChatID: e.SourceChatID, MessageID: e.SourceMessageID}
}

// Checkpoint is the per-chat high-water mark: the last message id that was
// fully processed. Advancement is monotonic.
type Checkpoint struct {
	ChatID          int64      `json:"chat_id" gorm:"primaryKey;autoIncrement:false"`
	LastMessageID   int64      `json:"last_message_id" gorm:"not null"`
	LastMessageDate *time.Time `json:"last_message_date"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for Checkpoint
func (Checkpoint) TableName() string {
	return "channel_checkpoints"
}

// Keyword is one watched keyword. Normalized holds the case-folded,
// letter-folded form; uniqueness is enforced on it so "Ёж" and "еж" are the
// same keyword.
type Keyword struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Keyword    string    `json:"keyword" gorm:"type:varchar(255);not null"`
	Normalized string    `json:"-" gorm:"type:varchar(255);not null;uniqueIndex"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for Keyword
func (Keyword) TableName() string {
	return "keywords"
}

// EventLog is an append-only audit record of notable pipeline outcomes.
type EventLog struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Level     string    `json:"level" gorm:"type:varchar(16);not null"`
	Status    string    `json:"status" gorm:"type:varchar(32);not null"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for EventLog
func (EventLog) TableName() string {
	return "event_logs"
}

// BotState is the singleton control row (id=1) read by the runtime loop.
// RestartRequestedAt changing value signals a soft restart.
type BotState struct {
	ID                 uint       `json:"-" gorm:"primaryKey"`
	Enabled            bool       `json:"enabled" gorm:"not null;default:true"`
	RestartRequestedAt *time.Time `json:"restart_requested_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName specifies the table name for BotState
func (BotState) TableName() string {
	return "bot_states"
}

// AppStatus is the singleton status row (id=1) surfaced by the control API.
type AppStatus struct {
	ID               uint       `json:"-" gorm:"primaryKey"`
	Connected        bool       `json:"connected" gorm:"not null;default:false"`
	LastError        string     `json:"last_error" gorm:"type:text"`
	LastEventTime    *time.Time `json:"last_event_time"`
	LastEventMessage string     `json:"last_event_message" gorm:"type:text"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName specifies the table name for AppStatus
func (AppStatus) TableName() string {
	return "app_statuses"
}
