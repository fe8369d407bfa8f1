package repository

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"tg-monitor-relay-go/internal/models"
)

// maxErrorLen bounds diagnostic text stored in last_error and event rows.
const maxErrorLen = 4000

// Repository is the data access layer over the durable tables. It is safe
// for concurrent use; claim arbitration relies on database constraints, not
// in-process locks, so multiple workers may share one database.
type Repository struct {
	db *gorm.DB
}

// New creates a repository over an open gorm connection. The connection must
// be opened with TranslateError so duplicate-key violations surface as
// gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates or updates all persisted tables.
func (r *Repository) Migrate() error {
	if err := r.db.AutoMigrate(
		&models.Keyword{},
		&models.LedgerEntry{},
		&models.Checkpoint{},
		&models.EventLog{},
		&models.BotState{},
		&models.AppStatus{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// EnsureSingletons seeds the bot state and app status rows if they do not
// exist yet. Both tables hold exactly one row with id=1.
func (r *Repository) EnsureSingletons() error {
	state := models.BotState{ID: 1, Enabled: true}
	if err := r.db.FirstOrCreate(&state, models.BotState{ID: 1}).Error; err != nil {
		return fmt.Errorf("failed to seed bot state: %w", err)
	}
	status := models.AppStatus{ID: 1}
	if err := r.db.FirstOrCreate(&status, models.AppStatus{ID: 1}).Error; err != nil {
		return fmt.Errorf("failed to seed app status: %w", err)
	}
	return nil
}

// Ping verifies database connectivity, used by the health endpoint.
func (r *Repository) Ping() error {
	return r.db.Raw("SELECT 1").Error
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
