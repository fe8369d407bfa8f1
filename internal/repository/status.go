package repository

import (
	"fmt"

	"tg-monitor-relay-go/internal/models"
)

// GetBotState returns the singleton control row.
func (r *Repository) GetBotState() (models.BotState, error) {
	var state models.BotState
	if err := r.db.First(&state, 1).Error; err != nil {
		return state, fmt.Errorf("failed to load bot state: %w", err)
	}
	return state, nil
}

// SetEnabled flips the enabled flag on the control row.
func (r *Repository) SetEnabled(enabled bool) error {
	res := r.db.Model(&models.BotState{}).Where("id = 1").Update("enabled", enabled)
	if res.Error != nil {
		return fmt.Errorf("failed to set enabled: %w", res.Error)
	}
	return nil
}

// RequestRestart stamps restart_requested_at. The runtime loop treats a
// changed value as a soft restart signal.
func (r *Repository) RequestRestart() error {
	now := nowUTC()
	res := r.db.Model(&models.BotState{}).Where("id = 1").Update("restart_requested_at", now)
	if res.Error != nil {
		return fmt.Errorf("failed to request restart: %w", res.Error)
	}
	return nil
}

// GetAppStatus returns the singleton status row.
func (r *Repository) GetAppStatus() (models.AppStatus, error) {
	var status models.AppStatus
	if err := r.db.First(&status, 1).Error; err != nil {
		return status, fmt.Errorf("failed to load app status: %w", err)
	}
	return status, nil
}

// SetConnected records source connectivity on the status row.
func (r *Repository) SetConnected(connected bool) error {
	res := r.db.Model(&models.AppStatus{}).Where("id = 1").Update("connected", connected)
	if res.Error != nil {
		return fmt.Errorf("failed to set connected: %w", res.Error)
	}
	return nil
}

// SetLastError records the most recent error on the status row. An empty
// string clears it.
func (r *Repository) SetLastError(cause string) error {
	res := r.db.Model(&models.AppStatus{}).Where("id = 1").Update("last_error", truncate(cause, maxErrorLen))
	if res.Error != nil {
		return fmt.Errorf("failed to set last error: %w", res.Error)
	}
	return nil
}

// SetLastEvent records the most recent notable event on the status row.
func (r *Repository) SetLastEvent(message string) error {
	now := nowUTC()
	res := r.db.Model(&models.AppStatus{}).Where("id = 1").Updates(map[string]interface{}{
		"last_event_time":    now,
		"last_event_message": truncate(message, maxErrorLen),
	})
	if res.Error != nil {
		return fmt.Errorf("failed to set last event: %w", res.Error)
	}
	return nil
}
