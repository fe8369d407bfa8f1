package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GetStatus reports connectivity, enablement and the last error/event
func (h *Handlers) GetStatus(c *gin.Context) {
	state, err := h.repo.GetBotState()
	if err != nil {
		logrus.Errorf("Failed to read bot state: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read state",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	status, err := h.repo.GetAppStatus()
	if err != nil {
		logrus.Errorf("Failed to read app status: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to read status",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Connected:        status.Connected,
		Enabled:          state.Enabled,
		LastError:        status.LastError,
		LastEventTime:    status.LastEventTime,
		LastEventMessage: status.LastEventMessage,
	})
}

// Enable resumes claiming of new messages
func (h *Handlers) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable halts claiming of new messages; in-flight forwards finish
func (h *Handlers) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handlers) setEnabled(c *gin.Context, enabled bool) {
	if err := h.repo.SetEnabled(enabled); err != nil {
		logrus.Errorf("Failed to set enabled=%v: %v", enabled, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to update state",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// Restart requests a soft restart: the runtime re-runs reconciliation on
// its next state poll
func (h *Handlers) Restart(c *gin.Context) {
	if err := h.repo.RequestRestart(); err != nil {
		logrus.Errorf("Failed to request restart: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to request restart",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"restart": "requested"})
}

// CleanupNow runs one retention sweep immediately and reports the counts
func (h *Handlers) CleanupNow(c *gin.Context) {
	result, err := h.runtime.RunCleanup()
	if err != nil {
		logrus.Errorf("On-demand cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "cleanup_error",
			Message: "Cleanup failed",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}
