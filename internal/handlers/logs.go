package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// GetLogs returns the most recent audit events, newest first
func (h *Handlers) GetLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := h.repo.ListEvents(limit)
	if err != nil {
		logrus.Errorf("Failed to list events: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch event log",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	responses := make([]EventLogResponse, 0, len(events))
	for _, event := range events {
		responses = append(responses, EventLogResponse{
			ID:        event.ID,
			Level:     event.Level,
			Status:    event.Status,
			Message:   event.Message,
			CreatedAt: event.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, responses)
}
