package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ListKeywords returns a page of keywords, filtered by the optional q
// parameter (substring, folded like the matcher folds)
func (h *Handlers) ListKeywords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	query := c.Query("q")

	items, total, err := h.repo.ListKeywords(query, limit, offset)
	if err != nil {
		logrus.Errorf("Failed to list keywords: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch keywords",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	response := KeywordListResponse{Total: total, Items: make([]KeywordResponse, 0, len(items))}
	for _, item := range items {
		response.Items = append(response.Items, KeywordResponse{
			ID:        item.ID,
			Keyword:   item.Keyword,
			CreatedAt: item.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, response)
}

// AddKeyword inserts a keyword; adding an existing one (in normalized form)
// is a no-op answered with 200 instead of 201
func (h *Handlers) AddKeyword(c *gin.Context) {
	var req KeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid request body",
			Code:    http.StatusBadRequest,
		})
		return
	}

	created, err := h.repo.AddKeyword(req.Keyword)
	if err != nil {
		logrus.Errorf("Failed to add keyword: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to add keyword",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	// Make the new keyword effective without waiting for the next refresh.
	if err := h.matcher.Refresh(); err != nil {
		logrus.Errorf("Failed to refresh keyword snapshot: %v", err)
	}
	h.metrics.KeywordCount.Set(float64(h.matcher.Size()))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"created": created})
}

// DeleteKeyword removes a keyword by id
func (h *Handlers) DeleteKeyword(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_id",
			Message: "Invalid keyword ID",
			Code:    http.StatusBadRequest,
		})
		return
	}

	deleted, err := h.repo.DeleteKeyword(uint(id))
	if err != nil {
		logrus.Errorf("Failed to delete keyword: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to delete keyword",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Keyword not found",
			Code:    http.StatusNotFound,
		})
		return
	}

	if err := h.matcher.Refresh(); err != nil {
		logrus.Errorf("Failed to refresh keyword snapshot: %v", err)
	}
	h.metrics.KeywordCount.Set(float64(h.matcher.Size()))

	c.Status(http.StatusNoContent)
}
