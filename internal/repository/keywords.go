package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tg-monitor-relay-go/internal/matcher"
	"tg-monitor-relay-go/internal/models"
)

// AddKeyword inserts a keyword, deduplicating on the normalized form so
// "Ёж" and "еж" are the same keyword. Returns false when it already exists
// (idempotent add).
func (r *Repository) AddKeyword(raw string) (bool, error) {
	kw := strings.TrimSpace(raw)
	if kw == "" {
		return false, fmt.Errorf("keyword is empty")
	}

	entry := models.Keyword{
		Keyword:    kw,
		Normalized: matcher.NormalizeKeyword(kw),
	}
	err := r.db.Create(&entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to add keyword: %w", err)
	}
	return true, nil
}

// DeleteKeyword removes a keyword by id. Returns false when no such row.
func (r *Repository) DeleteKeyword(id uint) (bool, error) {
	res := r.db.Delete(&models.Keyword{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete keyword: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListKeywords returns a page of keywords, newest first, plus the total
// count. A non-empty query filters by normalized substring.
func (r *Repository) ListKeywords(query string, limit, offset int) ([]models.Keyword, int64, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.Model(&models.Keyword{})
	if qn := matcher.NormalizeKeyword(query); qn != "" {
		q = q.Where("normalized LIKE ?", "%"+qn+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count keywords: %w", err)
	}

	var items []models.Keyword
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list keywords: %w", err)
	}
	return items, total, nil
}

// NormalizedKeywords returns all keywords in normalized form, in insertion
// order. This is the matcher's snapshot source.
func (r *Repository) NormalizedKeywords() ([]string, error) {
	var items []models.Keyword
	if err := r.db.Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load keywords: %w", err)
	}
	keywords := make([]string, 0, len(items))
	for _, item := range items {
		keywords = append(keywords, item.Normalized)
	}
	return keywords, nil
}
