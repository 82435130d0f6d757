// Package repository provides GORM-backed stores for forum accounts, discussions, comments and reset tokens.
package repository

import (
	"forum/internal/database"
	"forum/internal/models"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// readDB routes reads to the replica when one is connected.
func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

func clampPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	return limit, max(offset, 0)
}

// pageOf counts the rows matched by scope and loads one ordered window of them.
// Preloads apply to the window query only.
func pageOf[T any](scope *gorm.DB, limit, offset int, order string, preload ...string) ([]T, int64, error) {
	limit, offset = clampPage(limit, offset)

	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	q := scope.Session(&gorm.Session{})
	for _, assoc := range preload {
		q = q.Preload(assoc)
	}
	var items []T
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return items, total, nil
}
