package postgres

import (
	"fmt"

	"gorm.io/gorm"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"title":      true,
	"difficulty": true,
	"full_name":  true,
	"email":      true,
}

// applyPaginationAndSort clamps limits and whitelists sort columns so filter
// values can come straight from query strings.
func applyPaginationAndSort(query *gorm.DB, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	if sortOrder != "asc" {
		sortOrder = "desc"
	}
	query = query.Order(fmt.Sprintf("%s %s", sortBy, sortOrder))

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	return query.Limit(limit).Offset(offset)
}
