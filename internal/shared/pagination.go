package shared

import (
	"math"
	"strings"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int   `json:"current_page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage int, total int64) Pagination {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int64(math.Ceil(float64(total) / float64(perPage)))
	if totalPages == 0 {
		totalPages = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the SQL offset for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// SafeField returns candidate when it is in the allowlist, otherwise fallback.
// Filter and sort columns are never interpolated into SQL without passing
// through this allowlist.
func SafeField(candidate, fallback string, allowed []string) string {
	for _, f := range allowed {
		if candidate == f {
			return candidate
		}
	}
	return fallback
}

// SafeOrder normalises a sort direction to ASC or DESC.
func SafeOrder(candidate string) string {
	if strings.EqualFold(candidate, "ASC") {
		return "ASC"
	}
	return "DESC"
}
