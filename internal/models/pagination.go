package models

const (
	// DefaultPageSize applies when a list request does not ask for a size.
	DefaultPageSize = 20
	// MaxPageSize caps the page size a client may request.
	MaxPageSize = 100
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NewPagination normalises page and size the way list queries apply them.
func NewPagination(page, size, total int) *Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return &Pagination{Page: page, PageSize: size, TotalCount: total}
}
