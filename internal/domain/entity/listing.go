package entity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSort is returned for a sort key or order outside the allowed set
var ErrInvalidSort = errors.New("invalid sort")

// SortField is a column the listing can be ordered by
type SortField string

const (
	SortVendor      SortField = "vendor"
	SortBillDate    SortField = "bill_date"
	SortCategory    SortField = "category"
	SortTotalAmount SortField = "total_amount"
)

// SortOrder is the listing direction
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Listing defaults
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// IsValid reports whether the field is sortable
func (f SortField) IsValid() bool {
	switch f {
	case SortVendor, SortBillDate, SortCategory, SortTotalAmount:
		return true
	default:
		return false
	}
}

// Reverse returns the opposite direction
func (o SortOrder) Reverse() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// ListingQuery describes one view of committed bills
type ListingQuery struct {
	Page      int       `json:"page"`
	PageSize  int       `json:"page_size"`
	SortBy    SortField `json:"sort_by"`
	SortOrder SortOrder `json:"sort_order"`
	Search    string    `json:"search,omitempty"`
}

// DefaultListingQuery returns the first page sorted by date, newest first
func DefaultListingQuery() ListingQuery {
	return ListingQuery{
		Page:      1,
		PageSize:  DefaultPageSize,
		SortBy:    SortBillDate,
		SortOrder: SortDesc,
	}
}

// Normalize fills defaults and clamps page bounds. Unknown sort keys are
// rejected rather than silently replaced.
func (q ListingQuery) Normalize() (ListingQuery, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.SortBy == "" {
		q.SortBy = SortBillDate
	}
	if !q.SortBy.IsValid() {
		return q, fmt.Errorf("%w: sort_by %q", ErrInvalidSort, q.SortBy)
	}
	q.SortOrder = SortOrder(strings.ToLower(string(q.SortOrder)))
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	if q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return q, fmt.Errorf("%w: sort_order %q", ErrInvalidSort, q.SortOrder)
	}
	q.Search = strings.TrimSpace(q.Search)
	return q, nil
}

// Offset returns the number of rows skipped before this page
func (q ListingQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.PageSize
}

// ToggleSort applies a sort-column click: the active column flips direction,
// any other column becomes active in descending order.
func (q ListingQuery) ToggleSort(field SortField) ListingQuery {
	if q.SortBy == field {
		q.SortOrder = q.SortOrder.Reverse()
		return q
	}
	q.SortBy = field
	q.SortOrder = SortDesc
	return q
}

// Pagination describes the position of a page within the full result
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes total pages as ceil(total / pageSize)
func NewPagination(page, pageSize, total int) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// BillPage is one page of committed bills
type BillPage struct {
	Data       []*Bill    `json:"data"`
	Pagination Pagination `json:"pagination"`
}
