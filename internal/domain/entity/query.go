package entity

import "strings"

// QueryOperation is what a natural-language question asks of the bill store
type QueryOperation string

const (
	QueryList  QueryOperation = "list"
	QuerySum   QueryOperation = "sum"
	QueryCount QueryOperation = "count"
)

// QueryPlan is the structured form of a natural-language question
type QueryPlan struct {
	Operation QueryOperation `json:"operation"`
	Filters   QueryFilters   `json:"filters"`
	Item      string         `json:"item,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// QueryFilters are exact (case-insensitive) matches on top-level bill fields
type QueryFilters struct {
	Vendor        string `json:"vendor,omitempty"`
	Category      string `json:"category,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
	BillNo        string `json:"bill_no,omitempty"`
}

// Normalize lower-cases the operation and defaults it to list
func (p QueryPlan) Normalize() QueryPlan {
	p.Operation = QueryOperation(strings.ToLower(strings.TrimSpace(string(p.Operation))))
	switch p.Operation {
	case QueryList, QuerySum, QueryCount:
	default:
		p.Operation = QueryList
	}
	if p.Limit <= 0 || p.Limit > MaxPageSize {
		p.Limit = 50
	}
	return p
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
