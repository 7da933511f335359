// Package validation checks a draft bill against the required-field and
// line-item rules that gate every commit.
package validation

import (
	"strings"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Error messages attached to fields
const (
	MsgRequired       = "Required"
	MsgNoItems        = "Add at least one item"
	MsgNoValidItem    = "At least one item needs valid Qty/Amt"
	MsgNegativeAmount = "Must not be negative"
)

// Result holds per-field error messages. An empty result is a pass.
type Result struct {
	Errors map[entity.Field]string
}

// OK reports whether the draft passed every rule
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Validate evaluates all rules independently and collects every violation.
// Category is not required.
func Validate(d entity.Draft) Result {
	errs := make(map[entity.Field]string)

	if blank(d.Vendor) {
		errs[entity.FieldVendor] = MsgRequired
	}
	if blank(d.BillDate) {
		errs[entity.FieldBillDate] = MsgRequired
	}
	switch {
	case d.TotalAmount == nil || *d.TotalAmount == 0:
		errs[entity.FieldTotalAmount] = MsgRequired
	case *d.TotalAmount < 0:
		errs[entity.FieldTotalAmount] = MsgNegativeAmount
	}
	if blank(d.PaymentMethod) {
		errs[entity.FieldPaymentMethod] = MsgRequired
	}

	if len(d.Items) == 0 {
		errs[entity.FieldItems] = MsgNoItems
	} else if !anyItemValid(d.Items) {
		errs[entity.FieldItems] = MsgNoValidItem
	}

	return Result{Errors: errs}
}

func anyItemValid(items []entity.BillItem) bool {
	for _, item := range items {
		if item.HasQuantityOrAmount() {
			return true
		}
	}
	return false
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
