package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

func amount(v float64) *float64 {
	return &v
}

func validDraft() entity.Draft {
	return entity.Draft{
		Vendor:        "Acme",
		BillDate:      "2025-01-31T00:00:00+00:00",
		TotalAmount:   amount(120),
		Category:      "Food",
		PaymentMethod: "CARD",
		Items:         []entity.BillItem{{Description: "Coffee", Quantity: 1, Amount: 120}},
	}
}

func TestValidate_ValidDraft(t *testing.T) {
	result := Validate(validDraft())
	assert.True(t, result.OK())
	assert.Empty(t, result.Errors)
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *entity.Draft)
		missing []entity.Field
	}{
		{
			name:    "vendor",
			mutate:  func(d *entity.Draft) { d.Vendor = "" },
			missing: []entity.Field{entity.FieldVendor},
		},
		{
			name:    "bill date whitespace",
			mutate:  func(d *entity.Draft) { d.BillDate = "   " },
			missing: []entity.Field{entity.FieldBillDate},
		},
		{
			name:    "total amount absent",
			mutate:  func(d *entity.Draft) { d.TotalAmount = nil },
			missing: []entity.Field{entity.FieldTotalAmount},
		},
		{
			name:    "payment method",
			mutate:  func(d *entity.Draft) { d.PaymentMethod = "" },
			missing: []entity.Field{entity.FieldPaymentMethod},
		},
		{
			name: "all four",
			mutate: func(d *entity.Draft) {
				d.Vendor, d.BillDate, d.PaymentMethod = "", "", ""
				d.TotalAmount = nil
			},
			missing: []entity.Field{
				entity.FieldVendor,
				entity.FieldBillDate,
				entity.FieldTotalAmount,
				entity.FieldPaymentMethod,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			result := Validate(d)

			assert.False(t, result.OK())
			assert.Len(t, result.Errors, len(tt.missing))
			for _, f := range tt.missing {
				assert.Equal(t, MsgRequired, result.Errors[f], "field %s", f)
			}
		})
	}
}

func TestValidate_CategoryNotRequired(t *testing.T) {
	d := validDraft()
	d.Category = ""
	assert.True(t, Validate(d).OK())
}

func TestValidate_Items(t *testing.T) {
	tests := []struct {
		name  string
		items []entity.BillItem
		want  string
	}{
		{"nil items", nil, MsgNoItems},
		{"empty items", []entity.BillItem{}, MsgNoItems},
		{
			name:  "no quantity or amount",
			items: []entity.BillItem{{Description: "a"}, {Description: "b", Quantity: -1, Amount: 0}},
			want:  MsgNoValidItem,
		},
		{"quantity only", []entity.BillItem{{Quantity: 2}}, ""},
		{"amount only", []entity.BillItem{{}, {Amount: 4.5}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			d.Items = tt.items

			result := Validate(d)

			assert.Equal(t, tt.want, result.Errors[entity.FieldItems])
			if tt.want == "" {
				assert.True(t, result.OK())
			}
		})
	}
}

func TestValidate_NegativeTotal(t *testing.T) {
	d := validDraft()
	d.TotalAmount = amount(-5)
	assert.Equal(t, MsgNegativeAmount, Validate(d).Errors[entity.FieldTotalAmount])
}

func TestValidate_Idempotent(t *testing.T) {
	d := validDraft()
	d.Vendor = ""
	first := Validate(d)
	second := Validate(d)
	assert.Equal(t, first, second)
}
