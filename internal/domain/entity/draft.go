package entity

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCurrency is applied when neither extraction nor the user names one
const DefaultCurrency = "INR"

var (
	// ErrUnknownField is returned when an edit names a field the draft does not have
	ErrUnknownField = errors.New("unknown field")

	// ErrItemIndex is returned when an item edit addresses a missing row
	ErrItemIndex = errors.New("item index out of range")

	// ErrInvalidNumber is returned when a numeric field cannot be parsed
	ErrInvalidNumber = errors.New("invalid number")
)

// Field names an editable top-level field of a draft
type Field string

const (
	FieldVendor        Field = "vendor"
	FieldBillDate      Field = "bill_date"
	FieldTotalAmount   Field = "total_amount"
	FieldTaxAmount     Field = "tax_amount"
	FieldCurrency      Field = "currency"
	FieldCategory      Field = "category"
	FieldPaymentMethod Field = "payment_method"
	FieldBillNo        Field = "bill_no"
	FieldItems         Field = "items"
)

// ItemField names an editable column of a bill item
type ItemField string

const (
	ItemDescription ItemField = "description"
	ItemQuantity    ItemField = "quantity"
	ItemRate        ItemField = "rate"
	ItemAmount      ItemField = "amount"
	ItemTax         ItemField = "tax"
)

// Draft is the working hypothesis for a bill, produced by extraction or manual
// entry. All With* methods return a new value and leave the receiver untouched.
type Draft struct {
	Vendor        string                 `json:"vendor"`
	BillDate      string                 `json:"bill_date"`
	TotalAmount   *float64               `json:"total_amount"`
	TaxAmount     float64                `json:"tax_amount,omitempty"`
	Currency      string                 `json:"currency,omitempty"`
	Category      string                 `json:"category"`
	PaymentMethod string                 `json:"payment_method"`
	BillNo        string                 `json:"bill_no,omitempty"`
	ExtraData     map[string]interface{} `json:"extra_data,omitempty"`
	Items         []BillItem             `json:"items"`
}

// knownDraftKeys are decoded into typed fields; anything else lands in ExtraData
var knownDraftKeys = map[string]bool{
	"vendor": true, "bill_date": true, "total_amount": true, "tax_amount": true,
	"total_tax": true, "currency": true, "category": true, "payment_method": true,
	"bill_no": true, "items": true, "line_items": true, "extra_data": true, "raw": true,
}

// UnmarshalJSON decodes loosely typed extraction output into a draft
func (d *Draft) UnmarshalJSON(data []byte) error {
	var raw struct {
		Vendor        *string                `json:"vendor"`
		BillDate      *string                `json:"bill_date"`
		TotalAmount   *FlexFloat             `json:"total_amount"`
		TaxAmount     *FlexFloat             `json:"tax_amount"`
		TotalTax      *FlexFloat             `json:"total_tax"`
		Currency      *string                `json:"currency"`
		Category      *string                `json:"category"`
		PaymentMethod *string                `json:"payment_method"`
		BillNo        *FlexString            `json:"bill_no"`
		ExtraData     map[string]interface{} `json:"extra_data"`
		Items         []BillItem             `json:"items"`
		LineItems     []BillItem             `json:"line_items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Draft{
		Vendor:        deref(raw.Vendor),
		BillDate:      deref(raw.BillDate),
		Currency:      deref(raw.Currency),
		Category:      deref(raw.Category),
		PaymentMethod: deref(raw.PaymentMethod),
		ExtraData:     raw.ExtraData,
		Items:         raw.Items,
	}
	if raw.BillNo != nil {
		out.BillNo = string(*raw.BillNo)
	}
	if raw.TotalAmount != nil {
		v := float64(*raw.TotalAmount)
		out.TotalAmount = &v
	}
	switch {
	case raw.TaxAmount != nil:
		out.TaxAmount = float64(*raw.TaxAmount)
	case raw.TotalTax != nil:
		out.TaxAmount = float64(*raw.TotalTax)
	}
	if len(out.Items) == 0 && len(raw.LineItems) > 0 {
		out.Items = raw.LineItems
	}

	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err == nil {
		for k, v := range all {
			if knownDraftKeys[k] || v == nil {
				continue
			}
			if out.ExtraData == nil {
				out.ExtraData = make(map[string]interface{})
			}
			if _, exists := out.ExtraData[k]; !exists {
				out.ExtraData[k] = v
			}
		}
	}

	*d = out
	return nil
}

// Clone returns a deep copy of the draft
func (d Draft) Clone() Draft {
	out := d
	if d.TotalAmount != nil {
		v := *d.TotalAmount
		out.TotalAmount = &v
	}
	if d.ExtraData != nil {
		out.ExtraData = make(map[string]interface{}, len(d.ExtraData))
		for k, v := range d.ExtraData {
			out.ExtraData[k] = v
		}
	}
	out.Items = cloneItems(d.Items)
	return out
}

// Normalized returns the draft with items defaulted and the currency filled in
func (d Draft) Normalized() Draft {
	out := d.Clone()
	if out.Items == nil {
		out.Items = []BillItem{}
	}
	if strings.TrimSpace(out.Currency) == "" {
		out.Currency = DefaultCurrency
	}
	return out
}

// Value renders a scalar field as it would appear in a form input
func (d Draft) Value(f Field) string {
	switch f {
	case FieldVendor:
		return d.Vendor
	case FieldBillDate:
		return d.BillDate
	case FieldTotalAmount:
		if d.TotalAmount == nil {
			return ""
		}
		return formatFloat(*d.TotalAmount)
	case FieldTaxAmount:
		return formatFloat(d.TaxAmount)
	case FieldCurrency:
		return d.Currency
	case FieldCategory:
		return d.Category
	case FieldPaymentMethod:
		return d.PaymentMethod
	case FieldBillNo:
		return d.BillNo
	default:
		return ""
	}
}

// WithField returns a copy with one scalar field replaced by a form value
func (d Draft) WithField(f Field, value string) (Draft, error) {
	out := d.Clone()
	switch f {
	case FieldVendor:
		out.Vendor = value
	case FieldBillDate:
		out.BillDate = value
	case FieldTotalAmount:
		if strings.TrimSpace(value) == "" {
			out.TotalAmount = nil
			break
		}
		v, err := ParseAmount(value)
		if err != nil {
			return d, err
		}
		out.TotalAmount = &v
	case FieldTaxAmount:
		v, err := parseOptionalAmount(value)
		if err != nil {
			return d, err
		}
		out.TaxAmount = v
	case FieldCurrency:
		out.Currency = value
	case FieldCategory:
		out.Category = value
	case FieldPaymentMethod:
		out.PaymentMethod = value
	case FieldBillNo:
		out.BillNo = value
	default:
		return d, fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return out, nil
}

// WithItems returns a copy with the whole items sequence replaced
func (d Draft) WithItems(items []BillItem) Draft {
	out := d.Clone()
	out.Items = cloneItems(items)
	if out.Items == nil {
		out.Items = []BillItem{}
	}
	return out
}

// WithItemAdded returns a copy with a zero-valued item appended
func (d Draft) WithItemAdded() Draft {
	out := d.Clone()
	out.Items = append(out.Items, BillItem{})
	return out
}

// WithItemRemoved returns a copy without the item at index
func (d Draft) WithItemRemoved(index int) (Draft, error) {
	if index < 0 || index >= len(d.Items) {
		return d, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	out := d.Clone()
	out.Items = append(out.Items[:index], out.Items[index+1:]...)
	return out, nil
}

// WithItemField returns a copy with one column of one item replaced
func (d Draft) WithItemField(index int, f ItemField, value string) (Draft, error) {
	if index < 0 || index >= len(d.Items) {
		return d, fmt.Errorf("%w: %d", ErrItemIndex, index)
	}
	out := d.Clone()
	item := &out.Items[index]

	if f == ItemDescription {
		item.Description = value
		return out, nil
	}

	v, err := parseOptionalAmount(value)
	if err != nil {
		return d, err
	}
	switch f {
	case ItemQuantity:
		item.Quantity = v
	case ItemRate:
		item.Rate = v
	case ItemAmount:
		item.Amount = v
	case ItemTax:
		item.Tax = v
	default:
		return d, fmt.Errorf("%w: items.%s", ErrUnknownField, f)
	}
	return out, nil
}

// ParseAmount parses a user or model supplied number, tolerating thousands
// separators and a leading currency symbol.
func ParseAmount(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimLeft(clean, "₹$€£¥ ")
	clean = strings.ReplaceAll(clean, ",", "")
	if clean == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return v, nil
}

func parseOptionalAmount(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseAmount(s)
}

func cloneItems(items []BillItem) []BillItem {
	if items == nil {
		return nil
	}
	out := make([]BillItem, len(items))
	copy(out, items)
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
