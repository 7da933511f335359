package entity

import (
	"encoding/json"
	"time"
)

// BillItem is one line entry of a bill
type BillItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate,omitempty"`
	Amount      float64 `json:"amount,omitempty"`
	Tax         float64 `json:"tax,omitempty"`
}

// UnmarshalJSON accepts "name" as an alias of "description" and numbers
// encoded as strings, both of which extraction output produces.
func (i *BillItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string    `json:"description"`
		Name        string    `json:"name"`
		Quantity    FlexFloat `json:"quantity"`
		Rate        FlexFloat `json:"rate"`
		Amount      FlexFloat `json:"amount"`
		Tax         FlexFloat `json:"tax"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	i.Description = raw.Description
	if i.Description == "" {
		i.Description = raw.Name
	}
	i.Quantity = float64(raw.Quantity)
	i.Rate = float64(raw.Rate)
	i.Amount = float64(raw.Amount)
	i.Tax = float64(raw.Tax)
	return nil
}

// HasQuantityOrAmount reports whether the item carries a positive quantity or amount
func (i BillItem) HasQuantityOrAmount() bool {
	return i.Quantity > 0 || i.Amount > 0
}

// Bill is a committed expense record
type Bill struct {
	ID            string                 `json:"id"`
	UserID        string                 `json:"user_id"`
	Vendor        string                 `json:"vendor"`
	BillDate      string                 `json:"bill_date"`
	TotalAmount   float64                `json:"total_amount"`
	TaxAmount     float64                `json:"tax_amount,omitempty"`
	Currency      string                 `json:"currency"`
	Category      string                 `json:"category"`
	PaymentMethod string                 `json:"payment_method"`
	BillNo        string                 `json:"bill_no,omitempty"`
	Source        string                 `json:"source"`
	SourceFile    string                 `json:"source_file,omitempty"`
	FilePath      string                 `json:"file_path,omitempty"`
	RawText       string                 `json:"raw_text,omitempty"`
	ExtraData     map[string]interface{} `json:"extra_data,omitempty"`
	Items         []BillItem             `json:"items"`
	CreatedAt     time.Time              `json:"created_at"`
}

// BillFromDraft builds the committed form of an approved draft
func BillFromDraft(id, userID string, d Draft) *Bill {
	bill := &Bill{
		ID:            id,
		UserID:        userID,
		Vendor:        d.Vendor,
		BillDate:      d.BillDate,
		TaxAmount:     d.TaxAmount,
		Currency:      d.Currency,
		Category:      d.Category,
		PaymentMethod: d.PaymentMethod,
		BillNo:        d.BillNo,
		ExtraData:     d.ExtraData,
		Items:         cloneItems(d.Items),
	}
	if d.TotalAmount != nil {
		bill.TotalAmount = *d.TotalAmount
	}
	if bill.Currency == "" {
		bill.Currency = DefaultCurrency
	}
	if bill.Items == nil {
		bill.Items = []BillItem{}
	}
	return bill
}

// ToDraft returns the editable form of a bill
func (b *Bill) ToDraft() Draft {
	total := b.TotalAmount
	return Draft{
		Vendor:        b.Vendor,
		BillDate:      b.BillDate,
		TotalAmount:   &total,
		TaxAmount:     b.TaxAmount,
		Currency:      b.Currency,
		Category:      b.Category,
		PaymentMethod: b.PaymentMethod,
		BillNo:        b.BillNo,
		ExtraData:     b.ExtraData,
		Items:         cloneItems(b.Items),
	}
}
