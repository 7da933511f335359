package entity

// Bill source constants
const (
	SourceManual = "manual"
	SourceUpload = "upload"
)

// Categories offered by the manual entry form. Category is free text; the
// list only seeds choices.
var Categories = []string{
	"Grocery",
	"Food",
	"Travel",
	"Medical",
	"Utilities",
	"Shopping",
	"Entertainment",
	"Other",
}

// PaymentMethods offered by the manual entry form
var PaymentMethods = []string{
	"CASH",
	"UPI",
	"CARD",
	"NETBANKING",
	"OTHER",
}

// RequiredForDirectCommit lists the fields an extracted bill must carry to be
// stored without user confirmation
var RequiredForDirectCommit = []Field{
	FieldVendor,
	FieldCategory,
	FieldTotalAmount,
	FieldPaymentMethod,
}

// MissingFields returns the fields of RequiredForDirectCommit the draft lacks
func (d Draft) MissingFields() []Field {
	var missing []Field
	for _, f := range RequiredForDirectCommit {
		if f == FieldTotalAmount {
			if d.TotalAmount == nil || *d.TotalAmount == 0 {
				missing = append(missing, f)
			}
			continue
		}
		if isBlank(d.Value(f)) {
			missing = append(missing, f)
		}
	}
	return missing
}

// IsEmpty reports whether extraction produced nothing usable
func (d Draft) IsEmpty() bool {
	return isBlank(d.Vendor) && isBlank(d.BillDate) && d.TotalAmount == nil &&
		isBlank(d.Category) && isBlank(d.PaymentMethod) && isBlank(d.BillNo) &&
		len(d.Items) == 0
}
