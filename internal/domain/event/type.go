package event

// Type identifies the type of domain event
type Type string

const (
	TypeBillCommitted         Type = "bill.committed"
	TypeConfirmationRequested Type = "bill.confirmation_requested"
	TypeConfirmationCancelled Type = "bill.confirmation_cancelled"
	TypeExtractionFailed      Type = "extraction.failed"
	TypeFileStored            Type = "file.stored"
	TypeFileSwept             Type = "file.swept"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeBillCommitted,
		TypeConfirmationRequested,
		TypeConfirmationCancelled,
		TypeExtractionFailed,
		TypeFileStored,
		TypeFileSwept:
		return true
	default:
		return false
	}
}

// AllTypes returns every defined event type
func AllTypes() []Type {
	return []Type{
		TypeBillCommitted,
		TypeConfirmationRequested,
		TypeConfirmationCancelled,
		TypeExtractionFailed,
		TypeFileStored,
		TypeFileSwept,
	}
}
