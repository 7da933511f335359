package entity

// Submission statuses on the wire
const (
	StatusOK                   = "ok"
	StatusRequiresConfirmation = "requires_confirmation"
	StatusExtractionFailed     = "extraction_failed"
)

// ExtractionFailedMessage is reported when a document yields no text and no fields
const ExtractionFailedMessage = "Could not extract any text from the document. The image might be too blurry or contain no readable text."

// Outcome is the classified result of a capture submission. It is one of
// Committed, NeedsConfirmation or ExtractionFailed.
type Outcome interface {
	outcome()
}

// Committed means the collaborator accepted and stored the record directly
type Committed struct {
	BillID string
}

// NeedsConfirmation carries the proposed record for review before commit
type NeedsConfirmation struct {
	Draft         Draft
	RawText       string
	FilePath      string
	BillID        string
	MissingFields []Field
}

// ExtractionFailed means no structured data could be derived from the document
type ExtractionFailed struct {
	Reason string
}

func (Committed) outcome()         {}
func (NeedsConfirmation) outcome() {}
func (ExtractionFailed) outcome()  {}
