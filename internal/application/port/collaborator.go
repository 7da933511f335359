package port

import (
	"context"
	"errors"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// ErrUnexpectedStatus is returned when a collaborator answers with a status
// the caller cannot act on
var ErrUnexpectedStatus = errors.New("unexpected response status")

// UploadFile is a captured source document held in memory. File picker and
// camera capture both produce one.
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// IngestMetadata carries user supplied hints that override extracted values
type IngestMetadata struct {
	Category    string   `json:"category,omitempty"`
	TotalAmount *float64 `json:"total_amount,omitempty"`
}

// IngestRequest submits either a document or a finished manual record
type IngestRequest struct {
	UserID   string         `json:"user_id"`
	File     *UploadFile    `json:"-"`
	FilePath string         `json:"file_path,omitempty"`
	Metadata IngestMetadata `json:"metadata"`
	Bill     *entity.Draft  `json:"bill,omitempty"`
}

// IngestResponse is the collaborator's classification of a submission
type IngestResponse struct {
	Status        string         `json:"status"`
	BillID        string         `json:"bill_id,omitempty"`
	Extracted     *entity.Draft  `json:"extracted,omitempty"`
	RawText       string         `json:"raw_text,omitempty"`
	FilePath      string         `json:"file_path,omitempty"`
	Message       string         `json:"message,omitempty"`
	MissingFields []entity.Field `json:"missing_fields,omitempty"`
}

// ConfirmRequest commits a user approved draft under BillID
type ConfirmRequest struct {
	UserID    string       `json:"user_id"`
	Extracted entity.Draft `json:"extracted"`
	RawText   string       `json:"raw_text,omitempty"`
	FilePath  string       `json:"file_path,omitempty"`
	BillID    string       `json:"bill_id"`
}

// ConfirmResponse acknowledges a confirmation commit
type ConfirmResponse struct {
	Status string `json:"status"`
	BillID string `json:"bill_id"`
}

// ListRequest asks for one page of a user's committed bills
type ListRequest struct {
	UserID string
	Query  entity.ListingQuery
}

// RetrieveRequest asks for the stored original behind a bill
type RetrieveRequest struct {
	UserID  string
	Path    string
	Preview bool
}

// QueryRequest is a natural-language question over a user's bills
type QueryRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
}

// QueryResponse holds either a sentence or a list of rows
type QueryResponse struct {
	Result interface{} `json:"result"`
}

// Ingester accepts capture submissions
type Ingester interface {
	Ingest(ctx context.Context, req IngestRequest) (*IngestResponse, error)
}

// Confirmer commits confirmed drafts
type Confirmer interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResponse, error)
}

// BillLister serves paginated listings
type BillLister interface {
	List(ctx context.Context, req ListRequest) (*entity.BillPage, error)
}

// FileRetriever re-serves stored source documents
type FileRetriever interface {
	Retrieve(ctx context.Context, req RetrieveRequest) (*entity.RetrievedFile, error)
}

// QueryAnswerer answers natural-language questions
type QueryAnswerer interface {
	Answer(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// Camera opens a live capture stream
type Camera interface {
	Open(ctx context.Context) (CameraStream, error)
}

// CameraStream is a held camera. Close must be called on every exit path.
type CameraStream interface {
	Capture(ctx context.Context) (*UploadFile, error)
	Close() error
}
