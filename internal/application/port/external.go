package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Extraction is the structured guess for a document plus its raw evidence
type Extraction struct {
	Draft   entity.Draft
	RawText string
}

// DocumentExtractor turns an image or PDF into a draft bill
type DocumentExtractor interface {
	Extract(ctx context.Context, file UploadFile) (*Extraction, error)
}

// QueryPlanner turns a natural-language question into a structured plan
type QueryPlanner interface {
	Plan(ctx context.Context, question string, today time.Time) (*entity.QueryPlan, error)
}

// BillExporter writes bills in a downloadable format
type BillExporter interface {
	ContentType() string
	Extension() string
	Write(w io.Writer, bills []*entity.Bill) error
}
