package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
	"github.com/garyjia/expense-capture/internal/domain/validation"
	"github.com/garyjia/expense-capture/pkg/utils"
)

// DefaultUploadDir is the storage prefix for uploaded originals
const DefaultUploadDir = "uploads"

// IngestService classifies capture submissions. A document is stored,
// extracted and either committed directly, returned for confirmation or
// reported as unreadable. A manual bill is committed as is.
type IngestService struct {
	base
	committer
	storage   port.FileStorage
	extractor port.DocumentExtractor
	uploadDir string
}

// NewIngestService creates a new IngestService
func NewIngestService(
	bills port.BillRepository,
	files port.StoredFileRepository,
	storage port.FileStorage,
	extractor port.DocumentExtractor,
	txManager port.TransactionManager,
	auth entity.Authorizer,
	publisher Publisher,
	logger Logger,
) *IngestService {
	return &IngestService{
		base:      newBase(auth, publisher, logger),
		committer: committer{bills: bills, files: files, txManager: txManager},
		storage:   storage,
		extractor: extractor,
		uploadDir: DefaultUploadDir,
	}
}

// Ingest handles one submission
func (s *IngestService) Ingest(ctx context.Context, req port.IngestRequest) (*port.IngestResponse, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}

	switch {
	case req.File != nil:
		stored, err := s.store(ctx, req.UserID, *req.File)
		if err != nil {
			return nil, err
		}
		return s.ingestDocument(ctx, req.UserID, stored, req.File.Data, req.Metadata)
	case strings.TrimSpace(req.FilePath) != "":
		stored, data, err := s.load(ctx, req.UserID, req.FilePath)
		if err != nil {
			return nil, err
		}
		return s.ingestDocument(ctx, req.UserID, stored, data, req.Metadata)
	case req.Bill != nil:
		return s.ingestManual(ctx, req.UserID, *req.Bill, req.Metadata)
	default:
		return nil, fmt.Errorf("%w: either a file or a bill is required", port.ErrInvalidRequest)
	}
}

// store saves an upload under a fresh key and registers it
func (s *IngestService) store(ctx context.Context, userID string, f port.UploadFile) (*entity.StoredFile, error) {
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", port.ErrInvalidRequest)
	}
	name := utils.SanitizeFileName(f.Name)
	contentType := entity.ContentTypeFor(name)
	if contentType == "application/octet-stream" {
		return nil, fmt.Errorf("%w: unsupported file type %q", port.ErrInvalidRequest, utils.NormalizeExtension(name))
	}

	key := path.Join(s.uploadDir, utils.SanitizeFolderName(userID), uuid.NewString()+utils.NormalizeExtension(name))
	if err := s.storage.Save(ctx, key, f.Data); err != nil {
		s.logError("Failed to save upload", err, "path", key)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	stored := &entity.StoredFile{
		Path:         key,
		UserID:       userID,
		OriginalName: name,
		ContentType:  contentType,
		Size:         int64(len(f.Data)),
		CreatedAt:    s.now(),
	}
	if err := s.files.Create(ctx, stored); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logError("Failed to remove unregistered upload", delErr, "path", key)
		}
		return nil, fmt.Errorf("failed to register upload: %w", err)
	}

	s.logInfo("Upload stored", "path", key, "size", stored.Size, "user_id", userID)
	s.publish(ctx, event.NewEvent(event.TypeFileStored, userID, "", map[string]interface{}{
		event.KeyFilePath: key,
	}))
	return stored, nil
}

// load reads a previously registered upload owned by userID
func (s *IngestService) load(ctx context.Context, userID, filePath string) (*entity.StoredFile, []byte, error) {
	stored, err := s.files.GetByPath(ctx, strings.TrimSpace(filePath))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up file: %w", err)
	}
	if stored == nil || stored.UserID != userID {
		return nil, nil, fmt.Errorf("%w: %s", port.ErrFileNotFound, filePath)
	}
	data, err := s.storage.Read(ctx, stored.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return stored, data, nil
}

func (s *IngestService) ingestDocument(
	ctx context.Context,
	userID string,
	stored *entity.StoredFile,
	data []byte,
	hints port.IngestMetadata,
) (*port.IngestResponse, error) {
	extraction, err := s.extractor.Extract(ctx, port.UploadFile{
		Name:        stored.OriginalName,
		ContentType: stored.ContentType,
		Data:        data,
	})
	if err != nil {
		s.logError("Extraction failed", err, "path", stored.Path)
		s.publish(ctx, event.NewEvent(event.TypeExtractionFailed, userID, "", map[string]interface{}{
			event.KeyFilePath: stored.Path,
			event.KeyReason:   err.Error(),
		}))
		return nil, fmt.Errorf("failed to extract bill: %w", err)
	}

	if strings.TrimSpace(extraction.RawText) == "" || extraction.Draft.IsEmpty() {
		s.logInfo("Document yielded no data", "path", stored.Path)
		s.publish(ctx, event.NewEvent(event.TypeExtractionFailed, userID, "", map[string]interface{}{
			event.KeyFilePath: stored.Path,
			event.KeyReason:   entity.ExtractionFailedMessage,
		}))
		return &port.IngestResponse{
			Status:   entity.StatusExtractionFailed,
			Message:  entity.ExtractionFailedMessage,
			FilePath: stored.Path,
		}, nil
	}

	draft := applyHints(extraction.Draft.Normalized(), hints)
	missing := blockingFields(&draft)

	billID := newBillID()
	if len(missing) > 0 {
		s.logInfo("Bill requires confirmation", "bill_id", billID, "missing", missing)
		s.publish(ctx, event.NewEvent(event.TypeConfirmationRequested, userID, billID, map[string]interface{}{
			event.KeyFilePath: stored.Path,
			event.KeyMissing:  missing,
		}))
		return &port.IngestResponse{
			Status:        entity.StatusRequiresConfirmation,
			BillID:        billID,
			Extracted:     &draft,
			RawText:       extraction.RawText,
			FilePath:      stored.Path,
			MissingFields: missing,
		}, nil
	}

	bill := entity.BillFromDraft(billID, userID, draft)
	bill.Source = entity.SourceUpload
	bill.SourceFile = stored.OriginalName
	bill.FilePath = stored.Path
	bill.RawText = extraction.RawText
	if err := s.commitBill(ctx, bill); err != nil {
		return nil, err
	}
	return &port.IngestResponse{Status: entity.StatusOK, BillID: bill.ID}, nil
}

func (s *IngestService) ingestManual(
	ctx context.Context,
	userID string,
	d entity.Draft,
	hints port.IngestMetadata,
) (*port.IngestResponse, error) {
	draft, err := prepareDraft(applyHints(d, hints))
	if err != nil {
		return nil, err
	}

	bill := entity.BillFromDraft(newBillID(), userID, draft)
	bill.Source = entity.SourceManual
	if err := s.commitBill(ctx, bill); err != nil {
		return nil, err
	}
	return &port.IngestResponse{Status: entity.StatusOK, BillID: bill.ID}, nil
}

func (s *IngestService) commitBill(ctx context.Context, bill *entity.Bill) error {
	at := s.now()
	bill.CreatedAt = at
	if err := s.commit(ctx, bill, at); err != nil {
		s.logError("Failed to commit bill", err, "bill_id", bill.ID)
		return fmt.Errorf("failed to commit bill: %w", err)
	}

	s.logInfo("Bill committed", "bill_id", bill.ID, "source", bill.Source, "total", bill.TotalAmount)
	s.publish(ctx, event.NewEvent(event.TypeBillCommitted, bill.UserID, bill.ID, map[string]interface{}{
		event.KeySource:      bill.Source,
		event.KeyTotalAmount: bill.TotalAmount,
		event.KeyFilePath:    bill.FilePath,
	}))
	return nil
}

// applyHints lets user supplied category and total override extracted values
func applyHints(d entity.Draft, hints port.IngestMetadata) entity.Draft {
	out := d.Clone()
	if c := strings.TrimSpace(hints.Category); c != "" {
		out.Category = c
	}
	if hints.TotalAmount != nil && *hints.TotalAmount > 0 {
		v := *hints.TotalAmount
		out.TotalAmount = &v
	}
	return out
}

// Verify interface compliance
var _ port.Ingester = (*IngestService)(nil)

// blockingFields normalizes the bill date in place and returns every field
// that keeps the draft from being committed directly, in form order.
func blockingFields(d *entity.Draft) []entity.Field {
	flagged := make(map[entity.Field]bool)
	for _, f := range d.MissingFields() {
		flagged[f] = true
	}
	if date, err := entity.NormalizeBillDate(d.BillDate); err != nil {
		flagged[entity.FieldBillDate] = true
	} else {
		d.BillDate = date
	}
	for f := range validation.Validate(*d).Errors {
		flagged[f] = true
	}

	var missing []entity.Field
	for _, f := range []entity.Field{
		entity.FieldVendor,
		entity.FieldBillDate,
		entity.FieldTotalAmount,
		entity.FieldCategory,
		entity.FieldPaymentMethod,
		entity.FieldItems,
	} {
		if flagged[f] {
			missing = append(missing, f)
		}
	}
	return missing
}
