package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/domain/event"
)

// ConfirmService commits drafts the user reviewed after a
// requires_confirmation outcome
type ConfirmService struct {
	base
	committer
}

// NewConfirmService creates a new ConfirmService
func NewConfirmService(
	bills port.BillRepository,
	files port.StoredFileRepository,
	txManager port.TransactionManager,
	auth entity.Authorizer,
	publisher Publisher,
	logger Logger,
) *ConfirmService {
	return &ConfirmService{
		base:      newBase(auth, publisher, logger),
		committer: committer{bills: bills, files: files, txManager: txManager},
	}
}

// Confirm stores the approved draft under the caller's bill id. A taken id
// fails with port.ErrDuplicateBill.
func (s *ConfirmService) Confirm(ctx context.Context, req port.ConfirmRequest) (*port.ConfirmResponse, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}
	billID := strings.TrimSpace(req.BillID)
	if billID == "" {
		return nil, fmt.Errorf("%w: bill_id is required", port.ErrInvalidRequest)
	}

	draft, err := prepareDraft(req.Extracted)
	if err != nil {
		return nil, err
	}

	bill := entity.BillFromDraft(billID, req.UserID, draft)
	bill.Source = entity.SourceManual
	bill.RawText = req.RawText

	if filePath := strings.TrimSpace(req.FilePath); filePath != "" {
		stored, err := s.files.GetByPath(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to look up file: %w", err)
		}
		if stored == nil || stored.UserID != req.UserID {
			return nil, fmt.Errorf("%w: unknown file %s", port.ErrInvalidRequest, filePath)
		}
		bill.Source = entity.SourceUpload
		bill.SourceFile = stored.OriginalName
		bill.FilePath = stored.Path
	}

	at := s.now()
	bill.CreatedAt = at
	if err := s.commit(ctx, bill, at); err != nil {
		s.logError("Failed to commit confirmed bill", err, "bill_id", billID)
		return nil, fmt.Errorf("failed to commit bill: %w", err)
	}

	s.logInfo("Confirmed bill committed", "bill_id", billID, "source", bill.Source)
	s.publish(ctx, event.NewEvent(event.TypeBillCommitted, req.UserID, billID, map[string]interface{}{
		event.KeySource:      bill.Source,
		event.KeyTotalAmount: bill.TotalAmount,
		event.KeyFilePath:    bill.FilePath,
	}))
	return &port.ConfirmResponse{Status: entity.StatusOK, BillID: billID}, nil
}

// Verify interface compliance
var _ port.Confirmer = (*ConfirmService)(nil)
