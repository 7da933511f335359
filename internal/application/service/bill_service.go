package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// DefaultExportLimit caps the rows written by one export
const DefaultExportLimit = 10000

// ExportResult is a rendered export ready to be downloaded
type ExportResult struct {
	Data        []byte
	ContentType string
	FileName    string
	Count       int
}

// BillService serves paginated listings and spreadsheet exports
type BillService struct {
	base
	bills       port.BillRepository
	exporter    port.BillExporter
	exportLimit int
}

// NewBillService creates a new BillService. A non-positive exportLimit uses
// DefaultExportLimit.
func NewBillService(
	bills port.BillRepository,
	exporter port.BillExporter,
	exportLimit int,
	auth entity.Authorizer,
	logger Logger,
) *BillService {
	if exportLimit <= 0 {
		exportLimit = DefaultExportLimit
	}
	return &BillService{
		base:        newBase(auth, nil, logger),
		bills:       bills,
		exporter:    exporter,
		exportLimit: exportLimit,
	}
}

// List returns one page of the user's bills
func (s *BillService) List(ctx context.Context, req port.ListRequest) (*entity.BillPage, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(req.Query)
	if err != nil {
		return nil, err
	}

	bills, total, err := s.bills.List(ctx, req.UserID, q)
	if err != nil {
		s.logError("Failed to list bills", err, "user_id", req.UserID)
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	if bills == nil {
		bills = []*entity.Bill{}
	}
	return &entity.BillPage{
		Data:       bills,
		Pagination: entity.NewPagination(q.Page, q.PageSize, total),
	}, nil
}

// Export renders every bill matching the listing filters, up to the export
// limit, in the exporter's format. Paging fields of the query are ignored.
func (s *BillService) Export(ctx context.Context, req port.ListRequest) (*ExportResult, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}
	q, err := normalizeQuery(req.Query)
	if err != nil {
		return nil, err
	}
	q.PageSize = entity.MaxPageSize

	var all []*entity.Bill
	for page := 1; len(all) < s.exportLimit; page++ {
		q.Page = page
		bills, total, err := s.bills.List(ctx, req.UserID, q)
		if err != nil {
			s.logError("Failed to load bills for export", err, "user_id", req.UserID, "page", page)
			return nil, fmt.Errorf("failed to load bills: %w", err)
		}
		all = append(all, bills...)
		if len(bills) == 0 || len(all) >= total {
			break
		}
	}
	if len(all) > s.exportLimit {
		all = all[:s.exportLimit]
	}

	var buf bytes.Buffer
	if err := s.exporter.Write(&buf, all); err != nil {
		s.logError("Failed to render export", err, "user_id", req.UserID)
		return nil, fmt.Errorf("failed to render export: %w", err)
	}

	s.logInfo("Bills exported", "user_id", req.UserID, "count", len(all))
	return &ExportResult{
		Data:        buf.Bytes(),
		ContentType: s.exporter.ContentType(),
		FileName:    fmt.Sprintf("bills-%s%s", s.now().Format("20060102-150405"), s.exporter.Extension()),
		Count:       len(all),
	}, nil
}

func normalizeQuery(q entity.ListingQuery) (entity.ListingQuery, error) {
	out, err := q.Normalize()
	if err != nil {
		if errors.Is(err, entity.ErrInvalidSort) {
			return out, fmt.Errorf("%w: %v", port.ErrInvalidRequest, err)
		}
		return out, err
	}
	return out, nil
}

// Verify interface compliance
var _ port.BillLister = (*BillService)(nil)
