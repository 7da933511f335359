package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// QueryRow is one bill in a list answer
type QueryRow struct {
	ID            string  `json:"id"`
	Vendor        string  `json:"vendor"`
	BillDate      string  `json:"bill_date"`
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
	Category      string  `json:"category"`
	PaymentMethod string  `json:"payment_method"`
	BillNo        string  `json:"bill_no,omitempty"`
	FilePath      string  `json:"file_path,omitempty"`
}

// QueryService answers natural-language questions by letting a planner turn
// them into a structured query that runs on the bill store
type QueryService struct {
	base
	bills   port.BillRepository
	planner port.QueryPlanner
}

// NewQueryService creates a new QueryService
func NewQueryService(
	bills port.BillRepository,
	planner port.QueryPlanner,
	auth entity.Authorizer,
	logger Logger,
) *QueryService {
	return &QueryService{
		base:    newBase(auth, nil, logger),
		bills:   bills,
		planner: planner,
	}
}

// Answer plans and runs one question. The principal is checked before the
// planner is consulted.
func (s *QueryService) Answer(ctx context.Context, req port.QueryRequest) (*port.QueryResponse, error) {
	if err := s.authorize(req.UserID); err != nil {
		return nil, err
	}
	question := strings.TrimSpace(req.Query)
	if question == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}

	plan, err := s.planner.Plan(ctx, question, s.now())
	if err != nil {
		s.logError("Failed to plan query", err, "query", question)
		return nil, fmt.Errorf("failed to plan query: %w", err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: no plan for %q", ErrInvalidQuery, question)
	}
	normalized := plan.Normalize()
	s.logInfo("Query planned", "operation", string(normalized.Operation), "user_id", req.UserID)

	switch normalized.Operation {
	case entity.QuerySum, entity.QueryCount:
		count, total, err := s.bills.Aggregate(ctx, req.UserID, normalized)
		if err != nil {
			s.logError("Failed to aggregate bills", err, "user_id", req.UserID)
			return nil, fmt.Errorf("failed to aggregate bills: %w", err)
		}
		if normalized.Operation == entity.QueryCount {
			return &port.QueryResponse{Result: fmt.Sprintf("%d bills", count)}, nil
		}
		return &port.QueryResponse{Result: fmt.Sprintf("Total: %.2f across %d bills", total, count)}, nil
	default:
		bills, err := s.bills.Find(ctx, req.UserID, normalized)
		if err != nil {
			s.logError("Failed to find bills", err, "user_id", req.UserID)
			return nil, fmt.Errorf("failed to find bills: %w", err)
		}
		rows := make([]QueryRow, 0, len(bills))
		for _, b := range bills {
			rows = append(rows, QueryRow{
				ID:            b.ID,
				Vendor:        b.Vendor,
				BillDate:      b.BillDate,
				TotalAmount:   b.TotalAmount,
				Currency:      b.Currency,
				Category:      b.Category,
				PaymentMethod: b.PaymentMethod,
				BillNo:        b.BillNo,
				FilePath:      b.FilePath,
			})
		}
		return &port.QueryResponse{Result: rows}, nil
	}
}

// Verify interface compliance
var _ port.QueryAnswerer = (*QueryService)(nil)
