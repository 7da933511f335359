package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/persistence/sqlite"
)

// sortColumns whitelists the ORDER BY expression for each sortable field
var sortColumns = map[entity.SortField]string{
	entity.SortVendor:      "b.vendor COLLATE NOCASE",
	entity.SortBillDate:    "b.bill_date",
	entity.SortCategory:    "b.category COLLATE NOCASE",
	entity.SortTotalAmount: "b.total_amount",
}

const billColumns = `b.id, b.user_id, b.vendor, b.bill_date, b.total_amount, b.tax_amount,
	b.currency, b.category, b.payment_method, b.bill_no, b.source, b.source_file,
	b.file_path, b.raw_text, b.extra_data, b.created_at`

// BillRepository implements port.BillRepository on SQLite
type BillRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *sqlite.DB, logger *zap.Logger) *BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a bill and its items in one transaction
func (r *BillRepository) Create(ctx context.Context, bill *entity.Bill) error {
	if bill.CreatedAt.IsZero() {
		bill.CreatedAt = time.Now().UTC()
	}

	var extra interface{}
	if len(bill.ExtraData) > 0 {
		data, err := json.Marshal(bill.ExtraData)
		if err != nil {
			return fmt.Errorf("failed to encode extra data: %w", err)
		}
		extra = string(data)
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Executor(ctx)

		_, err := exec.ExecContext(ctx, `
			INSERT INTO bills (
				id, user_id, vendor, bill_date, total_amount, tax_amount, currency,
				category, payment_method, bill_no, source, source_file, file_path,
				raw_text, extra_data, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			bill.ID, bill.UserID, bill.Vendor, bill.BillDate, bill.TotalAmount, bill.TaxAmount,
			bill.Currency, bill.Category, bill.PaymentMethod, nullString(bill.BillNo), bill.Source,
			nullString(bill.SourceFile), nullString(bill.FilePath), nullString(bill.RawText),
			extra, bill.CreatedAt,
		)
		if err != nil {
			if sqlite.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", port.ErrDuplicateBill, bill.ID)
			}
			r.logger.Error("Failed to create bill", zap.String("bill_id", bill.ID), zap.Error(err))
			return fmt.Errorf("failed to create bill: %w", err)
		}

		for i, item := range bill.Items {
			if _, err := exec.ExecContext(ctx, `
				INSERT INTO bill_items (bill_id, position, description, quantity, rate, amount, tax)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				bill.ID, i, item.Description, item.Quantity, item.Rate, item.Amount, item.Tax,
			); err != nil {
				r.logger.Error("Failed to create bill item",
					zap.String("bill_id", bill.ID),
					zap.Int("position", i),
					zap.Error(err))
				return fmt.Errorf("failed to create bill item %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetByID retrieves one of a user's bills with its items
func (r *BillRepository) GetByID(ctx context.Context, userID, id string) (*entity.Bill, error) {
	row := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+billColumns+` FROM bills b WHERE b.id = ? AND b.user_id = ?`, id, userID)

	bill, err := scanBill(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get bill", zap.String("bill_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	if err := r.attachItems(ctx, []*entity.Bill{bill}); err != nil {
		return nil, err
	}
	return bill, nil
}

// List returns one page of a user's bills matching the search and the total
// number of matches. Search is a case-insensitive substring match on vendor,
// category and item descriptions.
func (r *BillRepository) List(ctx context.Context, userID string, q entity.ListingQuery) ([]*entity.Bill, int, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, 0, err
	}

	where := []string{"b.user_id = ?"}
	args := []interface{}{userID}
	if q.Search != "" {
		pattern := likePattern(q.Search)
		where = append(where, `(b.vendor LIKE ? ESCAPE '\' OR b.category LIKE ? ESCAPE '\' OR EXISTS (
			SELECT 1 FROM bill_items i WHERE i.bill_id = b.id AND i.description LIKE ? ESCAPE '\'))`)
		args = append(args, pattern, pattern, pattern)
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills b WHERE `+whereSQL, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count bills", zap.String("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count bills: %w", err)
	}

	order := fmt.Sprintf("%s %s, b.created_at DESC, b.id", sortColumns[q.SortBy], strings.ToUpper(string(q.SortOrder)))
	query := `SELECT ` + billColumns + ` FROM bills b WHERE ` + whereSQL +
		` ORDER BY ` + order + ` LIMIT ? OFFSET ?`

	bills, err := r.queryBills(ctx, query, append(args, q.PageSize, q.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	return bills, total, nil
}

// Find returns bills matching a query plan, newest first
func (r *BillRepository) Find(ctx context.Context, userID string, plan entity.QueryPlan) ([]*entity.Bill, error) {
	plan = plan.Normalize()
	whereSQL, args := planWhere(userID, plan)
	query := `SELECT ` + billColumns + ` FROM bills b WHERE ` + whereSQL +
		` ORDER BY b.bill_date DESC, b.created_at DESC LIMIT ?`
	return r.queryBills(ctx, query, append(args, plan.Limit)...)
}

// Aggregate returns the count and total amount of bills matching a plan
func (r *BillRepository) Aggregate(ctx context.Context, userID string, plan entity.QueryPlan) (int, float64, error) {
	whereSQL, args := planWhere(userID, plan.Normalize())

	var count int
	var sum float64
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(b.total_amount), 0.0) FROM bills b WHERE `+whereSQL, args...,
	).Scan(&count, &sum)
	if err != nil {
		r.logger.Error("Failed to aggregate bills", zap.String("user_id", userID), zap.Error(err))
		return 0, 0, fmt.Errorf("failed to aggregate bills: %w", err)
	}
	return count, sum, nil
}

func planWhere(userID string, plan entity.QueryPlan) (string, []interface{}) {
	where := []string{"b.user_id = ?"}
	args := []interface{}{userID}

	if v := strings.TrimSpace(plan.Filters.Vendor); v != "" {
		where = append(where, `b.vendor LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(v))
	}
	if v := strings.TrimSpace(plan.Filters.Category); v != "" {
		where = append(where, "b.category = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(plan.Filters.PaymentMethod); v != "" {
		where = append(where, "b.payment_method = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if v := strings.TrimSpace(plan.Filters.BillNo); v != "" {
		where = append(where, "b.bill_no = ?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(plan.Item); v != "" {
		where = append(where, `EXISTS (SELECT 1 FROM bill_items i WHERE i.bill_id = b.id AND i.description LIKE ? ESCAPE '\')`)
		args = append(args, likePattern(v))
	}
	if plan.From != "" {
		where = append(where, "substr(b.bill_date, 1, 10) >= ?")
		args = append(args, plan.From)
	}
	if plan.To != "" {
		where = append(where, "substr(b.bill_date, 1, 10) <= ?")
		args = append(args, plan.To)
	}
	return strings.Join(where, " AND "), args
}

func (r *BillRepository) queryBills(ctx context.Context, query string, args ...interface{}) ([]*entity.Bill, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query bills", zap.Error(err))
		return nil, fmt.Errorf("failed to query bills: %w", err)
	}
	defer rows.Close()

	bills := []*entity.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}

	if err := r.attachItems(ctx, bills); err != nil {
		return nil, err
	}
	return bills, nil
}

// attachItems loads the items of all bills with a single query
func (r *BillRepository) attachItems(ctx context.Context, bills []*entity.Bill) error {
	if len(bills) == 0 {
		return nil
	}

	byID := make(map[string]*entity.Bill, len(bills))
	placeholders := make([]string, len(bills))
	args := make([]interface{}, len(bills))
	for i, b := range bills {
		b.Items = []entity.BillItem{}
		byID[b.ID] = b
		placeholders[i] = "?"
		args[i] = b.ID
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT bill_id, description, quantity, rate, amount, tax
		FROM bill_items
		WHERE bill_id IN (`+strings.Join(placeholders, ",")+`)
		ORDER BY bill_id, position`, args...)
	if err != nil {
		r.logger.Error("Failed to load bill items", zap.Error(err))
		return fmt.Errorf("failed to load bill items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var billID string
		var item entity.BillItem
		if err := rows.Scan(&billID, &item.Description, &item.Quantity, &item.Rate, &item.Amount, &item.Tax); err != nil {
			return fmt.Errorf("failed to scan bill item: %w", err)
		}
		if b, ok := byID[billID]; ok {
			b.Items = append(b.Items, item)
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(s scanner) (*entity.Bill, error) {
	var b entity.Bill
	var billNo, sourceFile, filePath, rawText, extra sql.NullString

	err := s.Scan(
		&b.ID, &b.UserID, &b.Vendor, &b.BillDate, &b.TotalAmount, &b.TaxAmount,
		&b.Currency, &b.Category, &b.PaymentMethod, &billNo, &b.Source, &sourceFile,
		&filePath, &rawText, &extra, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.BillNo = billNo.String
	b.SourceFile = sourceFile.String
	b.FilePath = filePath.String
	b.RawText = rawText.String
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &b.ExtraData); err != nil {
			return nil, fmt.Errorf("failed to decode extra data: %w", err)
		}
	}
	return &b, nil
}

// likePattern wraps s for a substring LIKE match, escaping wildcards
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Verify interface compliance
var _ port.BillRepository = (*BillRepository)(nil)
