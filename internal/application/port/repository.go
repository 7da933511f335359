package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

var (
	// ErrDuplicateBill is returned when a bill id is already taken
	ErrDuplicateBill = errors.New("bill already exists")

	// ErrInvalidRequest is returned for malformed collaborator requests
	ErrInvalidRequest = errors.New("invalid request")
)

// BillRepository defines persistence operations for committed bills.
// Lookups return nil, nil when the bill does not exist.
type BillRepository interface {
	// Create stores a bill with its items, returning ErrDuplicateBill for a taken id
	Create(ctx context.Context, bill *entity.Bill) error

	// GetByID retrieves one of a user's bills with items
	GetByID(ctx context.Context, userID, id string) (*entity.Bill, error)

	// List returns one page of a user's bills and the total match count
	List(ctx context.Context, userID string, q entity.ListingQuery) ([]*entity.Bill, int, error)

	// Find returns bills matching a query plan, newest first
	Find(ctx context.Context, userID string, plan entity.QueryPlan) ([]*entity.Bill, error)

	// Aggregate returns the count and summed total of bills matching a plan
	Aggregate(ctx context.Context, userID string, plan entity.QueryPlan) (int, float64, error)
}

// StoredFileRepository tracks uploaded documents and which bill claimed them.
// GetByPath returns nil, nil for an unregistered path.
type StoredFileRepository interface {
	Create(ctx context.Context, file *entity.StoredFile) error
	GetByPath(ctx context.Context, path string) (*entity.StoredFile, error)
	Claim(ctx context.Context, path, billID string, at time.Time) error
	ListUnclaimedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.StoredFile, error)
	Delete(ctx context.Context, path string) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
