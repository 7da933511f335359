package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-capture/internal/application/port"
	"github.com/garyjia/expense-capture/internal/domain/entity"
	"github.com/garyjia/expense-capture/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-capture/pkg/database"
)

func setupDB(t *testing.T) *sqlite.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Migrate())
	return sqlite.NewDB(db.DB, logger)
}

func newBill(id, vendor, date, category string, total float64, items ...string) *entity.Bill {
	bill := &entity.Bill{
		ID:            id,
		UserID:        entity.DefaultUserID,
		Vendor:        vendor,
		BillDate:      date,
		TotalAmount:   total,
		Currency:      entity.DefaultCurrency,
		Category:      category,
		PaymentMethod: "CARD",
		Source:        entity.SourceManual,
	}
	for _, desc := range items {
		bill.Items = append(bill.Items, entity.BillItem{Description: desc, Quantity: 1, Amount: total})
	}
	return bill
}

func TestBillRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(setupDB(t), zap.NewNop())

	bill := newBill("b1", "Acme", "2025-01-31T00:00:00+00:00", "Food", 120, "Coffee", "Bagel")
	bill.ExtraData = map[string]interface{}{"gst": "29ABCDE"}
	bill.FilePath = "uploads/a.png"
	require.NoError(t, repo.Create(ctx, bill))

	got, err := repo.GetByID(ctx, entity.DefaultUserID, "b1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.Vendor)
	assert.Equal(t, 120.0, got.TotalAmount)
	assert.Equal(t, "uploads/a.png", got.FilePath)
	assert.Equal(t, "29ABCDE", got.ExtraData["gst"])
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Coffee", got.Items[0].Description)
	assert.Equal(t, "Bagel", got.Items[1].Description)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestBillRepository_GetByIDScopedToUser(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(setupDB(t), zap.NewNop())
	require.NoError(t, repo.Create(ctx, newBill("b1", "Acme", "2025-01-01", "Food", 10, "x")))

	got, err := repo.GetByID(ctx, "someone-else", "b1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetByID(ctx, entity.DefaultUserID, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBillRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(setupDB(t), zap.NewNop())

	require.NoError(t, repo.Create(ctx, newBill("b1", "Acme", "2025-01-01", "Food", 10, "x")))
	err := repo.Create(ctx, newBill("b1", "Acme", "2025-01-01", "Food", 10, "x"))
	assert.ErrorIs(t, err, port.ErrDuplicateBill)
}

func seedListing(t *testing.T, repo *BillRepository) {
	t.Helper()
	ctx := context.Background()
	bills := []*entity.Bill{
		newBill("b1", "Acme", "2025-01-10", "Food", 30, "Coffee"),
		newBill("b2", "beta mart", "2025-01-20", "Grocery", 10, "Milk"),
		newBill("b3", "Corner Cafe", "2025-02-01", "Food", 20, "Tea"),
		newBill("b4", "100% Organic", "2025-02-15", "Grocery", 40, "Apples"),
	}
	for _, b := range bills {
		require.NoError(t, repo.Create(ctx, b))
	}
}

func ids(bills []*entity.Bill) []string {
	out := make([]string, len(bills))
	for i, b := range bills {
		out[i] = b.ID
	}
	return out
}

func TestBillRepository_List(t *testing.T) {
	repo := NewBillRepository(setupDB(t), zap.NewNop())
	seedListing(t, repo)

	tests := []struct {
		name      string
		query     entity.ListingQuery
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "default newest first",
			query:     entity.DefaultListingQuery(),
			wantIDs:   []string{"b4", "b3", "b2", "b1"},
			wantTotal: 4,
		},
		{
			name:      "vendor ascending ignores case",
			query:     entity.ListingQuery{Page: 1, PageSize: 10, SortBy: entity.SortVendor, SortOrder: entity.SortAsc},
			wantIDs:   []string{"b4", "b1", "b2", "b3"},
			wantTotal: 4,
		},
		{
			name:      "second page",
			query:     entity.ListingQuery{Page: 2, PageSize: 3, SortBy: entity.SortTotalAmount, SortOrder: entity.SortDesc},
			wantIDs:   []string{"b2"},
			wantTotal: 4,
		},
		{
			name:      "search matches category",
			query:     entity.ListingQuery{Page: 1, PageSize: 10, Search: "grocery"},
			wantIDs:   []string{"b4", "b2"},
			wantTotal: 2,
		},
		{
			name:      "search matches item description",
			query:     entity.ListingQuery{Page: 1, PageSize: 10, Search: "tea"},
			wantIDs:   []string{"b3"},
			wantTotal: 1,
		},
		{
			name:      "percent sign is literal",
			query:     entity.ListingQuery{Page: 1, PageSize: 10, Search: "100%"},
			wantIDs:   []string{"b4"},
			wantTotal: 1,
		},
		{
			name:      "page past the end",
			query:     entity.ListingQuery{Page: 5, PageSize: 10},
			wantIDs:   []string{},
			wantTotal: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bills, total, err := repo.List(context.Background(), entity.DefaultUserID, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantIDs, ids(bills))
		})
	}
}

func TestBillRepository_ListRejectsUnknownSort(t *testing.T) {
	repo := NewBillRepository(setupDB(t), zap.NewNop())
	_, _, err := repo.List(context.Background(), entity.DefaultUserID, entity.ListingQuery{SortBy: "raw_text"})
	assert.ErrorIs(t, err, entity.ErrInvalidSort)
}

func TestBillRepository_FindAndAggregate(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(setupDB(t), zap.NewNop())
	seedListing(t, repo)

	plan := entity.QueryPlan{
		Operation: entity.QuerySum,
		Filters:   entity.QueryFilters{Category: "food"},
		From:      "2025-01-01",
		To:        "2025-01-31",
	}
	count, sum, err := repo.Aggregate(ctx, entity.DefaultUserID, plan)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 30.0, sum)

	bills, err := repo.Find(ctx, entity.DefaultUserID, entity.QueryPlan{Item: "milk"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, ids(bills))

	bills, err = repo.Find(ctx, entity.DefaultUserID, entity.QueryPlan{Filters: entity.QueryFilters{Category: "Grocery"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b4", "b2"}, ids(bills))

	count, sum, err = repo.Aggregate(ctx, "nobody", entity.QueryPlan{})
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0.0, sum)
}

func TestStoredFileRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewStoredFileRepository(setupDB(t), zap.NewNop())

	old := time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, repo.Create(ctx, &entity.StoredFile{
		Path: "uploads/old.png", UserID: "u1", OriginalName: "old.png", ContentType: "image/png", Size: 3, CreatedAt: old,
	}))
	require.NoError(t, repo.Create(ctx, &entity.StoredFile{
		Path: "uploads/claimed.pdf", UserID: "u1", OriginalName: "c.pdf", ContentType: "application/pdf", CreatedAt: old,
	}))
	require.NoError(t, repo.Create(ctx, &entity.StoredFile{
		Path: "uploads/new.png", UserID: "u1", OriginalName: "new.png", ContentType: "image/png",
	}))

	require.NoError(t, repo.Claim(ctx, "uploads/claimed.pdf", "b1", time.Now()))
	assert.ErrorIs(t, repo.Claim(ctx, "uploads/missing.pdf", "b1", time.Now()), port.ErrFileNotFound)

	claimed, err := repo.GetByPath(ctx, "uploads/claimed.pdf")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.True(t, claimed.IsClaimed())
	assert.Equal(t, "b1", claimed.BillID)

	stale, err := repo.ListUnclaimedBefore(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "uploads/old.png", stale[0].Path)
	assert.False(t, stale[0].IsClaimed())

	require.NoError(t, repo.Delete(ctx, "uploads/old.png"))
	gone, err := repo.GetByPath(ctx, "uploads/old.png")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
