package main

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/application/listing"
	"github.com/garyjia/expense-capture/internal/domain/entity"
)

func TestRunListLoop_Commands(t *testing.T) {
	api := &fakeAPI{}
	c := listing.NewController(entity.Principal{UserID: "u1"}, api)
	defer c.Close()

	input := strings.Join([]string{
		"page 2",
		"sort vendor",
		"sort vendor",
		"sort price",
		"size 5",
		"page x",
		"bogus",
		"quit",
		"page 9",
	}, "\n")

	var out bytes.Buffer
	var mu sync.Mutex
	require.NoError(t, runListLoop(c, strings.NewReader(input), &out, &mu))
	c.Wait()

	assert.Equal(t, entity.ListingQuery{
		Page: 1, PageSize: 5, SortBy: entity.SortVendor, SortOrder: entity.SortAsc,
	}, c.Query())

	api.mu.Lock()
	assert.Len(t, api.lists, 4)
	api.mu.Unlock()

	text := out.String()
	assert.Contains(t, text, "invalid sort")
	assert.Contains(t, text, `invalid number "x"`)
	assert.Contains(t, text, `unknown command "bogus"`)
}

func TestRunListLoop_PrevOnFirstPage(t *testing.T) {
	api := &fakeAPI{}
	c := listing.NewController(entity.Principal{UserID: "u1"}, api)
	defer c.Close()

	var out bytes.Buffer
	var mu sync.Mutex
	require.NoError(t, runListLoop(c, strings.NewReader("prev\n"), &out, &mu))

	assert.Contains(t, out.String(), "Already on the first page.")
	assert.Empty(t, api.lists)
}

func TestFormatBills(t *testing.T) {
	t.Run("rows and footer", func(t *testing.T) {
		var out bytes.Buffer
		formatBills(&out, listing.View{
			Rows: []*entity.Bill{
				{ID: "b1", Vendor: "Acme", BillDate: "2025-01-31T00:00:00+00:00", Category: "Food", TotalAmount: 99.5,
					Items: []entity.BillItem{{Description: "Tea"}}},
			},
			Query:      entity.DefaultListingQuery(),
			Page:       1,
			TotalPages: 1,
			Total:      1,
		})
		text := out.String()
		assert.Contains(t, text, "VENDOR")
		assert.Contains(t, text, "Acme")
		assert.Contains(t, text, "99.50")
		assert.Contains(t, text, "Page 1 of 1 (1 bills, sorted by bill_date desc)")
	})

	t.Run("empty", func(t *testing.T) {
		var out bytes.Buffer
		formatBills(&out, listing.View{})
		assert.Equal(t, "No bills found.\n", out.String())
	})

	t.Run("error", func(t *testing.T) {
		var out bytes.Buffer
		formatBills(&out, listing.View{Err: errors.New("boom")})
		assert.Equal(t, "error: boom\n", out.String())
	})
}

func TestFormatDraft_ShowsErrors(t *testing.T) {
	var out bytes.Buffer
	formatDraft(&out, entity.Draft{Vendor: "Acme", BillDate: "31/31/2025"}, map[entity.Field]string{
		entity.FieldBillDate: "Invalid date",
		entity.FieldItems:    "Add at least one item",
	})

	text := out.String()
	assert.Contains(t, text, "31/31/2025")
	assert.Contains(t, text, "! Invalid date")
	assert.Contains(t, text, "! Add at least one item")
	assert.Contains(t, text, "(none)")
}

func TestFormatQueryResult(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		var out bytes.Buffer
		formatQueryResult(&out, []interface{}{
			map[string]interface{}{"vendor": "Acme", "bill_date": "2025-01-31", "total_amount": 120.0},
		})
		text := out.String()
		assert.Contains(t, text, "VENDOR")
		assert.Contains(t, text, "Acme")
		assert.Contains(t, text, "120.00")
	})

	t.Run("no rows", func(t *testing.T) {
		var out bytes.Buffer
		formatQueryResult(&out, []interface{}{})
		assert.Equal(t, "No matching bills.\n", out.String())
	})

	t.Run("object", func(t *testing.T) {
		var out bytes.Buffer
		formatQueryResult(&out, map[string]interface{}{"total": 10.0, "count": "2"})
		assert.Equal(t, "count: 2\ntotal: 10.00\n", out.String())
	})
}
