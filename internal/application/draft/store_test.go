package draft

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

func TestNewStore_DefaultsItems(t *testing.T) {
	s := NewStore(entity.Draft{Vendor: "Acme"})

	snap := s.Snapshot()
	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
	assert.Empty(t, s.History())
}

func TestStore_ApplyReplacesSnapshot(t *testing.T) {
	s := NewStore(entity.Draft{Vendor: "Acme"})
	before := s.Snapshot()

	after, err := s.Apply(SetField{Field: entity.FieldVendor, Value: "Globex"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", before.Vendor)
	assert.Equal(t, "Globex", after.Vendor)
	assert.Equal(t, "Globex", s.Snapshot().Vendor)
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	s := NewStore(entity.Draft{Items: []entity.BillItem{{Description: "Tea"}}})

	snap := s.Snapshot()
	snap.Items[0].Description = "mutated"

	assert.Equal(t, "Tea", s.Snapshot().Items[0].Description)
}

func TestStore_ItemCommands(t *testing.T) {
	s := NewStore(entity.Draft{})

	cmds := []Command{
		AddItem{},
		AddItem{},
		SetItemField{Index: 0, Field: entity.ItemDescription, Value: "Coffee"},
		SetItemField{Index: 0, Field: entity.ItemAmount, Value: "120"},
		SetItemField{Index: 1, Field: entity.ItemDescription, Value: "Bagel"},
		RemoveItem{Index: 1},
	}
	for _, cmd := range cmds {
		_, err := s.Apply(cmd)
		require.NoError(t, err)
		assert.Equal(t, entity.FieldItems, cmd.Target())
	}

	snap := s.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, entity.BillItem{Description: "Coffee", Amount: 120}, snap.Items[0])
	assert.Len(t, s.History(), len(cmds))
}

func TestStore_FailedCommandLeavesStateUntouched(t *testing.T) {
	s := NewStore(entity.Draft{Vendor: "Acme"})

	_, err := s.Apply(RemoveItem{Index: 0})
	assert.ErrorIs(t, err, entity.ErrItemIndex)

	_, err = s.Apply(SetField{Field: entity.FieldTotalAmount, Value: "abc"})
	assert.ErrorIs(t, err, entity.ErrInvalidNumber)

	assert.Empty(t, s.History())
	assert.Equal(t, "Acme", s.Snapshot().Vendor)
}

func TestStore_ReplaceDoesNotLog(t *testing.T) {
	s := NewStore(entity.Draft{BillDate: "2025-01-31"})
	s.Replace(entity.Draft{BillDate: "2025-01-31T00:00:00+00:00"})

	assert.Equal(t, "2025-01-31T00:00:00+00:00", s.Snapshot().BillDate)
	assert.Empty(t, s.History())
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := NewStore(entity.Draft{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_, _ = s.Apply(AddItem{})
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				snap := s.Snapshot()
				for _, item := range snap.Items {
					assert.Equal(t, entity.BillItem{}, item)
				}
			}
		}()
	}

	wg.Wait()
	assert.Len(t, s.Snapshot().Items, 100)
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, `set vendor="Acme"`, SetField{Field: entity.FieldVendor, Value: "Acme"}.String())
	assert.Equal(t, "remove item 2", RemoveItem{Index: 2}.String())
	assert.Equal(t, `set items[0].quantity="3"`, SetItemField{Field: entity.ItemQuantity, Value: "3"}.String())
}
