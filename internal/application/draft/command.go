package draft

import (
	"fmt"

	"github.com/garyjia/expense-capture/internal/domain/entity"
)

// Command is one user edit of a draft
type Command interface {
	// Apply returns the edited copy of d
	Apply(d entity.Draft) (entity.Draft, error)

	// Target is the field whose validation error the edit clears
	Target() entity.Field
}

// SetField replaces one scalar field with a form value
type SetField struct {
	Field entity.Field
	Value string
}

func (c SetField) Apply(d entity.Draft) (entity.Draft, error) {
	return d.WithField(c.Field, c.Value)
}

func (c SetField) Target() entity.Field {
	return c.Field
}

func (c SetField) String() string {
	return fmt.Sprintf("set %s=%q", c.Field, c.Value)
}

// AddItem appends a zero-valued item
type AddItem struct{}

func (AddItem) Apply(d entity.Draft) (entity.Draft, error) {
	return d.WithItemAdded(), nil
}

func (AddItem) Target() entity.Field {
	return entity.FieldItems
}

func (AddItem) String() string {
	return "add item"
}

// RemoveItem deletes the item at Index
type RemoveItem struct {
	Index int
}

func (c RemoveItem) Apply(d entity.Draft) (entity.Draft, error) {
	return d.WithItemRemoved(c.Index)
}

func (c RemoveItem) Target() entity.Field {
	return entity.FieldItems
}

func (c RemoveItem) String() string {
	return fmt.Sprintf("remove item %d", c.Index)
}

// SetItemField replaces one column of the item at Index
type SetItemField struct {
	Index int
	Field entity.ItemField
	Value string
}

func (c SetItemField) Apply(d entity.Draft) (entity.Draft, error) {
	return d.WithItemField(c.Index, c.Field, c.Value)
}

func (c SetItemField) Target() entity.Field {
	return entity.FieldItems
}

func (c SetItemField) String() string {
	return fmt.Sprintf("set items[%d].%s=%q", c.Index, c.Field, c.Value)
}
