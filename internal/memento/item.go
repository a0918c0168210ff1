package memento

import (
	"fmt"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Item stages a proposed value for one cell of its memento's row. The
// proposed value and the stored cell are independent until Commit or
// Rollback.
type Item struct {
	owner  *Memento
	col    int
	column types.Column
	value  types.Value

	// readOnly items identify their row and accept only their current value.
	readOnly bool
}

// Name returns the column name.
func (it *Item) Name() string { return it.column.Name }

// Kind returns the declared column kind.
func (it *Item) Kind() types.Kind { return it.column.Kind }

// Column returns the column index.
func (it *Item) Column() int { return it.col }

// ReadOnly reports whether the item refuses new values.
func (it *Item) ReadOnly() bool { return it.readOnly }

// Value returns the proposed value.
func (it *Item) Value() types.Value { return it.value }

// Set replaces the proposed value. The table is not touched.
func (it *Item) Set(v types.Value) error {
	if v.Kind() != it.column.Kind {
		return fmt.Errorf("item %q: %w", it.column.Name, types.Mismatch(it.column.Kind, v.Kind()))
	}
	if it.readOnly && !v.Equal(it.value) {
		return fmt.Errorf("item %q: %w", it.column.Name, types.ErrReadOnly)
	}
	it.value = v
	return nil
}

// Get returns the proposed value of it as T.
func Get[T types.Cell](it *Item) (T, error) {
	v, err := types.As[T](it.value)
	if err != nil {
		return v, fmt.Errorf("item %q: %w", it.column.Name, err)
	}
	return v, nil
}

// SetValue replaces the proposed value of it with x.
func SetValue[T types.Cell](it *Item, x T) error {
	return it.Set(types.ValueOf(x))
}

// Stored returns the value currently in the table cell.
func (it *Item) Stored() (types.Value, error) {
	return it.owner.table.Cell(it.owner.row, it.col)
}

// HasChanged reports whether the proposed value differs from the stored cell.
func (it *Item) HasChanged() (bool, error) {
	stored, err := it.Stored()
	if err != nil {
		return false, err
	}
	return !it.value.Equal(stored), nil
}

// Commit writes the proposed value into the table cell.
func (it *Item) Commit() error {
	return it.owner.table.SetCell(it.owner.row, it.col, it.value)
}

// Rollback discards the proposed value by re-reading the cell.
func (it *Item) Rollback() error {
	stored, err := it.Stored()
	if err != nil {
		return err
	}
	it.value = stored
	return nil
}

// Equal compares the proposed values of two items. Items of different kinds
// are not comparable and return ErrTypeMismatch.
func (it *Item) Equal(other *Item) (bool, error) {
	if it.column.Kind != other.column.Kind {
		return false, fmt.Errorf("compare %q with %q: %w",
			it.column.Name, other.column.Name, types.Mismatch(it.column.Kind, other.column.Kind))
	}
	return it.value.Equal(other.value), nil
}
