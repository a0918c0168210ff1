// Package memento stages edits to rows of a shared table. A Memento holds one
// Item per column of its row; edits stay local until Commit writes them
// through or Rollback discards them. A Collection registers workspaces as
// rows and lends out mementos under an exclusive checkout lock.
package memento

import (
	"errors"
	"fmt"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Memento is the staging area for one table row. It is valid once it has an
// item for every table column; until then only AddItem may be called.
type Memento struct {
	table  types.Table
	row    int
	lock   lock.Lock
	items  []*Item
	byName map[string]*Item

	beforeCommit  []func(*Memento) error
	afterCommit   []func(*Memento)
	afterRollback []func(*Memento)
}

// New returns an unconfigured memento for row of tbl guarded by l.
func New(tbl types.Table, row int, l lock.Lock) *Memento {
	return &Memento{
		table:  tbl,
		row:    row,
		lock:   l,
		byName: make(map[string]*Item),
	}
}

// Row returns the table row this memento stages.
func (m *Memento) Row() int { return m.row }

// Key returns the lock key guarding the memento.
func (m *Memento) Key() lock.Key { return m.lock.Key() }

// Table returns the shared table.
func (m *Memento) Table() types.Table { return m.table }

// AddItem appends an item for the named column, snapshotting its cell.
func (m *Memento) AddItem(column string) error {
	if len(m.items) >= m.table.ColumnCount() {
		return fmt.Errorf("%w: already has all %d items", types.ErrInvalidMemento, len(m.items))
	}
	if _, dup := m.byName[column]; dup {
		return fmt.Errorf("%w: duplicate item %q", types.ErrInvalidMemento, column)
	}
	col, err := m.table.ColumnIndex(column)
	if err != nil {
		return err
	}
	stored, err := m.table.Cell(m.row, col)
	if err != nil {
		return fmt.Errorf("add item %q: %w", column, err)
	}
	it := &Item{
		owner:  m,
		col:    col,
		column: m.table.Columns()[col],
		value:  stored,
	}
	m.items = append(m.items, it)
	m.byName[column] = it
	return nil
}

// Validate returns ErrInvalidMemento unless there is one item per column.
func (m *Memento) Validate() error {
	if n, want := len(m.items), m.table.ColumnCount(); n != want {
		return fmt.Errorf("%w: %d of %d items", types.ErrInvalidMemento, n, want)
	}
	return nil
}

// Items returns the items in insertion order.
func (m *Memento) Items() []*Item {
	return append([]*Item(nil), m.items...)
}

// Item returns the item for the named column.
func (m *Memento) Item(column string) (*Item, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	it, ok := m.byName[column]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrColumnNotFound, column)
	}
	return it, nil
}

// Commit writes every proposed value to the table. Derived items are
// updated and all items are checked before any cell is written; if a write
// still fails, the cells already written are restored and the error is
// returned together with any restore failure.
func (m *Memento) Commit() error {
	if err := m.Validate(); err != nil {
		return err
	}
	for _, fn := range m.beforeCommit {
		if err := fn(m); err != nil {
			return fmt.Errorf("commit row %d: %w", m.row, err)
		}
	}
	cols := m.table.Columns()
	prev := make([]types.Value, len(m.items))
	for i, it := range m.items {
		if want := cols[it.col].Kind; it.value.Kind() != want {
			return fmt.Errorf("commit %q: %w", it.column.Name, types.Mismatch(want, it.value.Kind()))
		}
		stored, err := it.Stored()
		if err != nil {
			return fmt.Errorf("commit %q: %w", it.column.Name, err)
		}
		prev[i] = stored
	}
	for i, it := range m.items {
		if err := it.Commit(); err != nil {
			errs := []error{fmt.Errorf("commit %q: %w", it.column.Name, err)}
			for j := i - 1; j >= 0; j-- {
				restored := m.items[j]
				if rerr := m.table.SetCell(m.row, restored.col, prev[j]); rerr != nil {
					errs = append(errs, fmt.Errorf("restore %q: %w", restored.column.Name, rerr))
				}
			}
			return errors.Join(errs...)
		}
	}
	for _, fn := range m.afterCommit {
		fn(m)
	}
	return nil
}

// Rollback replaces every proposed value with the stored cell. Nothing is
// replaced unless every cell can be read.
func (m *Memento) Rollback() error {
	if err := m.Reload(); err != nil {
		return err
	}
	for _, fn := range m.afterRollback {
		fn(m)
	}
	return nil
}

// Reload re-reads every item from its cell, like Rollback, but is not
// counted as a rollback. Use it after the row was rewritten underneath the
// memento.
func (m *Memento) Reload() error {
	if err := m.Validate(); err != nil {
		return err
	}
	stored := make([]types.Value, len(m.items))
	for i, it := range m.items {
		v, err := it.Stored()
		if err != nil {
			return fmt.Errorf("reload %q: %w", it.column.Name, err)
		}
		stored[i] = v
	}
	for i, it := range m.items {
		it.value = stored[i]
	}
	return nil
}

// HasChanged reports whether any item differs from its stored cell.
func (m *Memento) HasChanged() (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	for _, it := range m.items {
		changed, err := it.HasChanged()
		if err != nil {
			return false, err
		}
		if changed {
			return true, nil
		}
	}
	return false, nil
}

// Changed returns the names of the items that differ from their cells.
func (m *Memento) Changed() ([]string, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	var names []string
	for _, it := range m.items {
		changed, err := it.HasChanged()
		if err != nil {
			return nil, err
		}
		if changed {
			names = append(names, it.column.Name)
		}
	}
	return names, nil
}

// Equals reports whether both mementos propose the same values. Mementos
// with different item counts are never equal; items of different kinds
// return ErrTypeMismatch. A nil other is ErrInvalidMemento.
func (m *Memento) Equals(other *Memento) (bool, error) {
	if err := m.Validate(); err != nil {
		return false, err
	}
	if other == nil {
		return false, fmt.Errorf("%w: compare with nil memento", types.ErrInvalidMemento)
	}
	if err := other.Validate(); err != nil {
		return false, err
	}
	if len(m.items) != len(other.items) {
		return false, nil
	}
	for i, it := range m.items {
		eq, err := it.Equal(other.items[i])
		if err != nil {
			return false, err
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}

// Lock takes the memento's checkout lock.
func (m *Memento) Lock() error { return m.lock.Lock() }

// Unlock releases the checkout lock and reports whether it was held.
func (m *Memento) Unlock() (bool, error) { return m.lock.Unlock() }

// Locked reports whether the checkout lock is held by this memento.
func (m *Memento) Locked() bool { return m.lock.Locked() }
