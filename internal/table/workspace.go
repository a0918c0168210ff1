// Package table provides the in-memory table workspace: a fixed set of typed
// columns with integer-addressed rows.
package table

import (
	"fmt"
	"sync"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Compile-time check that Workspace satisfies types.Table.
var _ types.Table = (*Workspace)(nil)

// Workspace implements types.Table in memory. All methods are safe for
// concurrent use.
type Workspace struct {
	mu      sync.RWMutex
	columns []types.Column
	index   map[string]int
	rows    [][]types.Value
}

// New creates an empty table with the given columns.
// Returns ErrInvalidSchema for an empty, unnamed, duplicated, or untyped column.
func New(columns []types.Column) (*Workspace, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", types.ErrInvalidSchema)
	}
	w := &Workspace{
		columns: make([]types.Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", types.ErrInvalidSchema, i)
		}
		if !c.Kind.Valid() {
			return nil, fmt.Errorf("%w: column %q has kind %s", types.ErrInvalidSchema, c.Name, c.Kind)
		}
		if _, dup := w.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", types.ErrInvalidSchema, c.Name)
		}
		w.columns[i] = c
		w.index[c.Name] = i
	}
	return w, nil
}

// Columns returns a copy of the column definitions.
func (w *Workspace) Columns() []types.Column {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.Column, len(w.columns))
	copy(out, w.columns)
	return out
}

// ColumnCount returns the number of columns.
func (w *Workspace) ColumnCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.columns)
}

// ColumnIndex returns the position of the named column.
func (w *Workspace) ColumnIndex(name string) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i, ok := w.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", types.ErrColumnNotFound, name)
	}
	return i, nil
}

// RowCount returns the number of rows.
func (w *Workspace) RowCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.rows)
}

// AppendRow adds a row of zero values and returns its index.
func (w *Workspace) AppendRow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rows = append(w.rows, w.zeroRow())
	return len(w.rows) - 1
}

// InsertRow inserts a row of zero values before index.
func (w *Workspace) InsertRow(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if index < 0 || index > len(w.rows) {
		return fmt.Errorf("%w: %d (rows: %d)", types.ErrRowOutOfRange, index, len(w.rows))
	}
	w.rows = append(w.rows, nil)
	copy(w.rows[index+1:], w.rows[index:])
	w.rows[index] = w.zeroRow()
	return nil
}

// RemoveRow deletes the row at index.
func (w *Workspace) RemoveRow(index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkRow(index); err != nil {
		return err
	}
	w.rows = append(w.rows[:index], w.rows[index+1:]...)
	return nil
}

// Cell returns the value at (row, col).
func (w *Workspace) Cell(row, col int) (types.Value, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if err := w.checkCell(row, col); err != nil {
		return types.Value{}, err
	}
	return w.rows[row][col], nil
}

// SetCell stores v at (row, col) after checking its kind against the column.
func (w *Workspace) SetCell(row, col int, v types.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkCell(row, col); err != nil {
		return err
	}
	if want := w.columns[col].Kind; v.Kind() != want {
		return fmt.Errorf("column %q: %w", w.columns[col].Name, types.Mismatch(want, v.Kind()))
	}
	w.rows[row][col] = v
	return nil
}

// Clone returns a deep copy of the table.
func (w *Workspace) Clone() types.Table {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := &Workspace{
		columns: make([]types.Column, len(w.columns)),
		index:   make(map[string]int, len(w.index)),
		rows:    make([][]types.Value, len(w.rows)),
	}
	copy(c.columns, w.columns)
	for k, v := range w.index {
		c.index[k] = v
	}
	for i, r := range w.rows {
		c.rows[i] = append([]types.Value(nil), r...)
	}
	return c
}

// Row returns a copy of every cell in row.
func (w *Workspace) Row(row int) ([]types.Value, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if err := w.checkRow(row); err != nil {
		return nil, err
	}
	return append([]types.Value(nil), w.rows[row]...), nil
}

func (w *Workspace) zeroRow() []types.Value {
	r := make([]types.Value, len(w.columns))
	for i, c := range w.columns {
		r[i] = types.Zero(c.Kind)
	}
	return r
}

func (w *Workspace) checkRow(row int) error {
	if row < 0 || row >= len(w.rows) {
		return fmt.Errorf("%w: %d (rows: %d)", types.ErrRowOutOfRange, row, len(w.rows))
	}
	return nil
}

func (w *Workspace) checkCell(row, col int) error {
	if err := w.checkRow(row); err != nil {
		return err
	}
	if col < 0 || col >= len(w.columns) {
		return fmt.Errorf("%w: %d (columns: %d)", types.ErrColumnOutOfRange, col, len(w.columns))
	}
	return nil
}
