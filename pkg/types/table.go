package types

import "errors"

// Column describes one typed column of a Table. Columns are fixed when the
// table is created.
type Column struct {
	Name string `json:"name" yaml:"name"`
	Kind Kind   `json:"kind" yaml:"kind"`
}

// Table is the shared tabular store that mementos stage edits against.
// Rows are addressed by integer index, cells by (row, column).
type Table interface {
	// Columns returns a copy of the column definitions in order.
	Columns() []Column

	// ColumnCount returns the number of columns.
	ColumnCount() int

	// ColumnIndex returns the index of the named column.
	// Returns ErrColumnNotFound if no column has that name.
	ColumnIndex(name string) (int, error)

	// RowCount returns the number of rows.
	RowCount() int

	// AppendRow adds a row of zero values at the end and returns its index.
	AppendRow() int

	// InsertRow inserts a row of zero values before index. An index equal
	// to RowCount appends. Returns ErrRowOutOfRange otherwise.
	InsertRow(index int) error

	// RemoveRow deletes the row at index, shifting later rows up.
	RemoveRow(index int) error

	// Cell returns the value stored at (row, col).
	Cell(row, col int) (Value, error)

	// SetCell stores v at (row, col). Returns ErrTypeMismatch when v does
	// not have the column kind.
	SetCell(row, col int, v Value) error

	// Clone returns a deep copy that shares no state with the receiver.
	Clone() Table
}

// Table errors.
var (
	ErrRowOutOfRange    = errors.New("row index out of range")
	ErrColumnOutOfRange = errors.New("column index out of range")
	ErrColumnNotFound   = errors.New("column not found")
	ErrInvalidSchema    = errors.New("invalid table schema")
	ErrTypeMismatch     = errors.New("type mismatch")
	ErrInvalidKind      = errors.New("invalid value kind")
	ErrNotFound         = errors.New("entity not found")
)

// Memento and lock errors.
var (
	ErrLockHeld          = errors.New("lock is held")
	ErrInvalidMemento    = errors.New("memento is not valid")
	ErrAlreadyRegistered = errors.New("workspace already registered")
	ErrLoanReleased      = errors.New("loan has been released")
	ErrReadOnly          = errors.New("item is read-only")
)

// Workspace validation errors.
var (
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidRunNumber = errors.New("invalid run number")
	ErrInvalidLattice   = errors.New("invalid lattice")
)
