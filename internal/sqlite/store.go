// Package sqlite persists memento tables. A Store keeps one snapshot of a
// table in a SQLite file; the JSONL helpers move tables in and out of plain
// text files.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// DefaultFile is the database file name inside a data directory.
const DefaultFile = "memento.db"

// busyTimeout is how long a writer waits for another process's write
// transaction before giving up.
const busyTimeout = 5 * time.Second

// Store saves and loads table snapshots. Every write runs in an immediate
// transaction, so writers in separate processes sharing one file are
// serialized: Save replaces the whole snapshot, SaveRows rewrites only the
// given rows and Update reloads the snapshot before changing it.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Open opens or creates the database at path, creating parent directories
// and the schema as needed.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := fmt.Sprintf("%s?_txlock=immediate&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Save replaces the stored snapshot with tbl in one transaction.
func (s *Store) Save(ctx context.Context, tbl types.Table) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		return writeSnapshot(ctx, tx, tbl)
	})
}

// Update loads the stored snapshot, passes it to fn and stores the table
// fn returns, all inside one write transaction. current is nil when nothing
// has been saved yet. No other writer can change the snapshot between the
// load and the store.
func (s *Store) Update(ctx context.Context, fn func(current types.Table) (types.Table, error)) error {
	return s.write(ctx, func(tx *sql.Tx) error {
		var current types.Table
		w, err := load(ctx, tx)
		switch {
		case err == nil:
			current = w
		case !errors.Is(err, types.ErrNotFound):
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return writeSnapshot(ctx, tx, next)
	})
}

// SaveRows writes the given rows of tbl over the stored rows with the same
// value in the key column, leaving every other stored row as it is. The
// stored column layout must match tbl. Returns ErrNotFound if a key is no
// longer stored.
func (s *Store) SaveRows(ctx context.Context, tbl types.Table, keyColumn string, rows ...int) error {
	keyCol, err := tbl.ColumnIndex(keyColumn)
	if err != nil {
		return err
	}
	return s.write(ctx, func(tx *sql.Tx) error {
		columns, err := loadColumns(ctx, tx)
		if err != nil {
			return err
		}
		if !sameColumns(columns, tbl.Columns()) {
			return fmt.Errorf("%w: stored columns differ from the table", types.ErrInvalidSchema)
		}
		for _, row := range rows {
			key, err := tbl.Cell(row, keyCol)
			if err != nil {
				return err
			}
			index, _, err := findRow(ctx, tx, columns, keyCol, key)
			if err != nil {
				return err
			}
			payload, err := encodeRow(tbl, row)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE rows SET payload = ? WHERE row_index = ?`,
				string(payload), index); err != nil {
				return fmt.Errorf("update row %d: %w", index, err)
			}
		}
		return nil
	})
}

// LoadRow returns the stored cells of the row whose key column holds key.
// Returns ErrNotFound if there is no such row.
func (s *Store) LoadRow(ctx context.Context, keyColumn string, key types.Value) ([]types.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	columns, err := loadColumns(ctx, s.db)
	if err != nil {
		return nil, err
	}
	keyCol := -1
	for i, c := range columns {
		if c.Name == keyColumn {
			keyCol = i
		}
	}
	if keyCol < 0 {
		return nil, fmt.Errorf("%w: %q", types.ErrColumnNotFound, keyColumn)
	}
	_, values, err := findRow(ctx, s.db, columns, keyCol, key)
	return values, err
}

// Load returns the stored snapshot as a new table.
// Returns ErrNotFound if nothing has been saved.
func (s *Store) Load(ctx context.Context) (*table.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load(ctx, s.db)
}

// write runs fn in a write transaction, committing if fn succeeds.
func (s *Store) write(ctx context.Context, fn func(*sql.Tx) error) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, tbl types.Table) error {
	for _, stmt := range []string{`DELETE FROM rows`, `DELETE FROM columns`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}
	for i, c := range tbl.Columns() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO columns(ordinal, name, kind) VALUES(?, ?, ?)`,
			i, c.Name, c.Kind.String()); err != nil {
			return fmt.Errorf("insert column %q: %w", c.Name, err)
		}
	}
	for row := 0; row < tbl.RowCount(); row++ {
		payload, err := encodeRow(tbl, row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rows(row_index, payload) VALUES(?, ?)`,
			row, string(payload)); err != nil {
			return fmt.Errorf("insert row %d: %w", row, err)
		}
	}
	return nil
}

func load(ctx context.Context, q querier) (*table.Workspace, error) {
	columns, err := loadColumns(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no snapshot", types.ErrNotFound)
	}
	w, err := table.New(columns)
	if err != nil {
		return nil, fmt.Errorf("load columns: %w", err)
	}
	err = eachRow(ctx, q, func(index int, payload []byte) (bool, error) {
		if err := decodeRow(w, payload); err != nil {
			return false, fmt.Errorf("row %d: %w", index, err)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// findRow scans the stored rows for the one whose keyCol cell equals key.
func findRow(ctx context.Context, q querier, columns []types.Column, keyCol int, key types.Value) (int, []types.Value, error) {
	found := -1
	var values []types.Value
	err := eachRow(ctx, q, func(index int, payload []byte) (bool, error) {
		vals, err := decodeValues(columns, payload)
		if err != nil {
			return false, fmt.Errorf("row %d: %w", index, err)
		}
		if vals[keyCol].Equal(key) {
			found, values = index, vals
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return -1, nil, err
	}
	if found < 0 {
		return -1, nil, fmt.Errorf("%w: no stored row with %s %s", types.ErrNotFound, columns[keyCol].Name, key)
	}
	return found, values, nil
}

// eachRow calls fn with every stored row in index order until fn returns
// false or an error.
func eachRow(ctx context.Context, q querier, fn func(index int, payload []byte) (bool, error)) error {
	rows, err := q.QueryContext(ctx, `SELECT row_index, payload FROM rows ORDER BY row_index`)
	if err != nil {
		return fmt.Errorf("select rows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			index   int
			payload string
		)
		if err := rows.Scan(&index, &payload); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		more, err := fn(index, []byte(payload))
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	return nil
}

func loadColumns(ctx context.Context, q querier) ([]types.Column, error) {
	rows, err := q.QueryContext(ctx, `SELECT name, kind FROM columns ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("select columns: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var columns []types.Column
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		k, err := types.ParseKind(kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		columns = append(columns, types.Column{Name: name, Kind: k})
	}
	return columns, rows.Err()
}

func sameColumns(a, b []types.Column) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// encodeRow writes a row as a JSON array of cell scalars.
func encodeRow(tbl types.Table, row int) ([]byte, error) {
	cells := make([]types.Value, tbl.ColumnCount())
	for col := range cells {
		v, err := tbl.Cell(row, col)
		if err != nil {
			return nil, err
		}
		cells[col] = v
	}
	data, err := json.Marshal(cells)
	if err != nil {
		return nil, fmt.Errorf("encode row %d: %w", row, err)
	}
	return data, nil
}

// decodeRow appends the row encoded in payload to w.
func decodeRow(w *table.Workspace, payload []byte) error {
	values, err := decodeValues(w.Columns(), payload)
	if err != nil {
		return err
	}
	return appendValues(w, values)
}

// decodeValues reads a row payload as one value per column.
func decodeValues(columns []types.Column, payload []byte) ([]types.Value, error) {
	var cells []json.RawMessage
	if err := json.Unmarshal(payload, &cells); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(cells) != len(columns) {
		return nil, fmt.Errorf("%w: %d cells for %d columns", types.ErrInvalidSchema, len(cells), len(columns))
	}
	values := make([]types.Value, len(cells))
	for i, raw := range cells {
		v, err := types.DecodeValue(columns[i].Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", columns[i].Name, err)
		}
		values[i] = v
	}
	return values, nil
}

func appendValues(w *table.Workspace, values []types.Value) error {
	row := w.AppendRow()
	for col, v := range values {
		if err := w.SetCell(row, col, v); err != nil {
			_ = w.RemoveRow(row)
			return err
		}
	}
	return nil
}
