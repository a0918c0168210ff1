package sqlite

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// ExportJSONL writes tbl to path, one JSON object per row keyed by column
// name. The file is replaced atomically.
func ExportJSONL(path string, tbl types.Table) error {
	columns := tbl.Columns()
	records := make([]json.RawMessage, 0, tbl.RowCount())
	for row := 0; row < tbl.RowCount(); row++ {
		obj := make(map[string]types.Value, len(columns))
		for col, c := range columns {
			v, err := tbl.Cell(row, col)
			if err != nil {
				return err
			}
			obj[c.Name] = v
		}
		data, err := json.Marshal(obj)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", row, err)
		}
		records = append(records, data)
	}
	return writeJSONL(path, records)
}

// ImportJSONL reads a JSONL export into a new table with the given columns.
// Malformed lines are skipped. A record with a missing, unknown, or
// mistyped field fails the import.
func ImportJSONL(path string, columns []types.Column) (*table.Workspace, error) {
	w, err := table.New(columns)
	if err != nil {
		return nil, err
	}
	records, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		values, err := decodeRecord(columns, rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		if err := appendValues(w, values); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}
	return w, nil
}

func decodeRecord(columns []types.Column, rec json.RawMessage) ([]types.Value, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(rec, &obj); err != nil {
		return nil, fmt.Errorf("%w: record is not an object", types.ErrInvalidSchema)
	}
	if len(obj) != len(columns) {
		return nil, fmt.Errorf("%w: %d fields for %d columns", types.ErrInvalidSchema, len(obj), len(columns))
	}
	values := make([]types.Value, len(columns))
	for i, c := range columns {
		raw, ok := obj[c.Name]
		if !ok {
			return nil, fmt.Errorf("%w: missing field %q", types.ErrInvalidSchema, c.Name)
		}
		v, err := types.DecodeValue(c.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", c.Name, err)
		}
		values[i] = v
	}
	return values, nil
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped.
func readJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(format string, err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf(format, err)
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail("writing record: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail("writing newline: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fail("flushing buffer: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fail("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
