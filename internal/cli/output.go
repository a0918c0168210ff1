package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/mantidproject/mantid-sub073/internal/memento"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	fmt.Fprintln(w, string(out))
	return nil
}

// rowRecords returns every row of tbl as a column-name keyed map.
func rowRecords(tbl types.Table) ([]map[string]any, error) {
	columns := tbl.Columns()
	records := make([]map[string]any, tbl.RowCount())
	for row := range records {
		rec := make(map[string]any, len(columns))
		for col, c := range columns {
			v, err := tbl.Cell(row, col)
			if err != nil {
				return nil, err
			}
			rec[c.Name] = v.Interface()
		}
		records[row] = rec
	}
	return records, nil
}

// checkout lends out the memento addressed by a row index or workspace name.
func checkout(coll *memento.Collection, ref string) (*memento.Loan, error) {
	if row, err := strconv.Atoi(ref); err == nil {
		return coll.At(row)
	}
	return coll.AtName(ref)
}
