package memento

import (
	"fmt"

	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Column names understood by Schema.Row.
const (
	ColumnName       = "WSName"
	ColumnRunNumber  = "RunNumber"
	ColumnInstrument = "Instrument"
	ColumnA          = "a"
	ColumnB          = "b"
	ColumnC          = "c"
	ColumnAlpha      = "alpha"
	ColumnBeta       = "beta"
	ColumnGamma      = "gamma"
	ColumnStatus     = "Status"
)

// knownKinds fixes the kind of every column Schema.Row knows how to fill.
var knownKinds = map[string]types.Kind{
	ColumnName:       types.KindString,
	ColumnRunNumber:  types.KindInt,
	ColumnInstrument: types.KindString,
	ColumnA:          types.KindDouble,
	ColumnB:          types.KindDouble,
	ColumnC:          types.KindDouble,
	ColumnAlpha:      types.KindDouble,
	ColumnBeta:       types.KindDouble,
	ColumnGamma:      types.KindDouble,
	ColumnStatus:     types.KindString,
}

var latticeColumns = []string{ColumnA, ColumnB, ColumnC, ColumnAlpha, ColumnBeta, ColumnGamma}

// Schema is the fixed column layout of a collection table. It knows how to
// fill a row from a Workspace and how to configure a memento for that row.
type Schema struct {
	columns []types.Column
	derive  func(*Memento) error
}

// DefaultSchema returns the workspace schema: name, run number, instrument,
// the six lattice parameters, and a derived status.
func DefaultSchema() *Schema {
	cols := make([]types.Column, 0, 10)
	for _, name := range []string{ColumnName, ColumnRunNumber, ColumnInstrument} {
		cols = append(cols, types.Column{Name: name, Kind: knownKinds[name]})
	}
	for _, name := range latticeColumns {
		cols = append(cols, types.Column{Name: name, Kind: types.KindDouble})
	}
	cols = append(cols, types.Column{Name: ColumnStatus, Kind: types.KindString})
	s, err := NewSchema(cols...)
	if err != nil {
		panic(fmt.Errorf("default schema: %w", err))
	}
	return s
}

// NewSchema builds a schema from columns. The WSName column is required.
// Known column names must carry their usual kind. A schema with the six
// lattice columns and Status recomputes Status on every commit.
func NewSchema(columns ...types.Column) (*Schema, error) {
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" || !c.Kind.Valid() {
			return nil, fmt.Errorf("%w: column %q of kind %s", types.ErrInvalidSchema, c.Name, c.Kind)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("%w: duplicate column %q", types.ErrInvalidSchema, c.Name)
		}
		if want, ok := knownKinds[c.Name]; ok && c.Kind != want {
			return nil, fmt.Errorf("%w: column %q must be %s", types.ErrInvalidSchema, c.Name, want)
		}
		seen[c.Name] = true
	}
	if !seen[ColumnName] {
		return nil, fmt.Errorf("%w: missing %s column", types.ErrInvalidSchema, ColumnName)
	}
	s := &Schema{columns: append([]types.Column(nil), columns...)}
	derivable := seen[ColumnStatus]
	for _, name := range latticeColumns {
		derivable = derivable && seen[name]
	}
	if derivable {
		s.derive = deriveStatus
	}
	return s, nil
}

// Columns returns a copy of the schema columns.
func (s *Schema) Columns() []types.Column {
	return append([]types.Column(nil), s.columns...)
}

// Has reports whether the schema has the named column.
func (s *Schema) Has(name string) bool {
	for _, c := range s.columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Check returns ErrInvalidSchema unless tbl has exactly the schema columns.
func (s *Schema) Check(tbl types.Table) error {
	got := tbl.Columns()
	if len(got) != len(s.columns) {
		return fmt.Errorf("%w: table has %d columns, schema has %d", types.ErrInvalidSchema, len(got), len(s.columns))
	}
	for i, c := range s.columns {
		if got[i] != c {
			return fmt.Errorf("%w: column %d is %s:%s, want %s:%s",
				types.ErrInvalidSchema, i, got[i].Name, got[i].Kind, c.Name, c.Kind)
		}
	}
	return nil
}

// Row returns the cell values recording ws, in column order. Columns the
// schema does not know are filled with zero values.
func (s *Schema) Row(ws types.Workspace) []types.Value {
	vals := make([]types.Value, len(s.columns))
	for i, c := range s.columns {
		var v types.Value
		switch c.Name {
		case ColumnName:
			v = types.StringValue(ws.Name)
		case ColumnRunNumber:
			v = types.IntValue(ws.RunNumber)
		case ColumnInstrument:
			v = types.StringValue(ws.Instrument)
		case ColumnA:
			v = types.DoubleValue(ws.Lattice.A)
		case ColumnB:
			v = types.DoubleValue(ws.Lattice.B)
		case ColumnC:
			v = types.DoubleValue(ws.Lattice.C)
		case ColumnAlpha:
			v = types.DoubleValue(ws.Lattice.Alpha)
		case ColumnBeta:
			v = types.DoubleValue(ws.Lattice.Beta)
		case ColumnGamma:
			v = types.DoubleValue(ws.Lattice.Gamma)
		case ColumnStatus:
			v = types.StringValue(ws.Lattice.Status())
		default:
			v = types.Zero(c.Kind)
		}
		vals[i] = v
	}
	return vals
}

// Configure adds one item per schema column to m, in schema order. The
// WSName item is read-only since it identifies the row.
func (s *Schema) Configure(m *Memento) error {
	for _, c := range s.columns {
		if err := m.AddItem(c.Name); err != nil {
			return fmt.Errorf("configure memento: %w", err)
		}
	}
	m.byName[ColumnName].readOnly = true
	if s.derive != nil {
		m.beforeCommit = append(m.beforeCommit, s.derive)
	}
	return m.Validate()
}

// deriveStatus stages the Status item computed from the proposed lattice, so
// it is written together with the other items.
func deriveStatus(m *Memento) error {
	var l types.Lattice
	for name, dst := range map[string]*float64{
		ColumnA: &l.A, ColumnB: &l.B, ColumnC: &l.C,
		ColumnAlpha: &l.Alpha, ColumnBeta: &l.Beta, ColumnGamma: &l.Gamma,
	} {
		it, err := m.Item(name)
		if err != nil {
			return err
		}
		v, err := Get[float64](it)
		if err != nil {
			return err
		}
		*dst = v
	}
	status, err := m.Item(ColumnStatus)
	if err != nil {
		return err
	}
	return status.Set(types.StringValue(l.Status()))
}
