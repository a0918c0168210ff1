package memento

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

var silicon = types.Lattice{A: 5.431, B: 5.431, C: 5.431, Alpha: 90, Beta: 90, Gamma: 90}

func testWorkspace(name string, run int64) types.Workspace {
	return types.Workspace{Name: name, RunNumber: run, Instrument: "MARI", Lattice: silicon}
}

// newTestCollection returns a collection with the given workspaces registered.
func newTestCollection(t *testing.T, names ...string) *Collection {
	t.Helper()
	c, err := NewCollection(nil, lock.NewMemoryRegistry(nil))
	require.NoError(t, err)
	for i, name := range names {
		_, err := c.RegisterWorkspace(testWorkspace(name, int64(1000+i)))
		require.NoError(t, err)
	}
	return c
}

// newRowMemento returns an unconfigured memento over a one-row table.
func newRowMemento(t *testing.T, columns ...types.Column) (*Memento, *table.Workspace) {
	t.Helper()
	w, err := table.New(columns)
	require.NoError(t, err)
	w.AppendRow()
	return New(w, 0, lock.NewSingleOwnerLock(lock.NewMemoryRegistry(nil), lock.NameKey("row0"))), w
}

// failingTable refuses writes to one column once armed. With sticky set,
// every write after the first refused one fails too.
type failingTable struct {
	*table.Workspace
	failCol int
	armed   bool
	sticky  bool
	broken  bool
}

func (f *failingTable) SetCell(row, col int, v types.Value) error {
	if f.broken {
		return errWriteFailed
	}
	if f.armed && col == f.failCol {
		f.broken = f.sticky
		return errWriteFailed
	}
	return f.Workspace.SetCell(row, col, v)
}

var errWriteFailed = errors.New("write failed")
