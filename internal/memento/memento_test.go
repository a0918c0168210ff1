package memento

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

var pairColumns = []types.Column{
	{Name: "x", Kind: types.KindDouble},
	{Name: "y", Kind: types.KindDouble},
}

func TestMementoValidity(t *testing.T) {
	m, _ := newRowMemento(t, pairColumns...)

	assert.ErrorIs(t, m.Validate(), types.ErrInvalidMemento)
	_, err := m.Item("x")
	assert.ErrorIs(t, err, types.ErrInvalidMemento)
	assert.ErrorIs(t, m.Commit(), types.ErrInvalidMemento)
	assert.ErrorIs(t, m.Rollback(), types.ErrInvalidMemento)
	_, err = m.HasChanged()
	assert.ErrorIs(t, err, types.ErrInvalidMemento)

	require.NoError(t, m.AddItem("x"))
	assert.ErrorIs(t, m.AddItem("x"), types.ErrInvalidMemento, "duplicate item")
	assert.ErrorIs(t, m.AddItem("z"), types.ErrColumnNotFound)
	assert.ErrorIs(t, m.Validate(), types.ErrInvalidMemento)

	require.NoError(t, m.AddItem("y"))
	assert.NoError(t, m.Validate())
	assert.ErrorIs(t, m.AddItem("y"), types.ErrInvalidMemento, "already complete")
	assert.Len(t, m.Items(), 2)
}

func TestMementoCommitRollback(t *testing.T) {
	m, w := newRowMemento(t, pairColumns...)
	require.NoError(t, m.AddItem("x"))
	require.NoError(t, m.AddItem("y"))
	x, err := m.Item("x")
	require.NoError(t, err)

	require.NoError(t, SetValue(x, 1.5))
	changed, err := m.HasChanged()
	require.NoError(t, err)
	assert.True(t, changed)
	names, err := m.Changed()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, names)

	stored, err := w.Cell(0, 0)
	require.NoError(t, err)
	assert.True(t, stored.Equal(types.DoubleValue(0)), "set must not write through")

	require.NoError(t, m.Rollback())
	changed, err = m.HasChanged()
	require.NoError(t, err)
	assert.False(t, changed)
	v, err := Get[float64](x)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	require.NoError(t, SetValue(x, 2.5))
	require.NoError(t, m.Commit())
	changed, err = m.HasChanged()
	require.NoError(t, err)
	assert.False(t, changed)
	stored, err = w.Cell(0, 0)
	require.NoError(t, err)
	assert.True(t, stored.Equal(types.DoubleValue(2.5)))
}

func TestMementoCommitRestoresOnFailure(t *testing.T) {
	w, err := table.New(pairColumns)
	require.NoError(t, err)
	w.AppendRow()
	ft := &failingTable{Workspace: w, failCol: 1}
	m := New(ft, 0, lock.NewSingleOwnerLock(lock.NewMemoryRegistry(nil), lock.NameKey("row0")))
	require.NoError(t, m.AddItem("x"))
	require.NoError(t, m.AddItem("y"))

	x, _ := m.Item("x")
	y, _ := m.Item("y")
	require.NoError(t, SetValue(x, 4.0))
	require.NoError(t, SetValue(y, 5.0))

	ft.armed = true
	assert.ErrorIs(t, m.Commit(), errWriteFailed)

	stored, err := w.Cell(0, 0)
	require.NoError(t, err)
	assert.True(t, stored.Equal(types.DoubleValue(0)), "first cell restored")

	changed, err := m.HasChanged()
	require.NoError(t, err)
	assert.True(t, changed, "proposed values are kept after a failed commit")
}

func TestMementoCommitReportsFailedRestore(t *testing.T) {
	w, err := table.New(pairColumns)
	require.NoError(t, err)
	w.AppendRow()
	ft := &failingTable{Workspace: w, failCol: 1, sticky: true}
	m := New(ft, 0, lock.NewSingleOwnerLock(lock.NewMemoryRegistry(nil), lock.NameKey("row0")))
	require.NoError(t, m.AddItem("x"))
	require.NoError(t, m.AddItem("y"))

	x, _ := m.Item("x")
	y, _ := m.Item("y")
	require.NoError(t, SetValue(x, 4.0))
	require.NoError(t, SetValue(y, 5.0))

	ft.armed = true
	err = m.Commit()
	require.ErrorIs(t, err, errWriteFailed)
	assert.Contains(t, err.Error(), `commit "y"`)
	assert.Contains(t, err.Error(), `restore "x"`)

	stored, err := w.Cell(0, 0)
	require.NoError(t, err)
	assert.True(t, stored.Equal(types.DoubleValue(4.0)), "x is left half-restored")
}

func TestMementoBeforeCommitFailureWritesNothing(t *testing.T) {
	m, w := newRowMemento(t, pairColumns...)
	require.NoError(t, m.AddItem("x"))
	require.NoError(t, m.AddItem("y"))
	var committed int
	m.beforeCommit = append(m.beforeCommit, func(*Memento) error { return errWriteFailed })
	m.afterCommit = append(m.afterCommit, func(*Memento) { committed++ })

	x, _ := m.Item("x")
	require.NoError(t, SetValue(x, 3.0))
	assert.ErrorIs(t, m.Commit(), errWriteFailed)

	stored, err := w.Cell(0, 0)
	require.NoError(t, err)
	assert.True(t, stored.Equal(types.DoubleValue(0)))
	assert.Zero(t, committed)

	m.beforeCommit = nil
	require.NoError(t, m.Commit())
	assert.Equal(t, 1, committed)
}

func TestMementoReload(t *testing.T) {
	m, w := newRowMemento(t, pairColumns...)
	require.NoError(t, m.AddItem("x"))
	require.NoError(t, m.AddItem("y"))
	var rollbacks int
	m.afterRollback = append(m.afterRollback, func(*Memento) { rollbacks++ })

	require.NoError(t, w.SetCell(0, 1, types.DoubleValue(9)))
	require.NoError(t, m.Reload())
	y, _ := m.Item("y")
	v, err := Get[float64](y)
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)
	assert.Zero(t, rollbacks)
}

func TestMementoEquals(t *testing.T) {
	a, _ := newRowMemento(t, pairColumns...)
	b, _ := newRowMemento(t, pairColumns...)
	for _, m := range []*Memento{a, b} {
		require.NoError(t, m.AddItem("x"))
		require.NoError(t, m.AddItem("y"))
	}

	eq, err := a.Equals(b)
	require.NoError(t, err)
	assert.True(t, eq)

	x, _ := a.Item("x")
	require.NoError(t, SetValue(x, 7.0))
	ab, err := a.Equals(b)
	require.NoError(t, err)
	ba, err := b.Equals(a)
	require.NoError(t, err)
	assert.False(t, ab)
	assert.Equal(t, ab, ba, "equality is symmetric")

	t.Run("different item counts are not equal", func(t *testing.T) {
		single, _ := newRowMemento(t, types.Column{Name: "x", Kind: types.KindDouble})
		require.NoError(t, single.AddItem("x"))
		eq, err := a.Equals(single)
		require.NoError(t, err)
		assert.False(t, eq)
	})

	t.Run("nil is invalid", func(t *testing.T) {
		_, err := a.Equals(nil)
		assert.ErrorIs(t, err, types.ErrInvalidMemento)
	})

	t.Run("different kinds are not comparable", func(t *testing.T) {
		other, _ := newRowMemento(t,
			types.Column{Name: "x", Kind: types.KindDouble},
			types.Column{Name: "y", Kind: types.KindString},
		)
		require.NoError(t, other.AddItem("x"))
		require.NoError(t, other.AddItem("y"))
		_, err := b.Equals(other)
		assert.ErrorIs(t, err, types.ErrTypeMismatch)
	})
}

func TestMementoLock(t *testing.T) {
	reg := lock.NewMemoryRegistry(nil)
	w, err := table.New(pairColumns)
	require.NoError(t, err)
	w.AppendRow()
	m := New(w, 0, lock.NewSingleOwnerLock(reg, lock.NameKey("row0")))
	n := New(w, 0, lock.NewSingleOwnerLock(reg, lock.NameKey("row0")))

	assert.Equal(t, lock.NameKey("row0"), m.Key())
	require.NoError(t, m.Lock())
	assert.True(t, m.Locked())
	assert.ErrorIs(t, n.Lock(), types.ErrLockHeld)

	was, err := m.Unlock()
	require.NoError(t, err)
	assert.True(t, was)
	assert.NoError(t, n.Lock())
}

func TestStatusDerivedOnCommit(t *testing.T) {
	c := newTestCollection(t, "ws1")
	err := c.With(0, func(m *Memento) error {
		a, err := m.Item(ColumnA)
		if err != nil {
			return err
		}
		status, err := m.Item(ColumnStatus)
		if err != nil {
			return err
		}
		s, _ := Get[string](status)
		assert.Equal(t, types.StatusReady, s)

		if err := SetValue(a, 0.0); err != nil {
			return err
		}
		return m.Commit()
	})
	require.NoError(t, err)

	col, err := c.Table().ColumnIndex(ColumnStatus)
	require.NoError(t, err)
	v, err := c.Table().Cell(0, col)
	require.NoError(t, err)
	assert.True(t, v.Equal(types.StringValue(types.StatusIncomplete)))
}

func TestStatusWrittenWithLattice(t *testing.T) {
	c := newTestCollection(t, "ws1")
	aCol, err := c.Table().ColumnIndex(ColumnA)
	require.NoError(t, err)
	statusCol, err := c.Table().ColumnIndex(ColumnStatus)
	require.NoError(t, err)

	// The a cell accepts the write, the Status cell refuses it.
	ft := &failingTable{Workspace: c.Table().(*table.Workspace), failCol: statusCol, armed: true}
	m := New(ft, 0, lock.NewSingleOwnerLock(lock.NewMemoryRegistry(nil), lock.NameKey("ws1")))
	require.NoError(t, c.Schema().Configure(m))
	a, err := m.Item(ColumnA)
	require.NoError(t, err)
	require.NoError(t, SetValue(a, 0.0))

	assert.ErrorIs(t, m.Commit(), errWriteFailed)
	v, err := c.Table().Cell(0, aCol)
	require.NoError(t, err)
	assert.False(t, v.Equal(types.DoubleValue(0)), "lattice edit undone with the status")
	v, err = c.Table().Cell(0, statusCol)
	require.NoError(t, err)
	assert.True(t, v.Equal(types.StringValue(types.StatusReady)))
}

func TestNewSchema(t *testing.T) {
	_, err := NewSchema(types.Column{Name: "x", Kind: types.KindDouble})
	assert.ErrorIs(t, err, types.ErrInvalidSchema, "missing name column")

	_, err = NewSchema(
		types.Column{Name: ColumnName, Kind: types.KindString},
		types.Column{Name: ColumnRunNumber, Kind: types.KindString},
	)
	assert.ErrorIs(t, err, types.ErrInvalidSchema, "wrong kind for a known column")

	_, err = NewSchema(
		types.Column{Name: ColumnName, Kind: types.KindString},
		types.Column{Name: ColumnName, Kind: types.KindString},
	)
	assert.ErrorIs(t, err, types.ErrInvalidSchema, "duplicate column")

	s, err := NewSchema(
		types.Column{Name: ColumnName, Kind: types.KindString},
		types.Column{Name: "note", Kind: types.KindString},
	)
	require.NoError(t, err)
	assert.Nil(t, s.derive)
	row := s.Row(testWorkspace("ws1", 1))
	require.Len(t, row, 2)
	assert.True(t, row[1].Equal(types.StringValue("")))

	assert.Len(t, DefaultSchema().Columns(), 10)
	assert.NotNil(t, DefaultSchema().derive)
}
