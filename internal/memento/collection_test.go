package memento

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

func TestRegisterWorkspace(t *testing.T) {
	calls := 0
	c, err := NewCollection(nil, nil, WithNotifier(NotifierFunc(func() { calls++ })))
	require.NoError(t, err)

	row, err := c.RegisterWorkspace(testWorkspace("ws1", 1))
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	row, err = c.RegisterWorkspace(testWorkspace("ws2", 2))
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, calls)

	_, err = c.RegisterWorkspace(testWorkspace("ws1", 3))
	assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
	_, err = c.RegisterWorkspace(types.Workspace{})
	assert.ErrorIs(t, err, types.ErrInvalidName)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, calls)

	names, err := c.Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"ws1", "ws2"}, names)
}

func TestNewCollectionChecksTable(t *testing.T) {
	w, err := table.New(pairColumns)
	require.NoError(t, err)
	_, err = NewCollection(w, nil)
	assert.ErrorIs(t, err, types.ErrInvalidSchema)

	s, err := NewSchema(types.Column{Name: ColumnName, Kind: types.KindString})
	require.NoError(t, err)
	_, err = NewCollection(nil, nil, WithSchema(s), WithRunNumberKeys())
	assert.ErrorIs(t, err, types.ErrInvalidSchema)
}

func TestAtSharesMemento(t *testing.T) {
	c := newTestCollection(t, "ws1", "ws2")

	first, err := c.At(0)
	require.NoError(t, err)
	m1, err := first.Memento()
	require.NoError(t, err)
	assert.True(t, m1.Locked())

	_, err = c.At(0)
	assert.ErrorIs(t, err, types.ErrLockHeld)
	_, err = c.AtName("ws1")
	assert.ErrorIs(t, err, types.ErrLockHeld)

	other, err := c.At(1)
	require.NoError(t, err, "other rows stay available")
	require.NoError(t, other.Release())

	require.NoError(t, first.Release())
	assert.False(t, m1.Locked())

	second, err := c.AtName("ws1")
	require.NoError(t, err)
	defer second.Release()
	m2, err := second.Memento()
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func TestAtErrors(t *testing.T) {
	c := newTestCollection(t, "ws1")
	_, err := c.At(1)
	assert.ErrorIs(t, err, types.ErrRowOutOfRange)
	_, err = c.At(-1)
	assert.ErrorIs(t, err, types.ErrRowOutOfRange)
	_, err = c.AtName("missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSerializeShowsCommittedValues(t *testing.T) {
	c := newTestCollection(t, "ws1")
	loan, err := c.At(0)
	require.NoError(t, err)
	defer loan.Release()
	m, _ := loan.Memento()
	inst, err := m.Item(ColumnInstrument)
	require.NoError(t, err)
	col := inst.Column()

	require.NoError(t, SetValue(inst, "WISH"))
	snap := c.Serialize()
	v, err := snap.Cell(0, col)
	require.NoError(t, err)
	assert.Equal(t, "MARI", v.String())

	require.NoError(t, m.Commit())
	again := c.Serialize()
	v, err = again.Cell(0, col)
	require.NoError(t, err)
	assert.Equal(t, "WISH", v.String())

	v, err = snap.Cell(0, col)
	require.NoError(t, err)
	assert.Equal(t, "MARI", v.String(), "earlier snapshots are independent")
}

func TestApplyAllRevertAll(t *testing.T) {
	c := newTestCollection(t, "ws1", "ws2")
	for row, inst := range []string{"WISH", "LET"} {
		err := c.With(row, func(m *Memento) error {
			it, err := m.Item(ColumnInstrument)
			if err != nil {
				return err
			}
			return SetValue(it, inst)
		})
		require.NoError(t, err)
	}
	col, err := c.Table().ColumnIndex(ColumnInstrument)
	require.NoError(t, err)

	require.NoError(t, c.RevertAll())
	for row := range 2 {
		v, _ := c.Table().Cell(row, col)
		assert.Equal(t, "MARI", v.String())
	}
	require.NoError(t, c.With(0, func(m *Memento) error {
		changed, err := m.HasChanged()
		assert.False(t, changed)
		return err
	}))

	require.NoError(t, c.With(1, func(m *Memento) error {
		it, _ := m.Item(ColumnInstrument)
		return SetValue(it, "LET")
	}))
	require.NoError(t, c.ApplyAll())
	v, _ := c.Table().Cell(1, col)
	assert.Equal(t, "LET", v.String())
	v, _ = c.Table().Cell(0, col)
	assert.Equal(t, "MARI", v.String())
}

func TestUnregister(t *testing.T) {
	calls := 0
	c, err := NewCollection(nil, nil, WithNotifier(NotifierFunc(func() { calls++ })))
	require.NoError(t, err)
	for i, name := range []string{"ws1", "ws2", "ws3"} {
		_, err := c.RegisterWorkspace(testWorkspace(name, int64(i)))
		require.NoError(t, err)
	}

	held, err := c.AtName("ws1")
	require.NoError(t, err)
	assert.ErrorIs(t, c.Unregister("ws1"), types.ErrLockHeld)
	require.NoError(t, held.Release())

	later, err := c.AtName("ws3")
	require.NoError(t, err)
	require.NoError(t, later.Release())

	require.NoError(t, c.Unregister("ws1"))
	assert.ErrorIs(t, c.Unregister("ws1"), types.ErrNotFound)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 4, calls)

	loan, err := c.AtName("ws3")
	require.NoError(t, err)
	defer loan.Release()
	m, _ := loan.Memento()
	assert.Equal(t, 1, m.Row(), "surviving mementos follow their row")
	name, _ := m.Item(ColumnName)
	assert.Equal(t, "ws3", name.Value().String())
}

func TestRunNumberKeys(t *testing.T) {
	reg := lock.NewMemoryRegistry(nil)
	c, err := NewCollection(nil, reg, WithRunNumberKeys())
	require.NoError(t, err)
	_, err = c.RegisterWorkspace(testWorkspace("ws1", 42))
	require.NoError(t, err)

	loan, err := c.At(0)
	require.NoError(t, err)
	held, err := reg.Held(lock.RunKey(42))
	require.NoError(t, err)
	assert.True(t, held)
	held, err = reg.Held(lock.NameKey("ws1"))
	require.NoError(t, err)
	assert.False(t, held)

	m, _ := loan.Memento()
	run, err := m.Item(ColumnRunNumber)
	require.NoError(t, err)
	assert.ErrorIs(t, SetValue(run, int64(43)), types.ErrReadOnly)
	require.NoError(t, loan.Release())
}

func TestSharedRegistryAcrossCollections(t *testing.T) {
	reg := lock.NewMemoryRegistry(nil)
	a, err := NewCollection(nil, reg)
	require.NoError(t, err)
	b, err := NewCollection(nil, reg)
	require.NoError(t, err)
	for _, c := range []*Collection{a, b} {
		_, err := c.RegisterWorkspace(testWorkspace("ws1", 1))
		require.NoError(t, err)
	}

	loan, err := a.At(0)
	require.NoError(t, err)
	_, err = b.At(0)
	assert.ErrorIs(t, err, types.ErrLockHeld)
	assert.ErrorIs(t, b.Unregister("ws1"), types.ErrLockHeld)
	require.NoError(t, loan.Release())
	assert.NoError(t, b.Unregister("ws1"))
}

func TestClose(t *testing.T) {
	reg := lock.NewMemoryRegistry(nil)
	c, err := NewCollection(nil, reg)
	require.NoError(t, err)
	_, err = c.RegisterWorkspace(testWorkspace("ws1", 1))
	require.NoError(t, err)

	_, err = c.At(0)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	held, err := reg.Held(lock.NameKey("ws1"))
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, 1, c.Len(), "close leaves the table alone")

	loan, err := c.At(0)
	require.NoError(t, err)
	assert.NoError(t, loan.Release())
}
