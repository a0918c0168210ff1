package memento

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/internal/table"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// Notifier is told whenever the set of registered rows changes.
type Notifier interface {
	DataChanged()
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func()

// DataChanged calls f.
func (f NotifierFunc) DataChanged() { f() }

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collection) { c.logger = l }
}

// WithNotifier sets the collaborator told about row changes.
func WithNotifier(n Notifier) Option {
	return func(c *Collection) { c.notifier = n }
}

// WithMetrics sets the counters updated by the collection.
func WithMetrics(m *Metrics) Option {
	return func(c *Collection) { c.metrics = m }
}

// WithSchema replaces the default schema.
func WithSchema(s *Schema) Option {
	return func(c *Collection) { c.schema = s }
}

// WithRunNumberKeys locks mementos by run number instead of workspace name.
// The schema must have a RunNumber column, which becomes read-only.
func WithRunNumberKeys() Option {
	return func(c *Collection) { c.runKeys = true }
}

// Collection owns one shared table with a row per registered workspace and
// the mementos created for those rows. Callers borrow mementos through
// loans; the collection keeps ownership.
type Collection struct {
	table    types.Table
	schema   *Schema
	locks    lock.Registry
	mementos map[string]*Memento
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	runKeys  bool
	nameCol  int
	runCol   int
}

// NewCollection wraps tbl, creating an empty table when tbl is nil. A nil
// registry gets a fresh MemoryRegistry.
func NewCollection(tbl types.Table, locks lock.Registry, opts ...Option) (*Collection, error) {
	c := &Collection{
		locks:    locks,
		mementos: make(map[string]*Memento),
		runCol:   -1,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.schema == nil {
		c.schema = DefaultSchema()
	}
	if c.locks == nil {
		c.locks = lock.NewMemoryRegistry(c.logger)
	}
	if tbl == nil {
		w, err := table.New(c.schema.Columns())
		if err != nil {
			return nil, err
		}
		tbl = w
	} else if err := c.schema.Check(tbl); err != nil {
		return nil, err
	}
	c.table = tbl

	var err error
	if c.nameCol, err = tbl.ColumnIndex(ColumnName); err != nil {
		return nil, err
	}
	if c.schema.Has(ColumnRunNumber) {
		if c.runCol, err = tbl.ColumnIndex(ColumnRunNumber); err != nil {
			return nil, err
		}
	}
	if c.runKeys && c.runCol < 0 {
		return nil, fmt.Errorf("%w: run number keys need a %s column", types.ErrInvalidSchema, ColumnRunNumber)
	}
	return c, nil
}

// Table returns the shared table.
func (c *Collection) Table() types.Table { return c.table }

// Schema returns the collection schema.
func (c *Collection) Schema() *Schema { return c.schema }

// Len returns the number of registered rows.
func (c *Collection) Len() int { return c.table.RowCount() }

// RegisterWorkspace appends a row recording ws and returns its index.
func (c *Collection) RegisterWorkspace(ws types.Workspace) (int, error) {
	if err := ws.Validate(); err != nil {
		return -1, fmt.Errorf("register workspace: %w", err)
	}
	if _, ok := c.rowOf(ws.Name); ok {
		return -1, fmt.Errorf("%w: %q", types.ErrAlreadyRegistered, ws.Name)
	}
	row := c.table.AppendRow()
	for col, v := range c.schema.Row(ws) {
		if err := c.table.SetCell(row, col, v); err != nil {
			_ = c.table.RemoveRow(row)
			return -1, fmt.Errorf("register workspace %q: %w", ws.Name, err)
		}
	}
	c.metrics.registered()
	c.logger.Info("workspace registered", "name", ws.Name, "run", ws.RunNumber, "row", row)
	c.notify()
	return row, nil
}

// At checks out the memento for row index. The memento is created on first
// use and shared by every later checkout. Fails with ErrLockHeld while
// another loan for the same row is active.
func (c *Collection) At(index int) (*Loan, error) {
	if index < 0 || index >= c.table.RowCount() {
		return nil, fmt.Errorf("%w: %d (rows: %d)", types.ErrRowOutOfRange, index, c.table.RowCount())
	}
	m, err := c.memento(index)
	if err != nil {
		return nil, err
	}
	if err := m.Lock(); err != nil {
		if errors.Is(err, types.ErrLockHeld) {
			c.metrics.contended()
			c.logger.Debug("memento checkout refused", "row", index, "error", err)
		}
		return nil, fmt.Errorf("memento %d: %w", index, err)
	}
	return newLoan(m), nil
}

// AtName checks out the memento of the named workspace.
func (c *Collection) AtName(name string) (*Loan, error) {
	row, ok := c.rowOf(name)
	if !ok {
		return nil, fmt.Errorf("%w: workspace %q", types.ErrNotFound, name)
	}
	return c.At(row)
}

// With checks out row index, runs fn, and releases the loan.
func (c *Collection) With(index int, fn func(*Memento) error) (err error) {
	loan, err := c.At(index)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := loan.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(loan.m)
}

// Serialize returns a deep copy of the shared table. Only committed values
// appear in it.
func (c *Collection) Serialize() types.Table {
	return c.table.Clone()
}

// ApplyAll commits every memento created so far, in row order.
func (c *Collection) ApplyAll() error {
	for _, m := range c.ordered() {
		if err := m.Commit(); err != nil {
			return fmt.Errorf("apply row %d: %w", m.row, err)
		}
	}
	return nil
}

// RevertAll rolls back every memento created so far, in row order.
func (c *Collection) RevertAll() error {
	for _, m := range c.ordered() {
		if err := m.Rollback(); err != nil {
			return fmt.Errorf("revert row %d: %w", m.row, err)
		}
	}
	return nil
}

// Unregister removes the named workspace row. Fails with ErrLockHeld while
// its memento is checked out here or, with a shared registry, elsewhere.
func (c *Collection) Unregister(name string) error {
	row, ok := c.rowOf(name)
	if !ok {
		return fmt.Errorf("%w: workspace %q", types.ErrNotFound, name)
	}
	key, err := c.keyFor(row)
	if err != nil {
		return err
	}
	held, err := c.locks.Held(key)
	if err != nil {
		return fmt.Errorf("unregister %q: %w", name, err)
	}
	if held {
		return fmt.Errorf("unregister %q: %w", name, &lock.LockError{Key: key, Err: types.ErrLockHeld})
	}
	if err := c.table.RemoveRow(row); err != nil {
		return fmt.Errorf("unregister %q: %w", name, err)
	}
	delete(c.mementos, name)
	for _, m := range c.mementos {
		if m.row > row {
			m.row--
		}
	}
	c.logger.Info("workspace unregistered", "name", name, "row", row)
	c.notify()
	return nil
}

// Close releases every lock still held by the collection's mementos and
// forgets them. The table is left untouched.
func (c *Collection) Close() error {
	var errs []error
	for name, m := range c.mementos {
		if m.Locked() {
			if _, err := m.Unlock(); err != nil {
				errs = append(errs, fmt.Errorf("unlock %q: %w", name, err))
			}
		}
	}
	c.mementos = make(map[string]*Memento)
	return errors.Join(errs...)
}

// Names returns the registered workspace names in row order.
func (c *Collection) Names() ([]string, error) {
	names := make([]string, c.table.RowCount())
	for row := range names {
		name, err := c.nameAt(row)
		if err != nil {
			return nil, err
		}
		names[row] = name
	}
	return names, nil
}

func (c *Collection) memento(row int) (*Memento, error) {
	name, err := c.nameAt(row)
	if err != nil {
		return nil, err
	}
	if m, ok := c.mementos[name]; ok {
		return m, nil
	}
	key, err := c.keyFor(row)
	if err != nil {
		return nil, err
	}
	m := New(c.table, row, lock.NewSingleOwnerLock(c.locks, key))
	if err := c.schema.Configure(m); err != nil {
		return nil, err
	}
	if c.runKeys {
		m.byName[ColumnRunNumber].readOnly = true
	}
	m.afterCommit = append(m.afterCommit, func(m *Memento) {
		c.metrics.commit()
		c.logger.Debug("memento committed", "row", m.row)
	})
	m.afterRollback = append(m.afterRollback, func(m *Memento) {
		c.metrics.rollback()
		c.logger.Debug("memento rolled back", "row", m.row)
	})
	c.mementos[name] = m
	return m, nil
}

func (c *Collection) keyFor(row int) (lock.Key, error) {
	if c.runKeys {
		v, err := c.table.Cell(row, c.runCol)
		if err != nil {
			return lock.Key{}, err
		}
		run, err := types.As[int64](v)
		if err != nil {
			return lock.Key{}, err
		}
		return lock.RunKey(run), nil
	}
	name, err := c.nameAt(row)
	if err != nil {
		return lock.Key{}, err
	}
	return lock.NameKey(name), nil
}

func (c *Collection) nameAt(row int) (string, error) {
	v, err := c.table.Cell(row, c.nameCol)
	if err != nil {
		return "", err
	}
	return types.As[string](v)
}

func (c *Collection) rowOf(name string) (int, bool) {
	for row := 0; row < c.table.RowCount(); row++ {
		if n, err := c.nameAt(row); err == nil && n == name {
			return row, true
		}
	}
	return -1, false
}

func (c *Collection) ordered() []*Memento {
	ms := make([]*Memento, 0, len(c.mementos))
	for _, m := range c.mementos {
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].row < ms[j].row })
	return ms
}

func (c *Collection) notify() {
	if c.notifier != nil {
		c.notifier.DataChanged()
	}
}
