package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/mantidproject/mantid-sub073/internal/lock"
	"github.com/mantidproject/mantid-sub073/internal/memento"
	"github.com/mantidproject/mantid-sub073/internal/paths"
	"github.com/mantidproject/mantid-sub073/internal/sqlite"
	"github.com/mantidproject/mantid-sub073/pkg/types"
)

// session is the state one command works against: the stored table loaded
// into a collection, plus the lock registry and counters.
//
// The loaded table is a read view. Commands that write go through edit, which
// stores only the checked-out row, or mutate, which reloads the snapshot
// inside a store write transaction. Neither overwrites rows that another
// process committed after the session opened.
type session struct {
	cfg      types.Config
	logger   *slog.Logger
	store    *sqlite.Store
	locks    lock.Registry
	metrics  *prometheus.Registry
	counters *memento.Metrics
	coll     *memento.Collection
}

var logLevels = map[string]slog.Level{
	types.LogLevelDebug: slog.LevelDebug,
	types.LogLevelInfo:  slog.LevelInfo,
	types.LogLevelWarn:  slog.LevelWarn,
	types.LogLevelError: slog.LevelError,
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevels[level]}))
}

func openSession(cmd *cobra.Command, f *rootFlags) (*session, error) {
	cfg, err := resolveConfig(f)
	if err != nil {
		return nil, err
	}
	s := &session{
		cfg:     cfg,
		logger:  newLogger(cmd.ErrOrStderr(), cfg.GetLogLevel()),
		metrics: prometheus.NewRegistry(),
	}
	s.counters = memento.NewMetrics(s.metrics)
	if s.store, err = sqlite.Open(paths.DatabaseFile(cfg.DataDir)); err != nil {
		return nil, sysError(err)
	}

	var tbl types.Table
	loaded, err := s.store.Load(cmd.Context())
	switch {
	case err == nil:
		tbl = loaded
	case !errors.Is(err, types.ErrNotFound):
		_ = s.store.Close()
		return nil, sysError(fmt.Errorf("load snapshot: %w", err))
	}

	if s.locks, err = lock.NewRegistry(cfg, s.logger); err != nil {
		_ = s.store.Close()
		return nil, sysError(fmt.Errorf("lock registry: %w", err))
	}
	s.coll, err = memento.NewCollection(tbl, s.locks, s.collectionOptions()...)
	if err != nil {
		_ = s.close()
		return nil, err
	}
	s.logger.Debug("session opened", "data_dir", cfg.DataDir, "rows", s.coll.Len(), "locks", cfg.GetLockBackend())
	return s, nil
}

func (s *session) collectionOptions() []memento.Option {
	return []memento.Option{memento.WithLogger(s.logger), memento.WithMetrics(s.counters)}
}

// edit checks out ref, brings its row up to date with the store and runs fn
// on the memento. When fn asks for a commit, the memento is committed and
// its row stored while the checkout is still held.
func (s *session) edit(ctx context.Context, ref string, fn func(*memento.Memento) (bool, error)) (err error) {
	loan, err := checkout(s.coll, ref)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := loan.Release(); rerr != nil && err == nil {
			err = sysError(rerr)
		}
	}()
	m, err := loan.Memento()
	if err != nil {
		return err
	}
	if err := s.refresh(ctx, m); err != nil {
		return err
	}

	commit, err := fn(m)
	if err != nil || !commit {
		return err
	}
	if err := m.Commit(); err != nil {
		return sysError(err)
	}
	if err := s.store.SaveRows(ctx, s.coll.Table(), memento.ColumnName, m.Row()); err != nil {
		return fmt.Errorf("save row %d: %w", m.Row(), err)
	}
	return nil
}

// refresh copies the stored cells of m's row into the session table and
// reloads m from them.
func (s *session) refresh(ctx context.Context, m *memento.Memento) error {
	it, err := m.Item(memento.ColumnName)
	if err != nil {
		return err
	}
	name := it.Value()
	values, err := s.store.LoadRow(ctx, memento.ColumnName, name)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", name, err)
	}
	tbl := s.coll.Table()
	if len(values) != tbl.ColumnCount() {
		return sysError(fmt.Errorf("refresh %s: %w: %d stored cells", name, types.ErrInvalidSchema, len(values)))
	}
	for col, v := range values {
		if err := tbl.SetCell(m.Row(), col, v); err != nil {
			return sysError(fmt.Errorf("refresh %s: %w", name, err))
		}
	}
	return m.Reload()
}

// mutate runs fn on a collection over the current stored snapshot and stores
// the result, in one store write transaction.
func (s *session) mutate(ctx context.Context, fn func(*memento.Collection) error) error {
	var fnErr error
	err := s.store.Update(ctx, func(current types.Table) (types.Table, error) {
		coll, err := memento.NewCollection(current, s.locks, s.collectionOptions()...)
		if err != nil {
			fnErr = err
			return nil, err
		}
		defer func() { _ = coll.Close() }()
		if fnErr = fn(coll); fnErr != nil {
			return nil, fnErr
		}
		return coll.Serialize(), nil
	})
	if err != nil && fnErr == nil {
		return sysError(fmt.Errorf("update snapshot: %w", err))
	}
	return err
}

// close releases everything the session holds and writes the metrics file.
func (s *session) close() error {
	var errs []error
	if s.coll != nil {
		errs = append(errs, s.coll.Close())
	}
	if c, ok := s.locks.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	if s.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.MetricsFile, s.metrics); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return sysError(err)
	}
	return nil
}

// withSession runs fn against an open session and closes it.
func withSession(cmd *cobra.Command, f *rootFlags, fn func(*session) error) (err error) {
	s, err := openSession(cmd, f)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
