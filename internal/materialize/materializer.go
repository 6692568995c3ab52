// Package materialize loads dataset bytes into the engine's table
// space. Each logical table is imported exactly once, no matter how
// many callers race on it: the first caller registers an in-flight
// future under the table name before doing any I/O, and everyone else
// awaits that future.
package materialize

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/google/uuid"

	"github.com/insightstack/insightql/internal/engine"
	"github.com/insightstack/insightql/internal/storage"
	"github.com/insightstack/insightql/pkg/dataset"
)

// TableLoadError wraps a storage or import failure for one table.
type TableLoadError struct {
	Table string
	Err   error
}

func (e *TableLoadError) Error() string {
	return fmt.Sprintf("failed to load table %s: %v", e.Table, e.Err)
}

func (e *TableLoadError) Unwrap() error { return e.Err }

// inflight is a single-assignment future for one table load. The
// result fields are written exactly once, before done is closed.
type inflight struct {
	done  chan struct{}
	table string
	err   error
}

// Materializer owns the load registry for one engine connection. It
// is an injectable object rather than package state so independent
// connections never share a registry.
type Materializer struct {
	engine engine.Engine
	store  storage.Store
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflight
	loaded   map[string]struct{}
}

// New creates a materializer over an engine and a byte store.
func New(eng engine.Engine, store storage.Store, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Materializer{
		engine:   eng,
		store:    store,
		logger:   logger,
		inflight: make(map[string]*inflight),
		loaded:   make(map[string]struct{}),
	}
}

// EnsureLoaded guarantees the handle's bytes are present in the
// engine under the handle's table name and returns that name. It is
// idempotent, and concurrent callers for the same table all observe
// the outcome of a single load.
func (m *Materializer) EnsureLoaded(ctx context.Context, h dataset.Handle) (string, error) {
	name := h.TableName()

	m.mu.Lock()
	if _, ok := m.loaded[name]; ok {
		m.mu.Unlock()
		return name, nil
	}
	if fut, ok := m.inflight[name]; ok {
		m.mu.Unlock()
		<-fut.done
		return fut.table, fut.err
	}

	// Register intent before any I/O. This closes the race between
	// "check if loaded" and "create table".
	fut := &inflight{done: make(chan struct{})}
	m.inflight[name] = fut
	m.mu.Unlock()

	err := m.load(ctx, name, h)

	m.mu.Lock()
	delete(m.inflight, name)
	if err == nil {
		m.loaded[name] = struct{}{}
	}
	m.mu.Unlock()

	if err == nil {
		fut.table = name
	}
	fut.err = err
	close(fut.done)

	if err != nil {
		return "", err
	}
	return name, nil
}

// EnsureAll materializes several handles concurrently and fails on
// the first error.
func (m *Materializer) EnsureAll(ctx context.Context, handles []dataset.Handle) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error {
			_, err := m.EnsureLoaded(ctx, h)
			return err
		})
	}
	return g.Wait()
}

// load performs the actual materialization for one table.
func (m *Materializer) load(ctx context.Context, name string, h dataset.Handle) error {
	// Probe failures are treated as "table does not exist" and fall
	// through to a fresh import.
	exists, err := m.engine.TableExists(ctx, name)
	if err != nil {
		m.logger.Debug("catalog probe failed, assuming table absent", "table", name, "error", err)
		exists = false
	}
	if exists {
		m.logger.Debug("table already present in catalog", "table", name)
		return nil
	}

	// Drop any stale definition left behind by a previous session.
	_ = m.engine.DropTable(ctx, name)

	data, err := m.store.Fetch(ctx, h.Location)
	if err != nil {
		return &TableLoadError{Table: name, Err: err}
	}

	if err := m.engine.ImportColumnar(ctx, name, data); err != nil {
		return &TableLoadError{Table: name, Err: err}
	}

	m.logger.Debug("table materialized", "table", name, "dataset", h.ID)
	return nil
}

// Invalidate forgets that a dataset's table is loaded, forcing a
// fresh catalog probe (and reload if needed) on the next EnsureLoaded.
// It does not cancel an in-flight load.
func (m *Materializer) Invalidate(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.loaded, dataset.TableNameForID(id))
}

// InvalidateAll clears the whole loaded set. In-flight loads are
// unaffected.
func (m *Materializer) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = make(map[string]struct{})
}
