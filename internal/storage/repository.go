// Package storage contains storage-agnostic contracts and utilities: the
// Repository interface, a factory keyed by backend kind, DDL bootstrapping,
// and the chunked batch loader.
//
// Concrete backends (postgres, mysql, mssql, sqlite) live in subpackages and
// register themselves with the factory at init time; callers select one via
// Config.Kind and otherwise stay backend-agnostic.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a storage backend.
type Config struct {
	// Kind selects the backend implementation, e.g. "postgres", "sqlite".
	Kind string
	// DSN is the backend connection string.
	DSN string
}

// Repository is the minimal write surface the loader needs. Upsert must be
// atomic per call: either every row in the slice is committed or none is.
// Rows already present under the same key column value are overwritten, so
// repeated loads of the same rows are idempotent.
type Repository interface {
	Upsert(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error)
	Exec(ctx context.Context, sql string) error
	Close()
}

// Factory constructs a Repository for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	facMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for a backend kind. It is
// called from backend packages' init functions.
func Register(kind string, fn Factory) {
	facMu.Lock()
	defer facMu.Unlock()
	factories[kind] = fn
}

// New opens a Repository for cfg.Kind. Backends must have been linked in
// (typically via a blank import of storage/all).
func New(ctx context.Context, cfg Config) (Repository, error) {
	facMu.RLock()
	fn, ok := factories[cfg.Kind]
	facMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage backend registered for kind=%q", cfg.Kind)
	}
	return fn(ctx, cfg)
}
