package storage

import (
	"context"
	"fmt"
	"sync"
)

// DDLBootstrapper creates the entity tables (and their constraints) in a
// backend's dialect, typically with CREATE TABLE IF NOT EXISTS statements
// issued through repo.Exec. Backends register their implementation for a
// given kind at init time.
type DDLBootstrapper func(ctx context.Context, repo Repository) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) a DDLBootstrapper for a backend kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTables invokes the registered DDLBootstrapper for kind. Callers do
// not need to know which backend they are using; they pass the already-open
// Repository.
func EnsureTables(ctx context.Context, kind string, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for kind=%q", kind)
	}
	return fn(ctx, repo)
}
