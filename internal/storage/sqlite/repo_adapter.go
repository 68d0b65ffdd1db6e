// This adapter wires the SQLite backend into the storage-agnostic factory.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"cricetl/internal/schema"
	"cricetl/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

// init registers the "sqlite" backend and its DDL bootstrapper.
func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", ensureTables)
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

func ensureTables(ctx context.Context, repo storage.Repository) error {
	for _, t := range schema.Tables() {
		if err := repo.Exec(ctx, createStmt(t)); err != nil {
			return fmt.Errorf("sqlite ddl %s: %w", t.Name, err)
		}
	}
	return nil
}

func createStmt(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1+len(t.Refs))
	for _, c := range t.Columns {
		defs = append(defs, c.Name+" "+sqliteType(c.Kind))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", t.Key))
	for _, ref := range t.Refs {
		defs = append(defs, fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s)",
			ref.Column, ref.Table, ref.TargetCo,
		))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", t.Name, strings.Join(defs, ",\n  "))
}

func sqliteType(k schema.Kind) string {
	switch k {
	case schema.KindInt, schema.KindBool:
		return "INTEGER" // bools stored as 0/1
	case schema.KindReal:
		return "REAL"
	default:
		return "TEXT"
	}
}
