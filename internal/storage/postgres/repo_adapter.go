// This adapter wires the Postgres backend into the storage-agnostic factory.
package postgres

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

// init registers the "postgres" backend and its DDL bootstrapper.
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("postgres", ensureTables)
}

// wrappedRepo adapts *postgres.Repository to storage.Repository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

// ensureTables creates the entity tables with primary and foreign keys.
func ensureTables(ctx context.Context, repo storage.Repository) error {
	for _, t := range schema.Tables() {
		if err := repo.Exec(ctx, createStmt(t)); err != nil {
			return fmt.Errorf("postgres ddl %s: %w", t.Name, err)
		}
	}
	return nil
}

func createStmt(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1+len(t.Refs))
	for _, c := range t.Columns {
		defs = append(defs, pgIdent(c.Name)+" "+pgType(c.Kind))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pgIdent(t.Key)))
	for _, ref := range t.Refs {
		defs = append(defs, fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s)",
			pgIdent(ref.Column), pgIdent(ref.Table), pgIdent(ref.TargetCo),
		))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", pgIdent(t.Name), strings.Join(defs, ",\n  "))
}

func pgType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE PRECISION"
	case schema.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
