// This adapter wires the MSSQL backend into the storage-agnostic factory.
package mssql

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

// init registers the "mssql" backend and its DDL bootstrapper.
func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", ensureTables)
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

func ensureTables(ctx context.Context, repo storage.Repository) error {
	for _, t := range schema.Tables() {
		stmt := fmt.Sprintf(
			"IF OBJECT_ID(N'%s', N'U') IS NULL %s",
			t.Name, createStmt(t),
		)
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("mssql ddl %s: %w", t.Name, err)
		}
	}
	return nil
}

func createStmt(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1+len(t.Refs))
	for _, c := range t.Columns {
		defs = append(defs, msIdent(c.Name)+" "+msType(c.Kind))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", msIdent(t.Key)))
	for _, ref := range t.Refs {
		defs = append(defs, fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s)",
			msIdent(ref.Column), msIdent(ref.Table), msIdent(ref.TargetCo),
		))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", msIdent(t.Name), strings.Join(defs, ",\n  "))
}

// msType maps abstract kinds to SQL Server types. Text becomes NVARCHAR
// rather than NVARCHAR(MAX) because key columns must be indexable.
func msType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "FLOAT"
	case schema.KindBool:
		return "BIT"
	default:
		return "NVARCHAR(255)"
	}
}
