// This adapter wires the MySQL backend into the storage-agnostic factory.
package mysql

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

// init registers the "mysql" backend and its DDL bootstrapper.
func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mysql", ensureTables)
}

type wrappedRepo struct {
	*Repository
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }

func ensureTables(ctx context.Context, repo storage.Repository) error {
	for _, t := range schema.Tables() {
		if err := repo.Exec(ctx, createStmt(t)); err != nil {
			return fmt.Errorf("mysql ddl %s: %w", t.Name, err)
		}
	}
	return nil
}

func createStmt(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1+len(t.Refs))
	for _, c := range t.Columns {
		defs = append(defs, myIdent(c.Name)+" "+myType(c.Kind))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", myIdent(t.Key)))
	for _, ref := range t.Refs {
		defs = append(defs, fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s)",
			myIdent(ref.Column), myIdent(ref.Table), myIdent(ref.TargetCo),
		))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", myIdent(t.Name), strings.Join(defs, ",\n  "))
}

// myType maps abstract kinds to MySQL types. Text becomes VARCHAR rather
// than TEXT because key and foreign-key columns must be indexable.
func myType(k schema.Kind) string {
	switch k {
	case schema.KindInt:
		return "BIGINT"
	case schema.KindReal:
		return "DOUBLE"
	case schema.KindBool:
		return "TINYINT(1)"
	default:
		return "VARCHAR(255)"
	}
}
