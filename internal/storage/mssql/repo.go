// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Chunk upserts bulk-copy into a session-scoped
// temporary table (#temp), delete matching keys from the target, and insert
// from the temp table, all inside one transaction so the chunk commits
// atomically.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mssql: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mssql: ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Upsert performs a delete-then-insert via a session-scoped temporary table.
func (r *Repository) Upsert(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mssql: Upsert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tmp := "#tmp_" + strings.ReplaceAll(table, ".", "_")

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mssql: begin tx: %w", err)
	}
	rollback := func() { _ = tx.Rollback() }

	// 1) Temp table with the same shape as the target.
	create := fmt.Sprintf(
		"SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(mapIdent(columns), ","),
		msIdent(tmp),
		msIdent(table),
	)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: create temp: %w", err)
	}

	// 2) Bulk copy rows into the temp table.
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(tmp, mssql.BulkOptions{}, columns...))
	if err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: prepare bulk copy: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql: Upsert: row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			rollback()
			return 0, fmt.Errorf("mssql: bulk row %d: %w", i, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil { // flush
		_ = stmt.Close()
		rollback()
		return 0, fmt.Errorf("mssql: bulk finalize: %w", err)
	}
	if err := stmt.Close(); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: bulk close: %w", err)
	}

	// 3) Delete rows already present under the same key, then insert.
	del := fmt.Sprintf(
		"DELETE T FROM %s AS T INNER JOIN %s AS S ON T.%s = S.%s",
		msIdent(table), msIdent(tmp), msIdent(keyColumn), msIdent(keyColumn),
	)
	if _, err := tx.ExecContext(ctx, del); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: delete matching: %w", err)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		msIdent(table),
		strings.Join(mapIdent(columns), ","),
		strings.Join(mapIdent(columns), ","),
		msIdent(tmp),
	)
	if _, err := tx.ExecContext(ctx, insert); err != nil {
		rollback()
		return 0, fmt.Errorf("mssql: insert phase: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mssql: commit: %w", err)
	}
	return int64(len(rows)), nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

func msIdent(s string) string {
	return "[" + strings.ReplaceAll(s, "]", "]]") + "]"
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
