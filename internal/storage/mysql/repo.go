// Package mysql implements a MySQL-backed storage.Repository. Chunk upserts
// use one multi-row INSERT ... ON DUPLICATE KEY UPDATE statement per chunk,
// executed inside a transaction, which is the closest MySQL equivalent to a
// bulk COPY with upsert semantics.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config holds MySQL repository configuration.
type Config struct {
	DSN string // e.g. "user:pass@tcp(localhost:3306)/cricket?parseTime=true"
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a MySQL connection pool and returns a Repository plus
// a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db}, closeFn, nil
}

// Upsert executes one multi-row upsert statement for the chunk inside a
// transaction; the chunk commits atomically.
func (r *Repository) Upsert(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: Upsert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tuple := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"
	tuples := make([]string, len(rows))
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mysql: Upsert: row length %d != columns length %d", len(row), len(columns))
		}
		tuples[i] = tuple
		args = append(args, row...)
	}

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == keyColumn {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", myIdent(c), myIdent(c)))
	}

	stmtSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON DUPLICATE KEY UPDATE %s",
		myIdent(table),
		strings.Join(mapIdent(columns), ", "),
		strings.Join(tuples, ", "),
		strings.Join(updates, ", "),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, stmtSQL, args...); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("mysql: upsert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	// RowsAffected counts updates twice under ON DUPLICATE KEY; report the
	// chunk size instead, matching the other backends.
	return int64(len(rows)), nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

func myIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
