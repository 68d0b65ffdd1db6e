// Package postgres implements a Postgres repository using pgx v5. Chunk
// upserts perform a COPY into a transaction-scoped temporary table followed
// by INSERT ... ON CONFLICT into the target table, so each chunk commits
// atomically and re-loading the same surrogate keys overwrites instead of
// duplicating.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN string // connection string for pgxpool
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	closeFn := func() { pool.Close() }
	return &Repository{pool: pool}, closeFn, nil
}

// Upsert copies rows into a temp table and merges them into the target
// inside one transaction. Either the whole chunk commits or none of it does.
func (r *Repository) Upsert(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: no columns")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tmp := "tmp_" + table
	create := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgIdent(tmp), pgIdent(table),
	)
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("postgres: create temp: %w", err)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmp}, columns, pgx.CopyFromRows(rows)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy into temp: %s (%s)", pgErr.Detail, pgErr.SQLState())
		}
		return 0, fmt.Errorf("postgres: copy into temp: %w", err)
	}

	insert := fmt.Sprintf(
		`INSERT INTO %s (%s)
         SELECT %s FROM %s
         ON CONFLICT (%s) DO UPDATE SET %s`,
		pgIdent(table),
		strings.Join(mapIdent(columns), ","),
		strings.Join(mapIdent(columns), ","),
		pgIdent(tmp),
		pgIdent(keyColumn),
		strings.Join(updateColumns(columns, keyColumn), ", "),
	)
	res, err := tx.Exec(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: commit: %w", err)
	}
	return res.RowsAffected(), nil
}

// Exec executes an arbitrary SQL statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// updateColumns generates "col = EXCLUDED.col" assignments for every
// non-key column.
func updateColumns(cols []string, keyColumn string) []string {
	updates := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == keyColumn {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", pgIdent(col), pgIdent(col)))
	}
	return updates
}

// pgIdent quotes a single identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
