// This file implements the chunked batch loader. Rows are grouped into
// fixed-size chunks; each chunk is one atomic upsert against the repository.
// Chunks of one entity may be in flight concurrently up to a bounded limit,
// and a failing chunk is retried with exponential backoff before the whole
// load is declared failed.
//
// Logging: on every successful flush a concise progress line is emitted with
// running totals and instantaneous rows/sec.

package storage

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cricetl/internal/schema"
)

// LoadConfig controls chunking and retry behavior.
//
// Zero values are given sensible defaults:
//   - ChunkSize:      500
//   - MaxRetries:     3 (retry attempts after the initial one)
//   - InitialBackoff: 200ms, doubling per retry
//   - MaxBackoff:     5s
//   - MaxInFlight:    1 (one writer per table is usually best)
type LoadConfig struct {
	ChunkSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxInFlight    int

	// sleep is injectable so tests run fast and deterministically.
	sleep func(ctx context.Context, d time.Duration) error
}

func (c LoadConfig) withDefaults() LoadConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 500
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 1
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	return c
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// LoadFailure is the fatal, chunk-level persistence failure surfaced after
// retries are exhausted. It names the entity and the affected row range so
// the operator can fix the underlying issue and re-run idempotently.
type LoadFailure struct {
	Entity   string
	FirstRow int // 0-based index of the chunk's first row in the dataset
	LastRow  int // 0-based index of the chunk's last row
	Attempts int
	Err      error
}

func (e *LoadFailure) Error() string {
	return fmt.Sprintf("load failure: entity=%s rows=[%d..%d] attempts=%d: %v",
		e.Entity, e.FirstRow, e.LastRow, e.Attempts, e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// LoadTable persists one entity's rows in chunks. Each chunk is one atomic
// Upsert call; chunks run concurrently up to cfg.MaxInFlight. It returns the
// total rows reported by the repository and the first fatal error.
func LoadTable(ctx context.Context, repo Repository, t schema.Table, rows [][]any, cfg LoadConfig) (int64, error) {
	cfg = cfg.withDefaults()
	columns := t.ColumnNames()

	var (
		total   atomic.Int64
		flushed atomic.Int64
		start   = time.Now()
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxInFlight)

	for first := 0; first < len(rows); first += cfg.ChunkSize {
		last := first + cfg.ChunkSize
		if last > len(rows) {
			last = len(rows)
		}
		chunk := rows[first:last]
		first := first

		g.Go(func() error {
			n, attempts, err := upsertWithRetry(ctx, repo, t, columns, chunk, cfg)
			if err != nil {
				log.Printf("loader: %s chunk rows=[%d..%d] failed after %d attempts: %v",
					t.Name, first, first+len(chunk)-1, attempts, err)
				return &LoadFailure{
					Entity:   t.Name,
					FirstRow: first,
					LastRow:  first + len(chunk) - 1,
					Attempts: attempts,
					Err:      err,
				}
			}
			cur := total.Add(n)
			num := flushed.Add(1)
			elapsed := time.Since(start)
			rps := float64(0)
			if elapsed > 0 {
				rps = float64(cur) / elapsed.Seconds()
			}
			log.Printf("loader: %s chunk #%d: inserted=%d total_inserted=%d rps=%.0f elapsed=%s",
				t.Name, num, n, cur, rps, elapsed.Truncate(time.Millisecond))
			return nil
		})
	}

	err := g.Wait()
	return total.Load(), err
}

// upsertWithRetry attempts one chunk, backing off exponentially between
// attempts. It returns the rows reported, the number of attempts made, and
// the last error when all attempts failed.
func upsertWithRetry(ctx context.Context, repo Repository, t schema.Table, columns []string, chunk [][]any, cfg LoadConfig) (int64, int, error) {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		n, err := repo.Upsert(ctx, t.Name, columns, t.Key, chunk)
		if err == nil {
			return n, attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, attempt, ctx.Err()
		}
		if attempt <= cfg.MaxRetries {
			log.Printf("loader: %s upsert attempt %d failed, retrying in %s: %v", t.Name, attempt, backoff, err)
			if serr := cfg.sleep(ctx, backoff); serr != nil {
				return 0, attempt, serr
			}
			backoff *= 2
			if backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}
	return 0, cfg.MaxRetries + 1, lastErr
}

// TableRows pairs a table definition with its assembled rows.
type TableRows struct {
	Table schema.Table
	Rows  [][]any
}

// LoadAll persists the datasets in the given order, which must place parents
// before children so foreign keys are satisfied (schema.Tables order). It
// stops at the first failing entity: later entities depend on earlier ones
// having committed. Counts of rows loaded per entity are returned even on
// error, because already-committed chunks stay valid under idempotent
// re-load.
func LoadAll(ctx context.Context, repo Repository, tables []TableRows, cfg LoadConfig) (map[string]int64, error) {
	loaded := make(map[string]int64, len(tables))
	for _, tr := range tables {
		n, err := LoadTable(ctx, repo, tr.Table, tr.Rows, cfg)
		loaded[tr.Table.Name] = n
		if err != nil {
			return loaded, err
		}
	}
	return loaded, nil
}
