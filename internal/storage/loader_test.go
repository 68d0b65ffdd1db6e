package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cricetl/internal/schema"
)

// fakeRepo records upsert calls and fails on demand.
type fakeRepo struct {
	mu       sync.Mutex
	calls    []fakeCall
	failNext int // fail this many upserts before succeeding
	failErr  error
}

type fakeCall struct {
	table string
	rows  int
}

func (f *fakeRepo) Upsert(ctx context.Context, table string, columns []string, keyColumn string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return 0, f.failErr
	}
	f.calls = append(f.calls, fakeCall{table: table, rows: len(rows)})
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(ctx context.Context, sql string) error { return nil }
func (f *fakeRepo) Close()                                     {}

func (f *fakeRepo) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func makeRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{i}
	}
	return rows
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestLoadTableChunks(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cfg := LoadConfig{ChunkSize: 500, sleep: noSleep}

	n, err := LoadTable(context.Background(), repo, schema.Matches, makeRows(1250), cfg)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if n != 1250 {
		t.Errorf("loaded = %d, want 1250", n)
	}
	if got := repo.callCount(); got != 3 {
		t.Fatalf("chunks = %d, want 3", got)
	}

	// Chunks are 500, 500, 250 in some completion order.
	sizes := map[int]int{}
	for _, c := range repo.calls {
		sizes[c.rows]++
		if c.table != "matches" {
			t.Errorf("table = %q, want matches", c.table)
		}
	}
	if sizes[500] != 2 || sizes[250] != 1 {
		t.Errorf("chunk sizes = %v, want 2x500 + 1x250", sizes)
	}
}

func TestLoadTableEmpty(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	n, err := LoadTable(context.Background(), repo, schema.Matches, nil, LoadConfig{sleep: noSleep})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if n != 0 || repo.callCount() != 0 {
		t.Errorf("loaded=%d calls=%d, want 0/0", n, repo.callCount())
	}
}

func TestLoadTableRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{failNext: 2, failErr: errors.New("deadlock detected")}
	cfg := LoadConfig{ChunkSize: 100, MaxRetries: 3, sleep: noSleep}

	n, err := LoadTable(context.Background(), repo, schema.Matches, makeRows(100), cfg)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if n != 100 {
		t.Errorf("loaded = %d, want 100", n)
	}
}

func TestLoadTableFailureAfterRetries(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	repo := &fakeRepo{failNext: 100, failErr: cause}
	cfg := LoadConfig{ChunkSize: 50, MaxRetries: 2, MaxInFlight: 1, sleep: noSleep}

	_, err := LoadTable(context.Background(), repo, schema.Deliveries, makeRows(120), cfg)
	var lf *LoadFailure
	if !errors.As(err, &lf) {
		t.Fatalf("err = %v, want *LoadFailure", err)
	}
	if lf.Entity != "deliveries" {
		t.Errorf("Entity = %q", lf.Entity)
	}
	if lf.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", lf.Attempts)
	}
	if lf.LastRow-lf.FirstRow+1 != 50 {
		t.Errorf("row range [%d..%d], want a 50-row chunk", lf.FirstRow, lf.LastRow)
	}
	if !errors.Is(err, cause) {
		t.Errorf("cause not wrapped: %v", err)
	}
}

func TestLoadTableBackoffCapped(t *testing.T) {
	t.Parallel()

	var slept []time.Duration
	var mu sync.Mutex
	sleep := func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
		return nil
	}

	repo := &fakeRepo{failNext: 100, failErr: errors.New("busy")}
	cfg := LoadConfig{
		ChunkSize:      10,
		MaxRetries:     4,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		sleep:          sleep,
	}

	_, err := LoadTable(context.Background(), repo, schema.Matches, makeRows(10), cfg)
	if err == nil {
		t.Fatal("want failure")
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("sleeps = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestLoadTableContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo := &fakeRepo{failNext: 100, failErr: errors.New("busy")}
	_, err := LoadTable(ctx, repo, schema.Matches, makeRows(10), LoadConfig{sleep: noSleep})
	if err == nil {
		t.Fatal("want error on canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in chain", err)
	}
}

func TestLoadAllOrderAndStopOnFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	tables := []TableRows{
		{Table: schema.Matches, Rows: makeRows(3)},
		{Table: schema.Innings, Rows: makeRows(6)},
		{Table: schema.Deliveries, Rows: makeRows(9)},
	}

	loaded, err := LoadAll(context.Background(), repo, tables, LoadConfig{sleep: noSleep})
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if loaded["matches"] != 3 || loaded["innings"] != 6 || loaded["deliveries"] != 9 {
		t.Errorf("loaded = %v", loaded)
	}

	order := make([]string, 0, len(repo.calls))
	for _, c := range repo.calls {
		order = append(order, c.table)
	}
	want := []string{"matches", "innings", "deliveries"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("load order = %v, want %v", order, want)
		}
	}

	// First entity fails: nothing after it runs, but its count is reported.
	failing := &fakeRepo{failNext: 100, failErr: errors.New("down")}
	loaded, err = LoadAll(context.Background(), failing, tables, LoadConfig{MaxRetries: 0, sleep: noSleep})
	if err == nil {
		t.Fatal("want failure")
	}
	if loaded["matches"] != 0 {
		t.Errorf("matches loaded = %d, want 0", loaded["matches"])
	}
	if _, ran := loaded["innings"]; ran && loaded["innings"] != 0 {
		t.Errorf("innings ran after matches failed: %v", loaded)
	}
	if failing.callCount() != 0 {
		t.Errorf("successful calls after failure = %d, want 0", failing.callCount())
	}
}
