package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cricetl/internal/config"
	"cricetl/internal/cricsheet"
	"cricetl/internal/dataset"
	"cricetl/internal/metrics"
	"cricetl/internal/storage"
	"cricetl/internal/transformer"
	"cricetl/pkg/records"
)

// counters tracks run-level document outcomes.
type counters struct {
	processed atomic.Int64
	skipped   atomic.Int64
	warnings  atomic.Int64
}

// errAgg keeps the first few error messages so a run with thousands of bad
// files still produces a readable summary.
type errAgg struct {
	mu    sync.Mutex
	max   int
	count int
	msgs  []string
}

func newErrAgg(max int) *errAgg { return &errAgg{max: max} }

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	if len(a.msgs) < a.max {
		a.msgs = append(a.msgs, msg)
	}
}

func (a *errAgg) summary() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return ""
	}
	s := strings.Join(a.msgs, "; ")
	if a.count > len(a.msgs) {
		s += fmt.Sprintf("; and %d more", a.count-len(a.msgs))
	}
	return s
}

// execute runs the whole pipeline: discover documents, normalize and impute
// them concurrently, assemble the datasets, then export and/or load.
func execute(ctx context.Context, run config.Run, verbose bool) error {
	files, err := discover(run.Source.Dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .json documents found under %q", run.Source.Dir)
	}
	log.Printf("run: discovered %d documents under %s", len(files), run.Source.Dir)

	asm := dataset.NewAssembler()
	imputers := transformer.ImputeAll()

	var cnt counters
	skips := newErrAgg(5)

	workers := run.Runtime.Workers
	if workers <= 0 {
		workers = 4
	}

	stepStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			processFile(path, asm, imputers, &cnt, skips, verbose)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	metrics.RecordStep(run.Job, "normalize", nil, time.Since(stepStart))
	metrics.RecordRow(run.Job, "documents_processed", cnt.processed.Load())
	metrics.RecordRow(run.Job, "documents_skipped", cnt.skipped.Load())
	metrics.RecordRow(run.Job, "warnings", cnt.warnings.Load())

	datasets := asm.Datasets()
	for _, d := range datasets {
		metrics.RecordRow(run.Job, "rows_"+d.Table.Name, int64(d.Len()))
	}

	if dir := run.Export.CSVDir; dir != "" {
		stepStart = time.Now()
		err := exportCSV(dir, datasets)
		metrics.RecordStep(run.Job, "export_csv", err, time.Since(stepStart))
		if err != nil {
			return err
		}
	}

	loaded := map[string]int64{}
	if run.Storage.Kind != "" {
		stepStart = time.Now()
		var err error
		loaded, err = load(ctx, run, datasets)
		metrics.RecordStep(run.Job, "load", err, time.Since(stepStart))
		if err != nil {
			return err
		}

		size := run.Loader.ChunkSize
		if size <= 0 {
			size = 500
		}
		var chunks int64
		for _, d := range datasets {
			chunks += int64((d.Len() + size - 1) / size)
		}
		metrics.RecordChunks(run.Job, chunks)
	}

	summary := fmt.Sprintf("run: done. processed=%d skipped=%d warnings=%d",
		cnt.processed.Load(), cnt.skipped.Load(), cnt.warnings.Load())
	for _, d := range datasets {
		if n, ok := loaded[d.Table.Name]; ok {
			summary += fmt.Sprintf(" %s=%d/%d", d.Table.Name, n, d.Len())
		} else {
			summary += fmt.Sprintf(" %s=%d", d.Table.Name, d.Len())
		}
	}
	log.Print(summary)
	if s := skips.summary(); s != "" {
		log.Printf("run: skipped documents: %s", s)
	}
	return nil
}

// discover lists the .json documents under dir, sorted so that runs are
// reproducible regardless of filesystem ordering.
func discover(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover %q: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// processFile normalizes one document and merges it into the assembler.
// Failures are counted and aggregated, never fatal to the run.
func processFile(path string, asm *dataset.Assembler, imputers map[string]transformer.Impute, cnt *counters, skips *errAgg, verbose bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		cnt.skipped.Add(1)
		skips.add(fmt.Sprintf("%s: %v", filepath.Base(path), err))
		return
	}

	sourceKey := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res, err := cricsheet.Normalize(data, sourceKey)
	if err != nil {
		cnt.skipped.Add(1)
		var malformed *cricsheet.MalformedDocumentError
		if errors.As(err, &malformed) {
			skips.add(malformed.Error())
		} else {
			skips.add(fmt.Sprintf("%s: %v", sourceKey, err))
		}
		return
	}

	cnt.warnings.Add(int64(len(res.Warnings)))
	if verbose {
		for _, w := range res.Warnings {
			log.Printf("warn: %s", w)
		}
	}

	imputers["matches"].Apply([]records.Record{res.Match})
	imputers["innings"].Apply(res.Innings)
	imputers["deliveries"].Apply(res.Deliveries)
	imputers["wickets"].Apply(res.Wickets)

	added, dup := asm.Add(res)
	if !added && dup != nil {
		cnt.skipped.Add(1)
		skips.add(dup.String())
	} else {
		cnt.processed.Add(1)
	}
}

// exportCSV writes each dataset as one CSV file under dir.
func exportCSV(dir string, datasets []*dataset.Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	for _, d := range datasets {
		path, err := d.WriteCSV(dir)
		if err != nil {
			return fmt.Errorf("export %s: %w", d.Table.Name, err)
		}
		log.Printf("export: wrote %d rows to %s", d.Len(), path)
	}
	return nil
}

// load opens the configured repository, optionally creates the tables, and
// bulk-loads every dataset in dependency order.
func load(ctx context.Context, run config.Run, datasets []*dataset.Dataset) (map[string]int64, error) {
	if t := run.Loader.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	repo, err := storage.New(ctx, storage.Config{Kind: run.Storage.Kind, DSN: run.Storage.DSN})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	defer repo.Close()

	if run.Storage.AutoCreateTables {
		if err := storage.EnsureTables(ctx, run.Storage.Kind, repo); err != nil {
			return nil, fmt.Errorf("storage: ensure tables: %w", err)
		}
	}

	tables := make([]storage.TableRows, 0, len(datasets))
	for _, d := range datasets {
		tables = append(tables, storage.TableRows{Table: d.Table, Rows: d.Rows})
	}

	cfg := storage.LoadConfig{
		ChunkSize:      run.Loader.ChunkSize,
		MaxRetries:     run.Loader.MaxRetries,
		InitialBackoff: run.Loader.RetryBackoff(),
		MaxBackoff:     run.Loader.MaxBackoff(),
		MaxInFlight:    run.Loader.MaxInFlight,
	}
	return storage.LoadAll(ctx, repo, tables, cfg)
}
