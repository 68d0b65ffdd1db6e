// Package config defines the canonical, JSON-serializable configuration
// model for a pipeline run. It is intentionally small, explicit, and
// dependency-free so that run configs can be loaded from disk and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: field names in Go mirror the JSON structure of run files.
//  3. Minimalism: no third-party config libraries; decoding is performed by
//     the standard library.
//
// Example:
//
//	{
//	  "job":     "cricket_load",
//	  "source":  { "dir": "data/extracted" },
//	  "export":  { "csv_dir": "data/processed" },
//	  "storage": { "kind": "postgres", "dsn": "postgresql://...", "auto_create_tables": true },
//	  "loader":  { "chunk_size": 500, "max_retries": 3 },
//	  "runtime": { "workers": 4 }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Run describes one full pipeline run. It is the top-level object decoded
// from a run config file.
type Run struct {
	// Job names the run for metrics labeling and log identification.
	Job string `json:"job"`

	// Source locates the input documents.
	Source Source `json:"source"`

	// Export optionally configures delimited-text export of the assembled
	// datasets. An empty CSVDir disables export.
	Export Export `json:"export"`

	// Storage selects and configures the destination store.
	Storage Storage `json:"storage"`

	// Loader controls chunking, retries, and the overall load timeout.
	Loader Loader `json:"loader"`

	// Runtime controls concurrency of the document transformation stage.
	Runtime Runtime `json:"runtime"`
}

// Source locates the directory of per-match JSON documents.
type Source struct {
	// Dir is scanned recursively for *.json files, one match per file.
	Dir string `json:"dir"`
}

// Export configures dataset export as delimited text.
type Export struct {
	CSVDir string `json:"csv_dir"`
}

// Storage configures the destination store.
type Storage struct {
	// Kind selects the backend: "postgres", "mysql", "mssql", or "sqlite".
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// AutoCreateTables creates the four entity tables before loading.
	AutoCreateTables bool `json:"auto_create_tables"`
}

// Loader controls the batch-load stage. Durations are in milliseconds in
// JSON; zero values take the loader's defaults.
type Loader struct {
	// ChunkSize is the number of rows per bulk-insert operation.
	ChunkSize int `json:"chunk_size"`

	// MaxRetries is the number of retry attempts per chunk after the
	// initial one.
	MaxRetries int `json:"max_retries"`

	// RetryBackoffMS is the initial retry delay; it doubles per attempt.
	RetryBackoffMS int `json:"retry_backoff_ms"`

	// MaxBackoffMS caps the exponential backoff.
	MaxBackoffMS int `json:"max_backoff_ms"`

	// MaxInFlight bounds concurrent chunk transactions within one entity.
	MaxInFlight int `json:"max_in_flight"`

	// TimeoutSeconds bounds the whole load stage; past it the run aborts
	// with a fatal error rather than hanging. Zero means no timeout.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// RetryBackoff returns the initial backoff as a duration.
func (l Loader) RetryBackoff() time.Duration {
	return time.Duration(l.RetryBackoffMS) * time.Millisecond
}

// MaxBackoff returns the backoff cap as a duration.
func (l Loader) MaxBackoff() time.Duration {
	return time.Duration(l.MaxBackoffMS) * time.Millisecond
}

// Timeout returns the overall load timeout, or 0 when disabled.
func (l Loader) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// Runtime controls transformation-stage concurrency.
type Runtime struct {
	// Workers is the number of concurrent document workers.
	Workers int `json:"workers"`
}

// Load decodes a run config from a JSON file.
func Load(path string) (Run, error) {
	var r Run
	f, err := os.Open(path)
	if err != nil {
		return r, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&r); err != nil {
		return r, fmt.Errorf("decode config %s: %w", path, err)
	}
	return r, nil
}
