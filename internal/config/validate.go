// This file adds a lightweight linter/validator for Run values. It performs
// static checks over a decoded Run and returns a list of issues (errors and
// warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be
	// surfaced to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "storage.kind"). Message is
// human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error in contexts that expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Validate performs static validation of a run config. It does not mutate
// the config; callers decide whether to treat warnings as fatal.
func Validate(r Run) []Issue {
	var issues []Issue

	if strings.TrimSpace(r.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	if strings.TrimSpace(r.Source.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.dir",
			Message:  "source.dir must point at the directory of match JSON files",
		})
	}

	// A run needs at least one output: a destination store or a CSV export
	// directory. Storage checks only apply when storage is configured.
	if strings.TrimSpace(r.Storage.Kind) == "" && strings.TrimSpace(r.Export.CSVDir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage",
			Message:  "configure storage.kind or export.csv_dir; otherwise the run produces no output",
		})
	}
	if strings.TrimSpace(r.Storage.Kind) != "" {
		issues = append(issues, validateStorage(r.Storage)...)
	}
	issues = append(issues, validateLoader(r.Loader)...)
	issues = append(issues, validateRuntime(r.Runtime)...)

	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  "storage.kind must not be empty",
		})
		return issues
	}

	// Known kinds. Unknown kinds are warnings (for forward compatibility);
	// the factory will reject them at open time if nothing registered.
	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	if strings.TrimSpace(s.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.dsn",
			Message:  "storage.dsn must not be empty",
		})
	}

	return issues
}

func validateLoader(l Loader) []Issue {
	var issues []Issue

	if l.ChunkSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.chunk_size",
			Message:  "chunk_size must not be negative",
		})
	}
	if l.MaxRetries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.max_retries",
			Message:  "max_retries must not be negative",
		})
	}
	if l.MaxInFlight < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "loader.max_in_flight",
			Message:  "max_in_flight must not be negative",
		})
	}
	if l.MaxInFlight > 16 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "loader.max_in_flight",
			Message:  "more than 16 in-flight chunks rarely helps and may exhaust the store's connection limits",
		})
	}
	if l.MaxBackoffMS > 0 && l.RetryBackoffMS > l.MaxBackoffMS {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "loader.retry_backoff_ms",
			Message:  "initial backoff exceeds max_backoff_ms; it will be capped immediately",
		})
	}

	return issues
}

func validateRuntime(r Runtime) []Issue {
	var issues []Issue

	if r.Workers < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.workers",
			Message:  "workers must not be negative",
		})
	}

	return issues
}
