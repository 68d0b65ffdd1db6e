package cricsheet

import "fmt"

// MalformedDocumentError reports a document that could not be normalized at
// all: either it is not valid JSON or it lacks a required top-level key.
// The document is skipped; the rest of the run continues.
type MalformedDocumentError struct {
	Source  string // natural key of the document (usually the filename stem)
	Missing string // missing top-level key, when that is the failure
	Err     error  // underlying decode error, when there is one
}

func (e *MalformedDocumentError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("malformed document %s: missing top-level %q", e.Source, e.Missing)
	}
	return fmt.Sprintf("malformed document %s: %v", e.Source, e.Err)
}

func (e *MalformedDocumentError) Unwrap() error { return e.Err }

// WarningKind classifies recoverable data-quality anomalies.
type WarningKind string

const (
	// WarnBallNumbering: a source numbering field disagreed with the
	// positional traversal order; positional order won.
	WarnBallNumbering WarningKind = "ball_numbering"
	// WarnSkippedEntry: a structurally malformed innings/over/delivery entry
	// was skipped without aborting the document.
	WarnSkippedEntry WarningKind = "skipped_entry"
	// WarnDuplicateKey: two documents shared the same natural key; the
	// first-seen record was kept.
	WarnDuplicateKey WarningKind = "duplicate_key"
)

// Warning is a recoverable shape anomaly found while normalizing. Warnings
// are logged and counted, never fatal.
type Warning struct {
	Kind    WarningKind
	Source  string // document natural key
	Path    string // location inside the document, e.g. "innings[1].overs[3]"
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s %s: %s", w.Kind, w.Source, w.Path, w.Message)
}
