// Package dataset accumulates normalized, imputed records from many match
// documents into four ordered tabular datasets and assigns surrogate keys.
//
// Keys are deterministic: the match key is an xxh3 digest of the canonical
// natural key, and every child key is composed from its parent's key plus
// the child's position. Re-processing the same document therefore always
// yields the same keys, which is what makes re-loads idempotent.
package dataset

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"cricetl/internal/cricsheet"
	"cricetl/internal/schema"
	"cricetl/pkg/records"
)

// Dataset is one entity's accumulated rows in canonical column order.
// Row order is traversal order: (match, innings, over, ball) within each
// document, documents in the order they were added.
type Dataset struct {
	Table schema.Table
	Rows  [][]any
}

// Len returns the number of accumulated rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Assembler merges per-document results into the four datasets. It is safe
// for concurrent use: document workers call Add from separate goroutines and
// the assembler serializes appends.
type Assembler struct {
	mu        sync.Mutex
	matches   *Dataset
	innings   *Dataset
	delivs    *Dataset
	wickets   *Dataset
	seen      map[string]string // match key -> first-seen natural key
	conflicts []cricsheet.Warning
}

// NewAssembler returns an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		matches: &Dataset{Table: schema.Matches},
		innings: &Dataset{Table: schema.Innings},
		delivs:  &Dataset{Table: schema.Deliveries},
		wickets: &Dataset{Table: schema.Wickets},
		seen:    make(map[string]string),
	}
}

// MatchKey derives the deterministic surrogate key for a match from its
// natural key (source filename stem or embedded match identifier).
func MatchKey(natural string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(canonicalKey(natural)))
}

// canonicalKey folds the natural key so that trivially different spellings
// of the same identifier (case, surrounding space, diacritics) collide.
var keyFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func canonicalKey(s string) string {
	folded, _, err := transform.String(keyFolder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Add appends one document's records, assigning surrogate keys throughout.
//
// A duplicate natural key is a data-quality conflict, not an error: the
// first-seen document wins, the duplicate is dropped entirely, and Add
// returns false along with a warning describing the conflict.
func (a *Assembler) Add(res *cricsheet.Result) (bool, *cricsheet.Warning) {
	natural, _ := res.Match["source_key"].(string)
	key := MatchKey(natural)

	a.mu.Lock()
	defer a.mu.Unlock()

	if first, dup := a.seen[key]; dup {
		w := cricsheet.Warning{
			Kind:    cricsheet.WarnDuplicateKey,
			Source:  natural,
			Message: fmt.Sprintf("natural key collides with %q; keeping first-seen record", first),
		}
		a.conflicts = append(a.conflicts, w)
		return false, &w
	}
	a.seen[key] = natural

	res.Match["match_id"] = key
	a.matches.Rows = append(a.matches.Rows, schema.Matches.Row(res.Match))

	for _, irec := range res.Innings {
		irec["match_id"] = key
		irec["innings_id"] = inningsKey(key, irec)
		a.innings.Rows = append(a.innings.Rows, schema.Innings.Row(irec))
	}
	for _, drec := range res.Deliveries {
		drec["match_id"] = key
		innID := inningsKey(key, drec)
		drec["innings_id"] = innID
		drec["delivery_id"] = deliveryKey(innID, drec)
		a.delivs.Rows = append(a.delivs.Rows, schema.Deliveries.Row(drec))
	}
	for _, wrec := range res.Wickets {
		wrec["match_id"] = key
		innID := inningsKey(key, wrec)
		wrec["innings_id"] = innID
		delID := deliveryKey(innID, wrec)
		wrec["delivery_id"] = delID
		wrec["wicket_id"] = fmt.Sprintf("%s-w%d", delID, num(wrec["wicket_number"]))
		a.wickets.Rows = append(a.wickets.Rows, schema.Wickets.Row(wrec))
	}
	return true, nil
}

func inningsKey(matchKey string, rec records.Record) string {
	return fmt.Sprintf("%s-i%d", matchKey, num(rec["innings_number"]))
}

func deliveryKey(inningsID string, rec records.Record) string {
	return fmt.Sprintf("%s-%d.%d", inningsID, num(rec["over_number"]), num(rec["ball_number"]))
}

func num(v any) int64 {
	n, _ := v.(int64)
	return n
}

// Datasets returns the four datasets in load order (parents first).
func (a *Assembler) Datasets() []*Dataset {
	a.mu.Lock()
	defer a.mu.Unlock()
	return []*Dataset{a.matches, a.innings, a.delivs, a.wickets}
}

// Conflicts returns the duplicate-natural-key warnings recorded so far.
func (a *Assembler) Conflicts() []cricsheet.Warning {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]cricsheet.Warning, len(a.conflicts))
	copy(out, a.conflicts)
	return out
}
