// Package schema is the single source of truth for the relational shape of
// the four entity tables (matches, innings, deliveries, wickets).
//
// Everything that depends on column order or completeness (the imputer, the
// dataset assembler, CSV export, DDL generation, and the batch loader) reads
// it from here. Adding an optional field means adding one Column and, when
// the field may be absent in source documents, one Defaults entry.
package schema

import "cricetl/pkg/records"

// Kind is the abstract column type; each storage backend maps it to a
// dialect-specific SQL type.
type Kind string

const (
	KindText Kind = "text"
	KindInt  Kind = "integer"
	KindReal Kind = "real"
	KindBool Kind = "bool"
)

// Column describes one column of an entity table.
type Column struct {
	Name string
	Kind Kind
}

// Ref declares a foreign key from a local column to another table's key.
type Ref struct {
	Column   string
	Table    string
	TargetCo string
}

// Table describes one entity table: its columns in canonical order, the
// surrogate-key column used for upserts, foreign keys, and the declarative
// default table used by the imputer. A field with no Defaults entry is
// mandatory and must be set by the normalizer or assembler.
type Table struct {
	Name     string
	Columns  []Column
	Key      string
	Refs     []Ref
	Defaults records.Record
}

// ColumnNames returns the canonical column order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Row projects a record onto the canonical column order. Fields absent from
// the record become nil; after imputation that only happens for mandatory
// fields, which the normalizer always sets.
func (t Table) Row(rec records.Record) []any {
	row := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		if v, ok := rec[c.Name]; ok {
			row[i] = v
		}
	}
	return row
}

// Sentinel values used by the default tables. "unknown" is a real enumerated
// value, distinct from a genuine tie, draw, or abandonment, so downstream
// aggregation never silently drops rows on a null.
const (
	OutcomeUnknown   = "unknown"
	DismissalUnknown = "unknown"
)

// Matches holds one row per source document.
var Matches = Table{
	Name: "matches",
	Key:  "match_id",
	Columns: []Column{
		{"match_id", KindText},
		{"source_key", KindText},
		{"match_type", KindText},
		{"season", KindText},
		{"venue", KindText},
		{"city", KindText},
		{"start_date", KindText},
		{"end_date", KindText},
		{"team1", KindText},
		{"team2", KindText},
		{"gender", KindText},
		{"toss_winner", KindText},
		{"toss_decision", KindText},
		{"outcome_result", KindText},
		{"outcome_winner", KindText},
		{"outcome_margin_type", KindText},
		{"outcome_margin_value", KindInt},
		{"event_name", KindText},
		{"event_match_number", KindInt},
		{"player_of_match", KindText},
		{"balls_per_over", KindInt},
		{"overs_scheduled", KindInt},
		{"match_type_number", KindInt},
	},
	Defaults: records.Record{
		"match_type":           "",
		"season":               "",
		"venue":                "",
		"city":                 "",
		"start_date":           "",
		"end_date":             "",
		"team1":                "",
		"team2":                "",
		"gender":               "",
		"toss_winner":          "",
		"toss_decision":        "",
		"outcome_result":       OutcomeUnknown,
		"outcome_winner":       "",
		"outcome_margin_type":  "",
		"outcome_margin_value": int64(0),
		"event_name":           "",
		"event_match_number":   int64(0),
		"player_of_match":      "",
		"balls_per_over":       int64(6),
		"overs_scheduled":      int64(0),
		"match_type_number":    int64(0),
	},
}

// Innings holds one row per innings, ordered by innings_number within a match.
var Innings = Table{
	Name: "innings",
	Key:  "innings_id",
	Refs: []Ref{
		{"match_id", "matches", "match_id"},
	},
	Columns: []Column{
		{"innings_id", KindText},
		{"match_id", KindText},
		{"innings_number", KindInt},
		{"batting_team", KindText},
		{"bowling_team", KindText},
		{"runs", KindInt},
		{"wickets", KindInt},
		{"overs_completed", KindText},
	},
	Defaults: records.Record{
		"batting_team":    "",
		"bowling_team":    "",
		"runs":            int64(0),
		"wickets":         int64(0),
		"overs_completed": "0.0",
	},
}

// Deliveries holds one row per ball, ordered by (over_number, ball_number)
// within an innings.
var Deliveries = Table{
	Name: "deliveries",
	Key:  "delivery_id",
	Refs: []Ref{
		{"innings_id", "innings", "innings_id"},
		{"match_id", "matches", "match_id"},
	},
	Columns: []Column{
		{"delivery_id", KindText},
		{"innings_id", KindText},
		{"match_id", KindText},
		{"over_number", KindInt},
		{"ball_number", KindInt},
		{"batter", KindText},
		{"non_striker", KindText},
		{"bowler", KindText},
		{"runs_batter", KindInt},
		{"wides", KindInt},
		{"noballs", KindInt},
		{"byes", KindInt},
		{"legbyes", KindInt},
		{"penalty", KindInt},
		{"runs_extras", KindInt},
		{"runs_total", KindInt},
		{"legal_ball", KindBool},
		{"wicket_fell", KindBool},
	},
	Defaults: records.Record{
		"batter":      "",
		"non_striker": "",
		"bowler":      "",
		"runs_batter": int64(0),
		"wides":       int64(0),
		"noballs":     int64(0),
		"byes":        int64(0),
		"legbyes":     int64(0),
		"penalty":     int64(0),
		"runs_extras": int64(0),
		"runs_total":  int64(0),
		"legal_ball":  true,
		"wicket_fell": false,
	},
}

// Wickets holds zero or more dismissals per delivery; multi-out deliveries
// produce one row per dismissal, numbered by wicket_number.
var Wickets = Table{
	Name: "wickets",
	Key:  "wicket_id",
	Refs: []Ref{
		{"delivery_id", "deliveries", "delivery_id"},
		{"innings_id", "innings", "innings_id"},
		{"match_id", "matches", "match_id"},
	},
	Columns: []Column{
		{"wicket_id", KindText},
		{"delivery_id", KindText},
		{"innings_id", KindText},
		{"match_id", KindText},
		{"wicket_number", KindInt},
		{"player_out", KindText},
		{"kind", KindText},
		{"fielders", KindText},
	},
	Defaults: records.Record{
		"player_out": "",
		"kind":       DismissalUnknown,
		"fielders":   "",
	},
}

// Tables returns the entity tables in load order: parents before children so
// foreign keys are always satisfiable.
func Tables() []Table {
	return []Table{Matches, Innings, Deliveries, Wickets}
}
