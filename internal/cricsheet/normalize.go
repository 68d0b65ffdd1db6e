// Package cricsheet normalizes nested per-match cricket JSON documents into
// flat entity records (match, innings, delivery, wicket).
//
// The source corpus is not schema-stable: documents from different format
// versions disagree on how innings, deliveries, and wickets are shaped. The
// normalizer detects the variant from the structure itself (no configuration
// flags) and resolves every variant to one canonical record shape at the
// point of extraction, so nothing downstream ever sees the difference.
//
// Known variants handled here:
//
//   - innings carrying an "overs" list (modern) vs. a flat "deliveries"
//     collection keyed "over.ball" (legacy);
//   - wickets as a list ("wickets": [...]) vs. a singular object
//     ("wicket": {...});
//   - batter named "batter" (modern) vs. "batsman" (legacy).
//
// The normalizer is a pure transform: it performs no I/O and never mutates
// its input.
package cricsheet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cricetl/pkg/records"
)

// Result is the full set of flat records implied by one match document,
// in traversal order. Surrogate keys are not assigned here; the dataset
// assembler derives them from the positional fields.
type Result struct {
	Match      records.Record
	Innings    []records.Record
	Deliveries []records.Record
	Wickets    []records.Record
	Warnings   []Warning
}

// Normalize parses one match document and emits its flat records.
//
// sourceKey is the document's natural key (typically the filename stem); it
// is carried on the match record and used in warnings. A document that is
// not valid JSON or lacks the top-level "info" or "innings" keys fails with
// *MalformedDocumentError. Malformed entries below the top level are skipped
// with a warning instead.
func Normalize(data []byte, sourceKey string) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, &MalformedDocumentError{Source: sourceKey, Err: err}
	}

	info, ok := doc["info"].(map[string]any)
	if !ok {
		return nil, &MalformedDocumentError{Source: sourceKey, Missing: "info"}
	}
	inningsRaw, ok := doc["innings"].([]any)
	if _, present := doc["innings"]; !present {
		return nil, &MalformedDocumentError{Source: sourceKey, Missing: "innings"}
	}
	if !ok {
		return nil, &MalformedDocumentError{Source: sourceKey, Missing: "innings"}
	}

	res := &Result{}
	res.Match = matchRecord(info, sourceKey)

	team1 := asString(res.Match["team1"])
	team2 := asString(res.Match["team2"])
	ballsPerOver := asInt(info["balls_per_over"])
	if ballsPerOver <= 0 {
		ballsPerOver = 6
	}

	for i, entry := range inningsRaw {
		num := int64(i + 1)
		path := fmt.Sprintf("innings[%d]", num)

		inn, ok := unwrapInnings(entry)
		if !ok {
			res.warn(WarnSkippedEntry, sourceKey, path, "innings entry is not an object")
			continue
		}

		batting := asString(inn["team"])
		bowling := otherTeam(batting, team1, team2)

		irec := records.Record{
			"innings_number": num,
			"batting_team":   batting,
			"bowling_team":   bowling,
		}

		overs, warns := oversOf(inn, sourceKey, path)
		res.Warnings = append(res.Warnings, warns...)

		var (
			runs, wkts, legalBalls int64
		)
		for _, ov := range overs {
			overPath := fmt.Sprintf("%s.overs[%d]", path, ov.number)

			// Positional order wins over any source numbering field.
			if ov.declared >= 0 && ov.declared != ov.number {
				res.warn(WarnBallNumbering, sourceKey, overPath,
					fmt.Sprintf("source over number %d disagrees with position %d", ov.declared, ov.number))
			}

			for di, draw := range ov.deliveries {
				ballPath := fmt.Sprintf("%s.deliveries[%d]", overPath, di)
				del, ok := draw.(map[string]any)
				if !ok {
					res.warn(WarnSkippedEntry, sourceKey, ballPath, "delivery entry is not an object")
					continue
				}

				ball := int64(di + 1)
				if ov.declaredBalls != nil {
					if db := ov.declaredBalls[di]; db > 0 && db != ball {
						res.warn(WarnBallNumbering, sourceKey, ballPath,
							fmt.Sprintf("source ball number %d disagrees with position %d", db, ball))
					}
				}

				drec, wrecs := deliveryRecord(del, num, ov.number, ball)
				res.Deliveries = append(res.Deliveries, drec)
				res.Wickets = append(res.Wickets, wrecs...)

				runs += asInt(drec["runs_total"])
				wkts += int64(len(wrecs))
				if drec["legal_ball"] == true {
					legalBalls++
				}
			}
		}

		irec["runs"] = runs
		irec["wickets"] = wkts
		irec["overs_completed"] = fmt.Sprintf("%d.%d", legalBalls/ballsPerOver, legalBalls%ballsPerOver)

		res.Innings = append(res.Innings, irec)
	}

	return res, nil
}

func (r *Result) warn(kind WarningKind, source, path, msg string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Source: source, Path: path, Message: msg})
}

// matchRecord flattens the info block into a match record. Optional fields
// are left absent here; the imputer fills them from the schema defaults.
func matchRecord(info map[string]any, sourceKey string) records.Record {
	rec := records.Record{
		"source_key": sourceKey,
		"match_type": strings.ToLower(asString(info["match_type"])),
	}

	setIfPresent := func(field string, v any) {
		switch t := v.(type) {
		case nil:
			return
		case string:
			if t != "" {
				rec[field] = t
			}
		default:
			rec[field] = v
		}
	}

	setIfPresent("season", asString(info["season"]))
	setIfPresent("venue", asString(info["venue"]))
	setIfPresent("city", asString(info["city"]))
	setIfPresent("gender", asString(info["gender"]))

	if dates := asStrings(info["dates"]); len(dates) > 0 {
		rec["start_date"] = dates[0]
		rec["end_date"] = dates[len(dates)-1]
	}
	if teams := asStrings(info["teams"]); len(teams) > 0 {
		rec["team1"] = teams[0]
		if len(teams) > 1 {
			rec["team2"] = teams[1]
		}
	}
	if toss, ok := info["toss"].(map[string]any); ok {
		setIfPresent("toss_winner", asString(toss["winner"]))
		setIfPresent("toss_decision", asString(toss["decision"]))
	}

	if outcome, ok := info["outcome"].(map[string]any); ok {
		setIfPresent("outcome_result", asString(outcome["result"]))
		setIfPresent("outcome_winner", asString(outcome["winner"]))
		if by, ok := outcome["by"].(map[string]any); ok && len(by) > 0 {
			// Margin maps have exactly one entry ("runs": 17, "wickets": 5, ...).
			keys := make([]string, 0, len(by))
			for k := range by {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			rec["outcome_margin_type"] = keys[0]
			rec["outcome_margin_value"] = asInt(by[keys[0]])
		}
		// A named winner or a margin means the match was decided even when
		// the result field is absent.
		if _, has := rec["outcome_result"]; !has {
			if rec["outcome_winner"] != nil || rec["outcome_margin_type"] != nil {
				rec["outcome_result"] = "win"
			}
		}
	}

	if event, ok := info["event"].(map[string]any); ok {
		setIfPresent("event_name", asString(event["name"]))
		if n := asInt(event["match_number"]); n > 0 {
			rec["event_match_number"] = n
		}
	}

	if pom := asStrings(info["player_of_match"]); len(pom) > 0 {
		rec["player_of_match"] = strings.Join(pom, ", ")
	}
	if n := asInt(info["balls_per_over"]); n > 0 {
		rec["balls_per_over"] = n
	}
	if n := asInt(info["overs"]); n > 0 {
		rec["overs_scheduled"] = n
	}
	if n := asInt(info["match_type_number"]); n > 0 {
		rec["match_type_number"] = n
	}

	return rec
}

// over is the canonical per-over view after variant resolution.
type over struct {
	number     int64 // positional over number (0-based, authoritative)
	declared   int64 // source "over" field, -1 when absent
	deliveries []any
	// declaredBalls holds per-delivery source ball numbers for the legacy
	// "over.ball" keyed shape, aligned with deliveries. Nil for the modern shape.
	declaredBalls []int64
}

// unwrapInnings accepts both the modern innings object and the legacy
// single-key wrapper ({"1st innings": {...}}).
func unwrapInnings(entry any) (map[string]any, bool) {
	m, ok := entry.(map[string]any)
	if !ok {
		return nil, false
	}
	if _, has := m["team"]; has {
		return m, true
	}
	if _, has := m["overs"]; has {
		return m, true
	}
	if _, has := m["deliveries"]; has {
		return m, true
	}
	if len(m) == 1 {
		for _, v := range m {
			if inner, ok := v.(map[string]any); ok {
				return inner, true
			}
		}
	}
	return m, true
}

// oversOf resolves an innings' deliveries into ordered overs, regardless of
// which source shape carried them.
func oversOf(inn map[string]any, source, path string) ([]over, []Warning) {
	var warns []Warning

	if raw, ok := inn["overs"].([]any); ok {
		overs := make([]over, 0, len(raw))
		for i, o := range raw {
			om, ok := o.(map[string]any)
			if !ok {
				warns = append(warns, Warning{
					Kind: WarnSkippedEntry, Source: source,
					Path:    fmt.Sprintf("%s.overs[%d]", path, i),
					Message: "over entry is not an object",
				})
				continue
			}
			declared := int64(-1)
			if _, has := om["over"]; has {
				declared = asInt(om["over"])
			}
			dels, _ := om["deliveries"].([]any)
			overs = append(overs, over{number: int64(len(overs)), declared: declared, deliveries: dels})
		}
		return overs, warns
	}

	// Legacy flat shape: deliveries keyed "over.ball", either as a list of
	// single-key objects (order-preserving) or one keyed object.
	type keyed struct {
		over, ball int64
		del        any
	}
	var flat []keyed

	appendKeyed := func(k string, v any) {
		o, b, ok := parseBallKey(k)
		if !ok {
			warns = append(warns, Warning{
				Kind: WarnSkippedEntry, Source: source,
				Path:    fmt.Sprintf("%s.deliveries[%s]", path, k),
				Message: "unparseable delivery key",
			})
			return
		}
		flat = append(flat, keyed{over: o, ball: b, del: v})
	}

	switch raw := inn["deliveries"].(type) {
	case []any:
		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok || len(m) != 1 {
				warns = append(warns, Warning{
					Kind: WarnSkippedEntry, Source: source,
					Path:    fmt.Sprintf("%s.deliveries[%d]", path, i),
					Message: "delivery entry is not a single-key object",
				})
				continue
			}
			for k, v := range m {
				appendKeyed(k, v)
			}
		}
	case map[string]any:
		for k, v := range raw {
			appendKeyed(k, v)
		}
		// Map iteration order is random; restore over.ball order.
		sort.SliceStable(flat, func(i, j int) bool {
			if flat[i].over != flat[j].over {
				return flat[i].over < flat[j].over
			}
			return flat[i].ball < flat[j].ball
		})
	default:
		return nil, warns
	}

	// Group by the keyed over number. The over grouping necessarily comes
	// from the key here; the ball-within-over index stays positional.
	var overs []over
	byOver := map[int64]int{}
	for _, k := range flat {
		idx, ok := byOver[k.over]
		if !ok {
			idx = len(overs)
			byOver[k.over] = idx
			overs = append(overs, over{number: int64(idx), declared: k.over})
		}
		overs[idx].deliveries = append(overs[idx].deliveries, k.del)
		overs[idx].declaredBalls = append(overs[idx].declaredBalls, k.ball)
	}
	return overs, warns
}

// parseBallKey splits an "over.ball" key like "12.4" into its parts.
func parseBallKey(k string) (over, ball int64, ok bool) {
	dot := strings.IndexByte(k, '.')
	if dot <= 0 || dot == len(k)-1 {
		return 0, 0, false
	}
	o, err1 := strconv.ParseInt(k[:dot], 10, 64)
	b, err2 := strconv.ParseInt(k[dot+1:], 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return o, b, true
}

// deliveryRecord flattens one delivery and its dismissals. The wicket list
// variant and the singular object variant both resolve to the same list of
// wicket records here and never leak further.
func deliveryRecord(del map[string]any, inningsNum, overNum, ball int64) (records.Record, []records.Record) {
	rec := records.Record{
		"innings_number": inningsNum,
		"over_number":    overNum,
		"ball_number":    ball,
	}

	if s := asString(del["batter"]); s != "" {
		rec["batter"] = s
	} else if s := asString(del["batsman"]); s != "" {
		rec["batter"] = s
	}
	if s := asString(del["non_striker"]); s != "" {
		rec["non_striker"] = s
	}
	if s := asString(del["bowler"]); s != "" {
		rec["bowler"] = s
	}

	var batterRuns, extrasRuns, totalRuns int64
	var haveTotal bool
	if runs, ok := del["runs"].(map[string]any); ok {
		if v, has := runs["batter"]; has {
			batterRuns = asInt(v)
		} else if v, has := runs["batsman"]; has {
			batterRuns = asInt(v)
		}
		extrasRuns = asInt(runs["extras"])
		if v, has := runs["total"]; has {
			totalRuns = asInt(v)
			haveTotal = true
		}
	}
	rec["runs_batter"] = batterRuns

	var wides, noballs, byes, legbyes, penalty int64
	if extras, ok := del["extras"].(map[string]any); ok {
		wides = asInt(extras["wides"])
		noballs = asInt(extras["noballs"])
		byes = asInt(extras["byes"])
		legbyes = asInt(extras["legbyes"])
		penalty = asInt(extras["penalty"])
	}
	rec["wides"] = wides
	rec["noballs"] = noballs
	rec["byes"] = byes
	rec["legbyes"] = legbyes
	rec["penalty"] = penalty

	catExtras := wides + noballs + byes + legbyes + penalty
	if extrasRuns == 0 {
		extrasRuns = catExtras
	}
	rec["runs_extras"] = extrasRuns
	if !haveTotal {
		totalRuns = batterRuns + extrasRuns
	}
	rec["runs_total"] = totalRuns

	// Wides and no-balls do not advance the legal ball count.
	rec["legal_ball"] = wides == 0 && noballs == 0

	wrecs := wicketRecords(del, inningsNum, overNum, ball)
	rec["wicket_fell"] = len(wrecs) > 0

	return rec, wrecs
}

// wicketRecords extracts every dismissal on a delivery. Rare multi-out
// deliveries yield multiple rows; nothing is dropped.
func wicketRecords(del map[string]any, inningsNum, overNum, ball int64) []records.Record {
	var raw []any
	switch w := del["wickets"].(type) {
	case []any:
		raw = w
	case map[string]any:
		raw = []any{w}
	}
	if raw == nil {
		switch w := del["wicket"].(type) {
		case []any:
			raw = w
		case map[string]any:
			raw = []any{w}
		}
	}

	var out []records.Record
	for _, item := range raw {
		wm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		wrec := records.Record{
			"innings_number": inningsNum,
			"over_number":    overNum,
			"ball_number":    ball,
			"wicket_number":  int64(len(out) + 1),
		}
		if s := asString(wm["player_out"]); s != "" {
			wrec["player_out"] = s
		}
		if s := asString(wm["kind"]); s != "" {
			wrec["kind"] = s
		}
		if fielders := fielderNames(wm["fielders"]); len(fielders) > 0 {
			wrec["fielders"] = strings.Join(fielders, "; ")
		}
		out = append(out, wrec)
	}
	return out
}

// fielderNames accepts both the modern [{"name": "X"}] shape and a plain
// list of name strings.
func fielderNames(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, f := range list {
		switch t := f.(type) {
		case map[string]any:
			if n := asString(t["name"]); n != "" {
				names = append(names, n)
			}
		case string:
			if t != "" {
				names = append(names, t)
			}
		}
	}
	return names
}

func otherTeam(batting, team1, team2 string) string {
	switch batting {
	case team1:
		return team2
	case team2:
		return team1
	}
	return ""
}

// asString renders scalar JSON values as strings. Seasons in particular
// arrive as either "2007/08" or a bare number.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return ""
}

// asInt converts decoded JSON numbers to int64; anything else is 0.
func asInt(v any) int64 {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return i
		}
	}
	return 0
}

func asStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
