package cricsheet

import (
	"errors"
	"testing"
)

const modernDoc = `{
  "info": {
    "match_type": "T20",
    "season": "2023",
    "venue": "Eden Gardens",
    "city": "Kolkata",
    "gender": "male",
    "dates": ["2023-04-01", "2023-04-02"],
    "teams": ["India", "Australia"],
    "toss": {"winner": "India", "decision": "bat"},
    "outcome": {"winner": "India", "by": {"runs": 17}},
    "event": {"name": "Test Series", "match_number": 3},
    "player_of_match": ["V Kohli"],
    "balls_per_over": 6,
    "overs": 20
  },
  "innings": [
    {
      "team": "India",
      "overs": [
        {
          "over": 0,
          "deliveries": [
            {"batter": "RG Sharma", "bowler": "MA Starc", "non_striker": "V Kohli",
             "runs": {"batter": 4, "extras": 0, "total": 4}},
            {"batter": "RG Sharma", "bowler": "MA Starc", "non_striker": "V Kohli",
             "runs": {"batter": 0, "extras": 1, "total": 1}, "extras": {"wides": 1}},
            {"batter": "RG Sharma", "bowler": "MA Starc", "non_striker": "V Kohli",
             "runs": {"batter": 0, "extras": 0, "total": 0},
             "wickets": [{"player_out": "RG Sharma", "kind": "caught",
                          "fielders": [{"name": "SPD Smith"}]}]}
          ]
        }
      ]
    }
  ]
}`

func TestNormalizeModern(t *testing.T) {
	t.Parallel()

	res, err := Normalize([]byte(modernDoc), "match-001")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	m := res.Match
	if got := m["source_key"]; got != "match-001" {
		t.Errorf("source_key = %v, want match-001", got)
	}
	if got := m["match_type"]; got != "t20" {
		t.Errorf("match_type = %v, want t20", got)
	}
	if got := m["start_date"]; got != "2023-04-01" {
		t.Errorf("start_date = %v", got)
	}
	if got := m["end_date"]; got != "2023-04-02" {
		t.Errorf("end_date = %v", got)
	}
	if got := m["outcome_margin_type"]; got != "runs" {
		t.Errorf("outcome_margin_type = %v, want runs", got)
	}
	if got := m["outcome_margin_value"]; got != int64(17) {
		t.Errorf("outcome_margin_value = %v, want 17", got)
	}
	// result absent but a winner and margin are present: decided match.
	if got := m["outcome_result"]; got != "win" {
		t.Errorf("outcome_result = %v, want win", got)
	}
	if got := m["event_match_number"]; got != int64(3) {
		t.Errorf("event_match_number = %v, want 3", got)
	}

	if len(res.Innings) != 1 {
		t.Fatalf("innings = %d, want 1", len(res.Innings))
	}
	inn := res.Innings[0]
	if got := inn["batting_team"]; got != "India" {
		t.Errorf("batting_team = %v", got)
	}
	if got := inn["bowling_team"]; got != "Australia" {
		t.Errorf("bowling_team = %v", got)
	}
	if got := inn["runs"]; got != int64(5) {
		t.Errorf("innings runs = %v, want 5", got)
	}
	if got := inn["wickets"]; got != int64(1) {
		t.Errorf("innings wickets = %v, want 1", got)
	}
	// 2 legal balls out of 3 deliveries (one wide).
	if got := inn["overs_completed"]; got != "0.2" {
		t.Errorf("overs_completed = %v, want 0.2", got)
	}

	if len(res.Deliveries) != 3 {
		t.Fatalf("deliveries = %d, want 3", len(res.Deliveries))
	}
	wide := res.Deliveries[1]
	if got := wide["legal_ball"]; got != false {
		t.Errorf("wide legal_ball = %v, want false", got)
	}
	if got := wide["wides"]; got != int64(1) {
		t.Errorf("wides = %v, want 1", got)
	}
	last := res.Deliveries[2]
	if got := last["wicket_fell"]; got != true {
		t.Errorf("wicket_fell = %v, want true", got)
	}

	if len(res.Wickets) != 1 {
		t.Fatalf("wickets = %d, want 1", len(res.Wickets))
	}
	w := res.Wickets[0]
	if got := w["player_out"]; got != "RG Sharma" {
		t.Errorf("player_out = %v", got)
	}
	if got := w["kind"]; got != "caught" {
		t.Errorf("kind = %v", got)
	}
	if got := w["fielders"]; got != "SPD Smith" {
		t.Errorf("fielders = %v", got)
	}

	if len(res.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Warnings)
	}
}

const legacyDoc = `{
  "info": {
    "match_type": "ODI",
    "dates": ["2007-02-10"],
    "teams": ["England", "New Zealand"],
    "outcome": {"result": "no result"}
  },
  "innings": [
    {
      "1st innings": {
        "team": "England",
        "deliveries": [
          {"0.1": {"batsman": "ME Trescothick", "bowler": "SE Bond",
                   "runs": {"batsman": 1, "extras": 0, "total": 1}}},
          {"0.2": {"batsman": "AJ Strauss", "bowler": "SE Bond",
                   "runs": {"batsman": 0, "extras": 0, "total": 0},
                   "wicket": {"player_out": "AJ Strauss", "kind": "bowled"}}}
        ]
      }
    }
  ]
}`

func TestNormalizeLegacy(t *testing.T) {
	t.Parallel()

	res, err := Normalize([]byte(legacyDoc), "odi-legacy")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if got := res.Match["outcome_result"]; got != "no result" {
		t.Errorf("outcome_result = %v", got)
	}
	if _, has := res.Match["outcome_winner"]; has {
		t.Errorf("outcome_winner should be absent, got %v", res.Match["outcome_winner"])
	}

	if len(res.Deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(res.Deliveries))
	}
	first := res.Deliveries[0]
	if got := first["batter"]; got != "ME Trescothick" {
		t.Errorf("batter = %v (batsman alias not resolved)", got)
	}
	if got := first["over_number"]; got != int64(0) {
		t.Errorf("over_number = %v", got)
	}
	if got := first["ball_number"]; got != int64(1) {
		t.Errorf("ball_number = %v", got)
	}

	if len(res.Wickets) != 1 {
		t.Fatalf("wickets = %d, want 1 (singular wicket variant)", len(res.Wickets))
	}
	if got := res.Wickets[0]["kind"]; got != "bowled" {
		t.Errorf("wicket kind = %v", got)
	}
	if got := res.Innings[0]["bowling_team"]; got != "New Zealand" {
		t.Errorf("bowling_team = %v", got)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		data    string
		missing string
	}{
		{"not json", `{"info": `, ""},
		{"missing info", `{"innings": []}`, "info"},
		{"missing innings", `{"info": {"match_type": "T20"}}`, "innings"},
		{"innings not a list", `{"info": {}, "innings": {}}`, "innings"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize([]byte(tc.data), "bad-doc")
			var malformed *MalformedDocumentError
			if !errors.As(err, &malformed) {
				t.Fatalf("err = %v, want *MalformedDocumentError", err)
			}
			if malformed.Source != "bad-doc" {
				t.Errorf("Source = %q", malformed.Source)
			}
			if tc.missing != "" && malformed.Missing != tc.missing {
				t.Errorf("Missing = %q, want %q", malformed.Missing, tc.missing)
			}
		})
	}
}

func TestNormalizeNumberingWarnings(t *testing.T) {
	t.Parallel()

	doc := `{
	  "info": {"match_type": "T20", "teams": ["A", "B"]},
	  "innings": [
	    {"team": "A", "overs": [
	      {"over": 5, "deliveries": [
	        {"batter": "x", "runs": {"batter": 0, "extras": 0, "total": 0}}
	      ]}
	    ]}
	  ]
	}`

	res, err := Normalize([]byte(doc), "renumbered")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	// Position wins: the over is emitted as over 0 despite the source field.
	if got := res.Deliveries[0]["over_number"]; got != int64(0) {
		t.Errorf("over_number = %v, want 0", got)
	}
	found := false
	for _, w := range res.Warnings {
		if w.Kind == WarnBallNumbering {
			found = true
		}
	}
	if !found {
		t.Errorf("no %s warning recorded; warnings = %v", WarnBallNumbering, res.Warnings)
	}
}

func TestNormalizeSkipsMalformedEntries(t *testing.T) {
	t.Parallel()

	doc := `{
	  "info": {"match_type": "T20", "teams": ["A", "B"]},
	  "innings": [
	    "not an object",
	    {"team": "A", "overs": [
	      {"over": 0, "deliveries": [
	        "bogus",
	        {"batter": "x", "runs": {"batter": 2, "extras": 0, "total": 2}}
	      ]}
	    ]}
	  ]
	}`

	res, err := Normalize([]byte(doc), "partial")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Innings) != 1 {
		t.Errorf("innings = %d, want 1", len(res.Innings))
	}
	if len(res.Deliveries) != 1 {
		t.Errorf("deliveries = %d, want 1", len(res.Deliveries))
	}
	skips := 0
	for _, w := range res.Warnings {
		if w.Kind == WarnSkippedEntry {
			skips++
		}
	}
	if skips != 2 {
		t.Errorf("skipped-entry warnings = %d, want 2; warnings = %v", skips, res.Warnings)
	}
}

func TestNormalizeExtrasFallbacks(t *testing.T) {
	t.Parallel()

	// No runs.total and no runs.extras: both derive from the categories.
	doc := `{
	  "info": {"match_type": "Test", "teams": ["A", "B"]},
	  "innings": [
	    {"team": "B", "overs": [
	      {"over": 0, "deliveries": [
	        {"batter": "x", "runs": {"batter": 2}, "extras": {"legbyes": 1, "byes": 2}}
	      ]}
	    ]}
	  ]
	}`

	res, err := Normalize([]byte(doc), "fallbacks")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	d := res.Deliveries[0]
	if got := d["runs_extras"]; got != int64(3) {
		t.Errorf("runs_extras = %v, want 3", got)
	}
	if got := d["runs_total"]; got != int64(5) {
		t.Errorf("runs_total = %v, want 5", got)
	}
	// Byes and leg byes are legal deliveries.
	if got := d["legal_ball"]; got != true {
		t.Errorf("legal_ball = %v, want true", got)
	}
}

func TestNormalizeMultipleWickets(t *testing.T) {
	t.Parallel()

	doc := `{
	  "info": {"match_type": "T20", "teams": ["A", "B"]},
	  "innings": [
	    {"team": "A", "overs": [
	      {"over": 0, "deliveries": [
	        {"batter": "x", "runs": {"batter": 0, "extras": 0, "total": 0},
	         "wickets": [
	           {"player_out": "x", "kind": "run out"},
	           {"player_out": "y", "kind": "run out"}
	         ]}
	      ]}
	    ]}
	  ]
	}`

	res, err := Normalize([]byte(doc), "double-out")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Wickets) != 2 {
		t.Fatalf("wickets = %d, want 2", len(res.Wickets))
	}
	if got := res.Wickets[0]["wicket_number"]; got != int64(1) {
		t.Errorf("wicket_number[0] = %v, want 1", got)
	}
	if got := res.Wickets[1]["wicket_number"]; got != int64(2) {
		t.Errorf("wicket_number[1] = %v, want 2", got)
	}
	if got := res.Innings[0]["wickets"]; got != int64(2) {
		t.Errorf("innings wickets = %v, want 2", got)
	}
}
