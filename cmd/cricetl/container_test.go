package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cricetl/internal/config"
)

const testDoc = `{
  "info": {
    "match_type": "T20",
    "teams": ["A", "B"],
    "outcome": {"winner": "A", "by": {"wickets": 5}}
  },
  "innings": [
    {"team": "A", "overs": [
      {"over": 0, "deliveries": [
        {"batter": "x", "bowler": "y", "runs": {"batter": 4, "extras": 0, "total": 4}},
        {"batter": "x", "bowler": "y", "runs": {"batter": 0, "extras": 0, "total": 0},
         "wickets": [{"player_out": "x", "kind": "bowled"}]}
      ]}
    ]}
  ]
}`

func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestDiscover(t *testing.T) {
	t.Parallel()

	dir := writeDocs(t, map[string]string{
		"b.json":   testDoc,
		"a.json":   testDoc,
		"c.JSON":   testDoc,
		"skip.txt": "not a document",
	})

	files, err := discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("files = %v, want 3 json documents", files)
	}
	// Sorted for reproducible runs.
	for i := 1; i < len(files); i++ {
		if files[i-1] >= files[i] {
			t.Errorf("unsorted: %v", files)
		}
	}
}

func TestExecuteCSVOnly(t *testing.T) {
	t.Parallel()

	src := writeDocs(t, map[string]string{
		"match-001.json": testDoc,
		"match-002.json": testDoc,
		"broken.json":    `{"info": {}}`,
	})
	out := filepath.Join(t.TempDir(), "csv")

	run := config.Run{
		Job:    "test",
		Source: config.Source{Dir: src},
		Export: config.Export{CSVDir: out},
	}

	if err := execute(context.Background(), run, false); err != nil {
		t.Fatalf("execute: %v", err)
	}

	for _, name := range []string{"matches.csv", "innings.csv", "deliveries.csv", "wickets.csv"} {
		path := filepath.Join(out, name)
		f, err := os.Open(path)
		if err != nil {
			t.Fatalf("missing export %s: %v", name, err)
		}
		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if len(rows) < 2 {
			t.Errorf("%s has %d rows, want header + data", name, len(rows))
		}
	}

	// Two documents, one malformed skip: matches.csv carries 2 data rows.
	f, err := os.Open(filepath.Join(out, "matches.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Errorf("matches rows = %d, want header + 2", len(rows))
	}
}

func TestExecuteEmptySource(t *testing.T) {
	t.Parallel()

	run := config.Run{
		Job:    "test",
		Source: config.Source{Dir: t.TempDir()},
		Export: config.Export{CSVDir: t.TempDir()},
	}
	err := execute(context.Background(), run, false)
	if err == nil || !strings.Contains(err.Error(), "no .json documents") {
		t.Fatalf("err = %v, want no-documents failure", err)
	}
}

func TestErrAggTruncates(t *testing.T) {
	t.Parallel()

	agg := newErrAgg(2)
	if agg.summary() != "" {
		t.Errorf("empty agg summary = %q", agg.summary())
	}
	agg.add("one")
	agg.add("two")
	agg.add("three")
	agg.add("four")

	s := agg.summary()
	if !strings.Contains(s, "one") || !strings.Contains(s, "two") {
		t.Errorf("summary dropped kept messages: %q", s)
	}
	if strings.Contains(s, "three") {
		t.Errorf("summary kept more than max: %q", s)
	}
	if !strings.Contains(s, "and 2 more") {
		t.Errorf("summary missing overflow count: %q", s)
	}
}
