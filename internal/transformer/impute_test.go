package transformer

import (
	"testing"

	"cricetl/internal/schema"
	"cricetl/pkg/records"
)

func TestImputeFillsAbsentAndNil(t *testing.T) {
	t.Parallel()

	im := Impute{Table: schema.Matches}
	in := []records.Record{
		{"source_key": "a"},                          // everything optional absent
		{"source_key": "b", "outcome_result": nil},   // explicit null
		{"source_key": "c", "outcome_result": "win"}, // present value untouched
	}

	out := im.Apply(in)

	if out[0]["outcome_result"] != schema.OutcomeUnknown {
		t.Errorf("absent outcome_result = %v, want %q", out[0]["outcome_result"], schema.OutcomeUnknown)
	}
	if out[1]["outcome_result"] != schema.OutcomeUnknown {
		t.Errorf("nil outcome_result = %v, want %q", out[1]["outcome_result"], schema.OutcomeUnknown)
	}
	if out[2]["outcome_result"] != "win" {
		t.Errorf("present outcome_result overwritten: %v", out[2]["outcome_result"])
	}
	if out[0]["balls_per_over"] != int64(6) {
		t.Errorf("balls_per_over = %v, want 6", out[0]["balls_per_over"])
	}
}

func TestImputeWicketKind(t *testing.T) {
	t.Parallel()

	im := Impute{Table: schema.Wickets}
	out := im.Apply([]records.Record{{"player_out": "x"}})
	if out[0]["kind"] != schema.DismissalUnknown {
		t.Errorf("kind = %v, want %q", out[0]["kind"], schema.DismissalUnknown)
	}
}

// renameField is a throwaway transformer for chain ordering.
type renameField struct{ from, to string }

func (r renameField) Apply(in []records.Record) []records.Record {
	for _, rec := range in {
		if v, ok := rec[r.from]; ok {
			rec[r.to] = v
			delete(rec, r.from)
		}
	}
	return in
}

func TestChainAppliesInOrder(t *testing.T) {
	t.Parallel()

	c := Chain{
		renameField{from: "batsman", to: "batter"},
		Impute{Table: schema.Wickets},
	}
	out := c.Apply([]records.Record{{"batsman": "x"}})
	if out[0]["batter"] != "x" {
		t.Errorf("rename not applied: %v", out[0])
	}
	if out[0]["kind"] != schema.DismissalUnknown {
		t.Errorf("imputation not applied after rename: %v", out[0])
	}
}

func TestImputeAllCoversEveryTable(t *testing.T) {
	t.Parallel()

	ims := ImputeAll()
	for _, tab := range schema.Tables() {
		im, ok := ims[tab.Name]
		if !ok {
			t.Fatalf("no imputer for table %q", tab.Name)
		}
		if im.Table.Name != tab.Name {
			t.Errorf("imputer for %q carries table %q", tab.Name, im.Table.Name)
		}
	}
}
