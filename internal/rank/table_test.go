package rank

import (
	"math"
	"testing"
)

func TestScoreTable_Ranked(t *testing.T) {
	table := NewScoreTable("seeded")
	table.Add("lexical", "a", 0.5)
	table.Add("semantic", "b", 0.5)
	table.Add("semantic", "a", 0.25)
	table.Add("semantic", "c", 0.5)

	ranked := table.Ranked()
	wantIDs := []string{"a", "b", "c", "seeded"}
	if len(ranked) != len(wantIDs) {
		t.Fatalf("Ranked() returned %d entries, want %d", len(ranked), len(wantIDs))
	}
	for i, id := range wantIDs {
		if ranked[i].PaperID != id {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].PaperID, id)
		}
	}
	if ranked[0].Total != 0.75 || ranked[0].Signals["lexical"] != 0.5 || ranked[0].Signals["semantic"] != 0.25 {
		t.Errorf("entry a = %+v", ranked[0])
	}
	if ranked[3].Total != 0 || ranked[3].Signals != nil {
		t.Errorf("seeded entry = %+v, want zero with no signals", ranked[3])
	}
}

func TestScoreTable_FrozenAfterRanked(t *testing.T) {
	table := NewScoreTable()
	table.Add("s", "a", 1)
	table.Ranked()
	if err := table.Add("s", "a", 1); err == nil {
		t.Error("Add() after Ranked() succeeded")
	}
	if total, _ := table.Total("a"); total != 1 {
		t.Errorf("Total(a) = %v, want 1", total)
	}
}

func TestScoreTable_Total(t *testing.T) {
	table := NewScoreTable()
	if _, ok := table.Total("missing"); ok {
		t.Error("Total(missing) reported present")
	}
	table.Add("s", "x", -2.5)
	if got, ok := table.Total("x"); !ok || math.Abs(got+2.5) > 1e-12 {
		t.Errorf("Total(x) = %v, %v", got, ok)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}
