// Package rank merges per-signal paper scores into one ranked list.
package rank

import (
	"fmt"
	"sort"
)

// Score is one paper's raw score from a single signal.
type Score struct {
	PaperID string  `json:"id"`
	Value   float64 `json:"score"`
}

// Entry is one paper in a final ranking.
type Entry struct {
	PaperID string             `json:"id"`
	Total   float64            `json:"score"`
	Signals map[string]float64 `json:"signals,omitempty"` // weighted, normalized contribution per signal
}

// ScoreTable accumulates weighted signal contributions for one request.
// It is not safe for concurrent use. After Ranked is called it rejects further additions.
type ScoreTable struct {
	order   []string
	entries map[string]*Entry
	frozen  bool
}

// NewScoreTable creates a table with candidates pre-seeded at zero, in the given order.
func NewScoreTable(candidates ...string) *ScoreTable {
	t := &ScoreTable{entries: make(map[string]*Entry)}
	for _, id := range candidates {
		t.entry(id)
	}
	return t
}

func (t *ScoreTable) entry(id string) *Entry {
	e, ok := t.entries[id]
	if !ok {
		e = &Entry{PaperID: id}
		t.entries[id] = e
		t.order = append(t.order, id)
	}
	return e
}

// Add adds value to paperID's total under signal.
func (t *ScoreTable) Add(signal, paperID string, value float64) error {
	if t.frozen {
		return fmt.Errorf("score table is frozen")
	}
	e := t.entry(paperID)
	e.Total += value
	if e.Signals == nil {
		e.Signals = make(map[string]float64)
	}
	e.Signals[signal] += value
	return nil
}

// Len returns the number of papers in the table.
func (t *ScoreTable) Len() int {
	return len(t.order)
}

// Total returns paperID's current total and whether it is in the table.
func (t *ScoreTable) Total(paperID string) (float64, bool) {
	e, ok := t.entries[paperID]
	if !ok {
		return 0, false
	}
	return e.Total, true
}

// Ranked freezes the table and returns entries by descending total.
// Ties keep the order in which papers first entered the table.
func (t *ScoreTable) Ranked() []Entry {
	t.frozen = true
	out := make([]Entry, len(t.order))
	for i, id := range t.order {
		out[i] = *t.entries[id]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}
