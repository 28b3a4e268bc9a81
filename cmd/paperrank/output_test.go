package main

import (
	"errors"
	"math"
	"testing"

	"github.com/matsen/paperrank/internal/rank"
	"github.com/matsen/paperrank/internal/reference"
	"github.com/matsen/paperrank/internal/semantic"
)

func staticLookup(refs ...reference.Reference) paperLookup {
	return func(ids []string) (map[string]reference.Reference, error) {
		out := make(map[string]reference.Reference)
		for _, id := range ids {
			for _, r := range refs {
				if r.ID == id {
					out[id] = r
				}
			}
		}
		return out, nil
	}
}

func TestBuildRankingResults(t *testing.T) {
	lookup := staticLookup(reference.Reference{
		ID:        "A",
		Title:     "Phylogenetic trees",
		Authors:   []reference.Author{{First: "Ada", Last: "Lovelace"}},
		Published: reference.PublicationDate{Year: 2024},
	})
	entries := []rank.Entry{
		{PaperID: "A", Total: 1.5, Signals: map[string]float64{"lexical": 1, "semantic": 0.5}},
		{PaperID: "gone", Total: 0.2},
	}

	results, err := buildRankingResults(entries, lookup)
	if err != nil {
		t.Fatalf("buildRankingResults() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if r := results[0]; r.Title != "Phylogenetic trees" || r.Year != 2024 || r.Score != 1.5 || r.Signals["lexical"] != 1 {
		t.Errorf("results[0] = %+v", r)
	}
	if r := results[1]; r.ID != "gone" || r.Title != "" || r.Score != 0.2 {
		t.Errorf("results[1] = %+v, want bare id for a paper missing from the corpus", r)
	}
}

func TestBuildRankingResults_LookupError(t *testing.T) {
	boom := errors.New("db closed")
	lookup := func(ids []string) (map[string]reference.Reference, error) { return nil, boom }

	if _, err := buildRankingResults([]rank.Entry{{PaperID: "A"}}, lookup); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func TestBuildSemanticResults_Threshold(t *testing.T) {
	hits := []semantic.SearchResult{
		{PaperID: "A", Similarity: 0.9},
		{PaperID: "B", Similarity: 0.4},
		{PaperID: "C", Similarity: -2},
	}

	results, err := buildSemanticResults(hits, 0.5, staticLookup())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "A" || results[0].Score != 0.9 {
		t.Errorf("threshold 0.5 results = %+v", results)
	}

	results, _ = buildSemanticResults(hits, math.Inf(-1), staticLookup())
	if len(results) != 3 {
		t.Errorf("no threshold kept %d results, want 3", len(results))
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"a longer title here", 10, "a longe..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatAuthorsShort(t *testing.T) {
	authors := []reference.Author{
		{First: "Alice", Last: "Smith"},
		{Last: "Consortium"},
		{First: "Bob", Last: "Jones"},
		{First: "Carol", Last: "White"},
	}

	tests := []struct {
		authors []reference.Author
		max     int
		want    string
	}{
		{nil, 3, ""},
		{authors[:1], 3, "Smith A"},
		{authors[:2], 3, "Smith A, Consortium"},
		{authors, 3, "Smith A, Consortium, Jones B, et al."},
	}
	for _, tt := range tests {
		if got := formatAuthorsShort(tt.authors, tt.max); got != tt.want {
			t.Errorf("formatAuthorsShort() = %q, want %q", got, tt.want)
		}
	}
}

func TestFormatSignals(t *testing.T) {
	got := formatSignals(map[string]float64{"semantic": 0.25, "lexical": 1})
	if want := "lexical=1.000 semantic=0.250"; got != want {
		t.Errorf("formatSignals() = %q, want %q", got, want)
	}
}
