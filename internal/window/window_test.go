package window

import (
	"errors"
	"strings"
	"testing"
)

// wordTokenizer splits on whitespace; each word's id is its integer value when
// the text is numeric-looking, which keeps window contents easy to check.
type wordTokenizer struct {
	prefix, suffix []Token
}

func (w wordTokenizer) Tokenize(text string) ([]Token, error) {
	var out []Token
	for i, f := range strings.Fields(text) {
		out = append(out, Token{ID: i, Text: f})
	}
	return out, nil
}

func (w wordTokenizer) Specials() ([]Token, []Token) {
	return w.prefix, w.suffix
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "w"
	}
	return strings.Join(parts, " ")
}

func TestSplit_WindowCounts(t *testing.T) {
	tests := []struct {
		name        string
		tokens      int
		cfg         Config
		wantWindows int
	}{
		{name: "shorter than max", tokens: 5, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 1},
		{name: "exactly max", tokens: 10, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 1},
		{name: "one over max", tokens: 11, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 2},
		// starts at 0, 8, 16 -> third window ends at 26 >= 25
		{name: "three windows", tokens: 25, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 3},
		{name: "capped by max windows", tokens: 1000, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 4},
		{name: "empty document", tokens: 0, cfg: Config{MaxLength: 10, Overlap: 2, MaxWindows: 4}, wantWindows: 1},
		{name: "no overlap", tokens: 30, cfg: Config{MaxLength: 10, Overlap: 0, MaxWindows: 5}, wantWindows: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := Split([]string{words(tt.tokens)}, wordTokenizer{}, tt.cfg)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if len(batch.Windows) != tt.wantWindows {
				t.Errorf("got %d windows, want %d", len(batch.Windows), tt.wantWindows)
			}
			for i, w := range batch.Windows {
				if len(w.IDs) > tt.cfg.MaxLength {
					t.Errorf("window %d has %d ids, max %d", i, len(w.IDs), tt.cfg.MaxLength)
				}
			}
		})
	}
}

func TestSplit_Overlap(t *testing.T) {
	cfg := Config{MaxLength: 6, Overlap: 2, MaxWindows: 10}
	tok := wordTokenizer{
		prefix: []Token{{ID: -1, Text: "[CLS]"}},
		suffix: []Token{{ID: -2, Text: "[SEP]"}},
	}

	// capacity 4: content [0..4), [2..6), [4..8), [6..10)
	batch, err := Split([]string{words(10)}, tok, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := [][]int{
		{-1, 0, 1, 2, 3, -2},
		{-1, 2, 3, 4, 5, -2},
		{-1, 4, 5, 6, 7, -2},
		{-1, 6, 7, 8, 9, -2},
	}
	if len(batch.Windows) != len(want) {
		t.Fatalf("got %d windows, want %d", len(batch.Windows), len(want))
	}
	for i, w := range batch.Windows {
		if len(w.IDs) != len(want[i]) {
			t.Fatalf("window %d ids = %v, want %v", i, w.IDs, want[i])
		}
		for j := range w.IDs {
			if w.IDs[j] != want[i][j] {
				t.Errorf("window %d ids = %v, want %v", i, w.IDs, want[i])
				break
			}
		}
	}
	if batch.Windows[0].Text != "w w w w" {
		t.Errorf("window text = %q, want content words only", batch.Windows[0].Text)
	}
}

func TestSplit_Index(t *testing.T) {
	cfg := Config{MaxLength: 4, Overlap: 1, MaxWindows: 3}
	docs := []string{
		words(2),   // 1 window
		words(100), // capped at 3
		"",         // 1 window
		words(7),   // starts 0, 3 -> 2 windows
	}

	batch, err := Split(docs, wordTokenizer{}, cfg)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	wantIndex := []int{1, 4, 5, 7}
	if len(batch.Index) != len(docs) {
		t.Fatalf("index has %d entries, want %d", len(batch.Index), len(docs))
	}
	for i := range wantIndex {
		if batch.Index[i] != wantIndex[i] {
			t.Errorf("Index = %v, want %v", batch.Index, wantIndex)
			break
		}
	}

	for doc, group := range batch.Groups() {
		for _, w := range group {
			if w.Doc != doc {
				t.Errorf("window in group %d belongs to document %d", doc, w.Doc)
			}
		}
	}

	start, end := batch.Span(1)
	if start != 1 || end != 4 {
		t.Errorf("Span(1) = [%d, %d), want [1, 4)", start, end)
	}
}

func TestSplit_InvalidConfig(t *testing.T) {
	tok := wordTokenizer{
		prefix: []Token{{ID: -1}},
		suffix: []Token{{ID: -2}},
	}
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no room for content", cfg: Config{MaxLength: 2, Overlap: 0, MaxWindows: 1}},
		{name: "overlap equals capacity", cfg: Config{MaxLength: 6, Overlap: 4, MaxWindows: 1}},
		{name: "negative overlap", cfg: Config{MaxLength: 6, Overlap: -1, MaxWindows: 1}},
		{name: "zero max windows", cfg: Config{MaxLength: 6, Overlap: 1, MaxWindows: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split([]string{"a b c"}, tok, tt.cfg)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Split() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSplit_NoDocuments(t *testing.T) {
	batch, err := Split(nil, wordTokenizer{}, DefaultConfig())
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(batch.Windows) != 0 || len(batch.Index) != 0 {
		t.Errorf("expected empty batch, got %d windows, %d index entries", len(batch.Windows), len(batch.Index))
	}
}
