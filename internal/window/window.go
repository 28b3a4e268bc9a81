package window

import (
	"errors"
	"fmt"
	"strings"
)

// Default windowing parameters, sized for BERT-family encoders.
const (
	DefaultMaxLength  = 512
	DefaultOverlap    = 64
	DefaultMaxWindows = 8
)

// ErrInvalidConfig is returned when window parameters cannot produce valid windows.
var ErrInvalidConfig = errors.New("invalid window config")

// Config bounds the windows produced per document.
type Config struct {
	MaxLength  int `yaml:"max_length" json:"max_length"`   // Tokens per window, special tokens included
	Overlap    int `yaml:"overlap" json:"overlap"`         // Tokens shared between consecutive windows
	MaxWindows int `yaml:"max_windows" json:"max_windows"` // Windows per document; extra content is dropped
}

// DefaultConfig returns the default windowing parameters.
func DefaultConfig() Config {
	return Config{
		MaxLength:  DefaultMaxLength,
		Overlap:    DefaultOverlap,
		MaxWindows: DefaultMaxWindows,
	}
}

// Validate checks the config against the number of special tokens per window.
func (c Config) Validate(specials int) error {
	capacity := c.MaxLength - specials
	switch {
	case capacity < 1:
		return fmt.Errorf("%w: max_length %d leaves no room for content after %d special tokens",
			ErrInvalidConfig, c.MaxLength, specials)
	case c.Overlap < 0 || c.Overlap >= capacity:
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.Overlap, capacity)
	case c.MaxWindows < 1:
		return fmt.Errorf("%w: max_windows must be at least 1, got %d", ErrInvalidConfig, c.MaxWindows)
	}
	return nil
}

// Window is one encoder input: at most MaxLength token ids from document Doc.
type Window struct {
	Doc  int
	IDs  []int
	Text string // content tokens joined by spaces, for text-only encoders
}

// Batch is the windowed form of a list of documents.
type Batch struct {
	// Windows holds every window in document order, left to right within a document.
	Windows []Window

	// Index[i] is the cumulative number of windows after document i.
	Index []int
}

// Split tokenizes docs and cuts each one into overlapping windows.
func Split(docs []string, tok Tokenizer, cfg Config) (*Batch, error) {
	prefix, suffix := tok.Specials()
	if err := cfg.Validate(len(prefix) + len(suffix)); err != nil {
		return nil, err
	}
	capacity := cfg.MaxLength - len(prefix) - len(suffix)

	batch := &Batch{
		Windows: make([]Window, 0, len(docs)),
		Index:   make([]int, 0, len(docs)),
	}

	for i, doc := range docs {
		tokens, err := tok.Tokenize(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		start := 0
		for n := 0; n < cfg.MaxWindows; n++ {
			end := min(start+capacity, len(tokens))
			batch.Windows = append(batch.Windows, newWindow(i, prefix, tokens[start:end], suffix))
			if end >= len(tokens) {
				break
			}
			start = end - cfg.Overlap
		}
		batch.Index = append(batch.Index, len(batch.Windows))
	}

	return batch, nil
}

func newWindow(doc int, prefix, content, suffix []Token) Window {
	ids := make([]int, 0, len(prefix)+len(content)+len(suffix))
	words := make([]string, 0, len(content))
	for _, t := range prefix {
		ids = append(ids, t.ID)
	}
	for _, t := range content {
		ids = append(ids, t.ID)
		words = append(words, t.Text)
	}
	for _, t := range suffix {
		ids = append(ids, t.ID)
	}
	return Window{Doc: doc, IDs: ids, Text: strings.Join(words, " ")}
}

// Span returns the half-open range of Windows belonging to document doc.
func (b *Batch) Span(doc int) (start, end int) {
	if doc > 0 {
		start = b.Index[doc-1]
	}
	return start, b.Index[doc]
}

// Groups slices Windows back into per-document groups.
func (b *Batch) Groups() [][]Window {
	groups := make([][]Window, len(b.Index))
	for i := range b.Index {
		start, end := b.Span(i)
		groups[i] = b.Windows[start:end]
	}
	return groups
}

// Texts returns the text of every window, in batch order.
func (b *Batch) Texts() []string {
	texts := make([]string, len(b.Windows))
	for i, w := range b.Windows {
		texts[i] = w.Text
	}
	return texts
}
