// Package window splits documents into fixed-capacity token windows for a sequence encoder.
package window

import (
	"bufio"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Token is a single token id with the surface text it came from.
type Token struct {
	ID   int
	Text string
}

// Tokenizer converts raw text into token ids.
type Tokenizer interface {
	// Tokenize returns the content tokens of text, without special tokens.
	Tokenize(text string) ([]Token, error)

	// Specials returns the tokens wrapped around every window (e.g. [CLS] ... [SEP]).
	Specials() (prefix, suffix []Token)
}

// Well-known special token strings in BERT-style vocabularies.
const (
	UnknownToken = "[UNK]"
	ClassToken   = "[CLS]"
	SepToken     = "[SEP]"
)

// DefaultHashBuckets is the id space used when no vocabulary is loaded.
const DefaultHashBuckets = 30522

// VocabTokenizer splits text into words with prose and maps words to vocabulary ids.
// Without a vocabulary, ids are FNV hashes folded into a fixed number of buckets.
type VocabTokenizer struct {
	vocab     map[string]int
	unk       Token
	prefix    []Token
	suffix    []Token
	lowercase bool
	buckets   int
}

// TokenizerOption configures a VocabTokenizer.
type TokenizerOption func(*VocabTokenizer)

// WithLowercase lowercases words before vocabulary lookup.
func WithLowercase(lower bool) TokenizerOption {
	return func(t *VocabTokenizer) {
		t.lowercase = lower
	}
}

// WithSpecials wraps every window in the given vocabulary tokens.
// Either string may be empty to skip that side.
func WithSpecials(prefix, suffix string) TokenizerOption {
	return func(t *VocabTokenizer) {
		t.prefix = t.specialTokens(prefix)
		t.suffix = t.specialTokens(suffix)
	}
}

// WithHashBuckets sets the id space for hashed ids.
func WithHashBuckets(n int) TokenizerOption {
	return func(t *VocabTokenizer) {
		if n > 0 {
			t.buckets = n
		}
	}
}

// ErrNoUnknownToken is returned for a vocabulary without an [UNK] entry.
var ErrNoUnknownToken = errors.New("vocabulary has no " + UnknownToken + " entry")

// NewVocabTokenizer creates a tokenizer over vocab. A nil or empty vocab hashes
// words; a non-empty one must contain [UNK] for out-of-vocabulary words.
func NewVocabTokenizer(vocab map[string]int, opts ...TokenizerOption) (*VocabTokenizer, error) {
	t := &VocabTokenizer{
		vocab:     vocab,
		lowercase: true,
		buckets:   DefaultHashBuckets,
	}
	if len(vocab) > 0 {
		id, ok := vocab[UnknownToken]
		if !ok {
			return nil, ErrNoUnknownToken
		}
		t.unk = Token{ID: id, Text: UnknownToken}
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// LoadVocab reads a vocabulary file with one token per line; the id is the line number.
func LoadVocab(path string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	id := 0
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading vocab: %w", err)
	}
	return vocab, nil
}

// Tokenize implements Tokenizer.
func (t *VocabTokenizer) Tokenize(text string) ([]Token, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}

	words := doc.Tokens()
	tokens := make([]Token, 0, len(words))
	for _, w := range words {
		tokens = append(tokens, Token{ID: t.lookup(w.Text), Text: w.Text})
	}
	return tokens, nil
}

// Specials implements Tokenizer.
func (t *VocabTokenizer) Specials() (prefix, suffix []Token) {
	return t.prefix, t.suffix
}

func (t *VocabTokenizer) lookup(word string) int {
	if t.lowercase {
		word = strings.ToLower(word)
	}
	if len(t.vocab) == 0 {
		return hashID(word, t.buckets)
	}
	if id, ok := t.vocab[word]; ok {
		return id
	}
	return t.unk.ID
}

func (t *VocabTokenizer) specialTokens(s string) []Token {
	if s == "" {
		return nil
	}
	id, ok := t.vocab[s]
	if !ok {
		id = hashID(s, t.buckets)
	}
	return []Token{{ID: id, Text: s}}
}

func hashID(word string, buckets int) int {
	h := fnv.New32a()
	h.Write([]byte(word))
	return int(h.Sum32() % uint32(buckets))
}
