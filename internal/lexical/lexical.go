// Package lexical scores papers by how well their titles match a query.
package lexical

import (
	"context"
	"fmt"
	"sort"

	"github.com/matsen/paperrank/internal/rank"
	"github.com/matsen/paperrank/internal/reference"
	"github.com/matsen/paperrank/internal/storage"
)

// Default scoring constants.
const (
	DefaultPhraseWeight  = 1.0
	DefaultTermWeight    = 0.5
	DefaultMaxCandidates = 200
)

// TitleIndex finds candidate papers whose titles share terms with a query.
// *storage.DB implements it with SQLite FTS5.
type TitleIndex interface {
	MatchTitles(ctx context.Context, query string, limit int) ([]storage.TitleMatch, error)
}

// Config holds the lexical scoring constants.
type Config struct {
	PhraseWeight  float64 `yaml:"phrase_weight"`
	TermWeight    float64 `yaml:"term_weight"`
	MaxCandidates int     `yaml:"max_candidates"`
}

// DefaultConfig returns the default scoring constants.
func DefaultConfig() Config {
	return Config{
		PhraseWeight:  DefaultPhraseWeight,
		TermWeight:    DefaultTermWeight,
		MaxCandidates: DefaultMaxCandidates,
	}
}

// Contributor scores title matches.
type Contributor struct {
	index TitleIndex
	cfg   Config
}

// NewContributor creates a contributor over index.
func NewContributor(index TitleIndex, cfg Config) *Contributor {
	return &Contributor{index: index, cfg: cfg}
}

// Scores returns a score for every candidate whose title matches query, best first.
// A title containing the whole query as a phrase scores PhraseWeight; otherwise
// the fraction of distinct query terms present times TermWeight.
// Papers without any matching term are left out.
func (c *Contributor) Scores(ctx context.Context, query string) ([]rank.Score, error) {
	queryTerms := storage.Terms(query)
	if len(queryTerms) == 0 {
		return nil, nil
	}

	candidates, err := c.index.MatchTitles(ctx, query, c.cfg.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("matching titles: %w", err)
	}

	scores := make([]rank.Score, 0, len(candidates))
	for _, cand := range candidates {
		if s := c.score(queryTerms, storage.Terms(cand.Title)); s > 0 {
			scores = append(scores, rank.Score{PaperID: cand.ID, Value: s})
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Value > scores[j].Value })
	return scores, nil
}

func (c *Contributor) score(query, title []string) float64 {
	if containsPhrase(title, query) {
		return c.cfg.PhraseWeight
	}

	present := make(map[string]bool, len(title))
	for _, t := range title {
		present[t] = true
	}
	distinct := make(map[string]bool, len(query))
	matched := 0
	for _, q := range query {
		if distinct[q] {
			continue
		}
		distinct[q] = true
		if present[q] {
			matched++
		}
	}
	return c.cfg.TermWeight * float64(matched) / float64(len(distinct))
}

// containsPhrase reports whether phrase occurs as a contiguous run in terms.
func containsPhrase(terms, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(terms) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(terms); i++ {
		for j, p := range phrase {
			if terms[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// StaticTitles is an in-memory TitleIndex over a fixed list of papers.
type StaticTitles struct {
	ids    []string
	titles []string
	terms  []map[string]bool
}

// NewStaticTitles indexes the titles of refs, keeping their order.
func NewStaticTitles(refs []reference.Reference) *StaticTitles {
	s := &StaticTitles{}
	for _, ref := range refs {
		set := make(map[string]bool)
		for _, t := range storage.Terms(ref.Title) {
			set[t] = true
		}
		s.ids = append(s.ids, ref.ID)
		s.titles = append(s.titles, ref.Title)
		s.terms = append(s.terms, set)
	}
	return s
}

// MatchTitles implements TitleIndex. Matches come back in input order.
func (s *StaticTitles) MatchTitles(ctx context.Context, query string, limit int) ([]storage.TitleMatch, error) {
	terms := storage.Terms(query)
	var out []storage.TitleMatch
	for i := range s.ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, t := range terms {
			if s.terms[i][t] {
				out = append(out, storage.TitleMatch{ID: s.ids[i], Title: s.titles[i]})
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
