// Package importer converts reference manager exports into corpus records.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matsen/paperrank/internal/reference"
)

// ErrMissingField is returned for an entry without a field every corpus paper needs.
var ErrMissingField = errors.New("missing required field")

// SourcePaperpile is the ImportSource type for Paperpile records.
const SourcePaperpile = "paperpile"

// looseInt accepts a JSON string, number, or null. Paperpile writes years both ways.
type looseInt struct {
	raw string
}

func (v *looseInt) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		v.raw = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v.raw = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v.raw = n.String()
		return nil
	}
	return fmt.Errorf("cannot read %s as a number", data)
}

// value returns the parsed integer, or 0 when absent or outside [lo, hi].
func (v looseInt) value(lo, hi int) (int, bool) {
	if v.raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v.raw)
	if err != nil {
		// "2024.0" style floats
		f, ferr := strconv.ParseFloat(v.raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, false
		}
		n = int(f)
	}
	if n < lo || n > hi {
		return 0, false
	}
	return n, true
}

type paperpileAuthor struct {
	First string `json:"first"`
	Last  string `json:"last"`
	ORCID string `json:"orcid"`
}

type paperpileAttachment struct {
	ArticlePDF int    `json:"article_pdf"` // 1 = main PDF
	Filename   string `json:"filename"`
}

// paperpileEntry is the subset of a Paperpile JSON export entry the corpus keeps.
type paperpileEntry struct {
	ID        string `json:"_id"`
	Citekey   string `json:"citekey"`
	DOI       string `json:"doi"`
	Title     string `json:"title"`
	Abstract  string `json:"abstract"`
	Journal   string `json:"journal"`
	Published struct {
		Year  looseInt `json:"year"`
		Month looseInt `json:"month"`
		Day   looseInt `json:"day"`
	} `json:"published"`
	Author      []paperpileAuthor     `json:"author"`
	Attachments []paperpileAttachment `json:"attachments"`
}

// ReadPaperpile parses a Paperpile JSON export. Entries that cannot become corpus
// papers are skipped and reported in the returned error slice; a malformed
// document fails as a whole.
func ReadPaperpile(r io.Reader) ([]reference.Reference, []error) {
	var entries []paperpileEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, []error{fmt.Errorf("parsing Paperpile JSON: %w", err)}
	}

	refs := make([]reference.Reference, 0, len(entries))
	var errs []error
	for i, entry := range entries {
		ref, err := entry.toReference()
		if err != nil {
			label := entry.Citekey
			if label == "" {
				label = entry.ID
			}
			errs = append(errs, fmt.Errorf("entry %d (%s): %w", i+1, label, err))
			continue
		}
		refs = append(refs, ref)
	}
	return refs, errs
}

func (e paperpileEntry) toReference() (reference.Reference, error) {
	id := strings.TrimSpace(e.Citekey)
	if id == "" {
		id = strings.TrimSpace(e.ID)
	}
	if id == "" {
		return reference.Reference{}, fmt.Errorf("%w: citekey", ErrMissingField)
	}
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return reference.Reference{}, fmt.Errorf("%w: title", ErrMissingField)
	}

	year, ok := e.Published.Year.value(1, 9999)
	if !ok && e.Published.Year.raw != "" {
		return reference.Reference{}, fmt.Errorf("invalid year %q", e.Published.Year.raw)
	}
	date := reference.PublicationDate{Year: year}
	date.Month, _ = e.Published.Month.value(1, 12)
	date.Day, _ = e.Published.Day.value(1, 31)

	authors := make([]reference.Author, 0, len(e.Author))
	for _, a := range e.Author {
		if a.First == "" && a.Last == "" {
			continue
		}
		authors = append(authors, reference.Author{
			First: strings.TrimSpace(a.First),
			Last:  strings.TrimSpace(a.Last),
			ORCID: a.ORCID,
		})
	}

	var pdfPath string
	for _, att := range e.Attachments {
		if att.ArticlePDF == 1 {
			pdfPath = att.Filename
			break
		}
	}

	return reference.Reference{
		ID:        id,
		DOI:       strings.TrimSpace(e.DOI),
		Title:     title,
		Authors:   authors,
		Abstract:  strings.TrimSpace(e.Abstract),
		Venue:     e.Journal,
		Published: date,
		PDFPath:   pdfPath,
		Source:    reference.ImportSource{Type: SourcePaperpile, ID: e.ID},
	}, nil
}

// MergeStats counts what Merge did.
type MergeStats struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Merge folds incoming into existing by paper id. Existing papers keep their
// position; new ones are appended in incoming order. An incoming record replaces
// the existing one, except that empty fields never erase known values.
func Merge(existing, incoming []reference.Reference) ([]reference.Reference, MergeStats) {
	var stats MergeStats
	merged := make([]reference.Reference, len(existing), len(existing)+len(incoming))
	copy(merged, existing)

	pos := make(map[string]int, len(merged))
	for i, ref := range merged {
		pos[ref.ID] = i
	}

	for _, ref := range incoming {
		i, ok := pos[ref.ID]
		if !ok {
			pos[ref.ID] = len(merged)
			merged = append(merged, ref)
			stats.Added++
			continue
		}
		next := overlay(merged[i], ref)
		if equalReference(merged[i], next) {
			stats.Unchanged++
			continue
		}
		merged[i] = next
		stats.Updated++
	}
	return merged, stats
}

func overlay(base, update reference.Reference) reference.Reference {
	out := base
	if update.DOI != "" {
		out.DOI = update.DOI
	}
	if update.Title != "" {
		out.Title = update.Title
	}
	if len(update.Authors) > 0 {
		out.Authors = update.Authors
	}
	if update.Abstract != "" {
		out.Abstract = update.Abstract
	}
	if update.Venue != "" {
		out.Venue = update.Venue
	}
	if update.Published.Year != 0 {
		out.Published = update.Published
	}
	if update.PDFPath != "" {
		out.PDFPath = update.PDFPath
	}
	if update.Source.Type != "" {
		out.Source = update.Source
	}
	return out
}

func equalReference(a, b reference.Reference) bool {
	if a.ID != b.ID || a.DOI != b.DOI || a.Title != b.Title || a.Abstract != b.Abstract ||
		a.Venue != b.Venue || a.Published != b.Published || a.PDFPath != b.PDFPath || a.Source != b.Source {
		return false
	}
	if len(a.Authors) != len(b.Authors) {
		return false
	}
	for i := range a.Authors {
		if a.Authors[i] != b.Authors[i] {
			return false
		}
	}
	return true
}
