// Package pdf extracts text and identifiers from paper PDFs.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is the text of a PDF together with identifiers read from its first pages.
type Document struct {
	Text  string
	DOI   string // first DOI on the leading pages, or ""
	Title string // best guess from the first page, or ""
	Pages int    // pages read
}

// Read extracts the first maxPages pages of a PDF. maxPages <= 0 reads every page.
// Pages that fail to decode are skipped.
func Read(filePath string, maxPages int) (*Document, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	return newDocument(pageTexts(r, maxPages)), nil
}

func newDocument(pages []string) *Document {
	doc := &Document{Text: strings.Join(pages, "\n"), Pages: len(pages)}
	if len(pages) > 0 {
		doc.Title = titleLine(pages[0])
	}
	doc.DOI = FindDOI(strings.Join(pages[:min(doiPages, len(pages))], "\n"))
	return doc
}

func pageTexts(r *pdf.Reader, maxPages int) []string {
	if maxPages <= 0 || maxPages > r.NumPage() {
		maxPages = r.NumPage()
	}

	pages := make([]string, 0, maxPages)
	for i := 1; i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages
}

var (
	hyphenBreak = regexp.MustCompile(`(\pL)-\n(\pL)`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

// CleanText prepares extracted text for tokenization: words split across lines
// by a hyphen are rejoined and whitespace runs collapse to one space.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = hyphenBreak.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
}
