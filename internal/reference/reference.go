// Package reference defines the paper records the ranking engine retrieves.
package reference

// Reference is one paper in the corpus.
type Reference struct {
	ID  string `json:"id"`  // Stable identifier (citekey); the row key in every artifact
	DOI string `json:"doi"` // Digital Object Identifier

	Title    string   `json:"title"`
	Authors  []Author `json:"authors"`
	Abstract string   `json:"abstract"`
	Venue    string   `json:"venue"` // Journal, conference, or preprint server

	Published PublicationDate `json:"published"`

	// Relative to the configured PDF root
	PDFPath string `json:"pdf_path,omitempty"`

	Source ImportSource `json:"source"`
}

// PublicationDate represents a publication date with optional month and day.
type PublicationDate struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"` // 1-12, 0 if unknown
	Day   int `json:"day,omitempty"`   // 1-31, 0 if unknown
}

// ImportSource tracks where a reference came from.
type ImportSource struct {
	Type string `json:"type"` // paperpile, zotero, manual, pdf
	ID   string `json:"id"`   // Original ID from source system
}

// HasAbstract reports whether the abstract is at least minLength characters.
func (r Reference) HasAbstract(minLength int) bool {
	return len(r.Abstract) >= minLength && r.Abstract != ""
}
