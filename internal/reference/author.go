package reference

import "strings"

// Author represents a paper author with optional ORCID identifier.
type Author struct {
	First string `json:"first"`           // First/given name(s)
	Last  string `json:"last"`            // Last/family name
	ORCID string `json:"orcid,omitempty"` // Without URL prefix
}

// FullName returns "First Last", or just the last name when the first is unknown.
func (a Author) FullName() string {
	return strings.TrimSpace(a.First + " " + a.Last)
}

// AuthorsText joins author names for full-text indexing.
func AuthorsText(authors []Author) string {
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, a.FullName())
	}
	return strings.Join(names, ", ")
}
