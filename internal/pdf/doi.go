package pdf

import (
	"regexp"
	"strings"
)

// DOI pattern: 10.XXXX/... where XXXX is 4-9 digits
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// doiPages is how many leading pages are searched for a DOI; later pages hold
// the reference list.
const doiPages = 3

// FindDOI returns the first plausible DOI in text, or "".
func FindDOI(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if isValidDOI(match) {
			return match
		}
	}
	return ""
}

// isValidDOI performs basic validation on a DOI.
func isValidDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slashIdx := strings.Index(doi, "/")
	return slashIdx != -1 && slashIdx < len(doi)-1
}

// titleLine returns the first substantial line that is not page furniture.
func titleLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !isHeaderLine(line) && FindDOI(line) == "" {
			return line
		}
	}
	return ""
}

// isHeaderLine checks if a line is likely a header/footer.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"),
		strings.Contains(lower, "copyright"),
		strings.Contains(lower, "preprint"),
		strings.Contains(lower, "volume") && strings.Contains(lower, "issue"),
		strings.Contains(lower, "article") && strings.Contains(lower, "published"):
		return true
	}
	return false
}
