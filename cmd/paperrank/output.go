package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/matsen/paperrank/internal/rank"
	"github.com/matsen/paperrank/internal/reference"
	"github.com/matsen/paperrank/internal/semantic"
)

// Constants for output formatting.
const (
	SearchTitleMaxLen = 70 // Used in result listings
	DetailTitleMaxLen = 70 // Used for the reference paper header
	WindowTextMaxLen  = 80 // Used in window previews
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// exitWithErr exits with the code exitCodeFor assigns to err.
func exitWithErr(err error, action string) {
	exitWithError(exitCodeFor(err), "%s: %v", action, err)
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PaperResult is one paper in a ranking, hydrated from the corpus database.
type PaperResult struct {
	ID      string             `json:"id"`
	Title   string             `json:"title"`
	Authors []reference.Author `json:"authors"`
	Year    int                `json:"year"`
	Score   float64            `json:"score"`
	Signals map[string]float64 `json:"signals,omitempty"`
}

// RankingResponse is the response for hybrid search and similar-paper commands.
type RankingResponse struct {
	Query    string         `json:"query,omitempty"`
	Source   *SourcePaper   `json:"source,omitempty"`
	Results  []PaperResult  `json:"results"`
	Total    int            `json:"total"`
	Signals  []string       `json:"signals"`
	Failures []rank.Failure `json:"failures,omitempty"`
}

// SourcePaper identifies the reference paper of a similar-paper request.
type SourcePaper struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// paperLookup is the corpus view results are hydrated from.
type paperLookup func(ids []string) (map[string]reference.Reference, error)

// buildRankingResults hydrates ranking entries with paper metadata.
// Papers present in an artifact but gone from the corpus keep their id with empty metadata.
func buildRankingResults(entries []rank.Entry, lookup paperLookup) ([]PaperResult, error) {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PaperID
	}
	refs, err := lookup(ids)
	if err != nil {
		return nil, err
	}

	results := make([]PaperResult, len(entries))
	for i, e := range entries {
		ref := refs[e.PaperID]
		results[i] = PaperResult{
			ID:      e.PaperID,
			Title:   ref.Title,
			Authors: ref.Authors,
			Year:    ref.Published.Year,
			Score:   e.Total,
			Signals: e.Signals,
		}
	}
	return results, nil
}

// buildSemanticResults hydrates raw similarity results, dropping those below threshold.
func buildSemanticResults(hits []semantic.SearchResult, threshold float64, lookup paperLookup) ([]PaperResult, error) {
	var entries []rank.Entry
	for _, h := range hits {
		if h.Similarity < threshold {
			continue
		}
		entries = append(entries, rank.Entry{PaperID: h.PaperID, Total: h.Similarity})
	}
	return buildRankingResults(entries, lookup)
}

// printResultsHuman prints ranked results in human-readable format.
func printResultsHuman(results []PaperResult) {
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, r := range results {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Score, r.ID)
		if r.Title != "" {
			fmt.Printf("   %s\n", truncateString(r.Title, SearchTitleMaxLen))
		}
		if len(r.Authors) > 0 || r.Year != 0 {
			fmt.Printf("   %s (%d)\n", formatAuthorsShort(r.Authors, 3), r.Year)
		}
		if len(r.Signals) > 0 {
			fmt.Printf("   %s\n", formatSignals(r.Signals))
		}
		fmt.Println()
	}
}

// printFailuresHuman notes signals left out of a degraded ranking.
func printFailuresHuman(failures []rank.Failure) {
	for _, f := range failures {
		fmt.Fprintf(os.Stderr, "warning: %s signal skipped: %v\n", f.Signal, f.Err)
	}
}

func formatSignals(signals map[string]float64) string {
	names := make([]string, 0, len(signals))
	for name := range signals {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%.3f", name, signals[name])
	}
	return strings.Join(parts, " ")
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// formatAuthorShort formats an author as "Last F" (abbreviated first name).
func formatAuthorShort(a reference.Author) string {
	if a.First != "" {
		return a.Last + " " + string(a.First[0])
	}
	return a.Last
}

// formatAuthorsShort formats authors with abbreviation and "et al." for more than maxCount.
func formatAuthorsShort(authors []reference.Author, maxCount int) string {
	if len(authors) == 0 {
		return ""
	}

	var names []string
	for i, a := range authors {
		if i >= maxCount {
			names = append(names, "et al.")
			break
		}
		names = append(names, formatAuthorShort(a))
	}
	return strings.Join(names, ", ")
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}

// printProgress prints a progress bar to stderr.
func printProgress(current, total int) {
	if total == 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	barWidth := 30
	filled := int(float64(barWidth) * float64(current) / float64(total))
	bar := ""
	for i := 0; i < barWidth; i++ {
		if i < filled {
			bar += "="
		} else if i == filled {
			bar += ">"
		} else {
			bar += " "
		}
	}
	fmt.Fprintf(os.Stderr, "\r[%s] %d/%d (%.0f%%)", bar, current, total, pct)
}
