// Package semantic ranks papers by vector similarity against the current embedding matrix.
package semantic

import "time"

// SearchResult represents a paper found by similarity ranking.
// Similarity values are comparable only within one metric and one query.
type SearchResult struct {
	PaperID    string  `json:"id"`
	Similarity float64 `json:"similarity"`
}

// BuildStats contains statistics from artifact building.
type BuildStats struct {
	PapersIndexed int           `json:"papers_indexed"`
	PapersSkipped int           `json:"papers_skipped"`
	SkippedReason string        `json:"skipped_reason"`
	Dimensions    int           `json:"dimensions"`
	ModelName     string        `json:"model_name"`
	Version       time.Time     `json:"version"`
	Checksum      string        `json:"checksum"`
	Duration      time.Duration `json:"duration"`
}
