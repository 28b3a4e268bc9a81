package main

import (
	"errors"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/embedding"
	"github.com/matsen/paperrank/internal/semantic"
	"github.com/matsen/paperrank/internal/similarity"
	"github.com/matsen/paperrank/internal/storage"
	"github.com/matsen/paperrank/internal/window"
)

const (
	ExitSuccess      = 0 // Success
	ExitError        = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError  = 2 // Configuration error, or no artifact to serve
	ExitDataError    = 3 // Data error (malformed input, validation failure)
	ExitNotIndexed   = 4 // Reference paper is not in the index
	ExitEncoderError = 5 // Embedding provider unreachable or failing
	ExitIndexStale   = 6 // Index is missing papers that have abstracts
)

// exitCodeFor maps an error to an exit code. Joined errors are checked in order of
// specificity, so a paper missing from every signal reports ExitNotIndexed.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, semantic.ErrPaperNotIndexed), errors.Is(err, storage.ErrNotFound):
		return ExitNotIndexed
	case errors.Is(err, artifact.ErrArtifactUnavailable), errors.Is(err, semantic.ErrNoEncoder):
		return ExitConfigError
	case errors.Is(err, embedding.ErrEncoderUnavailable):
		return ExitEncoderError
	case errors.Is(err, similarity.ErrInvalidMetricInput),
		errors.Is(err, semantic.ErrNothingToIndex),
		errors.Is(err, window.ErrInvalidConfig):
		return ExitDataError
	default:
		return ExitError
	}
}
