package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/matsen/paperrank/internal/semantic"
	"github.com/matsen/paperrank/internal/storage"
)

var (
	similarLimit        int
	similarSemanticOnly bool
)

func init() {
	rootCmd.AddCommand(similarCmd)

	similarCmd.Flags().IntVarP(&similarLimit, "limit", "l", 0, "Maximum number of results (default from config)")
	similarCmd.Flags().BoolVar(&similarSemanticOnly, "semantic-only", false, "Rank by embedding similarity alone, with raw scores")
}

var similarCmd = &cobra.Command{
	Use:   "similar <paper-id>",
	Short: "Find papers similar to a specific paper",
	Long: `Find papers similar to a paper that is already in the embeddings artifact,
merging embedding similarity with topic similarity when configured.
The source paper is excluded from results.

Exits with code 4 when the paper is not in the index.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func runSimilar(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	paperID := args[0]

	s := mustOpenSession(ctx, false)
	defer s.Close()

	source := &SourcePaper{ID: paperID}
	if ref, err := s.db.GetByID(ctx, paperID); err == nil {
		source.Title = ref.Title
	} else if !errors.Is(err, storage.ErrNotFound) {
		exitWithError(ExitError, "looking up paper: %v", err)
	}

	var (
		results []PaperResult
		resp    RankingResponse
		err     error
	)
	if similarSemanticOnly {
		var hits []semantic.SearchResult
		hits, err = s.engine.SemanticSimilar(ctx, paperID, similarLimit)
		if err != nil {
			exitSimilar(err, paperID)
		}
		results, err = buildSemanticResults(hits, math.Inf(-1), s.lookup(ctx))
		resp.Signals = []string{"semantic"}
	} else {
		ranking, rerr := s.engine.Similar(ctx, paperID, similarLimit)
		if rerr != nil {
			exitSimilar(rerr, paperID)
		}
		results, err = buildRankingResults(ranking.Entries, s.lookup(ctx))
		resp.Signals = ranking.Signals
		resp.Failures = ranking.Failures
	}
	if err != nil {
		exitWithError(ExitError, "loading paper details: %v", err)
	}

	if humanOutput {
		printFailuresHuman(resp.Failures)
		fmt.Printf("Papers similar to: %s\n", paperID)
		if source.Title != "" {
			fmt.Printf("\"%s\"\n", truncateString(source.Title, DetailTitleMaxLen))
		}
		fmt.Println()
		printResultsHuman(results)
	} else {
		resp.Source = source
		resp.Results = results
		resp.Total = len(results)
		outputJSON(resp)
	}
	return nil
}

// exitSimilar explains a paper missing from the index before exiting.
func exitSimilar(err error, paperID string) {
	if errors.Is(err, semantic.ErrPaperNotIndexed) {
		exitWithError(ExitNotIndexed, "Paper '%s' is not in the index\n\nIt may have no abstract or one shorter than %d characters.\nRebuild the index with 'paperrank index build' if you recently added it.",
			paperID, semantic.MinAbstractLength)
	}
	exitWithErr(err, "finding similar papers")
}
