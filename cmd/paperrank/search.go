package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Maximum number of results (default from config)")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank papers against a query using every configured signal",
	Long: `Rank papers against a free-text query by merging title matches, embedding
similarity and (when configured) topic similarity.

A signal that fails, for example because no embeddings artifact has been
published yet, is left out and reported under "failures".`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(args[0])
	if query == "" {
		exitWithError(ExitError, "query must not be empty")
	}

	s := mustOpenSession(ctx, true)
	defer s.Close()

	ranking, err := s.engine.Search(ctx, query, searchLimit)
	if err != nil {
		exitWithErr(err, "searching")
	}

	results, err := buildRankingResults(ranking.Entries, s.lookup(ctx))
	if err != nil {
		exitWithError(ExitError, "loading paper details: %v", err)
	}

	if humanOutput {
		printFailuresHuman(ranking.Failures)
		fmt.Printf("Results for %q:\n\n", query)
		printResultsHuman(results)
	} else {
		outputJSON(RankingResponse{
			Query:    query,
			Results:  results,
			Total:    len(results),
			Signals:  ranking.Signals,
			Failures: ranking.Failures,
		})
	}
	return nil
}
