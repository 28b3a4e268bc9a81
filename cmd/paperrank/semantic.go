package main

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cobra"
)

var (
	semanticLimit     int
	semanticThreshold float64
)

func init() {
	rootCmd.AddCommand(semanticCmd)

	semanticCmd.Flags().IntVarP(&semanticLimit, "limit", "l", 0, "Maximum number of results (default from config)")
	semanticCmd.Flags().Float64VarP(&semanticThreshold, "threshold", "t", math.Inf(-1), "Minimum similarity (scale depends on the metric)")
}

// SemanticResponse is the response for the semantic search command.
type SemanticResponse struct {
	Query   string        `json:"query"`
	Results []PaperResult `json:"results"`
	Total   int           `json:"total"`
	Metric  string        `json:"metric"`
	Model   string        `json:"model"`
}

var semanticCmd = &cobra.Command{
	Use:   "semantic <query>",
	Short: "Search papers by embedding similarity alone",
	Long: `Search papers by embedding similarity to the query, without title matching
or topics. Scores are raw similarities under the configured metric.

Requires an embeddings artifact, published with 'paperrank index build'.`,
	Args: cobra.ExactArgs(1),
	RunE: runSemantic,
}

func runSemantic(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.TrimSpace(args[0])
	if query == "" {
		exitWithError(ExitError, "query must not be empty")
	}

	s := mustOpenSession(ctx, true)
	defer s.Close()

	hits, err := s.engine.SemanticSearch(ctx, query, semanticLimit)
	if err != nil {
		exitWithErr(err, "searching")
	}

	results, err := buildSemanticResults(hits, semanticThreshold, s.lookup(ctx))
	if err != nil {
		exitWithError(ExitError, "loading paper details: %v", err)
	}

	if humanOutput {
		fmt.Printf("Semantic results for %q (%s):\n\n", query, s.cfg.Ranking.Metric)
		printResultsHuman(results)
	} else {
		outputJSON(SemanticResponse{
			Query:   query,
			Results: results,
			Total:   len(results),
			Metric:  s.cfg.Ranking.Metric,
			Model:   s.encoder.ModelName(),
		})
	}
	return nil
}
