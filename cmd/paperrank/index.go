package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/paperrank/internal/config"
	"github.com/matsen/paperrank/internal/embedding"
	"github.com/matsen/paperrank/internal/engine"
	"github.com/matsen/paperrank/internal/semantic"
)

var noProgress bool

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)

	indexBuildCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the embeddings artifact",
	Long:  `Commands for building and checking the embeddings artifact.`,
}

// IndexBuildResult is the response for index build command.
type IndexBuildResult struct {
	Status          string    `json:"status"`
	PapersIndexed   int       `json:"papers_indexed"`
	PapersSkipped   int       `json:"papers_skipped"`
	SkippedReason   string    `json:"skipped_reason"`
	Dimensions      int       `json:"dimensions"`
	DurationSeconds float64   `json:"duration_seconds"`
	Model           string    `json:"model"`
	Version         time.Time `json:"version"`
	Checksum        string    `json:"checksum"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Embed paper abstracts and publish a new embeddings artifact",
	Long: `Embed every paper abstract and publish the result as a new version of the
embeddings artifact. Long abstracts are split into windows that fit the encoder
and the window embeddings are averaged.

Running engines pick up the new version on their next request.
With the ollama provider, Ollama must be running with the model available.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	cfg := mustLoadConfig(repoRoot)
	logger := mustLogger(cfg)
	defer logger.Sync()

	mustValidateOllama(ctx, cfg)

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	refs, err := db.ListAll(ctx, 0)
	if err != nil {
		exitWithError(ExitError, "listing references: %v", err)
	}

	store, err := engine.OpenStore(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "opening artifact store: %v", err)
	}
	encoder, err := engine.NewEncoder(ctx, cfg, logger)
	if err != nil {
		exitWithError(ExitConfigError, "creating encoder: %v", err)
	}
	defer encoder.Close()

	builder := semantic.NewBuilder(encoder, store)
	showProgress := humanOutput && !noProgress
	if showProgress {
		builder.SetProgressReporter(semantic.ProgressFunc(printProgress))
		fmt.Fprintf(os.Stderr, "Building embeddings artifact...\n")
	}

	stats, err := builder.Build(ctx, refs)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\r%50s\r", "")
	}
	if err != nil {
		exitWithErr(err, "building index")
	}

	if humanOutput {
		fmt.Printf("\nBuild complete:\n")
		fmt.Printf("  Papers indexed: %d\n", stats.PapersIndexed)
		fmt.Printf("  Papers skipped: %d (%s)\n", stats.PapersSkipped, stats.SkippedReason)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		fmt.Printf("  Model: %s (%d dimensions)\n", stats.ModelName, stats.Dimensions)
		fmt.Printf("  Version: %s\n", stats.Version.Format(time.RFC3339))
	} else {
		outputJSON(IndexBuildResult{
			Status:          "published",
			PapersIndexed:   stats.PapersIndexed,
			PapersSkipped:   stats.PapersSkipped,
			SkippedReason:   stats.SkippedReason,
			Dimensions:      stats.Dimensions,
			DurationSeconds: stats.Duration.Seconds(),
			Model:           stats.ModelName,
			Version:         stats.Version,
			Checksum:        stats.Checksum,
		})
	}
	return nil
}

// mustValidateOllama checks that Ollama is running with the configured model.
// Other providers are checked on first use.
func mustValidateOllama(ctx context.Context, cfg config.Config) {
	if cfg.Embedding.Provider != embedding.ProviderOllama {
		return
	}
	p, err := embedding.New(cfg.EmbeddingOptions())
	if err != nil {
		exitWithError(ExitConfigError, "creating encoder: %v", err)
	}
	provider, ok := p.(*embedding.OllamaProvider)
	if !ok {
		return
	}

	if err := provider.IsAvailable(ctx); err != nil {
		exitWithError(ExitEncoderError, "Ollama is not running\n\nStart Ollama with 'ollama serve' or install from https://ollama.ai")
	}
	hasModel, err := provider.HasModel(ctx)
	if err != nil {
		exitWithError(ExitError, "checking model availability: %v", err)
	}
	if !hasModel {
		exitWithError(ExitEncoderError, "embedding model %q not found\n\nRun 'ollama pull %s' to download it.", provider.ModelName(), provider.ModelName())
	}
}

// IndexStatusResult is the response for index status command.
type IndexStatusResult struct {
	Status             string        `json:"status"`
	PapersTotal        int           `json:"papers_total"`
	PapersWithAbstract int           `json:"papers_with_abstract"`
	PapersMissing      int           `json:"papers_missing"`
	MissingIDs         []string      `json:"missing_ids,omitempty"`
	Engine             engine.Status `json:"engine"`
	Recommendation     string        `json:"recommendation,omitempty"`
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report which artifact versions are served and what is missing",
	Long: `Check the embeddings and topics artifacts against the version marker and
report what is being served, and which papers with abstracts are missing from
the embeddings artifact.

Exits with code 6 when papers are missing.`,
	Args: cobra.NoArgs,
	RunE: runIndexStatus,
}

func runIndexStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s := mustOpenSession(ctx, false)
	defer s.Close()

	st := s.engine.Status(ctx)

	total, err := s.db.Count(ctx)
	if err != nil {
		exitWithError(ExitError, "counting references: %v", err)
	}
	refs, err := s.db.ListAll(ctx, 0)
	if err != nil {
		exitWithError(ExitError, "listing references: %v", err)
	}
	var withAbstract []string
	for _, ref := range refs {
		if ref.HasAbstract(semantic.MinAbstractLength) {
			withAbstract = append(withAbstract, ref.ID)
		}
	}

	result := IndexStatusResult{
		Status:             "healthy",
		PapersTotal:        total,
		PapersWithAbstract: len(withAbstract),
		Engine:             st,
	}
	exitCode := ExitSuccess

	if !st.Ready {
		result.Status = "unavailable"
		result.Recommendation = "Run 'paperrank index build' to publish the embeddings artifact"
		exitCode = ExitConfigError
	} else {
		missing, err := s.engine.MissingPapers(ctx, withAbstract)
		if err != nil {
			exitWithErr(err, "checking index")
		}
		result.PapersMissing = len(missing)
		if len(missing) > 0 {
			result.Status = "stale"
			result.Recommendation = "Run 'paperrank index build' to update the index"
			exitCode = ExitIndexStale
			if len(missing) <= 10 {
				result.MissingIDs = missing
			}
		}
	}

	if humanOutput {
		fmt.Printf("Index status: %s\n\n", result.Status)
		fmt.Printf("Papers:\n")
		fmt.Printf("  Total in database: %d\n", total)
		fmt.Printf("  With abstracts: %d\n", len(withAbstract))
		fmt.Printf("  Missing from index: %d\n", result.PapersMissing)
		fmt.Printf("\nArtifacts:\n")
		for _, a := range st.Artifacts {
			if !a.Ready {
				fmt.Printf("  %s: unavailable (%s)\n", a.Key, a.Error)
				continue
			}
			fmt.Printf("  %s: %d papers x %d dims, version %s\n",
				a.Key, a.Papers, a.Dimensions, a.Version.Format(time.RFC3339))
		}
		fmt.Printf("\nRanking: signals %v, metric %s, topic metric %s, normalization %s\n",
			st.Signals, st.Metric, st.TopicMetric, st.Normalization)
		if result.Recommendation != "" {
			fmt.Printf("\n%s\n", result.Recommendation)
		}
	} else {
		outputJSON(result)
	}

	if exitCode != ExitSuccess {
		os.Exit(exitCode)
	}
	return nil
}
