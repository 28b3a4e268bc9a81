package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/config"
	"github.com/matsen/paperrank/internal/importer"
	"github.com/matsen/paperrank/internal/semantic"
	"github.com/matsen/paperrank/internal/storage"
)

var corpusImportDryRun bool

func init() {
	rootCmd.AddCommand(corpusCmd)
	corpusCmd.AddCommand(corpusRebuildCmd)
	corpusCmd.AddCommand(corpusImportCmd)

	corpusImportCmd.Flags().BoolVar(&corpusImportDryRun, "dry-run", false, "Report what would change without writing")
}

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the paper corpus database",
	Long:  `Commands for the SQLite corpus that supplies titles and paper metadata.`,
}

var corpusRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the corpus database from refs.jsonl",
	Long: `Rebuild the SQLite corpus database, including the title search index,
from the JSONL source file.

Use this after pulling changes from git or if the database becomes corrupted.`,
	Args: cobra.NoArgs,
	RunE: runCorpusRebuild,
}

// CorpusRebuildResult is the response for the corpus rebuild command.
type CorpusRebuildResult struct {
	Status       string `json:"status"`
	References   int    `json:"references"`
	WithAbstract int    `json:"with_abstract"`
}

func runCorpusRebuild(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()

	db := mustOpenDatabase(repoRoot)
	defer db.Close()

	count, err := db.RebuildFromJSONL(ctx, config.RefsPath(repoRoot))
	if err != nil {
		exitWithError(ExitDataError, "rebuilding database: %v", err)
	}
	withAbstract, err := db.CountPapersWithAbstract(ctx, semantic.MinAbstractLength)
	if err != nil {
		exitWithError(ExitError, "counting abstracts: %v", err)
	}

	if humanOutput {
		fmt.Printf("Rebuilt corpus database with %d references (%d with abstracts)\n", count, withAbstract)
	} else {
		outputJSON(CorpusRebuildResult{
			Status:       "rebuilt",
			References:   count,
			WithAbstract: withAbstract,
		})
	}
	return nil
}

var corpusImportCmd = &cobra.Command{
	Use:   "import <paperpile.json>",
	Short: "Merge a Paperpile JSON export into refs.jsonl",
	Long: `Merge papers from a Paperpile JSON export into refs.jsonl, then rebuild
the corpus database.

Papers are matched by citekey. Fields missing from the export keep their
current values. Entries without a citekey or title are skipped and reported.
Run "paperrank index build" afterwards to embed new abstracts.`,
	Args: cobra.ExactArgs(1),
	RunE: runCorpusImport,
}

// CorpusImportResult is the response for the corpus import command.
type CorpusImportResult struct {
	importer.MergeStats
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
	References int      `json:"references"`
	DryRun     bool     `json:"dry_run,omitempty"`
}

func runCorpusImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	repoRoot := mustFindRepository()
	logger := mustLogger(mustLoadConfig(repoRoot))
	defer logger.Sync()

	f, err := os.Open(args[0])
	if err != nil {
		exitWithError(ExitError, "opening export: %v", err)
	}
	incoming, errs := importer.ReadPaperpile(f)
	f.Close()
	if incoming == nil && len(errs) > 0 {
		exitWithError(ExitDataError, "%v", errs[0])
	}

	refsPath := config.RefsPath(repoRoot)
	existing, err := storage.ReadAll(refsPath)
	if err != nil {
		exitWithError(ExitDataError, "reading %s: %v", refsPath, err)
	}
	merged, stats := importer.Merge(existing, incoming)

	result := CorpusImportResult{
		MergeStats: stats,
		Skipped:    len(errs),
		References: len(merged),
		DryRun:     corpusImportDryRun,
	}
	for _, e := range errs {
		result.Errors = append(result.Errors, e.Error())
	}

	if !corpusImportDryRun && stats.Added+stats.Updated > 0 {
		if err := storage.WriteAll(refsPath, merged); err != nil {
			exitWithError(ExitError, "writing %s: %v", refsPath, err)
		}
		db := mustOpenDatabase(repoRoot)
		defer db.Close()
		if err := db.Rebuild(ctx, merged); err != nil {
			exitWithError(ExitError, "rebuilding database: %v", err)
		}
		logger.Info("Imported Paperpile export",
			zap.String("file", args[0]),
			zap.Int("added", stats.Added),
			zap.Int("updated", stats.Updated),
			zap.Int("skipped", len(errs)))
	}

	if humanOutput {
		verb := "Imported"
		if corpusImportDryRun {
			verb = "Would import"
		}
		fmt.Printf("%s: %d added, %d updated, %d unchanged, %d skipped (%d references total)\n",
			verb, stats.Added, stats.Updated, stats.Unchanged, len(errs), len(merged))
		for _, e := range result.Errors {
			fmt.Printf("  skipped %s\n", e)
		}
	} else {
		outputJSON(result)
	}
	return nil
}
