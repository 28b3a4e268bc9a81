// Package main provides the paperrank CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/config"
	"github.com/matsen/paperrank/internal/engine"
	"github.com/matsen/paperrank/internal/logging"
	"github.com/matsen/paperrank/internal/metrics"
	"github.com/matsen/paperrank/internal/reference"
	"github.com/matsen/paperrank/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	logLevel    string
	metricsOut  string
)

func main() {
	// .env is optional; a malformed one is reported.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %s\n", err)
		os.Exit(ExitConfigError)
	}

	metrics.Register(prometheus.DefaultRegisterer)

	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "paperrank",
	Short: "Multi-signal paper retrieval and ranking",
	Long: `paperrank ranks papers in a reference library against a free-text query
or a reference paper by combining title matches, embedding similarity and
topic similarity.

Embedding and topic matrices are published as versioned artifacts and are
picked up as soon as the version marker moves forward.
All commands output JSON by default for AI agent integration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if metricsOut == "" {
			return nil
		}
		return prometheus.WriteToTextfile(metricsOut, prometheus.DefaultGatherer)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this file when the command finishes")
	rootCmd.Version = Version
}

// getStartingDirectory returns the directory to start searching for a repository.
// PAPERRANK_ROOT wins, then the global default_root, then the working directory.
func getStartingDirectory() (string, int) {
	if root := os.Getenv("PAPERRANK_ROOT"); root != "" {
		return root, 0
	}
	if root, err := config.ValidateDefaultRoot(); err == nil {
		return root, 0
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}
	return cwd, 0
}

// mustFindRepository finds and validates the repository, exits on error.
func mustFindRepository() string {
	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	repoRoot, err := config.FindRepository(start)
	if err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
		os.Exit(ExitConfigError)
	}
	return repoRoot
}

// mustLoadConfig loads the repository config with global secrets applied, exits on error.
func mustLoadConfig(repoRoot string) config.Config {
	cfg, err := config.Load(repoRoot)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	global, err := config.LoadGlobalConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading global config: %v", err)
	}
	cfg.ApplyGlobal(global)
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg
}

// mustLogger builds the logger from config. Log lines go to stderr.
func mustLogger(cfg config.Config) *zap.Logger {
	logger, err := logging.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		exitWithError(ExitConfigError, "creating logger: %v", err)
	}
	return logger
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(repoRoot string) *storage.DB {
	if err := os.MkdirAll(config.CachePath(repoRoot), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}
	db, err := storage.OpenDB(config.DBPath(repoRoot))
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// session bundles what the ranking commands share.
type session struct {
	root    string
	cfg     config.Config
	logger  *zap.Logger
	db      *storage.DB
	encoder *engine.Encoder
	engine  *engine.Engine
}

// mustOpenSession loads config, opens the corpus and builds the engine.
// withEncoder controls whether an embedding provider is set up for queries.
func mustOpenSession(ctx context.Context, withEncoder bool) *session {
	s := &session{root: mustFindRepository()}
	s.cfg = mustLoadConfig(s.root)
	s.logger = mustLogger(s.cfg)
	s.db = mustOpenDatabase(s.root)

	store, err := engine.OpenStore(s.cfg)
	if err != nil {
		exitWithError(ExitConfigError, "opening artifact store: %v", err)
	}

	deps := engine.Deps{Store: store, Titles: s.db, Logger: s.logger}
	if withEncoder {
		s.encoder, err = engine.NewEncoder(ctx, s.cfg, s.logger)
		if err != nil {
			exitWithError(ExitConfigError, "creating encoder: %v", err)
		}
		deps.Encoder = s.encoder
	}

	s.engine, err = engine.New(s.cfg, deps)
	if err != nil {
		exitWithError(ExitConfigError, "creating engine: %v", err)
	}
	return s
}

// lookup hydrates result ids from the corpus database.
func (s *session) lookup(ctx context.Context) paperLookup {
	return func(ids []string) (map[string]reference.Reference, error) {
		return s.db.GetMany(ctx, ids)
	}
}

func (s *session) Close() {
	if s.encoder != nil {
		s.encoder.Close()
	}
	s.db.Close()
	s.logger.Sync()
}
