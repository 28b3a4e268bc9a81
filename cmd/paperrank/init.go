package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matsen/paperrank/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new paperrank repository",
	Long: `Initialize a new paperrank repository in dir, or the current directory.

Creates:
  .paperrank/
  ├── refs.jsonl      # Empty corpus
  ├── config.yml      # Default config
  └── cache/          # Database and local artifacts (gitignored)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

// InitResult is the response for the init command.
type InitResult struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

func runInit(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		exitWithError(ExitError, "resolving directory: %v", err)
	}

	if config.IsRepository(root) {
		exitWithError(ExitError, "%s already contains a paperrank repository", root)
	}

	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating %s: %v", config.PaperrankDir, err)
	}

	refsFile, err := os.OpenFile(config.RefsPath(root), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		exitWithError(ExitError, "creating %s: %v", config.RefsFile, err)
	}
	refsFile.Close()

	cfg := config.Default()
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "creating %s: %v", config.ConfigFile, err)
	}

	if humanOutput {
		fmt.Printf("Initialized paperrank repository in %s\n", root)
	} else {
		outputJSON(InitResult{Status: "initialized", Path: root})
	}
	return nil
}
