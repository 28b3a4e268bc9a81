package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	PaperrankDir = ".paperrank"
	ConfigFile   = "config.yml"
	RefsFile     = "refs.jsonl"
	CacheDir     = "cache"
	DBFile       = "refs.db"
	ArtifactsDir = "artifacts"
)

// PaperrankPath returns the path to the .paperrank directory from a root path.
func PaperrankPath(root string) string {
	return filepath.Join(root, PaperrankDir)
}

// ConfigPath returns the path to config.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, PaperrankDir, ConfigFile)
}

// RefsPath returns the path to refs.jsonl from a root path.
func RefsPath(root string) string {
	return filepath.Join(root, PaperrankDir, RefsFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, PaperrankDir, CacheDir)
}

// DBPath returns the path to refs.db from a root path.
func DBPath(root string) string {
	return filepath.Join(root, PaperrankDir, CacheDir, DBFile)
}

// ArtifactsPath returns the default local artifact directory from a root path.
func ArtifactsPath(root string) string {
	return filepath.Join(root, PaperrankDir, ArtifactsDir)
}

// IsRepository checks if the given path contains a paperrank repository.
func IsRepository(root string) bool {
	info, err := os.Stat(PaperrankPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a paperrank repository.
func FindRepository(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a paperrank repository (no %s directory found)", PaperrankDir)
		}
		abs = parent
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

// resolve makes path absolute against root, expanding ~ first.
func resolve(root, path string) string {
	path = ExpandPath(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
