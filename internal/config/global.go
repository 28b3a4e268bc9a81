package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfig holds user-level settings stored in ~/.config/paperrank/config.yml.
// Secrets live here so repository config files can be shared.
type GlobalConfig struct {
	DefaultRoot       string `yaml:"default_root,omitempty"`
	OpenAIAPIKey      string `yaml:"openai_api_key,omitempty"`
	RedisPassword     string `yaml:"redis_password,omitempty"`
	S3AccessKeyID     string `yaml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME.
	GlobalConfigDir = "paperrank"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
)

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/paperrank/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// LoadGlobalConfig loads the global configuration file.
// Returns an empty config (not an error) if the file doesn't exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	path := GlobalConfigPath()
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, fmt.Errorf("reading global config: %w", err)
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing global config: %w", err)
	}

	if cfg.DefaultRoot != "" {
		cfg.DefaultRoot = ExpandPath(cfg.DefaultRoot)
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// ApplyGlobal fills secrets the repository config leaves empty.
// Values already set in the repository config win.
func (c *Config) ApplyGlobal(g *GlobalConfig) {
	if g == nil {
		return
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = g.OpenAIAPIKey
	}
	if c.Cache.RedisPassword == "" {
		c.Cache.RedisPassword = g.RedisPassword
	}
	if c.Artifacts.S3.AccessKeyID == "" {
		c.Artifacts.S3.AccessKeyID = g.S3AccessKeyID
	}
	if c.Artifacts.S3.SecretAccessKey == "" {
		c.Artifacts.S3.SecretAccessKey = g.S3SecretAccessKey
	}
}

// ErrDefaultRootNotConfigured is returned when default_root is not set in config.
var ErrDefaultRootNotConfigured = errors.New("default_root not configured")

// ErrDefaultRootNotExist is returned when the configured default_root doesn't exist.
var ErrDefaultRootNotExist = errors.New("default_root does not exist")

// ValidateDefaultRoot returns the default repository root from global config after validation.
func ValidateDefaultRoot() (string, error) {
	cfg, err := LoadGlobalConfig()
	if err != nil {
		return "", err
	}
	if cfg.DefaultRoot == "" {
		return "", ErrDefaultRootNotConfigured
	}
	if !IsRepository(cfg.DefaultRoot) {
		return "", fmt.Errorf("%w: %s", ErrDefaultRootNotExist, cfg.DefaultRoot)
	}
	return cfg.DefaultRoot, nil
}

// HelpfulConfigMessage returns a helpful message when no repository can be found.
func HelpfulConfigMessage() string {
	configPath := GlobalConfigPath()
	return fmt.Sprintf(`No paperrank repository found.

Tip: Create %s to set a default repository:
  mkdir -p %s
  echo 'default_root: /path/to/your/library' > %s

Or set PAPERRANK_ROOT, or run from inside a directory containing %s/.`,
		configPath,
		filepath.Dir(configPath),
		configPath,
		PaperrankDir)
}
