// Package config handles repository paths and engine configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/embedding"
	"github.com/matsen/paperrank/internal/lexical"
	"github.com/matsen/paperrank/internal/rank"
	"github.com/matsen/paperrank/internal/similarity"
	"github.com/matsen/paperrank/internal/window"
)

// Artifact store kinds.
const (
	StoreDir = "dir"
	StoreS3  = "s3"
)

// Ranking signal names, in their default merge order.
const (
	SignalLexical  = "lexical"
	SignalSemantic = "semantic"
	SignalTopic    = "topic"
)

// Config holds the engine configuration stored in .paperrank/config.yml.
type Config struct {
	PDFRoot   string          `yaml:"pdf_root"` // reference pdf paths are relative to this (default: repository root)
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Windowing window.Config   `yaml:"windowing"`
	Ranking   RankingConfig   `yaml:"ranking"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ArtifactsConfig locates the embedding and topic artifacts.
type ArtifactsConfig struct {
	Store          string            `yaml:"store"` // dir | s3 (default: dir)
	Dir            string            `yaml:"dir"`   // relative to the repository root
	S3             artifact.S3Config `yaml:"s3"`
	LoadTimeoutSec int               `yaml:"load_timeout_sec"`
}

// EmbeddingConfig holds encoder settings.
type EmbeddingConfig struct {
	Provider   string  `yaml:"provider"` // ollama | openai (default: ollama)
	BaseURL    string  `yaml:"base_url"`
	Model      string  `yaml:"model"`
	Dimensions int     `yaml:"dimensions"`
	APIKey     string  `yaml:"api_key"`
	TimeoutSec int     `yaml:"timeout_sec"`
	RateLimit  float64 `yaml:"rate_limit"` // requests per second, 0 = unlimited
	RateBurst  int     `yaml:"rate_burst"`
	Vocab      string  `yaml:"vocab"` // optional tokenizer vocabulary, one token per line
}

// CacheConfig holds the optional Redis query-embedding cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"` // empty disables the cache
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	TTLSec        int    `yaml:"ttl_sec"`
}

// RankingConfig holds metric selection and score merging settings.
type RankingConfig struct {
	Signals        []string           `yaml:"signals"`      // merge order (default: lexical, semantic)
	Metric         string             `yaml:"metric"`       // embedding metric
	TopicMetric    string             `yaml:"topic_metric"` // topic-distribution metric
	Normalization  string             `yaml:"normalization"`
	Weights        map[string]float64 `yaml:"weights"`
	Lexical        lexical.Config     `yaml:"lexical"`
	Candidates     int                `yaml:"candidates"`      // per-signal candidates merged before the final cut
	TopicNeighbors int                `yaml:"topic_neighbors"` // papers averaged to infer a query's topics
	DefaultLimit   int                `yaml:"default_limit"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Env   string `yaml:"env"`   // local, dev, prod
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// Default returns a configuration with every default applied.
func Default() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// Load reads .paperrank/config.yml under root. A missing file yields defaults.
// ${VAR} and ${VAR:-default} are replaced from the environment before parsing.
func Load(root string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(ConfigPath(root))
	switch {
	case err == nil:
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg.ApplyDefaults()
	if cfg.Artifacts.Store == StoreDir {
		cfg.Artifacts.Dir = resolve(root, cfg.Artifacts.Dir)
	}
	if cfg.PDFRoot == "" {
		cfg.PDFRoot = root
	} else {
		cfg.PDFRoot = resolve(root, cfg.PDFRoot)
	}
	if cfg.Embedding.Vocab != "" {
		cfg.Embedding.Vocab = resolve(root, cfg.Embedding.Vocab)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to .paperrank/config.yml under root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(PaperrankPath(root), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", PaperrankDir, err)
	}
	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Artifacts.Store == "" {
		c.Artifacts.Store = StoreDir
	}
	if c.Artifacts.Store == StoreDir && c.Artifacts.Dir == "" {
		c.Artifacts.Dir = PaperrankDir + "/" + ArtifactsDir
	}
	if c.Artifacts.LoadTimeoutSec <= 0 {
		c.Artifacts.LoadTimeoutSec = int(artifact.DefaultLoadTimeout / time.Second)
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = embedding.ProviderOllama
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = int(embedding.DefaultTimeout / time.Second)
	}
	if c.Embedding.RateBurst <= 0 {
		c.Embedding.RateBurst = 1
	}

	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = int(embedding.DefaultCacheTTL / time.Second)
	}

	// An explicit overlap of zero is valid, so it only defaults with the whole section.
	def := window.DefaultConfig()
	if c.Windowing == (window.Config{}) {
		c.Windowing = def
	}
	if c.Windowing.MaxLength <= 0 {
		c.Windowing.MaxLength = def.MaxLength
	}
	if c.Windowing.MaxWindows <= 0 {
		c.Windowing.MaxWindows = def.MaxWindows
	}

	if len(c.Ranking.Signals) == 0 {
		c.Ranking.Signals = []string{SignalLexical, SignalSemantic}
	}
	if c.Ranking.Metric == "" {
		c.Ranking.Metric = similarity.NameCosine
	}
	if c.Ranking.TopicMetric == "" {
		c.Ranking.TopicMetric = similarity.NameJensenShannon
	}
	if c.Ranking.Normalization == "" {
		c.Ranking.Normalization = rank.NormMinMax
	}
	lex := lexical.DefaultConfig()
	if c.Ranking.Lexical.PhraseWeight <= 0 {
		c.Ranking.Lexical.PhraseWeight = lex.PhraseWeight
	}
	if c.Ranking.Lexical.TermWeight <= 0 {
		c.Ranking.Lexical.TermWeight = lex.TermWeight
	}
	if c.Ranking.Lexical.MaxCandidates <= 0 {
		c.Ranking.Lexical.MaxCandidates = lex.MaxCandidates
	}
	if c.Ranking.Candidates <= 0 {
		c.Ranking.Candidates = 200
	}
	if c.Ranking.TopicNeighbors <= 0 {
		c.Ranking.TopicNeighbors = 20
	}
	if c.Ranking.DefaultLimit <= 0 {
		c.Ranking.DefaultLimit = 10
	}

	if c.Logging.Env == "" {
		c.Logging.Env = "local"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	switch c.Artifacts.Store {
	case StoreDir:
		if c.Artifacts.Dir == "" {
			return fmt.Errorf("artifacts.dir is required for the dir store")
		}
	case StoreS3:
		if c.Artifacts.S3.Bucket == "" {
			return fmt.Errorf("artifacts.s3.bucket is required for the s3 store")
		}
	default:
		return fmt.Errorf("artifacts.store must be %q or %q, got %q", StoreDir, StoreS3, c.Artifacts.Store)
	}

	switch c.Embedding.Provider {
	case embedding.ProviderOllama, embedding.ProviderOpenAI:
	default:
		return fmt.Errorf("embedding.provider must be %q or %q, got %q",
			embedding.ProviderOllama, embedding.ProviderOpenAI, c.Embedding.Provider)
	}
	if c.Embedding.RateLimit < 0 {
		return fmt.Errorf("embedding.rate_limit must not be negative, got %v", c.Embedding.RateLimit)
	}

	if err := c.Windowing.Validate(0); err != nil {
		return fmt.Errorf("windowing: %w", err)
	}

	seen := make(map[string]bool, len(c.Ranking.Signals))
	for _, name := range c.Ranking.Signals {
		switch name {
		case SignalLexical, SignalSemantic, SignalTopic:
		default:
			return fmt.Errorf("ranking.signals: unknown signal %q", name)
		}
		if seen[name] {
			return fmt.Errorf("ranking.signals: %q listed twice", name)
		}
		seen[name] = true
	}
	if _, err := similarity.ByName(c.Ranking.Metric); err != nil {
		return fmt.Errorf("ranking.metric: %w", err)
	}
	if _, err := similarity.ByName(c.Ranking.TopicMetric); err != nil {
		return fmt.Errorf("ranking.topic_metric: %w", err)
	}
	if _, err := rank.NormalizerByName(c.Ranking.Normalization); err != nil {
		return fmt.Errorf("ranking.normalization: %w", err)
	}
	for name, w := range c.Ranking.Weights {
		if w < 0 {
			return fmt.Errorf("ranking.weights.%s must not be negative, got %v", name, w)
		}
	}
	return nil
}

// LoadTimeout returns the artifact load timeout.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Artifacts.LoadTimeoutSec) * time.Second
}

// EncoderTimeout returns the per-call encoder timeout.
func (c *Config) EncoderTimeout() time.Duration {
	return time.Duration(c.Embedding.TimeoutSec) * time.Second
}

// CacheTTL returns the query-embedding cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}

// EmbeddingOptions converts the embedding section for embedding.New.
func (c *Config) EmbeddingOptions() embedding.Options {
	return embedding.Options{
		Provider:   c.Embedding.Provider,
		BaseURL:    c.Embedding.BaseURL,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		APIKey:     c.Embedding.APIKey,
		Timeout:    c.EncoderTimeout(),
	}
}

// HasSignal reports whether name is one of the configured ranking signals.
func (c *Config) HasSignal(name string) bool {
	for _, s := range c.Ranking.Signals {
		if s == name {
			return true
		}
	}
	return false
}

// RankConfig converts the ranking section for rank.NewAggregator.
func (c *Config) RankConfig() rank.Config {
	return rank.Config{
		Normalization: c.Ranking.Normalization,
		Weights:       c.Ranking.Weights,
	}
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
