// Package config loads and validates Cartograph configuration.
//
// Configuration is read from .cartograph.yaml at the project root, with
// environment variable overrides (CARTOGRAPH_*) applied on top.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the per-project configuration file.
const ConfigFileName = ".cartograph.yaml"

// Config represents the complete Cartograph configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Embed    EmbedConfig    `yaml:"embed" json:"embed"`
	Indexing IndexingConfig `yaml:"indexing" json:"indexing"`
	Watcher  WatcherConfig  `yaml:"watcher" json:"watcher"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PathsConfig configures which paths to include and exclude.
type PathsConfig struct {
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// EmbedConfig configures the remote embedding provider.
type EmbedConfig struct {
	// ServerURL is the embedding server endpoint (e.g., http://dgx:8080).
	ServerURL string `yaml:"server_url" json:"server_url"`

	// BatchSize overrides the batch size for embedding requests.
	// Zero means use the server-recommended size, falling back to the
	// provider default.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Timeout is the per-request timeout for embedding calls.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// MaxRetries is the number of attempts per embedding batch.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// CacheSize is the LRU size for the query-embedding cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Offline uses the deterministic static embedder instead of the
	// remote server. Intended for tests and air-gapped use.
	Offline bool `yaml:"offline" json:"offline"`
}

// IndexingConfig configures the indexing orchestrator.
type IndexingConfig struct {
	// CheckpointInterval is how many chunks are embedded between
	// incomplete-checkpoint saves.
	CheckpointInterval int `yaml:"checkpoint_interval" json:"checkpoint_interval"`

	// JobPollInterval is how often job status is polled while queued.
	JobPollInterval time.Duration `yaml:"job_poll_interval" json:"job_poll_interval"`

	// JobActivationTimeout bounds the total wait for a job to become active.
	JobActivationTimeout time.Duration `yaml:"job_activation_timeout" json:"job_activation_timeout"`
}

// WatcherConfig configures file watching.
type WatcherConfig struct {
	// Debounce is the window used to coalesce rapid file events.
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default configuration values.
const (
	CurrentConfigVersion       = 1
	DefaultEmbedServerURL      = "http://localhost:8080"
	DefaultEmbedTimeout        = 120 * time.Second
	DefaultEmbedMaxRetries     = 3
	DefaultEmbedCacheSize      = 512
	DefaultCheckpointInterval  = 500
	DefaultJobPollInterval     = 2 * time.Second
	DefaultJobActivationWait   = 5 * time.Minute
	DefaultWatchDebounce       = 200 * time.Millisecond
)

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Paths: PathsConfig{
			Exclude: []string{"vendor/**", "testdata/**", ".git/**"},
		},
		Embed: EmbedConfig{
			ServerURL:  DefaultEmbedServerURL,
			Timeout:    DefaultEmbedTimeout,
			MaxRetries: DefaultEmbedMaxRetries,
			CacheSize:  DefaultEmbedCacheSize,
		},
		Indexing: IndexingConfig{
			CheckpointInterval:   DefaultCheckpointInterval,
			JobPollInterval:      DefaultJobPollInterval,
			JobActivationTimeout: DefaultJobActivationWait,
		},
		Watcher: WatcherConfig{
			Debounce: DefaultWatchDebounce,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// Load reads configuration for the given project root.
// A missing config file is not an error; defaults are returned.
func Load(root string) (*Config, error) {
	cfg := New()

	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills zero values left by partial config files.
func (c *Config) applyDefaults() {
	d := New()
	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Embed.ServerURL == "" {
		c.Embed.ServerURL = d.Embed.ServerURL
	}
	if c.Embed.Timeout == 0 {
		c.Embed.Timeout = d.Embed.Timeout
	}
	if c.Embed.MaxRetries == 0 {
		c.Embed.MaxRetries = d.Embed.MaxRetries
	}
	if c.Embed.CacheSize == 0 {
		c.Embed.CacheSize = d.Embed.CacheSize
	}
	if c.Indexing.CheckpointInterval == 0 {
		c.Indexing.CheckpointInterval = d.Indexing.CheckpointInterval
	}
	if c.Indexing.JobPollInterval == 0 {
		c.Indexing.JobPollInterval = d.Indexing.JobPollInterval
	}
	if c.Indexing.JobActivationTimeout == 0 {
		c.Indexing.JobActivationTimeout = d.Indexing.JobActivationTimeout
	}
	if c.Watcher.Debounce == 0 {
		c.Watcher.Debounce = d.Watcher.Debounce
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
}

// applyEnv overrides settings from CARTOGRAPH_* environment variables.
// Env vars take priority over both defaults and the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CARTOGRAPH_EMBED_SERVER"); v != "" {
		c.Embed.ServerURL = v
	}
	if v := os.Getenv("CARTOGRAPH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Embed.BatchSize = n
		}
	}
	if v := os.Getenv("CARTOGRAPH_OFFLINE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Embed.Offline = b
		}
	}
	if v := os.Getenv("CARTOGRAPH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// FindProjectRoot walks up from startDir looking for a .git directory,
// a go.mod, or a .cartograph.yaml. Reaching the filesystem root without
// a marker returns startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	dir := abs
	for {
		for _, marker := range []string{".git", "go.mod", ConfigFileName} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Embed.BatchSize < 0 {
		return fmt.Errorf("embed.batch_size must be >= 0, got %d", c.Embed.BatchSize)
	}
	if c.Indexing.CheckpointInterval < 1 {
		return fmt.Errorf("indexing.checkpoint_interval must be >= 1, got %d", c.Indexing.CheckpointInterval)
	}
	if c.Indexing.JobPollInterval <= 0 {
		return fmt.Errorf("indexing.job_poll_interval must be positive")
	}
	if c.Indexing.JobActivationTimeout <= 0 {
		return fmt.Errorf("indexing.job_activation_timeout must be positive")
	}
	return nil
}
