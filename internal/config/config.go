// Package config provides configuration loading and structs for the heelix RAG core.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Vector        VectorConfig        `yaml:"vector"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Vectorization VectorizationConfig `yaml:"vectorization"`
	Keyword       KeywordConfig       `yaml:"keyword"`
	Import        ImportConfig        `yaml:"import"`

	// apiKeyFromEnv is set when Embedding.APIKey came from the environment; Save never writes it back.
	apiKeyFromEnv bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database and on-disk indices.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path"`
	VectorsDir     string `yaml:"vectors_dir"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// EmbeddingConfig holds remote embedding service settings.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"` // openai | mock
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key,omitempty"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size"`
	MaxBatchTokens    int     `yaml:"max_batch_tokens"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
	CacheSize         int     `yaml:"cache_size"`
}

// ChunkingConfig holds chunk boundary settings. Sizes are in characters (runes).
type ChunkingConfig struct {
	MaxChunkSize int `yaml:"max_chunk_size"`
	MinChunkSize int `yaml:"min_chunk_size"`
	Overlap      int `yaml:"overlap"`
	BreakWindow  int `yaml:"break_window"`
}

// VectorConfig holds ANN index settings.
type VectorConfig struct {
	IndexType       string `yaml:"index_type"` // hnsw | memory
	M               int    `yaml:"m"`
	EfConstruction  int    `yaml:"ef_construction"`
	EfSearch        int    `yaml:"ef_search"`
	Seed            int64  `yaml:"seed"`
	FlushIntervalMs int    `yaml:"flush_interval_ms"`
	// IdleEvictSecs unloads a project index unused for this long; negative keeps indexes loaded.
	IdleEvictSecs int `yaml:"idle_evict_secs"`
}

// RetrievalConfig holds top-k bounds and fallback settings.
type RetrievalConfig struct {
	DefaultTopK     int  `yaml:"default_top_k"`
	MaxTopK         int  `yaml:"max_top_k"`
	PreviewLength   int  `yaml:"preview_length"`
	KeywordFallback bool `yaml:"keyword_fallback"`
}

// VectorizationConfig holds the global pipeline toggle and worker pool sizing.
type VectorizationConfig struct {
	Enabled   *bool `yaml:"enabled"`
	Workers   int   `yaml:"workers"`
	QueueSize int   `yaml:"queue_size"` // backlog warning threshold
}

// KeywordConfig toggles the Bleve chunk index.
type KeywordConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ImportFolder maps a directory on disk to a project. Files in it are imported as documents.
type ImportFolder struct {
	Path    string `yaml:"path"`
	Project string `yaml:"project"`
}

// ImportConfig holds folder import (watch) settings.
type ImportConfig struct {
	Folders    []ImportFolder `yaml:"folders"`
	Extensions []string       `yaml:"extensions"`
	Recursive  *bool          `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (i *ImportConfig) RecursiveOrDefault() bool {
	if i.Recursive != nil {
		return *i.Recursive
	}
	return true
}

// VectorizationEnabled reports the global pipeline toggle; defaults to true when unset.
func (c *Config) VectorizationEnabled() bool {
	if c.Vectorization.Enabled != nil {
		return *c.Vectorization.Enabled
	}
	return true
}

// SetVectorizationEnabled sets the global pipeline toggle.
func (c *Config) SetVectorizationEnabled(enabled bool) {
	c.Vectorization.Enabled = &enabled
}

// Load reads and parses the config file at path, loads a sibling .env file,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if err := loadEnv(&cfg, configDir); err != nil {
		return nil, err
	}
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorsDir = expandPath(cfg.Storage.VectorsDir, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	for i := range cfg.Import.Folders {
		cfg.Import.Folders[i].Path = expandPath(cfg.Import.Folders[i].Path, configDir)
	}

	return &cfg, nil
}

// loadEnv reads configDir/.env (if present) into the process environment and fills
// the embedding API key from Embedding.APIKeyEnv when the file leaves it empty.
func loadEnv(cfg *Config, configDir string) error {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}
	if cfg.Embedding.APIKey == "" && cfg.Embedding.APIKeyEnv != "" {
		if key := os.Getenv(cfg.Embedding.APIKeyEnv); key != "" {
			cfg.Embedding.APIKey = key
			cfg.apiKeyFromEnv = true
		}
	}
	return nil
}

// Save writes the config to path. Used for persisting settings changes.
// An API key that was read from the environment is not written to disk.
func Save(path string, cfg *Config) error {
	out := *cfg
	if cfg.apiKeyFromEnv {
		out.Embedding.APIKey = ""
	}
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	path = strings.TrimPrefix(path, "~/")
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
