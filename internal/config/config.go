// Package config provides configuration loading and structs for the Med-Bot server.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Vector    VectorConfig    `yaml:"vector"`
	Index     IndexConfig     `yaml:"index"`
	Phrasing  PhrasingConfig  `yaml:"phrasing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the provider database and the persisted vector index.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexPath    string `yaml:"index_path"`
}

// EmbeddingConfig selects and configures the text encoder.
type EmbeddingConfig struct {
	// Provider is one of "onnx", "openai" or "hash".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	ModelPath  string        `yaml:"model_path"`
	BaseURL    string        `yaml:"base_url"`
	APIKeyEnv  string        `yaml:"api_key_env"`
	Dimensions int           `yaml:"dimensions"`
	MaxTokens  int           `yaml:"max_tokens"`
	CacheSize  int           `yaml:"cache_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

// VectorConfig selects the nearest-neighbour backend.
type VectorConfig struct {
	// Backend is "memory" (default) or "qdrant".
	Backend          string `yaml:"backend"`
	QdrantAddr       string `yaml:"qdrant_addr"`
	QdrantCollection string `yaml:"qdrant_collection"`
}

// IndexConfig holds vector index lifecycle settings.
type IndexConfig struct {
	Persist         *bool         `yaml:"persist"`
	TopK            int           `yaml:"top_k"`
	Workers         int           `yaml:"workers"`
	BuildTimeout    time.Duration `yaml:"build_timeout"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	RebuildCooldown time.Duration `yaml:"rebuild_cooldown"`
	WatchSource     bool          `yaml:"watch_source"`
}

// PersistOrDefault returns whether the index is written to disk; defaults to true when unset.
func (c *IndexConfig) PersistOrDefault() bool {
	if c.Persist != nil {
		return *c.Persist
	}
	return true
}

// PhrasingConfig configures the generative phrasing service (OpenAI-compatible chat API).
type PhrasingConfig struct {
	Enabled          *bool         `yaml:"enabled"`
	BaseURL          string        `yaml:"base_url"`
	Model            string        `yaml:"model"`
	APIKeyEnv        string        `yaml:"api_key_env"`
	Temperature      float64       `yaml:"temperature"`
	MaxTokens        int           `yaml:"max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	RatePerMinute    int           `yaml:"rate_per_minute"`
	GeneralQuestions bool          `yaml:"general_questions"`
}

// EnabledOrDefault returns whether phrasing is attempted; defaults to true when unset.
// Phrasing is still skipped at runtime when no API key is present.
func (c *PhrasingConfig) EnabledOrDefault() bool {
	if c.Enabled != nil {
		return *c.Enabled
	}
	return true
}

// APIKey returns the phrasing API key from the configured environment variable.
func (c *PhrasingConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// APIKey returns the embedding API key from the configured environment variable.
func (c *EmbeddingConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
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
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Write encodes the config as YAML to w.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. ":memory:" is left as-is.
func expandPath(path string, configDir string) string {
	if path == ":memory:" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
