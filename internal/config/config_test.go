package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
index:
  query_timeout: 2s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Index.QueryTimeout != 2*time.Second {
		t.Errorf("query_timeout = %v, want 2s", cfg.Index.QueryTimeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 8080
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/providers.db"
  index_path: "./data/indices/providers.bolt"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "providers.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantIdx := filepath.Join(dir, "data", "indices", "providers.bolt")
	if cfg.Storage.IndexPath != wantIdx {
		t.Errorf("index_path = %s, want %s", cfg.Storage.IndexPath, wantIdx)
	}
}

func TestLoad_memoryDatabaseNotExpanded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  database_path: \":memory:\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path = %s, want :memory:", cfg.Storage.DatabasePath)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "*" {
		t.Errorf("default cors origin: got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Index.TopK != 5 {
		t.Errorf("default top_k: got %d", cfg.Index.TopK)
	}
	if cfg.Embedding.Provider != "onnx" || cfg.Embedding.Dimensions != 384 {
		t.Errorf("default embedding: got %+v", cfg.Embedding)
	}
	if cfg.Embedding.ModelPath == "" {
		t.Error("onnx provider should get a default model path")
	}
	if cfg.Vector.Backend != "memory" {
		t.Errorf("default vector backend: got %s", cfg.Vector.Backend)
	}
	if cfg.Phrasing.Model != "llama-3.1-8b-instant" || cfg.Phrasing.APIKeyEnv != "GROQ_API_KEY" {
		t.Errorf("default phrasing: got %+v", cfg.Phrasing)
	}
	if cfg.Phrasing.MaxTokens != 200 {
		t.Errorf("default phrasing max tokens: got %d", cfg.Phrasing.MaxTokens)
	}
}

func TestApplyDefaults_hashProviderHasNoModelPath(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "hash"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.ModelPath != "" {
		t.Errorf("hash provider should not get a model path, got %s", cfg.Embedding.ModelPath)
	}
}

func TestIndexConfig_PersistOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		c := &IndexConfig{}
		if !c.PersistOrDefault() {
			t.Error("PersistOrDefault() = false, want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		c := &IndexConfig{Persist: &f}
		if c.PersistOrDefault() {
			t.Error("PersistOrDefault() = true, want false")
		}
	})
}

func TestPhrasingConfig_APIKey(t *testing.T) {
	t.Setenv("MEDBOT_TEST_KEY", "  secret \n")
	c := &PhrasingConfig{APIKeyEnv: "MEDBOT_TEST_KEY"}
	if got := c.APIKey(); got != "secret" {
		t.Errorf("APIKey() = %q, want %q", got, "secret")
	}
	c.APIKeyEnv = ""
	if got := c.APIKey(); got != "" {
		t.Errorf("APIKey() with no env = %q, want empty", got)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}

func TestWrite(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	var buf strings.Builder
	if err := Write(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"port: 8000", "backend: memory", "api_key_env: GROQ_API_KEY"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("output missing %q", sub)
		}
	}
}
