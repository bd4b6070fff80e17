package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.CORSOrigin == "" {
		cfg.Server.CORSOrigin = "*"
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/medbot/data/db/providers.db"
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/medbot/data/indices/providers.bolt"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/medbot/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 5 * time.Second
	}
	if cfg.Vector.Backend == "" {
		cfg.Vector.Backend = "memory"
	}
	if cfg.Vector.QdrantAddr == "" {
		cfg.Vector.QdrantAddr = "localhost:6334"
	}
	if cfg.Vector.QdrantCollection == "" {
		cfg.Vector.QdrantCollection = "providers"
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 5
	}
	if cfg.Index.Workers == 0 {
		cfg.Index.Workers = 4
	}
	if cfg.Index.BuildTimeout == 0 {
		cfg.Index.BuildTimeout = 2 * time.Minute
	}
	if cfg.Index.QueryTimeout == 0 {
		cfg.Index.QueryTimeout = 5 * time.Second
	}
	if cfg.Index.RebuildCooldown == 0 {
		cfg.Index.RebuildCooldown = 30 * time.Second
	}
	if cfg.Phrasing.BaseURL == "" {
		cfg.Phrasing.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Phrasing.Model == "" {
		cfg.Phrasing.Model = "llama-3.1-8b-instant"
	}
	if cfg.Phrasing.APIKeyEnv == "" {
		cfg.Phrasing.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.Phrasing.Temperature == 0 {
		cfg.Phrasing.Temperature = 0.3
	}
	if cfg.Phrasing.MaxTokens == 0 {
		cfg.Phrasing.MaxTokens = 200
	}
	if cfg.Phrasing.Timeout == 0 {
		cfg.Phrasing.Timeout = 10 * time.Second
	}
	if cfg.Phrasing.RatePerMinute == 0 {
		cfg.Phrasing.RatePerMinute = 30
	}
}
