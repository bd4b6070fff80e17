// Package embedding turns provider profiles and user queries into fixed-width vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/medbot/internal/config"
)

// ErrDimensionMismatch is returned when an encoder produces a vector of unexpected width.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Embedder produces vector embeddings for text. The same text must always map to the same vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Model identifies the encoder; a persisted index is only reused with the same model.
	Model() string
	Close() error
}

// New builds the embedder selected by cfg.Provider, wrapped in an LRU cache when CacheSize > 0.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", "onnx":
		e, err = NewONNXEmbedder(cfg.Model, cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "openai":
		e, err = NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey(), cfg.Model, cfg.Dimensions, cfg.Timeout)
	case "hash":
		e = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}

func checkDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
