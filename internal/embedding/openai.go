package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hyperjump/medbot/pkg/utils"
)

// OpenAIEmbedder encodes text through an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	embedder   embeddings.Embedder
	model      string
	dimensions int
	timeout    time.Duration
}

// NewOpenAIEmbedder creates an embedder for the given endpoint and model. An empty token is
// sent as "none" so local OpenAI-compatible servers without auth still work. A positive
// timeout bounds each request.
func NewOpenAIEmbedder(baseURL, token, model string, dimensions int, timeout time.Duration) (*OpenAIEmbedder, error) {
	if model == "" {
		return nil, fmt.Errorf("openai embedder: model is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("openai embedder: dimensions must be positive")
	}
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: e, model: model, dimensions: dimensions, timeout: timeout}, nil
}

func (e *OpenAIEmbedder) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// Embed returns the normalised embedding for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := checkDimensions(vec, e.dimensions); err != nil {
		return nil, err
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch encodes texts in one request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := checkDimensions(v, e.dimensions); err != nil {
			return nil, err
		}
		utils.NormalizeL2(v)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the remote model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Close is a no-op; the HTTP client holds no resources.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
