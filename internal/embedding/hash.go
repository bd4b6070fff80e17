package embedding

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/hyperjump/medbot/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words encoder. Each lower-cased word is hashed into
// one of Dimensions buckets and the result is L2-normalised, so texts sharing words score higher.
// It needs no model files and is used for tests and offline deployments.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder of the given width (384 when dimensions <= 0).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed bag-of-words vector for text. Empty text yields the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, word := range Terms(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		emb[int(sum>>1)%e.dimensions] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns a name that encodes the bucket count.
func (e *HashEmbedder) Model() string {
	return fmt.Sprintf("hash-bow-%d", e.dimensions)
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
