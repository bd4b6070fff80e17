package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeQdrant stores vectors in a Qdrant collection reached over gRPC.
	IndexTypeQdrant IndexType = "qdrant"
)

// Options configure NewVectorIndex.
type Options struct {
	Type       string
	Dimensions int
	// QdrantAddr is the gRPC address, e.g. "localhost:6334".
	QdrantAddr string
	// Collection is the collection name prefix; each index gets its own collection.
	Collection string
}

// NewVectorIndex creates an empty vector index of the requested type.
func NewVectorIndex(ctx context.Context, opts Options) (VectorIndex, error) {
	switch IndexType(opts.Type) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(opts.Dimensions)
	case IndexTypeQdrant:
		return NewQdrantIndex(ctx, opts.QdrantAddr, opts.Collection, opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, qdrant)", opts.Type)
	}
}
