// Package vector provides nearest-neighbour backends for provider embeddings.
package vector

import (
	"context"
	"sort"
)

// VectorIndex stores provider vectors and answers top-k inner-product queries.
// A VectorIndex is filled once per build and then only read.
type VectorIndex interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Size() int
	Type() string
	Close() error
}

// VectorResult is a single search hit. Score is the inner product, which equals cosine
// similarity for unit vectors.
type VectorResult struct {
	ID    int64
	Score float64
}

// sortResults orders results by descending score, breaking ties by ascending id.
func sortResults(results []*VectorResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
