package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryIndex is an exact in-memory index. Vectors live in one contiguous row-major matrix
// and every query scans all rows; provider directories are small enough for that to be fast.
type MemoryIndex struct {
	dimensions int
	mu         sync.RWMutex
	ids        []int64
	rows       map[int64]int
	matrix     []float32
}

// NewMemoryIndex creates an empty index for vectors of the given width.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions, rows: make(map[int64]int)}, nil
}

// Type returns the index type identifier.
func (m *MemoryIndex) Type() string {
	return string(IndexTypeMemory)
}

// Add stores copies of vectors under ids. An id that is already present has its vector
// replaced. The batch is validated before anything is stored, so a bad vector adds nothing.
func (m *MemoryIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		if row, ok := m.rows[id]; ok {
			copy(m.row(row), vectors[i])
			continue
		}
		m.rows[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.matrix = append(m.matrix, vectors[i]...)
	}
	return nil
}

func (m *MemoryIndex) row(i int) []float32 {
	return m.matrix[i*m.dimensions : (i+1)*m.dimensions]
}

// Search returns the top-k rows by inner product, ties broken by lowest id.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	results := make([]*VectorResult, len(m.ids))
	for i, id := range m.ids {
		results[i] = &VectorResult{ID: id, Score: InnerProduct(query, m.row(i))}
	}
	sortResults(results)
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of distinct ids in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close releases the stored vectors.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids, m.rows, m.matrix = nil, make(map[int64]int), nil
	return nil
}
