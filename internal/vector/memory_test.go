package vector

import (
	"context"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	if err := idx.Add(ctx, []int64{1, 2, 3}, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != 1 || results[1].ID != 2 {
		t.Errorf("unexpected order: %d, %d", results[0].ID, results[1].ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores should be non-increasing")
	}
}

func TestMemoryIndex_TiesBreakByLowestID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []int64{9, 4, 7}, [][]float32{{1, 0}, {1, 0}, {1, 0}})

	results, err := idx.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{4, 7, 9}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("result %d: got id %d, want %d", i, r.ID, want[i])
		}
	}
}

func TestMemoryIndex_KLargerThanSize(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []int64{1}, [][]float32{{0, 1}})
	results, _ := idx.Search(ctx, []float32{0, 1}, 10)
	if len(results) != 1 {
		t.Errorf("expected 1 result, got %d", len(results))
	}
	results, _ = idx.Search(ctx, []float32{0, 1}, 0)
	if len(results) != 0 {
		t.Errorf("k=0 should return nothing, got %d", len(results))
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, []int64{1}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected add dimension error")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected search dimension error")
	}
	if err := idx.Add(ctx, []int64{1, 2}, [][]float32{{1, 0, 0}}); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestMemoryIndex_ReAddReplaces(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []int64{1, 2}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Add(ctx, []int64{1}, [][]float32{{0, -1}}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("re-adding an id should not grow the index, size=%d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 2)
	if results[0].Score != 0 || results[1].Score != 0 {
		t.Errorf("id 1 should have been replaced, got %+v %+v", results[0], results[1])
	}
}

func TestMemoryIndex_BadBatchAddsNothing(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	err := idx.Add(context.Background(), []int64{1, 2}, [][]float32{{1, 0}, {1}})
	if err == nil {
		t.Fatal("expected dimension error")
	}
	if idx.Size() != 0 {
		t.Errorf("failed batch should add nothing, size=%d", idx.Size())
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	out := DecodeVector(EncodeVector(in))
	if len(out) != len(in) {
		t.Fatalf("len=%d", len(out))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %f want %f", i, out[i], in[i])
		}
	}
}
