package vector

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
)

// fakePoints returns search when set; otherwise it ranks the scores map by score and hands
// back ties in descending id order, truncated to the request limit.
type fakePoints struct {
	upserted []*pb.PointStruct
	search   *pb.SearchResponse
	scores   map[uint64]float32
	err      error
	lastReq  *pb.SearchPoints
	requests int
}

func (f *fakePoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserted = append(f.upserted, in.GetPoints()...)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.lastReq = in
	f.requests++
	if f.err != nil || f.search != nil {
		return f.search, f.err
	}
	ranked := make([]*pb.ScoredPoint, 0, len(f.scores))
	for id, score := range f.scores {
		ranked = append(ranked, scored(id, score))
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].GetScore() != ranked[j].GetScore() {
			return ranked[i].GetScore() > ranked[j].GetScore()
		}
		return ranked[i].GetId().GetNum() > ranked[j].GetId().GetNum()
	})
	if n := int(in.GetLimit()); n < len(ranked) {
		ranked = ranked[:n]
	}
	return &pb.SearchResponse{Result: ranked}, nil
}

type fakeCollections struct {
	created []string
	deleted []string
}

func (f *fakeCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.created = append(f.created, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func (f *fakeCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.deleted = append(f.deleted, in.GetCollectionName())
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func scored(id uint64, score float32) *pb.ScoredPoint {
	return &pb.ScoredPoint{Id: &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: id}}, Score: score}
}

func TestQdrantIndex_AddSearchClose(t *testing.T) {
	points := &fakePoints{}
	cols := &fakeCollections{}
	q := newQdrantIndex(points, cols, collectionName("providers"), 2)
	ctx := context.Background()

	if err := q.createCollection(ctx); err != nil {
		t.Fatal(err)
	}
	if len(cols.created) != 1 || !strings.HasPrefix(cols.created[0], "providers_") {
		t.Fatalf("unexpected collections %v", cols.created)
	}

	if err := q.Add(ctx, []int64{3, 1}, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if q.Size() != 2 || len(points.upserted) != 2 {
		t.Errorf("size=%d upserted=%d", q.Size(), len(points.upserted))
	}
	if points.upserted[0].GetId().GetNum() != 3 {
		t.Errorf("expected numeric id 3, got %v", points.upserted[0].GetId())
	}

	points.search = &pb.SearchResponse{Result: []*pb.ScoredPoint{scored(3, 0.5), scored(1, 0.5), scored(7, 0.9)}}
	results, err := q.Search(ctx, []float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{7, 1, 3}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("result %d: got %d want %d", i, r.ID, want[i])
		}
	}
	if points.lastReq.GetLimit() != 2 || points.lastReq.GetCollectionName() != q.Collection() {
		t.Errorf("unexpected search request %+v", points.lastReq)
	}

	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if len(cols.deleted) != 1 || cols.deleted[0] != q.Collection() {
		t.Errorf("collection not dropped: %v", cols.deleted)
	}
}

func TestQdrantIndex_Errors(t *testing.T) {
	points := &fakePoints{err: errors.New("unavailable")}
	q := newQdrantIndex(points, &fakeCollections{}, "c", 2)
	ctx := context.Background()

	if err := q.Add(ctx, []int64{1}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected upsert error")
	}
	if err := q.Add(ctx, []int64{-1}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected negative id error")
	}
	results, err := q.Search(ctx, []float32{1, 0}, 2)
	if err != nil || results != nil {
		t.Errorf("empty index should not query: %v %v", results, err)
	}
}

func TestQdrantIndex_SizeCountsDistinctIDs(t *testing.T) {
	q := newQdrantIndex(&fakePoints{}, &fakeCollections{}, "c", 2)
	ctx := context.Background()
	if err := q.Add(ctx, []int64{1, 2}, [][]float32{{1, 0}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if err := q.Add(ctx, []int64{2, 3}, [][]float32{{1, 1}, {0, 1}}); err != nil {
		t.Fatal(err)
	}
	if q.Size() != 3 {
		t.Errorf("size: got %d, want 3", q.Size())
	}
}

func TestQdrantIndex_TiesAtCutoffPreferLowestID(t *testing.T) {
	points := &fakePoints{scores: map[uint64]float32{1: 0.5, 2: 0.5, 3: 0.5, 4: 0.5, 5: 0.9, 6: 0.1}}
	q := newQdrantIndex(points, &fakeCollections{}, "c", 2)
	ctx := context.Background()
	ids := []int64{1, 2, 3, 4, 5, 6}
	vecs := make([][]float32, len(ids))
	for i := range vecs {
		vecs[i] = []float32{1, 0}
	}
	if err := q.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}

	results, err := q.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{5, 1}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("result %d: got %d want %d", i, r.ID, want[i])
		}
	}
	if points.requests < 2 {
		t.Errorf("expected the limit to widen past the tie, got %d requests", points.requests)
	}

	points.requests = 0
	results, _ = q.Search(ctx, []float32{1, 0}, 1)
	if len(results) != 1 || results[0].ID != 5 || points.requests != 1 {
		t.Errorf("unambiguous top-1: results=%v requests=%d", results, points.requests)
	}
}
