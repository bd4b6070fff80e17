package vector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the subset of pb.PointsClient used by QdrantIndex.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient used by QdrantIndex.
type collectionsAPI interface {
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// QdrantIndex keeps one build's vectors in a dedicated Qdrant collection. The collection is
// created on construction and dropped on Close, so a rebuilt index never shares points with
// the one it replaces.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dimensions  int
	ids         map[int64]struct{}
	mu          sync.RWMutex
}

// NewQdrantIndex dials addr and creates a fresh collection named prefix_<random>.
func NewQdrantIndex(ctx context.Context, addr, prefix string, dimensions int) (*QdrantIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant: dial %s: %w", addr, err)
	}
	q := newQdrantIndex(pb.NewPointsClient(conn), pb.NewCollectionsClient(conn), collectionName(prefix), dimensions)
	q.conn = conn
	if err := q.createCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return q, nil
}

func newQdrantIndex(points pointsAPI, collections collectionsAPI, collection string, dimensions int) *QdrantIndex {
	return &QdrantIndex{
		points:      points,
		collections: collections,
		collection:  collection,
		dimensions:  dimensions,
		ids:         make(map[int64]struct{}),
	}
}

func collectionName(prefix string) string {
	if prefix == "" {
		prefix = "providers"
	}
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (q *QdrantIndex) createCollection(ctx context.Context) error {
	_, err := q.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(q.dimensions),
					Distance: pb.Distance_Dot,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection %s: %w", q.collection, err)
	}
	return nil
}

// Collection returns the name of the backing collection.
func (q *QdrantIndex) Collection() string {
	return q.collection
}

// Type returns the index type identifier.
func (q *QdrantIndex) Type() string {
	return string(IndexTypeQdrant)
}

// Add upserts vectors as points keyed by provider id.
func (q *QdrantIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}
	points := make([]*pb.PointStruct, len(ids))
	for i, id := range ids {
		if id < 0 {
			return fmt.Errorf("qdrant: negative point id %d", id)
		}
		if len(vectors[i]) != q.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), q.dimensions)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Num{Num: uint64(id)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vectors[i]},
				},
			},
		}
	}

	wait := true
	_, err := q.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	q.mu.Lock()
	for _, id := range ids {
		q.ids[id] = struct{}{}
	}
	q.mu.Unlock()
	return nil
}

// Search returns the top-k points by dot product, ties broken by lowest id. Qdrant orders
// equal scores arbitrarily, so the limit is widened until the k-th score no longer ties
// with the last point returned.
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != q.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), q.dimensions)
	}
	size := q.Size()
	if k <= 0 || size == 0 {
		return nil, nil
	}
	limit := k + 1
	for {
		if limit > size {
			limit = size
		}
		results, err := q.search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		sortResults(results)
		if len(results) <= k {
			return results, nil
		}
		if limit >= size || results[len(results)-1].Score != results[k-1].Score {
			return results[:k], nil
		}
		limit *= 2
	}
}

func (q *QdrantIndex) search(ctx context.Context, query []float32, limit int) ([]*VectorResult, error) {
	resp, err := q.points.Search(ctx, &pb.SearchPoints{
		CollectionName: q.collection,
		Vector:         query,
		Limit:          uint64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search: %w", err)
	}
	results := make([]*VectorResult, 0, len(resp.GetResult()))
	for _, r := range resp.GetResult() {
		results = append(results, &VectorResult{
			ID:    int64(r.GetId().GetNum()),
			Score: float64(r.GetScore()),
		})
	}
	return results, nil
}

// Size returns the number of distinct ids added through this index.
func (q *QdrantIndex) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.ids)
}

// Close drops the collection and closes the connection.
func (q *QdrantIndex) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := q.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: q.collection})
	if err != nil {
		err = fmt.Errorf("qdrant: delete collection %s: %w", q.collection, err)
	}
	if q.conn != nil {
		if cerr := q.conn.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
