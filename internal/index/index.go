// Package index owns the provider vector index: building it from provider records,
// answering similarity queries, and persisting snapshots between restarts.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/embedding"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/vector"
)

var (
	// ErrUnavailable means a build could not run: no encoder, no records, or the encoder failed.
	ErrUnavailable = errors.New("vector index unavailable")
	// ErrNoSnapshot means persistence is disabled or nothing has been saved yet.
	ErrNoSnapshot = errors.New("no persisted index")
	// ErrCorrupt means the persisted index could not be decoded.
	ErrCorrupt = errors.New("persisted index is corrupt")
	// ErrIncompatible means the persisted index was built with a different encoder.
	ErrIncompatible = errors.New("persisted index is incompatible with the current encoder")
	// ErrBuildInProgress is returned by EnsureBuilt and Rebuild when another build holds the lock.
	ErrBuildInProgress = errors.New("index build already in progress")
)

// State is the lifecycle state of the index.
type State int

const (
	StateAbsent State = iota
	StateBuilding
	StateBuilt
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateBuilt:
		return "built"
	default:
		return "absent"
	}
}

const encodeBatchSize = 32

// Options configure an Index.
type Options struct {
	Backend      vector.Options
	Workers      int
	BuildTimeout time.Duration
	QueryTimeout time.Duration
	// OnProgress, if set, is called after each encoded batch with the number of records
	// encoded so far. Calls may come from several goroutines.
	OnProgress func(done, total int)
}

// Info describes the active index.
type Info struct {
	State   string    `json:"state"`
	Size    int       `json:"size"`
	BuildID string    `json:"build_id,omitempty"`
	BuiltAt time.Time `json:"built_at,omitempty"`
	Model   string    `json:"model,omitempty"`
	Backend string    `json:"backend,omitempty"`
}

// built is an immutable, fully populated index. It is only ever replaced as a whole.
// refs counts one reference held by the Index while active plus one per running query;
// the backend is closed when it drops to zero.
type built struct {
	backend  vector.VectorIndex
	payloads map[int64]models.Payload
	snapshot *Snapshot
	refs     atomic.Int64
}

func newBuilt(backend vector.VectorIndex, payloads map[int64]models.Payload, snap *Snapshot) *built {
	b := &built{backend: backend, payloads: payloads, snapshot: snap}
	b.refs.Store(1)
	return b
}

// acquire takes a reader reference. It fails once the index has been retired and drained.
func (b *built) acquire() bool {
	for {
		n := b.refs.Load()
		if n <= 0 {
			return false
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference and closes the backend when it was the last one.
func (b *built) release() error {
	if b.refs.Add(-1) != 0 {
		return nil
	}
	return b.backend.Close()
}

// Index is the process-wide handle to the active vector index. Queries read the active index
// without locking; builds and loads are serialised and swap it atomically on success, so a
// failed build leaves the previous index serving.
type Index struct {
	embedder embedding.Embedder
	snaps    *SnapshotStore
	opts     Options
	logger   *zap.Logger

	current  atomic.Pointer[built]
	buildMu  sync.Mutex
	building atomic.Bool

	persistMu  sync.Mutex
	persistWG  sync.WaitGroup
	generation atomic.Uint64
}

// New returns an absent index. embedder may be nil, in which case every build fails with
// ErrUnavailable and queries return nothing. snaps may be nil to disable persistence.
func New(embedder embedding.Embedder, snaps *SnapshotStore, opts Options, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Index{embedder: embedder, snaps: snaps, opts: opts, logger: logger}
}

// State reports Building while a build or load runs, otherwise Built or Absent.
func (x *Index) State() State {
	if x.building.Load() {
		return StateBuilding
	}
	if x.current.Load() != nil {
		return StateBuilt
	}
	return StateAbsent
}

// Available reports whether an encoder is configured. Without one the index can never be
// built or loaded.
func (x *Index) Available() bool {
	return x.embedder != nil
}

// Ready reports whether an index is available for queries.
func (x *Index) Ready() bool {
	return x.current.Load() != nil
}

// Info returns a description of the active index.
func (x *Index) Info() Info {
	info := Info{State: x.State().String()}
	if b := x.acquire(); b != nil {
		defer x.retire(b)
		info.Size = b.backend.Size()
		info.BuildID = b.snapshot.BuildID
		info.BuiltAt = b.snapshot.BuiltAt
		info.Model = b.snapshot.Model
		info.Backend = b.backend.Type()
	}
	return info
}

// Build encodes every record and atomically replaces the active index.
func (x *Index) Build(ctx context.Context, records []*models.Provider) error {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	return x.build(ctx, records)
}

// Load restores the persisted snapshot and makes it active.
func (x *Index) Load(ctx context.Context) error {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	return x.load(ctx)
}

// EnsureBuilt makes the index available if it is absent: it tries the persisted snapshot
// first and builds from source on any load failure. It never waits for a build already in
// flight and returns ErrBuildInProgress instead.
func (x *Index) EnsureBuilt(ctx context.Context, source func(context.Context) ([]*models.Provider, error)) error {
	if x.Ready() {
		return nil
	}
	if !x.Available() {
		return fmt.Errorf("%w: no encoder configured", ErrUnavailable)
	}
	if !x.buildMu.TryLock() {
		return ErrBuildInProgress
	}
	defer x.buildMu.Unlock()
	if x.Ready() {
		return nil
	}

	err := x.load(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNoSnapshot) {
		x.logger.Warn("Persisted index not usable, rebuilding", zap.Error(err))
	}

	records, err := source(ctx)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	return x.build(ctx, records)
}

// Rebuild builds from source and replaces the active index whatever its state. Like
// EnsureBuilt it does not queue behind a running build or load.
func (x *Index) Rebuild(ctx context.Context, source func(context.Context) ([]*models.Provider, error)) error {
	if !x.Available() {
		return fmt.Errorf("%w: no encoder configured", ErrUnavailable)
	}
	if !x.buildMu.TryLock() {
		return ErrBuildInProgress
	}
	defer x.buildMu.Unlock()
	records, err := source(ctx)
	if err != nil {
		return fmt.Errorf("load providers: %w", err)
	}
	return x.build(ctx, records)
}

func (x *Index) build(ctx context.Context, records []*models.Provider) error {
	if x.embedder == nil {
		return fmt.Errorf("%w: no encoder configured", ErrUnavailable)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no provider records", ErrUnavailable)
	}

	x.building.Store(true)
	defer x.building.Store(false)

	if x.opts.BuildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opts.BuildTimeout)
		defer cancel()
	}

	start := time.Now()
	vectors, err := x.encode(ctx, records)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	snap := &Snapshot{
		BuildID:    uuid.NewString(),
		Model:      x.embedder.Model(),
		Dimensions: x.embedder.Dimensions(),
		BuiltAt:    time.Now().UTC(),
		Entries:    make([]Entry, len(records)),
	}
	for i, r := range records {
		snap.Entries[i] = Entry{Vector: vectors[i], Payload: r.Payload()}
	}

	b, err := x.materialize(ctx, snap)
	if err != nil {
		return err
	}
	x.publish(b)
	x.logger.Info("Vector index built",
		zap.String("build_id", snap.BuildID),
		zap.Int("providers", len(records)),
		zap.String("backend", b.backend.Type()),
		zap.Duration("duration", time.Since(start)))

	x.persist(snap)
	return nil
}

// encode runs EmbedBatch over fixed-size batches on a bounded worker pool.
func (x *Index) encode(ctx context.Context, records []*models.Provider) ([][]float32, error) {
	pool, err := ants.NewPool(x.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	dims := x.embedder.Dimensions()
	vectors := make([][]float32, len(records))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
		done     atomic.Int64
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
	}

	for start := 0; start < len(records); start += encodeBatchSize {
		end := start + encodeBatchSize
		if end > len(records) {
			end = len(records)
		}
		texts := make([]string, end-start)
		for i, r := range records[start:end] {
			texts[i] = r.Profile()
		}
		offset := start
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				fail(err)
				return
			}
			vecs, err := x.embedder.EmbedBatch(ctx, texts)
			if err != nil {
				fail(err)
				return
			}
			if len(vecs) != len(texts) {
				fail(fmt.Errorf("encoder returned %d vectors for %d texts", len(vecs), len(texts)))
				return
			}
			for i, v := range vecs {
				if len(v) != dims {
					fail(fmt.Errorf("%w: got %d, want %d", embedding.ErrDimensionMismatch, len(v), dims))
					return
				}
				vectors[offset+i] = v
			}
			if x.opts.OnProgress != nil {
				x.opts.OnProgress(int(done.Add(int64(len(vecs)))), len(records))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

func (x *Index) load(ctx context.Context) error {
	if x.snaps == nil {
		return ErrNoSnapshot
	}
	if x.embedder == nil {
		return fmt.Errorf("%w: no encoder configured", ErrUnavailable)
	}
	snap, err := x.snaps.Load()
	if err != nil {
		return err
	}
	if snap.Model != x.embedder.Model() || snap.Dimensions != x.embedder.Dimensions() {
		return fmt.Errorf("%w: snapshot %s/%d, encoder %s/%d", ErrIncompatible,
			snap.Model, snap.Dimensions, x.embedder.Model(), x.embedder.Dimensions())
	}
	if len(snap.Entries) == 0 {
		return fmt.Errorf("%w: snapshot has no entries", ErrCorrupt)
	}

	x.building.Store(true)
	defer x.building.Store(false)

	b, err := x.materialize(ctx, snap)
	if err != nil {
		return err
	}
	x.publish(b)
	x.logger.Info("Vector index loaded",
		zap.String("build_id", snap.BuildID),
		zap.Int("providers", len(snap.Entries)),
		zap.String("path", x.snaps.Path()))
	return nil
}

// materialize fills a fresh backend from snap. The backend is closed on failure.
func (x *Index) materialize(ctx context.Context, snap *Snapshot) (*built, error) {
	opts := x.opts.Backend
	opts.Dimensions = snap.Dimensions
	backend, err := vector.NewVectorIndex(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("create vector backend: %w", err)
	}
	ids := make([]int64, len(snap.Entries))
	vecs := make([][]float32, len(snap.Entries))
	payloads := make(map[int64]models.Payload, len(snap.Entries))
	for i, e := range snap.Entries {
		ids[i] = e.Payload.ID
		vecs[i] = e.Vector
		payloads[e.Payload.ID] = e.Payload
	}
	if err := backend.Add(ctx, ids, vecs); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("populate vector backend: %w", err)
	}
	return newBuilt(backend, payloads, snap), nil
}

// publish makes b active. The previous index keeps serving queries that already hold it and
// its backend is closed once the last of them finishes.
func (x *Index) publish(b *built) {
	if old := x.current.Swap(b); old != nil {
		x.retire(old)
	}
}

func (x *Index) retire(b *built) {
	if err := b.release(); err != nil {
		x.logger.Warn("Failed to release vector backend", zap.Error(err))
	}
}

// acquire returns the active index with a reader reference held, or nil when absent.
func (x *Index) acquire() *built {
	for {
		b := x.current.Load()
		if b == nil || b.acquire() {
			return b
		}
	}
}

// persist writes snap in the background. Writes are serialised; a write that has been
// overtaken by a newer build is skipped.
func (x *Index) persist(snap *Snapshot) {
	if x.snaps == nil {
		return
	}
	gen := x.generation.Add(1)
	x.persistWG.Add(1)
	go func() {
		defer x.persistWG.Done()
		x.persistMu.Lock()
		defer x.persistMu.Unlock()
		if x.generation.Load() != gen {
			return
		}
		if err := x.snaps.Save(snap); err != nil {
			x.logger.Warn("Failed to persist vector index", zap.String("build_id", snap.BuildID), zap.Error(err))
			return
		}
		x.logger.Debug("Vector index persisted", zap.String("build_id", snap.BuildID))
	}()
}

// Flush blocks until pending persistence writes have finished.
func (x *Index) Flush() {
	x.persistWG.Wait()
}

// Query returns up to k entries most similar to text, best first. It never fails: when the
// index is absent or the encoder or backend errors, it logs and returns nil.
func (x *Index) Query(ctx context.Context, text string, k int) []models.Hit {
	if k <= 0 || x.embedder == nil {
		return nil
	}
	b := x.acquire()
	if b == nil {
		return nil
	}
	defer x.retire(b)
	if x.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.opts.QueryTimeout)
		defer cancel()
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		x.logger.Warn("Query encoding failed", zap.Error(err))
		return nil
	}
	results, err := b.backend.Search(ctx, vec, k)
	if err != nil {
		x.logger.Warn("Vector search failed", zap.Error(err))
		return nil
	}
	hits := make([]models.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, models.Hit{ID: r.ID, Score: r.Score, Payload: b.payloads[r.ID]})
	}
	return hits
}

// Close waits for pending writes and releases the backend and snapshot file.
func (x *Index) Close() error {
	x.buildMu.Lock()
	defer x.buildMu.Unlock()
	x.Flush()
	var err error
	if b := x.current.Swap(nil); b != nil {
		err = b.release()
	}
	if x.snaps != nil {
		if cerr := x.snaps.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
