package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/vector"
)

const snapshotFormat = "1"

var (
	bucketMeta     = []byte("meta")
	bucketVectors  = []byte("vectors")
	bucketPayloads = []byte("payloads")

	keyFormat  = []byte("format")
	keyModel   = []byte("model")
	keyDims    = []byte("dimensions")
	keyCount   = []byte("count")
	keyBuildID = []byte("build_id")
	keyBuiltAt = []byte("built_at")
)

// Entry is one provider's vector and the payload captured at build time.
type Entry struct {
	Vector  []float32
	Payload models.Payload
}

// Snapshot is a complete built index as written to disk.
type Snapshot struct {
	BuildID    string
	Model      string
	Dimensions int
	BuiltAt    time.Time
	Entries    []Entry
}

// SnapshotStore persists index snapshots in a bbolt file. The file is held open for the
// lifetime of the store; bbolt takes an exclusive lock on it.
type SnapshotStore struct {
	db   *bbolt.DB
	path string
}

// OpenSnapshotStore opens or creates the snapshot file at path.
func OpenSnapshotStore(path string) (*SnapshotStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open index file: %w", err)
	}
	return &SnapshotStore{db: db, path: path}, nil
}

// Path returns the snapshot file path.
func (s *SnapshotStore) Path() string {
	return s.path
}

// Save replaces the stored snapshot in a single transaction. Readers see either the previous
// snapshot or the new one, never a mix.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketVectors, bucketPayloads} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return fmt.Errorf("failed to clear bucket %s: %w", name, err)
				}
			}
		}
		meta, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}
		vectors, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		payloads, err := tx.CreateBucket(bucketPayloads)
		if err != nil {
			return err
		}

		for _, e := range snap.Entries {
			key := idKey(e.Payload.ID)
			if err := vectors.Put(key, vector.EncodeVector(e.Vector)); err != nil {
				return err
			}
			data, err := json.Marshal(e.Payload)
			if err != nil {
				return err
			}
			if err := payloads.Put(key, data); err != nil {
				return err
			}
		}

		fields := map[string]string{
			string(keyFormat):  snapshotFormat,
			string(keyModel):   snap.Model,
			string(keyDims):    strconv.Itoa(snap.Dimensions),
			string(keyCount):   strconv.Itoa(len(snap.Entries)),
			string(keyBuildID): snap.BuildID,
			string(keyBuiltAt): snap.BuiltAt.UTC().Format(time.RFC3339Nano),
		}
		for k, v := range fields {
			if err := meta.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads the stored snapshot. It returns ErrNoSnapshot when nothing was saved and
// ErrCorrupt when the stored data is inconsistent.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if meta == nil {
			return ErrNoSnapshot
		}
		if f := string(meta.Get(keyFormat)); f != snapshotFormat {
			return fmt.Errorf("%w: unknown format %q", ErrCorrupt, f)
		}
		dims, err := strconv.Atoi(string(meta.Get(keyDims)))
		if err != nil || dims <= 0 {
			return fmt.Errorf("%w: bad dimensions", ErrCorrupt)
		}
		count, err := strconv.Atoi(string(meta.Get(keyCount)))
		if err != nil {
			return fmt.Errorf("%w: bad count", ErrCorrupt)
		}
		builtAt, err := time.Parse(time.RFC3339Nano, string(meta.Get(keyBuiltAt)))
		if err != nil {
			return fmt.Errorf("%w: bad build time", ErrCorrupt)
		}
		snap = Snapshot{
			BuildID:    string(meta.Get(keyBuildID)),
			Model:      string(meta.Get(keyModel)),
			Dimensions: dims,
			BuiltAt:    builtAt,
			Entries:    make([]Entry, 0, count),
		}

		vectors := tx.Bucket(bucketVectors)
		payloads := tx.Bucket(bucketPayloads)
		if vectors == nil || payloads == nil {
			return fmt.Errorf("%w: missing buckets", ErrCorrupt)
		}
		err = vectors.ForEach(func(k, v []byte) error {
			if len(v) != dims*4 {
				return fmt.Errorf("%w: vector for id %d has %d bytes", ErrCorrupt, keyID(k), len(v))
			}
			data := payloads.Get(k)
			if data == nil {
				return fmt.Errorf("%w: missing payload for id %d", ErrCorrupt, keyID(k))
			}
			var p models.Payload
			if err := json.Unmarshal(data, &p); err != nil {
				return fmt.Errorf("%w: payload for id %d: %v", ErrCorrupt, keyID(k), err)
			}
			snap.Entries = append(snap.Entries, Entry{Vector: vector.DecodeVector(v), Payload: p})
			return nil
		})
		if err != nil {
			return err
		}
		if len(snap.Entries) != count {
			return fmt.Errorf("%w: expected %d entries, found %d", ErrCorrupt, count, len(snap.Entries))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear removes any stored snapshot.
func (s *SnapshotStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketVectors, bucketPayloads} {
			if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
				return err
			}
		}
		return nil
	})
}

// Close closes the underlying file.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// idKey encodes ids big-endian so bbolt iterates them in ascending order.
func idKey(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func keyID(k []byte) int64 {
	if len(k) != 8 {
		return -1
	}
	return int64(binary.BigEndian.Uint64(k))
}
