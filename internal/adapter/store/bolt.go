package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/arturoeanton/go-codebase-assistant/internal/domain"
	"github.com/arturoeanton/go-codebase-assistant/internal/port"
	"go.etcd.io/bbolt"
)

const boltFile = "index.db"

var (
	bucketChunks  = []byte("chunks")
	bucketVectors = []byte("vectors")
	bucketMeta    = []byte("meta")

	keyStatus = []byte("status")
)

// BoltStore persists the vector index as a bbolt database inside a dedicated
// directory. The directory is owned by the store: Rebuild and Drop delete it.
type BoltStore struct {
	dir string
	mu  sync.Mutex
}

// NewBoltStore creates a store rooted at dir.
func NewBoltStore(dir string) *BoltStore {
	return &BoltStore{dir: dir}
}

// Dir returns the index directory.
func (s *BoltStore) Dir() string {
	return s.dir
}

// Rebuild deletes the index directory and writes chunks as the new index.
func (s *BoltStore) Rebuild(ctx context.Context, chunks []domain.EmbeddedChunk, status domain.IndexStatus) (port.VectorIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return nil, fmt.Errorf("remove index dir: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(s.dir, boltFile), 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		cb, err := tx.CreateBucket(bucketChunks)
		if err != nil {
			return err
		}
		vb, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return err
		}
		mb, err := tx.CreateBucket(bucketMeta)
		if err != nil {
			return err
		}

		for i, c := range chunks {
			if i%256 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			data, err := json.Marshal(c.Chunk)
			if err != nil {
				return err
			}
			key := itob(uint64(i))
			if err := cb.Put(key, data); err != nil {
				return err
			}
			if err := vb.Put(key, encodeVector(c.Vector)); err != nil {
				return err
			}
		}

		data, err := json.Marshal(status)
		if err != nil {
			return err
		}
		return mb.Put(keyStatus, data)
	})
	if err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	slog.Info("vector index written", "dir", s.dir, "chunks", len(chunks))
	return NewFlatIndex(chunks), nil
}

// Load reads the persisted index into memory.
func (s *BoltStore) Load(ctx context.Context) (port.VectorIndex, domain.IndexStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, boltFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, domain.IndexStatus{}, port.ErrNotIndexed
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, domain.IndexStatus{}, fmt.Errorf("open index: %w", err)
	}
	defer db.Close()

	var (
		chunks []domain.EmbeddedChunk
		status domain.IndexStatus
	)
	err = db.View(func(tx *bbolt.Tx) error {
		cb, vb, mb := tx.Bucket(bucketChunks), tx.Bucket(bucketVectors), tx.Bucket(bucketMeta)
		if cb == nil || vb == nil || mb == nil {
			return port.ErrNotIndexed
		}
		if err := json.Unmarshal(mb.Get(keyStatus), &status); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}

		return cb.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var ec domain.EmbeddedChunk
			if err := json.Unmarshal(v, &ec.Chunk); err != nil {
				return fmt.Errorf("decode chunk: %w", err)
			}
			raw := vb.Get(k)
			if raw == nil {
				return fmt.Errorf("chunk %d has no vector", binary.BigEndian.Uint64(k))
			}
			ec.Vector = decodeVector(raw)
			chunks = append(chunks, ec)
			return nil
		})
	})
	if err != nil {
		return nil, domain.IndexStatus{}, err
	}

	return NewFlatIndex(chunks), status, nil
}

// Drop removes the index directory.
func (s *BoltStore) Drop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("remove index dir: %w", err)
	}
	return nil
}

// itob encodes keys big-endian so bbolt iterates them in insertion order.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
