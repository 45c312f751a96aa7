package vectordb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/DreamCats/vecserve/internal/apperr"
)

var collectionsBucket = []byte("collections")

// BoltStore keeps collections in a bbolt file: one metadata bucket plus a
// bucket of points per collection. Points are scanned in key order.
type BoltStore struct {
	db *bolt.DB
}

type boltPoint struct {
	Vector  []float32      `json:"v"`
	Payload map[string]any `json:"p"`
	Seq     uint64         `json:"s"`
}

func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required for the bolt backend")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(collectionsBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bolt db: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func pointsBucket(collection string) []byte {
	return []byte("points/" + collection)
}

func (s *BoltStore) ListCollections(_ context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(collectionsBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "list collections", err, "read failed")
	}
	return names, nil
}

func (s *BoltStore) GetCollection(_ context.Context, name string) (CollectionInfo, error) {
	var info CollectionInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		info, err = readCollection(tx, "get collection", name)
		return err
	})
	return info, err
}

func readCollection(tx *bolt.Tx, op, name string) (CollectionInfo, error) {
	raw := tx.Bucket(collectionsBucket).Get([]byte(name))
	if raw == nil {
		return CollectionInfo{}, apperr.Newf(apperr.KindCollectionNotFound, op, "collection %q not found", name)
	}
	var info CollectionInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return CollectionInfo{}, apperr.Wrap(apperr.KindStoreUnavailable, op, err, "corrupt collection record")
	}
	return info, nil
}

func (s *BoltStore) CreateCollection(_ context.Context, info CollectionInfo) error {
	if err := checkLocalCollection(info); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(collectionsBucket)
		if meta.Get([]byte(info.Name)) != nil {
			return ErrCollectionExists
		}
		raw, err := json.Marshal(info)
		if err != nil {
			return err
		}
		if err := meta.Put([]byte(info.Name), raw); err != nil {
			return err
		}
		_, err = tx.CreateBucketIfNotExists(pointsBucket(info.Name))
		return err
	})
	if err != nil && !errors.Is(err, ErrCollectionExists) {
		return apperr.Wrap(apperr.KindProvision, "create collection", err, "write failed")
	}
	return err
}

func (s *BoltStore) Upsert(_ context.Context, collection string, points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		info, err := readCollection(tx, "upsert points", collection)
		if err != nil {
			return err
		}
		bucket := tx.Bucket(pointsBucket(collection))
		if bucket == nil {
			return apperr.Newf(apperr.KindCollectionNotFound, "upsert points", "collection %q not found", collection)
		}
		for _, p := range points {
			if len(p.Vector) != info.Dimension {
				return apperr.Newf(apperr.KindWrite, "upsert points", "vector has %d dimensions, collection %q expects %d", len(p.Vector), collection, info.Dimension)
			}
			seq, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			raw, err := json.Marshal(boltPoint{Vector: p.Vector, Payload: p.Payload, Seq: seq})
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(p.ID), raw); err != nil {
				return err
			}
		}
		return nil
	})
	return apperr.Wrap(apperr.KindWrite, "upsert points", err, "write failed")
}

func (s *BoltStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	queryVec, queryNorm := toFloat64Vector(vector)
	var hits []Hit
	var seqs []uint64
	err := s.db.View(func(tx *bolt.Tx) error {
		if _, err := readCollection(tx, "search points", collection); err != nil {
			return err
		}
		bucket := tx.Bucket(pointsBucket(collection))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var p boltPoint
			if err := json.Unmarshal(v, &p); err != nil {
				return nil
			}
			hits = append(hits, Hit{
				ID:      string(k),
				Score:   cosineSimilarity(queryVec, p.Vector, queryNorm),
				Payload: p.Payload,
			})
			seqs = append(seqs, p.Seq)
			return nil
		})
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search points", err, "read failed")
	}
	return rankHits(orderBySeq(hits, seqs), limit), nil
}

// orderBySeq restores insertion order so ties rank like the sqlite backend.
func orderBySeq(hits []Hit, seqs []uint64) []Hit {
	idx := make([]int, len(hits))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return seqs[idx[a]] < seqs[idx[b]] })
	out := make([]Hit, len(hits))
	for i, j := range idx {
		out[i] = hits[j]
	}
	return out
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
