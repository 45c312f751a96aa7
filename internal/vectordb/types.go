package vectordb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Distance names a similarity metric using Qdrant's spelling.
type Distance string

const (
	Cosine Distance = "Cosine"
	Dot    Distance = "Dot"
	Euclid Distance = "Euclid"
)

// PayloadText is the payload key holding the original text of a point.
const PayloadText = "text"

// ErrCollectionExists is returned by CreateCollection when the collection
// is already present. Provisioning treats it as success.
var ErrCollectionExists = errors.New("collection already exists")

// CollectionInfo describes a collection's vector configuration.
type CollectionInfo struct {
	Name      string   `json:"name"`
	Dimension int      `json:"dimension"`
	Distance  Distance `json:"distance"`
}

// Point is a stored vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Hit is a single search result.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Text returns the "text" payload field, or "" when it is absent.
func (h Hit) Text() string {
	return payloadString(h.Payload, PayloadText)
}

// Store is a vector database backend. Errors carry apperr kinds:
// missing collections are KindCollectionNotFound, transport failures are
// KindStoreUnavailable.
type Store interface {
	ListCollections(ctx context.Context) ([]string, error)
	GetCollection(ctx context.Context, name string) (CollectionInfo, error)
	CreateCollection(ctx context.Context, info CollectionInfo) error
	Upsert(ctx context.Context, collection string, points ...Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error)
	Close() error
}

func payloadString(payload map[string]any, key string) string {
	if payload == nil {
		return ""
	}
	if val, ok := payload[key]; ok {
		switch v := val.(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
	}
	return ""
}

func toFloat64Vector(vec []float32) ([]float64, float64) {
	out := make([]float64, len(vec))
	var sum float64
	for i, val := range vec {
		v := float64(val)
		out[i] = v
		sum += v * v
	}
	return out, math.Sqrt(sum)
}

func cosineSimilarity(query []float64, vec []float32, queryNorm float64) float64 {
	if len(query) == 0 || len(vec) == 0 || queryNorm == 0 {
		return 0
	}
	if len(query) != len(vec) {
		return 0
	}
	var dot float64
	var norm float64
	for i, val := range vec {
		v := float64(val)
		dot += query[i] * v
		norm += v * v
	}
	if norm == 0 {
		return 0
	}
	return dot / (queryNorm * math.Sqrt(norm))
}

// rankHits orders hits by descending score and keeps the first limit.
// Ties keep insertion order.
func rankHits(hits []Hit, limit int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
