package vectordb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/vecserve/internal/apperr"
)

func unit(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "vectors.db"))
	require.NoError(t, err)
	boltStore, err := OpenBolt(filepath.Join(t.TempDir(), "vectors.bolt"))
	require.NoError(t, err)
	qdrant := newFakeQdrant(t, "")

	stores := map[string]Store{
		"sqlite": sqliteStore,
		"bolt":   boltStore,
		"qdrant": NewQdrantStore(qdrant.URL, "", 0),
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func TestStoreConformance(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			names, err := store.ListCollections(ctx)
			require.NoError(t, err)
			assert.Empty(t, names)

			_, err = store.GetCollection(ctx, "docs")
			assert.ErrorIs(t, err, apperr.ErrCollectionNotFound)

			_, err = store.Search(ctx, "docs", unit(4, 0), 3)
			assert.ErrorIs(t, err, apperr.ErrCollectionNotFound)

			info := CollectionInfo{Name: "docs", Dimension: 4, Distance: Cosine}
			require.NoError(t, store.CreateCollection(ctx, info))
			assert.ErrorIs(t, store.CreateCollection(ctx, info), ErrCollectionExists)

			got, err := store.GetCollection(ctx, "docs")
			require.NoError(t, err)
			assert.Equal(t, 4, got.Dimension)
			assert.Equal(t, Cosine, got.Distance)

			hits, err := store.Search(ctx, "docs", unit(4, 0), 3)
			require.NoError(t, err)
			assert.Empty(t, hits)

			require.NoError(t, store.Upsert(ctx, "docs",
				Point{ID: "a", Vector: []float32{1, 0, 0, 0}, Payload: map[string]any{"text": "east"}},
				Point{ID: "b", Vector: []float32{0, 1, 0, 0}, Payload: map[string]any{"text": "north"}},
				Point{ID: "c", Vector: []float32{0.9, 0.1, 0, 0}, Payload: map[string]any{"text": "mostly east"}},
			))

			hits, err = store.Search(ctx, "docs", unit(4, 0), 2)
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, []string{"east", "mostly east"}, Texts(hits))
			assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
			assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)

			names, err = store.ListCollections(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"docs"}, names)
		})
	}
}

func TestLocalStoresRejectWrongDimension(t *testing.T) {
	for name, store := range backends(t) {
		if name == "qdrant" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.CreateCollection(ctx, CollectionInfo{Name: "docs", Dimension: 4, Distance: Cosine}))
			err := store.Upsert(ctx, "docs", Point{ID: "x", Vector: []float32{1, 2}})
			assert.ErrorIs(t, err, apperr.ErrWrite)

			err = store.CreateCollection(ctx, CollectionInfo{Name: "dots", Dimension: 4, Distance: Dot})
			assert.ErrorIs(t, err, apperr.ErrProvision)
		})
	}
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateCollection(ctx, CollectionInfo{Name: "docs", Dimension: 2, Distance: Cosine}))
	require.NoError(t, store.Upsert(ctx, "docs", Point{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{"text": "kept"}}))
	require.NoError(t, store.Close())

	store, err = OpenSQLite(path)
	require.NoError(t, err)
	defer store.Close()
	hits, err := store.Search(ctx, "docs", []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, Texts(hits))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, norm := toFloat64Vector(tt.a)
			assert.InDelta(t, tt.want, cosineSimilarity(q, tt.b, norm), 1e-6)
		})
	}
}
