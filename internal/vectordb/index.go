package vectordb

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/DreamCats/vecserve/internal/apperr"
)

// DefaultLimit is the number of hits returned when a search asks for none.
const DefaultLimit = 3

// Index provisions collections, stores points and runs similarity search on
// top of a Store backend.
type Index struct {
	store        Store
	dims         int
	verify       bool
	defaultLimit int
	newID        func() string
	logger       *slog.Logger
}

type Option func(*Index)

// WithoutVerify skips the dimension and metric check on existing collections.
func WithoutVerify() Option {
	return func(ix *Index) { ix.verify = false }
}

// WithDefaultLimit sets the hit count used when Search gets limit 0.
func WithDefaultLimit(n int) Option {
	return func(ix *Index) {
		if n > 0 {
			ix.defaultLimit = n
		}
	}
}

// WithIDGenerator replaces the random UUID point id source.
func WithIDGenerator(fn func() string) Option {
	return func(ix *Index) { ix.newID = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) { ix.logger = logger }
}

func NewIndex(store Store, dims int, opts ...Option) *Index {
	ix := &Index{
		store:        store,
		dims:         dims,
		verify:       true,
		defaultLimit: DefaultLimit,
		newID:        uuid.NewString,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Store returns the backend.
func (ix *Index) Store() Store {
	return ix.store
}

// Ensure makes sure the named collection exists with the index dimension
// and cosine distance. Calling it for an existing collection is a no-op.
func (ix *Index) Ensure(ctx context.Context, name string) error {
	if err := validateName("ensure collection", name); err != nil {
		return err
	}
	names, err := ix.store.ListCollections(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindStoreUnavailable, "ensure collection", err, "list collections")
	}
	if !slices.Contains(names, name) {
		err := ix.store.CreateCollection(ctx, CollectionInfo{Name: name, Dimension: ix.dims, Distance: Cosine})
		switch {
		case err == nil:
			ix.logger.Info("collection created", "collection", name, "dimension", ix.dims, "distance", Cosine)
			return nil
		case errors.Is(err, ErrCollectionExists):
			// Lost a creation race; the other writer's collection is checked below.
			ix.logger.Debug("collection created concurrently", "collection", name)
		default:
			return apperr.Wrap(apperr.KindProvision, "ensure collection", err, "create collection")
		}
	}
	if !ix.verify {
		return nil
	}
	info, err := ix.store.GetCollection(ctx, name)
	if err != nil {
		return apperr.Wrap(apperr.KindProvision, "ensure collection", err, "inspect collection")
	}
	if info.Dimension != ix.dims || info.Distance != Cosine {
		return apperr.Newf(apperr.KindProvision, "ensure collection",
			"collection %q has dimension %d and distance %q, want %d and %q",
			name, info.Dimension, info.Distance, ix.dims, Cosine)
	}
	return nil
}

// Upsert stores one point under a fresh random id and returns the id.
// The collection must already exist.
func (ix *Index) Upsert(ctx context.Context, collection string, vector []float32, payload map[string]any) (string, error) {
	if err := validateName("upsert point", collection); err != nil {
		return "", err
	}
	if len(vector) != ix.dims {
		return "", apperr.Newf(apperr.KindWrite, "upsert point", "vector has %d dimensions, want %d", len(vector), ix.dims)
	}
	id := ix.newID()
	if err := ix.store.Upsert(ctx, collection, Point{ID: id, Vector: vector, Payload: payload}); err != nil {
		return "", apperr.Wrap(apperr.KindWrite, "upsert point", err, "write rejected")
	}
	return id, nil
}

// Search returns up to limit hits ordered by descending cosine similarity.
// A limit of 0 means the default; negative limits are rejected.
func (ix *Index) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	if err := validateName("search", collection); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, apperr.Newf(apperr.KindValidation, "search", "limit must not be negative, got %d", limit)
	}
	if limit == 0 {
		limit = ix.defaultLimit
	}
	hits, err := ix.store.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search", err, "search failed")
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Texts projects hits onto their "text" payload, keeping order.
func Texts(hits []Hit) []string {
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text())
	}
	return texts
}

func validateName(op, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.New(apperr.KindValidation, op, "collection name is required")
	}
	if len(name) > 255 || strings.ContainsAny(name, "/\x00") {
		return apperr.Newf(apperr.KindValidation, op, "invalid collection name %q", name)
	}
	return nil
}
