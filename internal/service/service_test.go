package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/config"
	"github.com/DreamCats/vecserve/internal/embedding"
	"github.com/DreamCats/vecserve/internal/vectordb"
)

func newTestService(t *testing.T, backend, token string) *Service {
	t.Helper()
	encoder, err := embedding.NewService(&config.EmbeddingConfig{Provider: "hash", Dimensions: config.EmbeddingDimension})
	require.NoError(t, err)

	var store vectordb.Store
	switch backend {
	case "bolt":
		store, err = vectordb.OpenBolt(filepath.Join(t.TempDir(), "vectors.bolt"))
	default:
		store, err = vectordb.OpenSQLite(filepath.Join(t.TempDir(), "vectors.db"))
	}
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(encoder, vectordb.NewIndex(store, config.EmbeddingDimension), Options{
		DefaultCollection: "default_agent",
		Token:             token,
	})
}

func TestEmbedIsDeterministic(t *testing.T) {
	svc := newTestService(t, "sqlite", "")
	ctx := context.Background()

	a, err := svc.Embed(ctx, "the sky is blue")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "the sky is blue")
	require.NoError(t, err)

	assert.Len(t, a, 384)
	assert.Equal(t, a, b)
}

func TestIngestThenQueryRoundTrip(t *testing.T) {
	for _, backend := range []string{"sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			svc := newTestService(t, backend, "")
			ctx := context.Background()

			res, err := svc.Ingest(ctx, "the sky is blue", "demo")
			require.NoError(t, err)
			assert.Equal(t, "ok", res.Status)
			assert.Equal(t, "demo", res.Collection)
			assert.NotEmpty(t, res.ID)

			_, err = svc.Ingest(ctx, "invoices are due on the first of the month", "demo")
			require.NoError(t, err)

			texts, err := svc.Query(ctx, "the sky is blue", "demo", 1)
			require.NoError(t, err)
			assert.Equal(t, []string{"the sky is blue"}, texts)
		})
	}
}

func TestQueryFreshCollectionIsEmpty(t *testing.T) {
	svc := newTestService(t, "sqlite", "")
	ctx := context.Background()
	require.NoError(t, svc.index.Ensure(ctx, "fresh"))

	texts, err := svc.Query(ctx, "anything", "fresh", 3)
	require.NoError(t, err)
	assert.Empty(t, texts)
}

func TestQueryUnknownCollection(t *testing.T) {
	svc := newTestService(t, "bolt", "")
	_, err := svc.Query(context.Background(), "anything", "never-created", 3)
	assert.ErrorIs(t, err, apperr.ErrCollectionNotFound)
}

func TestIngestTwiceKeepsBothPoints(t *testing.T) {
	svc := newTestService(t, "sqlite", "")
	ctx := context.Background()

	first, err := svc.Ingest(ctx, "duplicate text", "new-collection")
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, "duplicate text", "new-collection")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	texts, err := svc.Query(ctx, "duplicate text", "new-collection", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"duplicate text", "duplicate text"}, texts)
}

func TestQueryLimitLargerThanCollection(t *testing.T) {
	svc := newTestService(t, "bolt", "")
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "cats purr on warm laps", "pets")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "quarterly revenue grew", "pets")
	require.NoError(t, err)

	texts, err := svc.Query(ctx, "my cats purr", "pets", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"cats purr on warm laps", "quarterly revenue grew"}, texts)
}

func TestDefaultCollection(t *testing.T) {
	svc := newTestService(t, "sqlite", "")
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "stored without a collection", "")
	require.NoError(t, err)
	assert.Equal(t, "default_agent", res.Collection)

	texts, err := svc.Query(ctx, "stored without a collection", "  ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored without a collection"}, texts)
}

func TestValidation(t *testing.T) {
	svc := newTestService(t, "sqlite", "")
	ctx := context.Background()

	_, err := svc.Embed(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Ingest(ctx, "   ", "demo")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Query(ctx, "", "demo", 1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.Query(ctx, "text", "demo", -2)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAuthorize(t *testing.T) {
	open := newTestService(t, "sqlite", "")
	assert.False(t, open.AuthEnabled())
	assert.NoError(t, open.Authorize(""))
	assert.NoError(t, open.Authorize("anything"))

	gated := newTestService(t, "sqlite", "s3cret")
	assert.True(t, gated.AuthEnabled())
	assert.NoError(t, gated.Authorize("s3cret"))
	for _, token := range []string{"", "s3cre", "s3cret2", "S3CRET"} {
		assert.ErrorIs(t, gated.Authorize(token), apperr.ErrAuth, "token %q", token)
	}
}
