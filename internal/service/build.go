package service

import (
	"fmt"
	"log/slog"

	"github.com/DreamCats/vecserve/internal/config"
	"github.com/DreamCats/vecserve/internal/embedding"
	"github.com/DreamCats/vecserve/internal/vectordb"
)

// FromConfig builds the encoder, the store backend and the service once at
// process start. The returned close function releases the store.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Service, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	encoder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedding service: %w", err)
	}
	store, err := vectordb.Open(&cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	opts := []vectordb.Option{
		vectordb.WithDefaultLimit(cfg.Search.DefaultLimit),
		vectordb.WithLogger(logger),
	}
	if cfg.Collection.SkipVerify {
		opts = append(opts, vectordb.WithoutVerify())
	}
	index := vectordb.NewIndex(store, encoder.Dimensions(), opts...)

	logger.Info("service ready",
		"backend", cfg.Store.Backend,
		"embedding", encoder.Model(),
		"collection", cfg.Collection.Default,
		"auth", cfg.Server.Token != "",
	)
	svc := New(encoder, index, Options{
		DefaultCollection: cfg.Collection.Default,
		Token:             cfg.Server.Token,
		Logger:            logger,
	})
	return svc, store.Close, nil
}
