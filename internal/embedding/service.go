package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/config"
)

// Service turns text into fixed-size vectors. It is built once at start
// and shared by every request.
type Service struct {
	client Client
	dims   int
	cache  *VectorCache
}

// Client is the interface for embedding backends
type Client interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// NewService creates a new embedding service
func NewService(cfg *config.EmbeddingConfig) (*Service, error) {
	var client Client
	var err error

	switch cfg.Provider {
	case "hash":
		client, err = NewHashClient(cfg.Dimensions)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	case "ollama":
		client, err = NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}

	return NewServiceWithClient(client, cfg.Dimensions, cfg.CacheSize, cfg.CacheTTL), nil
}

// NewServiceWithClient wraps an existing client. cacheSize 0 disables caching.
func NewServiceWithClient(client Client, dims, cacheSize int, cacheTTL time.Duration) *Service {
	svc := &Service{client: client, dims: dims}
	if cacheSize > 0 {
		svc.cache = NewVectorCache(cacheSize, cacheTTL)
	}
	return svc
}

// Encode generates the embedding for a single text
func (s *Service) Encode(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.New(apperr.KindEncoding, "encode", "cannot embed empty text")
	}

	if s.cache != nil {
		if vec, ok := s.cache.Get(text); ok {
			return vec, nil
		}
	}

	vec, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncoding, "encode", err, s.client.Name()+" failed")
	}
	if len(vec) != s.dims {
		return nil, apperr.Newf(apperr.KindEncoding, "encode",
			"%s returned %d dimensions, want %d", s.client.Name(), len(vec), s.dims)
	}

	if s.cache != nil {
		s.cache.Put(text, vec)
	}
	return vec, nil
}

// Dimensions returns the dimension of the embeddings
func (s *Service) Dimensions() int {
	return s.dims
}

// Model returns the backend name, e.g. "hash-384" or "ollama/all-minilm".
func (s *Service) Model() string {
	return s.client.Name()
}
