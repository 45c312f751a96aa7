// Package service implements the embed / ingest / query operations shared by
// the HTTP, MCP and CLI boundaries.
package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/vectordb"
)

// Encoder turns text into a fixed-length vector.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// IngestResult acknowledges a stored text.
type IngestResult struct {
	Status     string `json:"status"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Options configures a Service.
type Options struct {
	// DefaultCollection is used when a request names none.
	DefaultCollection string
	// Token enables the bearer gate when non-empty.
	Token  string
	Logger *slog.Logger
}

type Service struct {
	encoder           Encoder
	index             *vectordb.Index
	defaultCollection string
	token             []byte
	logger            *slog.Logger
}

func New(encoder Encoder, index *vectordb.Index, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		encoder:           encoder,
		index:             index,
		defaultCollection: opts.DefaultCollection,
		logger:            logger,
	}
	if opts.Token != "" {
		s.token = []byte(opts.Token)
	}
	return s
}

// AuthEnabled reports whether a service token is configured.
func (s *Service) AuthEnabled() bool {
	return len(s.token) > 0
}

// Authorize checks a presented credential against the configured token.
// With no token configured every caller is allowed.
func (s *Service) Authorize(token string) error {
	if !s.AuthEnabled() {
		return nil
	}
	if token == "" {
		return apperr.New(apperr.KindAuth, "authorize", "missing credentials")
	}
	if subtle.ConstantTimeCompare([]byte(token), s.token) != 1 {
		return apperr.New(apperr.KindAuth, "authorize", "invalid credentials")
	}
	return nil
}

// Embed encodes text into a vector.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := requireText("embed", text); err != nil {
		return nil, err
	}
	return s.encoder.Encode(ctx, text)
}

// Ingest encodes text and stores it as a new point, creating the collection
// on first use.
func (s *Service) Ingest(ctx context.Context, text, collection string) (IngestResult, error) {
	if err := requireText("ingest", text); err != nil {
		return IngestResult{}, err
	}
	collection = s.collection(collection)

	vector, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return IngestResult{}, err
	}
	if err := s.index.Ensure(ctx, collection); err != nil {
		return IngestResult{}, err
	}
	id, err := s.index.Upsert(ctx, collection, vector, map[string]any{vectordb.PayloadText: text})
	if err != nil {
		return IngestResult{}, err
	}
	s.logger.Debug("text ingested", "collection", collection, "id", id)
	return IngestResult{Status: "ok", Collection: collection, ID: id}, nil
}

// Query returns the texts of the stored points most similar to text, most
// similar first. A limit of 0 uses the default.
func (s *Service) Query(ctx context.Context, text, collection string, limit int) ([]string, error) {
	if err := requireText("query", text); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, apperr.Newf(apperr.KindValidation, "query", "limit must not be negative, got %d", limit)
	}
	collection = s.collection(collection)

	vector, err := s.encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(ctx, collection, vector, limit)
	if err != nil {
		return nil, err
	}
	return vectordb.Texts(hits), nil
}

// DefaultCollection returns the collection used when a request names none.
func (s *Service) DefaultCollection() string {
	return s.defaultCollection
}

func (s *Service) collection(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return s.defaultCollection
}

func requireText(op, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.New(apperr.KindValidation, op, "text is required")
	}
	return nil
}
