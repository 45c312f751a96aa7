package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DreamCats/vecserve/internal/apperr"
)

// QdrantStore talks to a Qdrant server over its REST API.
type QdrantStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// statusError is a non-2xx reply from Qdrant.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant status %d: %s", e.Status, e.Body)
}

func NewQdrantStore(baseURL, apiKey string, timeout time.Duration) *QdrantStore {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &QdrantStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	data, err := s.doRequest(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return nil, classify("list collections", err, apperr.KindStoreUnavailable)
	}
	var parsed struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "list collections", err, "malformed qdrant response")
	}
	names := make([]string, 0, len(parsed.Result.Collections))
	for _, c := range parsed.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

func (s *QdrantStore) GetCollection(ctx context.Context, name string) (CollectionInfo, error) {
	data, err := s.doRequest(ctx, http.MethodGet, collectionPath(name), nil)
	if err != nil {
		return CollectionInfo{}, classify("get collection", err, apperr.KindProvision)
	}
	var parsed struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return CollectionInfo{}, apperr.Wrap(apperr.KindStoreUnavailable, "get collection", err, "malformed qdrant response")
	}
	info := CollectionInfo{Name: name}
	// Named multi-vector collections decode to a zero size and fail verification.
	var params struct {
		Size     int      `json:"size"`
		Distance Distance `json:"distance"`
	}
	if err := json.Unmarshal(parsed.Result.Config.Params.Vectors, &params); err == nil {
		info.Dimension = params.Size
		info.Distance = params.Distance
	}
	return info, nil
}

func (s *QdrantStore) CreateCollection(ctx context.Context, info CollectionInfo) error {
	distance := info.Distance
	if distance == "" {
		distance = Cosine
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     info.Dimension,
			"distance": distance,
		},
	}
	_, err := s.doRequest(ctx, http.MethodPut, collectionPath(info.Name), req)
	if err == nil {
		return nil
	}
	var se *statusError
	if errors.As(err, &se) && (se.Status == http.StatusConflict || strings.Contains(se.Body, "already exists")) {
		return ErrCollectionExists
	}
	return classify("create collection", err, apperr.KindProvision)
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, 0, len(points))
	for _, p := range points {
		payload = append(payload, map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		})
	}
	req := map[string]any{"points": payload}
	_, err := s.doRequest(ctx, http.MethodPut, collectionPath(collection)+"/points?wait=true", req)
	if err != nil {
		return classify("upsert points", err, apperr.KindWrite)
	}
	return nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	data, err := s.doRequest(ctx, http.MethodPost, collectionPath(collection)+"/points/search", req)
	if err != nil {
		return nil, classify("search points", err, apperr.KindStoreUnavailable)
	}
	var parsed struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search points", err, "malformed qdrant response")
	}
	hits := make([]Hit, 0, len(parsed.Result))
	for _, item := range parsed.Result {
		hits = append(hits, Hit{
			ID:      fmt.Sprintf("%v", item.ID),
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	return hits, nil
}

func (s *QdrantStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

// classify maps a Qdrant failure onto the error taxonomy. Rejections that
// are neither "not found" nor a gateway problem take the fallback kind.
func classify(op string, err error, fallback apperr.Kind) error {
	var se *statusError
	if !errors.As(err, &se) {
		return apperr.Wrap(apperr.KindStoreUnavailable, op, err, "qdrant unreachable")
	}
	switch se.Status {
	case http.StatusNotFound:
		return apperr.Wrap(apperr.KindCollectionNotFound, op, err, "collection not found")
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperr.Wrap(apperr.KindStoreUnavailable, op, err, "qdrant unavailable")
	}
	return apperr.Wrap(fallback, op, err, "qdrant rejected request")
}

func (s *QdrantStore) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		buf = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return data, nil
}
