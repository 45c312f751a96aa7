package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/config"
)

func newHashService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(&config.EmbeddingConfig{Provider: "hash", Dimensions: config.EmbeddingDimension})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

func TestHashEncodeDimensionAndDeterminism(t *testing.T) {
	svc := newHashService(t)
	ctx := context.Background()

	texts := []string{
		"the sky is blue",
		"Qdrant stores vectors in collections",
		"the",
		"数据库",
	}
	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			a, err := svc.Encode(ctx, text)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(a) != 384 {
				t.Fatalf("len = %d, want 384", len(a))
			}
			b, err := svc.Encode(ctx, text)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			for i := range a {
				if a[i] != b[i] {
					t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
				}
			}
			var sumSq float64
			for _, v := range a {
				sumSq += float64(v) * float64(v)
			}
			if math.Abs(sumSq-1) > 1e-4 {
				t.Errorf("norm^2 = %v, want 1", sumSq)
			}
		})
	}
}

func TestHashEncodeRelatedTextsAreCloser(t *testing.T) {
	svc := newHashService(t)
	ctx := context.Background()

	query, _ := svc.Encode(ctx, "a blue sky today")
	near, _ := svc.Encode(ctx, "the sky is blue")
	far, _ := svc.Encode(ctx, "invoice payment overdue")

	if dot(query, near) <= dot(query, far) {
		t.Errorf("expected related text to score higher: near=%v far=%v", dot(query, near), dot(query, far))
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEncodeEmptyText(t *testing.T) {
	svc := newHashService(t)
	for _, text := range []string{"", "   "} {
		_, err := svc.Encode(context.Background(), text)
		if !errors.Is(err, apperr.ErrEncoding) {
			t.Errorf("Encode(%q) error = %v, want encoding error", text, err)
		}
	}
}

type fakeClient struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeClient) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	return f.vec, f.err
}
func (f *fakeClient) Dimensions() int { return len(f.vec) }
func (f *fakeClient) Name() string    { return "fake" }

func TestEncodeRejectsWrongDimensions(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{vec: make([]float32, 12)}, 384, 0, 0)
	_, err := svc.Encode(context.Background(), "hello")
	if !errors.Is(err, apperr.ErrEncoding) {
		t.Errorf("error = %v, want encoding error", err)
	}
}

func TestEncodeWrapsClientFailure(t *testing.T) {
	svc := NewServiceWithClient(&fakeClient{err: errors.New("model crashed")}, 384, 0, 0)
	_, err := svc.Encode(context.Background(), "hello")
	if apperr.KindOf(err) != apperr.KindEncoding {
		t.Errorf("KindOf = %v, want encoding", apperr.KindOf(err))
	}
}

func TestEncodeUsesCache(t *testing.T) {
	client := &fakeClient{vec: []float32{1, 0, 0}}
	svc := NewServiceWithClient(client, 3, 8, time.Minute)

	for i := 0; i < 3; i++ {
		vec, err := svc.Encode(context.Background(), "cached")
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		vec[0] = 42 // callers must not be able to poison the cache
	}
	if client.calls != 1 {
		t.Errorf("client calls = %d, want 1", client.calls)
	}
	vec, _ := svc.Encode(context.Background(), "cached")
	if vec[0] != 1 {
		t.Errorf("cached vector mutated: %v", vec)
	}
}

func TestVectorCacheEviction(t *testing.T) {
	cache := NewVectorCache(2, time.Minute)
	cache.Put("a", []float32{1})
	cache.Put("b", []float32{2})
	cache.Get("a")
	cache.Put("c", []float32{3})

	if _, ok := cache.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("recently used entry should survive")
	}
	if cache.Size() != 2 {
		t.Errorf("Size() = %d, want 2", cache.Size())
	}
}

func TestOpenAIClient(t *testing.T) {
	var got OpenAIEmbeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer header")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.5,0.5]}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(&config.EmbeddingConfig{
		Endpoint:   srv.URL,
		APIKey:     "key",
		Model:      "all-MiniLM-L6-v2",
		Dimensions: 3,
		Timeout:    time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 || got.Model != "all-MiniLM-L6-v2" || got.Input[0] != "hello" || got.Dimensions != 3 {
		t.Errorf("vec=%v request=%+v", vec, got)
	}
}

func TestOllamaClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2]}`))
	}))
	defer srv.Close()

	client, _ := NewOllamaClient(&config.EmbeddingConfig{Endpoint: srv.URL + "/", Timeout: time.Second})
	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 2 || client.Name() != "ollama/all-minilm" {
		t.Errorf("vec=%v name=%s", vec, client.Name())
	}
}
