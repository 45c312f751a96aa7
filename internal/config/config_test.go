package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vecserve.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromFileDefaults(t *testing.T) {
	path := writeConfig(t, "store:\n  backend: qdrant\n")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Collection.Default != "default_agent" {
		t.Errorf("Default collection = %q, want default_agent", cfg.Collection.Default)
	}
	if cfg.Embedding.Provider != "hash" || cfg.Embedding.Dimensions != EmbeddingDimension {
		t.Errorf("Embedding = %+v", cfg.Embedding)
	}
	if cfg.Search.DefaultLimit != 3 {
		t.Errorf("DefaultLimit = %d, want 3", cfg.Search.DefaultLimit)
	}
	if cfg.Store.Timeout != 20*time.Second {
		t.Errorf("Store.Timeout = %v", cfg.Store.Timeout)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 7000
store:
  backend: qdrant
  qdrant_url: http://file:6333
collection:
  default: from_file
`)
	t.Setenv("QDRANT_URL", "http://env:6333")
	t.Setenv("QDRANT_API_KEY", "secret")
	t.Setenv("QDRANT_COLLECTION", "from_env")
	t.Setenv("VECSERVE_TOKEN", "tok")

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Store.QdrantURL != "http://env:6333" {
		t.Errorf("QdrantURL = %q", cfg.Store.QdrantURL)
	}
	if cfg.Store.QdrantAPIKey != "secret" {
		t.Errorf("QdrantAPIKey = %q", cfg.Store.QdrantAPIKey)
	}
	if cfg.Collection.Default != "from_env" {
		t.Errorf("Default = %q", cfg.Collection.Default)
	}
	if cfg.Server.Token != "tok" {
		t.Errorf("Token = %q", cfg.Server.Token)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, file value should survive when PORT is unset", cfg.Server.Port)
	}
}

func TestPortFromEnv(t *testing.T) {
	t.Setenv("PORT", "8123")
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8123" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"defaults", "", false},
		{"sqlite backend", "store:\n  backend: sqlite\n  path: /tmp/v.db\n", false},
		{"unknown backend", "store:\n  backend: mongo\n", true},
		{"unknown provider", "embedding:\n  provider: magic\n", true},
		{"wrong dimensions", "embedding:\n  dimensions: 768\n", true},
		{"openai without key", "embedding:\n  provider: openai\n", true},
		{"openai compatible server", "embedding:\n  provider: openai\n  endpoint: http://tei:8080/v1/embeddings\n", false},
		{"bad log level", "log:\n  level: loud\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadFromFile() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !IsConfigNotFound(err) {
		t.Errorf("expected ConfigNotFoundError, got %v", err)
	}
}

func TestWriteDefaultTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vecserve.yaml")

	created, err := WriteDefaultTemplate(path)
	if err != nil || !created {
		t.Fatalf("WriteDefaultTemplate() = %v, %v", created, err)
	}
	created, err = WriteDefaultTemplate(path)
	if err != nil || created {
		t.Fatalf("second WriteDefaultTemplate() = %v, %v", created, err)
	}

	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("template does not load: %v", err)
	}
}
