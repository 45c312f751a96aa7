package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EmbeddingDimension is the vector size every collection is provisioned with.
// It matches all-MiniLM-L6-v2.
const EmbeddingDimension = 384

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Collection CollectionConfig `yaml:"collection"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search,omitempty"`
	Log        LogConfig        `yaml:"log,omitempty"`
}

// ServerConfig holds the HTTP listener and the optional service credential
type ServerConfig struct {
	Host string `yaml:"host" envconfig:"VECSERVE_HOST"`
	Port int    `yaml:"port" envconfig:"PORT"`
	// Token is the pre-shared bearer token. Empty disables the gate.
	Token           string        `yaml:"token,omitempty" envconfig:"VECSERVE_TOKEN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" envconfig:"VECSERVE_SHUTDOWN_TIMEOUT"`
}

// StoreConfig selects and configures the vector database backend
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"VECSERVE_STORE_BACKEND"` // "qdrant" | "sqlite" | "bolt"

	// Qdrant specific
	QdrantURL    string `yaml:"qdrant_url" envconfig:"QDRANT_URL"`
	QdrantAPIKey string `yaml:"qdrant_api_key,omitempty" envconfig:"QDRANT_API_KEY"`

	// Embedded backends: database file path
	Path string `yaml:"path,omitempty" envconfig:"VECSERVE_STORE_PATH"`

	Timeout time.Duration `yaml:"timeout,omitempty" envconfig:"VECSERVE_STORE_TIMEOUT"`
}

// CollectionConfig holds collection defaults
type CollectionConfig struct {
	Default string `yaml:"default" envconfig:"QDRANT_COLLECTION"`
	// SkipVerify trusts any existing collection of the right name instead of
	// comparing its dimension and metric before writing into it.
	SkipVerify bool `yaml:"skip_verify,omitempty" envconfig:"VECSERVE_SKIP_COLLECTION_VERIFY"`
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider" envconfig:"VECSERVE_EMBEDDING_PROVIDER"` // "hash" | "openai" | "ollama"

	Endpoint string `yaml:"endpoint,omitempty" envconfig:"VECSERVE_EMBEDDING_ENDPOINT"`
	APIKey   string `yaml:"api_key,omitempty" envconfig:"VECSERVE_EMBEDDING_API_KEY"`
	Model    string `yaml:"model,omitempty" envconfig:"VECSERVE_EMBEDDING_MODEL"`

	Dimensions int           `yaml:"dimensions" envconfig:"VECSERVE_EMBEDDING_DIMENSIONS"`
	Timeout    time.Duration `yaml:"timeout,omitempty" envconfig:"VECSERVE_EMBEDDING_TIMEOUT"`

	// Encode cache; CacheSize 0 disables it
	CacheSize int           `yaml:"cache_size,omitempty" envconfig:"VECSERVE_EMBEDDING_CACHE_SIZE"`
	CacheTTL  time.Duration `yaml:"cache_ttl,omitempty" envconfig:"VECSERVE_EMBEDDING_CACHE_TTL"`
}

// SearchConfig holds search-specific configuration
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit,omitempty" envconfig:"VECSERVE_SEARCH_LIMIT"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `yaml:"level,omitempty" envconfig:"VECSERVE_LOG_LEVEL"` // debug | info | warn | error
	// Dir receives one log file per run. Empty means ~/.vecserve/logs.
	Dir string `yaml:"dir,omitempty" envconfig:"VECSERVE_LOG_DIR"`
}

// DefaultPath returns ~/.vecserve/config/vecserve.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".vecserve", "config", "vecserve.yaml"), nil
}

// Load loads configuration from path, or from the default location when
// path is empty. A missing default file is not an error: the service can
// be configured from the environment alone.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFromFile(path)
	}
	defaultPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadFromFile(defaultPath)
	if IsConfigNotFound(err) {
		return FromEnv()
	}
	return cfg, err
}

// FromEnv builds a configuration from defaults and environment variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	return finish(&cfg)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with --config\n"+
		"  3. Run 'vecserve init' to write a template",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// applyEnv overlays environment variables section by section. Unset
// variables leave the file values untouched.
func (c *Config) applyEnv() error {
	sections := []any{&c.Server, &c.Store, &c.Collection, &c.Embedding, &c.Search, &c.Log}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return err
		}
	}
	return nil
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 5000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "qdrant"
	}
	if c.Store.QdrantURL == "" {
		c.Store.QdrantURL = "http://127.0.0.1:6333"
	}
	if c.Store.Path == "" {
		switch c.Store.Backend {
		case "sqlite":
			c.Store.Path = "~/.vecserve/data/vectors.db"
		case "bolt":
			c.Store.Path = "~/.vecserve/data/vectors.bolt"
		}
	}
	c.Store.Path = expandPath(c.Store.Path)
	if c.Store.Timeout == 0 {
		c.Store.Timeout = 20 * time.Second
	}

	if c.Collection.Default == "" {
		c.Collection.Default = "default_agent"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "hash"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = EmbeddingDimension
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 30 * time.Second
	}
	if c.Embedding.CacheTTL == 0 {
		c.Embedding.CacheTTL = 10 * time.Minute
	}
	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.Endpoint == "" {
			c.Embedding.Endpoint = "https://api.openai.com/v1/embeddings"
		}
		if c.Embedding.Model == "" {
			c.Embedding.Model = "text-embedding-3-small"
		}
	case "ollama":
		if c.Embedding.Endpoint == "" {
			c.Embedding.Endpoint = "http://localhost:11434"
		}
		if c.Embedding.Model == "" {
			c.Embedding.Model = "all-minilm"
		}
	}

	if c.Search.DefaultLimit == 0 {
		c.Search.DefaultLimit = 3
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Dir = expandPath(c.Log.Dir)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "qdrant":
		if c.Store.QdrantURL == "" {
			return fmt.Errorf("qdrant backend requires qdrant_url")
		}
	case "sqlite", "bolt":
		if c.Store.Path == "" {
			return fmt.Errorf("%s backend requires store path", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Backend)
	}

	switch c.Embedding.Provider {
	case "hash", "ollama":
	case "openai":
		if c.Embedding.APIKey == "" && strings.Contains(c.Embedding.Endpoint, "api.openai.com") {
			return fmt.Errorf("openai provider requires api_key")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Embedding.Dimensions != EmbeddingDimension {
		return fmt.Errorf("dimensions must be %d, got: %d", EmbeddingDimension, c.Embedding.Dimensions)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", c.Server.Port)
	}

	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("default_limit must be positive, got: %d", c.Search.DefaultLimit)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Log.Level)
	}

	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

const defaultConfigTemplate = `# vecserve configuration
#
# Every value can be overridden from the environment
# (QDRANT_URL, QDRANT_API_KEY, QDRANT_COLLECTION, VECSERVE_TOKEN, PORT, ...).
# Default location: $HOME/.vecserve/config/vecserve.yaml

server:
  host: 0.0.0.0
  port: 5000
  # Bearer token required on every operation; leave empty to disable
  token: ""

store:
  # Backend: "qdrant", "sqlite" or "bolt"
  backend: qdrant
  qdrant_url: http://127.0.0.1:6333
  qdrant_api_key: ""
  # path: ~/.vecserve/data/vectors.db   # sqlite / bolt only

collection:
  default: default_agent
  skip_verify: false

embedding:
  # Provider: "hash" (local), "openai" (OpenAI-compatible API) or "ollama"
  provider: hash
  dimensions: 384
  cache_size: 1024

  # provider: ollama
  # endpoint: http://localhost:11434
  # model: all-minilm

search:
  default_limit: 3

log:
  level: info
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
