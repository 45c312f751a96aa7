package vectordb

import (
	"fmt"

	"github.com/DreamCats/vecserve/internal/config"
)

// Open returns the backend selected by cfg.Backend.
func Open(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "qdrant", "":
		return NewQdrantStore(cfg.QdrantURL, cfg.QdrantAPIKey, cfg.Timeout), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "bolt":
		return OpenBolt(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}
}
