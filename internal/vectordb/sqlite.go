package vectordb

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/DreamCats/vecserve/internal/apperr"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// CurrentSchemaVersion is the version of the embedded store schema
	CurrentSchemaVersion = 1
)

// SQLiteStore is an embedded vector store on a single SQLite file. Search
// is a brute-force cosine scan over the collection.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required for the sqlite backend")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	version, err := s.schemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) schemaVersion() (int, error) {
	var exists int
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}

func (s *SQLiteStore) ListCollections(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM collections ORDER BY name`)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "list collections", err, "query failed")
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "list collections", err, "scan failed")
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStore) GetCollection(ctx context.Context, name string) (CollectionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection(ctx, "get collection", name)
}

func (s *SQLiteStore) collection(ctx context.Context, op, name string) (CollectionInfo, error) {
	info := CollectionInfo{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT dimension, distance FROM collections WHERE name = ?`, name).
		Scan(&info.Dimension, &info.Distance)
	if errors.Is(err, sql.ErrNoRows) {
		return CollectionInfo{}, apperr.Newf(apperr.KindCollectionNotFound, op, "collection %q not found", name)
	}
	if err != nil {
		return CollectionInfo{}, apperr.Wrap(apperr.KindStoreUnavailable, op, err, "query failed")
	}
	return info, nil
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, info CollectionInfo) error {
	if err := checkLocalCollection(info); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO collections (name, dimension, distance, created_at) VALUES (?, ?, ?, ?)`,
		info.Name, info.Dimension, string(info.Distance), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindProvision, "create collection", err, "insert failed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCollectionExists
	}
	return nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, collection string, points ...Point) error {
	if len(points) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	info, err := s.collection(ctx, "upsert points", collection)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindWrite, "upsert points", err, "begin transaction")
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO points
		(collection, id, vector, payload, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return apperr.Wrap(apperr.KindWrite, "upsert points", err, "prepare failed")
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range points {
		if len(p.Vector) != info.Dimension {
			return apperr.Newf(apperr.KindWrite, "upsert points", "vector has %d dimensions, collection %q expects %d", len(p.Vector), collection, info.Dimension)
		}
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return apperr.Wrap(apperr.KindWrite, "upsert points", err, "encode payload")
		}
		if _, err := stmt.ExecContext(ctx, collection, p.ID, vectorToBlob(p.Vector), string(payload), now); err != nil {
			return apperr.Wrap(apperr.KindWrite, "upsert points", err, "insert failed")
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.KindWrite, "upsert points", err, "commit failed")
	}
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Hit, error) {
	queryVec, queryNorm := toFloat64Vector(vector)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.collection(ctx, "search points", collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector, payload FROM points WHERE collection = ? ORDER BY rowid`, collection)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search points", err, "query failed")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var id, payloadJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &payloadJSON); err != nil {
			return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search points", err, "scan failed")
		}
		vec, err := blobToVector(blob)
		if err != nil {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			continue
		}
		hits = append(hits, Hit{
			ID:      id,
			Score:   cosineSimilarity(queryVec, vec, queryNorm),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.KindStoreUnavailable, "search points", err, "scan failed")
	}
	return rankHits(hits, limit), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// checkLocalCollection rejects configurations the embedded backends cannot score.
func checkLocalCollection(info CollectionInfo) error {
	if info.Dimension <= 0 {
		return apperr.Newf(apperr.KindProvision, "create collection", "invalid dimension %d", info.Dimension)
	}
	if info.Distance != Cosine {
		return apperr.Newf(apperr.KindProvision, "create collection", "unsupported distance %q", info.Distance)
	}
	return nil
}

func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return vector, nil
}
