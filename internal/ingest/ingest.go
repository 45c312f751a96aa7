// Package ingest stores files matched by a glob, one point per file.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/service"
)

// DefaultMaxFileBytes bounds the size of a file stored as a single text.
const DefaultMaxFileBytes = 256 << 10

type Ingester interface {
	Ingest(ctx context.Context, text, collection string) (service.IngestResult, error)
}

type Options struct {
	Collection   string
	MaxFileBytes int64
	Progress     ProgressReporter
	Logger       *slog.Logger
}

// Summary reports what a run stored.
type Summary struct {
	Ingested []Stored
	Skipped  []string
}

type Stored struct {
	Path string `json:"path"`
	ID   string `json:"id"`
}

// Match expands a doublestar pattern into a sorted list of regular files,
// dropping any path that matches an exclude pattern.
func Match(pattern string, exclude []string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	files := make([]string, 0, len(matches))
	for _, path := range matches {
		if excluded(path, exclude) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func excluded(path string, patterns []string) bool {
	slashed := strings.TrimPrefix(filepath.ToSlash(path), "/")
	base := filepath.Base(path)
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// Files ingests each file sequentially. Empty and oversized files are
// skipped; any other failure stops the run.
func Files(ctx context.Context, ing Ingester, files []string, opts Options) (Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBytes := opts.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}

	var summary Summary
	if opts.Progress != nil {
		opts.Progress.Start(len(files))
		defer opts.Progress.Finish()
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		stored, err := ingestFile(ctx, ing, path, opts.Collection, maxBytes)
		if opts.Progress != nil {
			opts.Progress.Increment()
		}
		switch {
		case err == nil:
			summary.Ingested = append(summary.Ingested, stored)
		case errors.Is(err, errSkip), errors.Is(err, apperr.ErrValidation):
			logger.Warn("skipping file", "path", path, "reason", err)
			summary.Skipped = append(summary.Skipped, path)
		default:
			return summary, fmt.Errorf("ingest %s: %w", path, err)
		}
	}
	return summary, nil
}

var errSkip = errors.New("file skipped")

func ingestFile(ctx context.Context, ing Ingester, path, collection string, maxBytes int64) (Stored, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Stored{}, err
	}
	if info.Size() > maxBytes {
		return Stored{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", errSkip, info.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Stored{}, err
	}
	res, err := ing.Ingest(ctx, string(data), collection)
	if err != nil {
		return Stored{}, err
	}
	return Stored{Path: path, ID: res.ID}, nil
}
