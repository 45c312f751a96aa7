package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/service"
)

type recordingIngester struct {
	texts []string
	err   error
}

func (r *recordingIngester) Ingest(_ context.Context, text, collection string) (service.IngestResult, error) {
	if r.err != nil {
		return service.IngestResult{}, r.err
	}
	if strings.TrimSpace(text) == "" {
		return service.IngestResult{}, apperr.New(apperr.KindValidation, "ingest", "text is required")
	}
	r.texts = append(r.texts, text)
	return service.IngestResult{Status: "ok", Collection: collection, ID: "id-" + text}, nil
}

type countingProgress struct{ started, incs, finished int }

func (p *countingProgress) Start(total int) { p.started = total }
func (p *countingProgress) Increment()      { p.incs++ }
func (p *countingProgress) Finish()         { p.finished++ }

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestMatch(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.md":           "alpha",
		"docs/b.md":      "beta",
		"docs/deep/c.md": "gamma",
		"docs/skip.txt":  "not markdown",
		"vendor/x/d.md":  "vendored",
	})

	files, err := Match(filepath.Join(root, "**", "*.md"), []string{"**/vendor/**"})
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	var rel []string
	for _, f := range files {
		r, _ := filepath.Rel(root, f)
		rel = append(rel, filepath.ToSlash(r))
	}
	want := []string{"a.md", "docs/b.md", "docs/deep/c.md"}
	if strings.Join(rel, ",") != strings.Join(want, ",") {
		t.Errorf("Match() = %v, want %v", rel, want)
	}
}

func TestFilesSkipsEmptyAndOversized(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"a.txt":     "alpha",
		"empty.txt": "   \n",
		"big.txt":   strings.Repeat("x", 64),
		"z.txt":     "omega",
	})
	files, err := Match(filepath.Join(root, "*.txt"), nil)
	if err != nil {
		t.Fatal(err)
	}

	ing := &recordingIngester{}
	progress := &countingProgress{}
	summary, err := Files(context.Background(), ing, files, Options{
		Collection:   "docs",
		MaxFileBytes: 32,
		Progress:     progress,
	})
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(summary.Ingested) != 2 || len(summary.Skipped) != 2 {
		t.Errorf("ingested=%v skipped=%v", summary.Ingested, summary.Skipped)
	}
	if strings.Join(ing.texts, ",") != "alpha,omega" {
		t.Errorf("texts = %v", ing.texts)
	}
	if progress.started != 4 || progress.incs != 4 || progress.finished != 1 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestFilesStopsOnStoreFailure(t *testing.T) {
	root := writeFiles(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	files, _ := Match(filepath.Join(root, "*.txt"), nil)

	ing := &recordingIngester{err: apperr.New(apperr.KindStoreUnavailable, "ensure collection", "down")}
	summary, err := Files(context.Background(), ing, files, Options{})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("error = %v, want store unavailable", err)
	}
	if len(summary.Ingested) != 0 {
		t.Errorf("ingested = %v", summary.Ingested)
	}
}
