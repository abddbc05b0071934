package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/nao1215/pagemirror/internal/extract"
	"github.com/nao1215/pagemirror/internal/fetch"
	"github.com/nao1215/pagemirror/internal/model"
	"github.com/nao1215/pagemirror/internal/persist"
)

// memoryStore is an in-memory RunStore.
type memoryStore struct {
	mu   sync.Mutex
	runs []*model.Run
	err  error
}

func (m *memoryStore) SaveRun(_ context.Context, run *model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()

	files := map[string]string{
		"/":            `<html><head><link rel="stylesheet" href="s.css"></head><body><img src="a.png"></body></html>`,
		"/s.css":       `body { color: red; }`,
		"/a.png":       "PNG",
		"/favicon.ico": "ICO",
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// TestDefaultPipeline tests a full mirror through the default steps.
func TestDefaultPipeline(t *testing.T) {
	t.Parallel()

	t.Run("mirrors a page and records the run", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		store := &memoryStore{}
		extractor := extract.New(fetch.NewHTTPFetcher(server.Client()))
		p := DefaultPipeline(extractor, persist.NewWriter(), store)

		if got := p.StepNames(); len(got) != 3 || got[2] != "record" {
			t.Fatalf("unexpected steps: %v", got)
		}

		run := model.NewRun(server.URL+"/", t.TempDir(), 5)
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if run.Result == nil {
			t.Fatal("expected extraction result")
		}
		// index.html, css/s.css, img/a.png, favicon.ico
		if len(run.Files) != 4 {
			t.Errorf("expected 4 written files, got %d: %v", len(run.Files), run.Files)
		}
		index, err := os.ReadFile(filepath.Join(run.OutputDir, "index.html"))
		if err != nil {
			t.Fatalf("failed to read index.html: %v", err)
		}
		want := `<html><head><link rel="stylesheet" href="css/s.css"></head><body><img src="img/a.png"></body></html>`
		if string(index) != want {
			t.Errorf("got index.html %q, expected %q", index, want)
		}
		if len(store.runs) != 1 || store.runs[0].ID != run.ID {
			t.Errorf("expected the run to be recorded once, got %d", len(store.runs))
		}
	})

	t.Run("records failed runs", func(t *testing.T) {
		t.Parallel()

		server := newTestSite(t)
		store := &memoryStore{}
		extractor := extract.New(fetch.NewHTTPFetcher(server.Client()))
		p := DefaultPipeline(extractor, persist.NewWriter(), store)

		run := model.NewRun(server.URL+"/missing.html", t.TempDir(), 5)
		err := p.Execute(context.Background(), run)

		if !errors.Is(err, extract.ErrPageFetch) {
			t.Fatalf("expected ErrPageFetch, got %v", err)
		}
		if len(store.runs) != 1 || !store.runs[0].Failed() {
			t.Error("expected the failed run to be recorded")
		}
		if len(run.PerformedSteps) != 1 || run.PerformedSteps[0] != "record" {
			t.Errorf("expected only the record step to complete, got %v", run.PerformedSteps)
		}
	})

	t.Run("without a store nothing is recorded", func(t *testing.T) {
		t.Parallel()

		extractor := extract.New(fetch.NewHTTPFetcher(nil))
		p := DefaultPipeline(extractor, persist.NewWriter(), nil)

		if got := p.StepNames(); len(got) != 2 {
			t.Errorf("expected 2 steps, got %v", got)
		}
	})
}

// TestPersistStep tests PersistStep in isolation.
func TestPersistStep(t *testing.T) {
	t.Parallel()

	t.Run("fails without a result", func(t *testing.T) {
		t.Parallel()

		step := NewPersistStep(persist.NewWriter())
		err := step.Do(context.Background(), model.NewRun("http://example.com/", t.TempDir(), 5))
		if !errors.Is(err, ErrNoResult) {
			t.Errorf("expected ErrNoResult, got %v", err)
		}
	})

	t.Run("wraps writer errors", func(t *testing.T) {
		t.Parallel()

		blocker := filepath.Join(t.TempDir(), "blocker")
		if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}

		run := model.NewRun("http://example.com/", blocker, 5)
		run.Result = model.NewPageResult(run.URL)

		err := NewPersistStep(persist.NewWriter()).Do(context.Background(), run)
		if !errors.Is(err, persist.ErrCreateDir) {
			t.Errorf("expected ErrCreateDir, got %v", err)
		}
	})
}

// TestRecordStep tests RecordStep in isolation.
func TestRecordStep(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("database is locked")
	step := NewRecordStep(&memoryStore{err: storeErr})

	if step.Name() != "record" {
		t.Errorf("got name %q", step.Name())
	}
	err := step.Do(context.Background(), model.NewRun("http://example.com/", "out", 5))
	if !errors.Is(err, storeErr) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
