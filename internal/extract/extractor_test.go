package extract

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/nao1215/pagemirror/internal/fetch"
	"github.com/nao1215/pagemirror/internal/model"
)

// recordingFetcher wraps a Fetcher and remembers every requested URL.
type recordingFetcher struct {
	fetch.Fetcher

	mu   sync.Mutex
	urls []string
}

func (r *recordingFetcher) Text(ctx context.Context, u *url.URL) (string, error) {
	r.record(u)
	return r.Fetcher.Text(ctx, u)
}

func (r *recordingFetcher) Bytes(ctx context.Context, u *url.URL) ([]byte, error) {
	r.record(u)
	return r.Fetcher.Bytes(ctx, u)
}

func (r *recordingFetcher) record(u *url.URL) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls = append(r.urls, u.String())
}

func (r *recordingFetcher) requested(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.urls {
		if strings.Contains(u, substr) {
			return true
		}
	}
	return false
}

// newSite serves files by path; everything else is 404.
func newSite(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, ".css"):
			w.Header().Set("Content-Type", "text/css; charset=utf-8")
		case strings.HasSuffix(r.URL.Path, ".js"):
			w.Header().Set("Content-Type", "application/javascript")
		case strings.HasSuffix(r.URL.Path, "/") || strings.HasSuffix(r.URL.Path, ".html"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		default:
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newExtractor(server *httptest.Server) (*Extractor, *recordingFetcher) {
	rf := &recordingFetcher{Fetcher: fetch.NewHTTPFetcher(server.Client())}
	return New(rf), rf
}

// TestExtractStylesheetImportChain tests the import chain scenario.
func TestExtractStylesheetImportChain(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/":      `<html><head><link rel="stylesheet" href="/s.css"></head><body></body></html>`,
		"/s.css": `@import url("f.css");`,
		"/f.css": `body{}`,
	})

	e, _ := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Stylesheets) != 2 {
		t.Fatalf("expected 2 stylesheets, got %d", len(result.Stylesheets))
	}
	if result.Stylesheets[0].Name != "s.css" || result.Stylesheets[1].Name != "f.css" {
		t.Errorf("got %q, %q", result.Stylesheets[0].Name, result.Stylesheets[1].Name)
	}
	if !strings.Contains(result.Content, `href="css/s.css"`) {
		t.Errorf("link not rewritten: %s", result.Content)
	}
}

// TestExtractOffOriginImage tests that off-origin images are neither fetched nor rewritten.
func TestExtractOffOriginImage(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/": `<html><body><img src="https://other.com/a.png"></body></html>`,
	})

	e, rf := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Images) != 0 {
		t.Errorf("expected no images, got %d", len(result.Images))
	}
	if !strings.Contains(result.Content, `<img src="https://other.com/a.png">`) {
		t.Errorf("img src changed: %s", result.Content)
	}
	if rf.requested("other.com") {
		t.Error("off-origin image must not be fetched")
	}

	found := false
	for _, s := range result.Skipped {
		if s.Kind == model.KindImage && s.Reason == "off-origin" {
			found = true
		}
	}
	if !found {
		t.Error("expected off-origin skip to be recorded")
	}
}

// TestExtractFaviconFallback tests the favicon fallback chain.
func TestExtractFaviconFallback(t *testing.T) {
	t.Parallel()

	icon := "\x00\x00\x01\x00ICON"

	t.Run("falls back to origin root", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, map[string]string{
			"/dir/page.html": `<html><head></head><body></body></html>`,
			"/favicon.ico":   icon,
		})

		e, rf := newExtractor(server)
		result, err := e.Extract(context.Background(), server.URL+"/dir/page.html", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !rf.requested("/dir/favicon.ico") {
			t.Error("expected page-relative favicon to be tried first")
		}
		if result.Icon == nil {
			t.Fatal("expected icon")
		}
		if result.Icon.Name != "favicon.ico" || string(result.Icon.Content) != icon {
			t.Errorf("unexpected icon %q", result.Icon.Name)
		}
	})

	t.Run("page relative favicon", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, map[string]string{
			"/dir/page.html":   `<html></html>`,
			"/dir/favicon.ico": "DIR",
			"/favicon.ico":     "ROOT",
		})

		e, _ := newExtractor(server)
		result, err := e.Extract(context.Background(), server.URL+"/dir/page.html", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Icon == nil || string(result.Icon.Content) != "DIR" {
			t.Errorf("expected page-relative icon, got %v", result.Icon)
		}
	})

	t.Run("link icon is rewritten", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, map[string]string{
			"/":                `<html><head><link rel="icon" href="/static/logo.png"><link rel="shortcut icon" href="/static/s.ico"></head></html>`,
			"/static/logo.png": "PNG",
			"/static/s.ico":    "ICO",
		})

		e, _ := newExtractor(server)
		result, err := e.Extract(context.Background(), server.URL+"/", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Icon == nil || result.Icon.Name != "logo.png" {
			t.Fatalf("unexpected icon %v", result.Icon)
		}
		if result.ShortcutIcon == nil || result.ShortcutIcon.Name != "s.ico" {
			t.Fatalf("unexpected shortcut icon %v", result.ShortcutIcon)
		}
		if !strings.Contains(result.Content, `<link rel="icon" href="logo.png">`) {
			t.Errorf("icon link not rewritten: %s", result.Content)
		}
		if !strings.Contains(result.Content, `<link rel="shortcut icon" href="s.ico">`) {
			t.Errorf("shortcut icon link not rewritten: %s", result.Content)
		}
	})

	t.Run("broken icon link has no fallback", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, map[string]string{
			"/":            `<html><head><link rel="icon" href="/missing.png"></head></html>`,
			"/favicon.ico": icon,
		})

		e, rf := newExtractor(server)
		result, err := e.Extract(context.Background(), server.URL+"/", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Icon != nil {
			t.Errorf("expected no icon, got %q", result.Icon.Name)
		}
		if rf.requested("favicon.ico") {
			t.Error("favicon.ico must only be tried when the page has no icon link")
		}
		if !strings.Contains(result.Content, `href="/missing.png"`) {
			t.Errorf("icon link must stay: %s", result.Content)
		}
	})

	t.Run("no icon anywhere", func(t *testing.T) {
		t.Parallel()

		server := newSite(t, map[string]string{"/": `<html></html>`})

		e, _ := newExtractor(server)
		result, err := e.Extract(context.Background(), server.URL+"/", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Icon != nil || result.ShortcutIcon != nil {
			t.Error("expected no icons")
		}
	})
}

// TestExtractInlineStyle tests url() references in style attributes.
func TestExtractInlineStyle(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/":          `<html><body><div style="background:url('i.png')"></div><p style="font: url(f.woff)"></p><span style="x: url(data.json)"></span><b style="y: url(noext)"></b></body></html>`,
		"/i.png":     "IMG",
		"/f.woff":    "FONT",
		"/data.json": "{}",
	})

	e, rf := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Images) != 1 || result.Images[0].Name != "i.png" || string(result.Images[0].Content) != "IMG" {
		t.Fatalf("unexpected images %v", result.Images)
	}
	if !strings.Contains(result.Content, `style="background:url('img/i.png')"`) {
		t.Errorf("inline image not rewritten: %s", result.Content)
	}
	if len(result.Fonts) != 1 || result.Fonts[0].Name != "f.woff" {
		t.Fatalf("unexpected fonts %v", result.Fonts)
	}
	if !strings.Contains(result.Content, `url(fonts/f.woff)`) {
		t.Errorf("inline font not rewritten: %s", result.Content)
	}
	if rf.requested("data.json") || rf.requested("noext") {
		t.Error("other classes must not be fetched")
	}
	if !strings.Contains(result.Content, "url(data.json)") {
		t.Errorf("other class must be left alone: %s", result.Content)
	}
}

// TestExtractScriptsImagesAnchors tests the element passes.
func TestExtractScriptsImagesAnchors(t *testing.T) {
	t.Parallel()

	png := string([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a})
	server := newSite(t, map[string]string{
		"/": `<html><body>
<script src="js/app.js"></script>
<script src="/missing.js"></script>
<script>inline()</script>
<img src="/img/logo.png" alt="logo">
<img src="/broken.png">
<a href="#top">top</a>
<a href="about.html">about</a>
<a href="https://other.com/x">x</a>
<a href="/docs/">docs</a>
<p>js/app.js</p>
</body></html>`,
		"/js/app.js":    "console.log(1)",
		"/img/logo.png": png,
	})

	e, rf := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("scripts", func(t *testing.T) {
		t.Parallel()

		if len(result.Scripts) != 1 || result.Scripts[0].Name != "app.js" || result.Scripts[0].Content != "console.log(1)" {
			t.Fatalf("unexpected scripts %v", result.Scripts)
		}
		if !strings.Contains(result.Content, `<script src="src/app.js">`) {
			t.Errorf("script not rewritten: %s", result.Content)
		}
		if !strings.Contains(result.Content, `<script src="/missing.js">`) {
			t.Errorf("failed script must stay: %s", result.Content)
		}
		if !strings.Contains(result.Content, "<p>js/app.js</p>") {
			t.Errorf("visible text must stay: %s", result.Content)
		}
	})

	t.Run("images", func(t *testing.T) {
		t.Parallel()

		if len(result.Images) != 1 || result.Images[0].Name != "logo.png" {
			t.Fatalf("unexpected images %v", result.Images)
		}
		if !bytes.Equal(result.Images[0].Content, []byte(png)) {
			t.Error("image payload must be byte identical")
		}
		if !strings.Contains(result.Content, `<img src="img/logo.png" alt="logo">`) {
			t.Errorf("image not rewritten: %s", result.Content)
		}
		if !strings.Contains(result.Content, `<img src="/broken.png">`) {
			t.Errorf("failed image must stay: %s", result.Content)
		}
	})

	t.Run("anchors", func(t *testing.T) {
		t.Parallel()

		if len(result.Anchors) != 1 {
			t.Fatalf("expected 1 anchor, got %v", result.Anchors)
		}
		if result.Anchors[0].Name != "about.html" || !strings.HasSuffix(result.Anchors[0].URL, "/about.html") {
			t.Errorf("unexpected anchor %v", result.Anchors[0])
		}
		for _, want := range []string{
			`<a href="/about.html">`,
			`<a href="#top">`,
			`<a href="https://other.com/x">`,
			`<a href="/docs/">`,
		} {
			if !strings.Contains(result.Content, want) {
				t.Errorf("expected %s in %s", want, result.Content)
			}
		}
		if rf.requested("about.html") {
			t.Error("anchors must never be fetched")
		}
	})
}

// TestExtractErrors tests the fatal paths.
func TestExtractErrors(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{})

	t.Run("page fetch failure", func(t *testing.T) {
		t.Parallel()

		e, _ := newExtractor(server)
		_, err := e.Extract(context.Background(), server.URL+"/missing.html", 5)
		if !errors.Is(err, ErrPageFetch) {
			t.Errorf("expected ErrPageFetch, got %v", err)
		}
		if !errors.Is(err, fetch.ErrStatus) {
			t.Errorf("expected wrapped status error, got %v", err)
		}
	})

	t.Run("invalid URLs", func(t *testing.T) {
		t.Parallel()

		e, _ := newExtractor(server)
		for _, raw := range []string{"", "ex.com", "ftp://ex.com/", "http://[::1"} {
			if _, err := e.Extract(context.Background(), raw, 5); !errors.Is(err, ErrInvalidURL) {
				t.Errorf("%q: expected ErrInvalidURL, got %v", raw, err)
			}
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e, _ := newExtractor(server)
		if _, err := e.Extract(ctx, server.URL+"/", 5); err == nil {
			t.Error("expected error for cancelled context")
		}
	})
}

// TestExtractProgress tests that every fetch is narrated in order.
func TestExtractProgress(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/":      `<html><head><link rel="stylesheet" href="s.css"></head><body><img src="a.png"></body></html>`,
		"/s.css": `body{}`,
		"/a.png": "A",
	})

	var kinds []model.ResourceKind
	e := New(fetch.NewHTTPFetcher(server.Client()), WithProgress(func(kind model.ResourceKind, _ *url.URL) {
		kinds = append(kinds, kind)
	}))
	if _, err := e.Extract(context.Background(), server.URL+"/", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// page, one favicon attempt (page-relative and root are the same URL), stylesheet, image
	want := []model.ResourceKind{model.KindPage, model.KindIcon, model.KindStylesheet, model.KindImage}
	if len(kinds) != len(want) {
		t.Fatalf("got %v, expected %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("position %d: got %q, expected %q", i, kinds[i], want[i])
		}
	}
}

// TestExtractCaseDistinctImages tests that references differing only in
// case are localised separately.
func TestExtractCaseDistinctImages(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/":      `<html><body><img src="a.png"><img src="A.png"></body></html>`,
		"/a.png": "lower",
		"/A.png": "upper",
	})

	e, _ := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Images) != 2 {
		t.Fatalf("expected 2 images, got %v", result.Images)
	}
	if !strings.Contains(result.Content, `<img src="img/a.png"><img src="img/A.png">`) {
		t.Errorf("each image must point at its own file: %s", result.Content)
	}
}

// TestExtractAnchorSharingStylesheetHref tests that an anchor is recorded
// even when a stylesheet link already rewrote the same href.
func TestExtractAnchorSharingStylesheetHref(t *testing.T) {
	t.Parallel()

	server := newSite(t, map[string]string{
		"/":      `<html><head><link rel="stylesheet" href="s.css"></head><body><a href="s.css">css</a></body></html>`,
		"/s.css": `body { color: red; }`,
	})

	e, _ := newExtractor(server)
	result, err := e.Extract(context.Background(), server.URL+"/", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Stylesheets) != 1 {
		t.Fatalf("expected 1 stylesheet, got %d", len(result.Stylesheets))
	}
	if len(result.Anchors) != 1 {
		t.Fatalf("expected 1 anchor, got %v", result.Anchors)
	}
	if result.Anchors[0].URL != server.URL+"/s.css" || result.Anchors[0].Name != "s.css" {
		t.Errorf("unexpected anchor %+v", result.Anchors[0])
	}
}
