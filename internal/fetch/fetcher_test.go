package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return u
}

// TestHTTPFetcherText tests text retrieval and decoding.
func TestHTTPFetcherText(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/utf8", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<p>héllo</p>"))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=iso-8859-1")
		_, _ = w.Write([]byte{'c', 'a', 'f', 0xe9})
	})
	mux.HandleFunc("/ua", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("utf-8 body", func(t *testing.T) {
		t.Parallel()

		got, err := NewHTTPFetcher(server.Client()).Text(context.Background(), mustURL(t, server.URL+"/utf8"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "<p>héllo</p>" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("declared charset is decoded", func(t *testing.T) {
		t.Parallel()

		got, err := NewHTTPFetcher(server.Client()).Text(context.Background(), mustURL(t, server.URL+"/latin1"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "café" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("user agent header", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client(), WithUserAgent("test-agent/2"))
		got, err := f.Text(context.Background(), mustURL(t, server.URL+"/ua"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "test-agent/2" {
			t.Errorf("got %q", got)
		}
	})
}

// TestHTTPFetcherBytes tests raw byte retrieval and limits.
func TestHTTPFetcherBytes(t *testing.T) {
	t.Parallel()

	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}
	mux := http.NewServeMux()
	mux.HandleFunc("/a.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 100))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Run("bytes are untouched", func(t *testing.T) {
		t.Parallel()

		got, err := NewHTTPFetcher(server.Client()).Bytes(context.Background(), mustURL(t, server.URL+"/a.png"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("got %v, expected %v", got, payload)
		}
	})

	t.Run("body is truncated at max size", func(t *testing.T) {
		t.Parallel()

		f := NewHTTPFetcher(server.Client(), WithMaxBodySize(10))
		got, err := f.Bytes(context.Background(), mustURL(t, server.URL+"/big"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 10 {
			t.Errorf("expected 10 bytes, got %d", len(got))
		}
	})
}

// TestHTTPFetcherStatus tests that non-2xx responses are failures.
func TestHTTPFetcherStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	f := NewHTTPFetcher(server.Client())

	_, err := f.Bytes(context.Background(), mustURL(t, server.URL+"/missing.png"))
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d", statusErr.StatusCode)
	}

	if _, err := f.Text(context.Background(), mustURL(t, server.URL+"/missing.css")); !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus from Text, got %v", err)
	}
}

// TestHTTPFetcherTransportError tests unreachable hosts.
func TestHTTPFetcherTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := NewHTTPFetcher(nil).Text(context.Background(), mustURL(t, addr+"/"))
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if errors.Is(err, ErrStatus) {
		t.Error("transport error must not look like a status error")
	}
}

// TestHTTPFetcherRate tests request pacing.
func TestHTTPFetcherRate(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	f := NewHTTPFetcher(server.Client(), WithRate(20))
	u := mustURL(t, server.URL+"/")

	start := time.Now()
	for range 3 {
		if _, err := f.Text(context.Background(), u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// burst of one: the 2nd and 3rd requests each wait ~50ms
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("expected pacing, finished in %v", elapsed)
	}

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		slow := NewHTTPFetcher(server.Client(), WithRate(0.001))
		// the first token is free; the second would wait ~1000s
		if _, err := slow.Text(context.Background(), u); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := slow.Text(ctx, u); err == nil {
			t.Error("expected limiter error")
		}
	})
}

// TestHTTPFetcherRobots tests robots.txt enforcement.
func TestHTTPFetcherRobots(t *testing.T) {
	t.Parallel()

	var robotsHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		robotsHits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	f := NewHTTPFetcher(server.Client(), WithRobots(true))

	if _, err := f.Text(context.Background(), mustURL(t, server.URL+"/public/a.css")); err != nil {
		t.Errorf("unexpected error for allowed path: %v", err)
	}
	_, err := f.Bytes(context.Background(), mustURL(t, server.URL+"/private/a.png"))
	if !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
	if got := robotsHits.Load(); got != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", got)
	}

	t.Run("disabled by default", func(t *testing.T) {
		t.Parallel()

		plain := NewHTTPFetcher(server.Client())
		if _, err := plain.Text(context.Background(), mustURL(t, server.URL+"/private/x")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("missing robots.txt allows all", func(t *testing.T) {
		t.Parallel()

		bare := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/robots.txt" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte("ok"))
		}))
		t.Cleanup(bare.Close)

		rf := NewHTTPFetcher(bare.Client(), WithRobots(true))
		if _, err := rf.Text(context.Background(), mustURL(t, bare.URL+"/private/x")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

// TestStatusError tests the error message.
func TestStatusError(t *testing.T) {
	t.Parallel()

	err := &StatusError{URL: "http://ex.com/a.png", StatusCode: 500}
	if err.Error() != "http://ex.com/a.png: HTTP 500" {
		t.Errorf("got %q", err.Error())
	}
}
