package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies pagemirror to servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; pagemirror/1.0)"

// DefaultMaxBodySize caps how much of a single response is read (50MB).
const DefaultMaxBodySize int64 = 50 * 1024 * 1024

// Fetcher retrieves resources by absolute URL.
type Fetcher interface {
	// Text fetches u and returns its body decoded to UTF-8.
	Text(ctx context.Context, u *url.URL) (string, error)

	// Bytes fetches u and returns its body exactly as received.
	Bytes(ctx context.Context, u *url.URL) ([]byte, error)
}

// HTTPFetcher is a Fetcher backed by an *http.Client.
// It performs one request at a time per call and never retries.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	maxBodySize int64
	limiter     *rate.Limiter
	robots      *robotsPolicy
	logger      *slog.Logger
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxBodySize caps the number of body bytes read per response.
// Longer bodies are truncated.
func WithMaxBodySize(size int64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithRate limits requests to perSecond, with a burst of one.
// Zero or a negative value means unlimited.
func WithRate(perSecond float64) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if perSecond > 0 {
			f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			f.limiter = nil
		}
	}
}

// WithRobots enables robots.txt checks before every fetch.
func WithRobots(enabled bool) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		if enabled {
			f.robots = newRobotsPolicy()
		} else {
			f.robots = nil
		}
	}
}

// WithLogger sets the logger used for per-request debug output.
func WithLogger(logger *slog.Logger) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.logger = logger
	}
}

// NewHTTPFetcher creates an HTTPFetcher using client for all requests.
// A nil client means http.DefaultClient.
func NewHTTPFetcher(client *http.Client, opts ...HTTPFetcherOption) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Text implements Fetcher.
func (f *HTTPFetcher) Text(ctx context.Context, u *url.URL) (string, error) {
	resp, err := f.get(ctx, u, "text/html,application/xhtml+xml,text/css,*/*;q=0.8")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err == nil {
		reader = decoded
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", u, err)
	}
	return string(body), nil
}

// Bytes implements Fetcher.
func (f *HTTPFetcher) Bytes(ctx context.Context, u *url.URL) ([]byte, error) {
	resp, err := f.get(ctx, u, "*/*")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", u, err)
	}
	return body, nil
}

// get applies robots and rate policy, performs the request and checks the
// status. The caller must close the body of a non-nil response.
func (f *HTTPFetcher) get(ctx context.Context, u *url.URL, accept string) (*http.Response, error) {
	if f.robots != nil {
		allowed, err := f.robots.allowed(ctx, f, u)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, u)
		}
	}

	resp, err := f.do(ctx, u, accept)
	if err != nil {
		return nil, err
	}

	f.logger.Debug("fetched", "url", u.String(), "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for reuse
		resp.Body.Close()
		return nil, &StatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// do waits for the rate limiter and performs a GET.
func (f *HTTPFetcher) do(ctx context.Context, u *url.URL, accept string) (*http.Response, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", u, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	return resp, nil
}
