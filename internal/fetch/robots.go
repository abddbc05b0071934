package fetch

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/temoto/robotstxt"
)

// robotsPolicy caches parsed robots.txt files per scheme and host.
type robotsPolicy struct {
	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

func newRobotsPolicy() *robotsPolicy {
	return &robotsPolicy{cache: make(map[string]*robotstxt.RobotsData)}
}

// allowed reports whether f's user agent may fetch u. robots.txt itself
// is always allowed. A robots.txt that cannot be fetched allows everything.
func (p *robotsPolicy) allowed(ctx context.Context, f *HTTPFetcher, u *url.URL) (bool, error) {
	if u.Path == "/robots.txt" {
		return true, nil
	}

	data, err := p.load(ctx, f, u)
	if err != nil {
		return false, err
	}
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.RequestURI(), f.userAgent), nil
}

func (p *robotsPolicy) load(ctx context.Context, f *HTTPFetcher, u *url.URL) (*robotstxt.RobotsData, error) {
	key := u.Scheme + "://" + u.Host

	p.mu.Lock()
	data, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return data, nil
	}

	robotsURL := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}
	resp, err := f.do(ctx, robotsURL, "text/plain")
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Debug("robots.txt unavailable, allowing all", "url", robotsURL.String(), "error", err)
		data = nil
	} else {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
		resp.Body.Close()
		if readErr == nil {
			data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
			if err != nil {
				f.logger.Debug("robots.txt unparsable, allowing all", "url", robotsURL.String(), "error", err)
				data = nil
			}
		}
	}

	p.mu.Lock()
	p.cache[key] = data
	p.mu.Unlock()
	return data, nil
}
