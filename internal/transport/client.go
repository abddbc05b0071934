package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// maxRedirects caps how many redirects a single fetch may follow.
const maxRedirects = 10

// DefaultTimeout is the per-request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// Client builds HTTP clients for mirroring, optionally through a SOCKS5 proxy.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in host:port form. Empty means direct.
	proxyAddress string

	// dialer dials through the proxy. Nil when not proxied.
	dialer proxy.Dialer

	// timeout bounds each request, redirects and body read included.
	timeout time.Duration

	// cookie is a raw Cookie header value injected into every request.
	cookie string

	// headers are injected into every request.
	headers map[string]string

	// insecureTLS disables certificate verification.
	insecureTLS bool
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithProxy routes every connection through the SOCKS5 proxy at addr.
// An empty addr leaves the client direct.
func WithProxy(addr string) ClientOption {
	return func(c *Client) {
		c.proxyAddress = addr
	}
}

// WithCookie injects a raw cookie string (e.g. "session=abc") into every request.
func WithCookie(cookie string) ClientOption {
	return func(c *Client) {
		c.cookie = cookie
	}
}

// WithHeaders injects extra headers into every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.headers = headers
	}
}

// WithInsecureTLS disables TLS certificate verification.
// Onion services commonly use self-signed certificates; the onion address
// itself authenticates the service.
func WithInsecureTLS(insecure bool) ClientOption {
	return func(c *Client) {
		c.insecureTLS = insecure
	}
}

// NewClient creates a Client. It validates the proxy address but does not
// contact the proxy; call CheckConnection for that.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress != "" {
		if !isValidProxyAddress(c.proxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		c.dialer = dialer
	}

	return c, nil
}

// Proxied reports whether connections go through a SOCKS5 proxy.
func (c *Client) Proxied() bool {
	return c.dialer != nil
}

// ProxyAddress returns the configured proxy address, or "" when direct.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// HTTPClient returns a new *http.Client with a public-suffix aware cookie
// jar, a redirect cap and, when configured, proxying and header injection.
func (c *Client) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is always *http.Transport
	if c.insecureTLS {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // opt-in, needed for onion services
		}
	}
	if c.dialer != nil {
		transport.Proxy = nil
		transport.DialContext = c.dialContext
		transport.MaxIdleConnsPerHost = 2
		transport.IdleConnTimeout = 30 * time.Second
	}

	// cookiejar.New only fails on invalid options.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck

	var rt http.RoundTripper = transport
	if c.cookie != "" || len(c.headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  c.cookie,
			headers: c.headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   c.timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// dialContext dials through the proxy, honouring ctx when the dialer supports it.
func (c *Client) dialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, addr)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// isValidProxyAddress reports whether address is host:port with a port in 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// headerInjectingTransport adds a cookie and fixed headers to every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
