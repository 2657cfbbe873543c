package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/everstacklabs/modelmigrate/internal/cache"
)

// Client is an HTTP client with rate limiting and optional caching of
// listing GETs. Non-2xx responses are returned to the caller, not
// turned into errors; only transport-level failures produce an error.
type Client struct {
	http    *http.Client
	cache   *cache.FileCache
	limiter *rate.Limiter
	noCache bool
}

// Option configures the Client.
type Option func(*Client)

// WithCache enables file-based caching of GET responses.
func WithCache(c *cache.FileCache) Option {
	return func(cl *Client) { cl.cache = c }
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps float64) Option {
	return func(cl *Client) {
		cl.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithNoCache disables caching even when a cache is configured.
func WithNoCache() Option {
	return func(cl *Client) { cl.noCache = true }
}

// WithTimeout overrides the default 30s request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.http.Timeout = d }
}

// New creates a new Client.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response wraps an HTTP response body and metadata.
type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	FromCache  bool
}

// Get performs a GET with caching and conditional revalidation. Used
// for model listings; status checks must go through GetNoCache.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	var stale *cache.Entry
	if c.cache != nil && !c.noCache {
		entry, fresh := c.cache.Get(url)
		if fresh {
			return &Response{Body: entry.Body, StatusCode: entry.StatusCode, FromCache: true}, nil
		}
		stale = entry
	}

	resp, err := c.do(ctx, http.MethodGet, url, headers, nil, stale)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNotModified && stale != nil {
		if c.cache != nil {
			_ = c.cache.Set(url, stale)
		}
		return &Response{Body: stale.Body, StatusCode: stale.StatusCode, FromCache: true}, nil
	}

	if c.cache != nil && !c.noCache && resp.StatusCode == http.StatusOK {
		_ = c.cache.Set(url, &cache.Entry{
			Body:       resp.Body,
			ETag:       resp.Header.Get("ETag"),
			LastMod:    resp.Header.Get("Last-Modified"),
			StatusCode: resp.StatusCode,
		})
	}

	return resp, nil
}

// GetNoCache performs a GET that bypasses the cache entirely. Operation
// status and secret reads must never be served stale.
func (c *Client) GetNoCache(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, url, headers, nil, nil)
}

// Post performs a POST with a JSON body. Never cached.
func (c *Client) Post(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, url, headers, body, nil)
}

// Invalidate drops any cached response for url.
func (c *Client) Invalidate(url string) {
	if c.cache != nil {
		c.cache.Invalidate(url)
	}
}

func (c *Client) do(ctx context.Context, method, url string, headers map[string]string, body []byte, stale *cache.Entry) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if stale != nil {
		if stale.ETag != "" {
			req.Header.Set("If-None-Match", stale.ETag)
		}
		if stale.LastMod != "" {
			req.Header.Set("If-Modified-Since", stale.LastMod)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{Body: data, StatusCode: resp.StatusCode, Header: resp.Header}, nil
}
