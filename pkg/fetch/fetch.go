// Package fetch retrieves overlay image bytes from a locator.
//
// A locator is an http or https URL, a file:// URL, or a bare filesystem
// path. Remote fetches require a 200 response; anything else, including a
// transport failure, is a NETWORK error. Local reads report a missing file
// as NOT_FOUND and any other failure as IO. Fetches are never retried.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/matzehuels/mockup/pkg/cache"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/httputil"
)

// DefaultMaxBytes bounds the size of a fetched overlay.
const DefaultMaxBytes = 32 << 20

// CacheNamespace is the key namespace used for cached overlays.
const CacheNamespace = "overlay"

// Fetcher retrieves the raw bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Client is the default Fetcher.
type Client struct {
	http     *http.Client
	cache    *cache.Scoped
	ttl      time.Duration
	maxBytes int64
	headers  map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It is instrumented with the HTTP hooks.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = httputil.Instrument(c) }
}

// WithCache caches remote overlays in c for ttl. Local files are not cached.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Client) {
		cl.cache = cache.NewScoped(c, CacheNamespace)
		cl.ttl = ttl
	}
}

// WithMaxBytes limits the accepted body size.
func WithMaxBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBytes = n
		}
	}
}

// WithHeader adds a header to every remote request.
func WithHeader(key, value string) Option {
	return func(cl *Client) { cl.headers[key] = value }
}

// New creates a Client. Without options it uses [httputil.NewClient] and
// no cache.
func New(opts ...Option) *Client {
	c := &Client{
		http:     httputil.NewClient(0),
		cache:    cache.NewScoped(nil, CacheNamespace),
		maxBytes: DefaultMaxBytes,
		headers:  map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the bytes behind locator.
func (c *Client) Fetch(ctx context.Context, locator string) ([]byte, error) {
	locator = strings.TrimSpace(locator)
	u, err := url.Parse(locator)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeValidation, err, "invalid locator %q", locator)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return c.fetchRemote(ctx, locator)
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return c.readLocal(p)
	case "":
		return c.readLocal(locator)
	default:
		return nil, errs.New(errs.ErrCodeValidation, "unsupported locator scheme %q", u.Scheme)
	}
}

func (c *Client) fetchRemote(ctx context.Context, rawURL string) ([]byte, error) {
	if data, hit, err := c.cache.Get(ctx, rawURL); err == nil && hit {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeValidation, err, "build request for %s", rawURL)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if err := httputil.StatusOK(resp); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeNetwork, err, "read body of %s", rawURL)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, errs.New(errs.ErrCodeNetwork, "overlay at %s exceeds %d bytes", rawURL, c.maxBytes)
	}

	_ = c.cache.Set(ctx, rawURL, data, c.ttl)
	return data, nil
}

func (c *Client) readLocal(path string) ([]byte, error) {
	if path == "" {
		return nil, errs.New(errs.ErrCodeValidation, "empty file locator")
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrCodeNotFound, err, "overlay %s not found", path)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "open overlay %s", path)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, c.maxBytes+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "read overlay %s", path)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, errs.New(errs.ErrCodeIO, "overlay %s exceeds %d bytes", path, c.maxBytes)
	}
	return data, nil
}

// Func adapts a function to the Fetcher interface.
type Func func(ctx context.Context, locator string) ([]byte, error)

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

var (
	_ Fetcher = (*Client)(nil)
	_ Fetcher = Func(nil)
)
