package httputil

import (
	"io"
	"net/http"
	"time"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/observability"
)

// DefaultTimeout bounds a single request including reading the body.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of an error response is kept for messages.
const maxErrorBody = 512

// NewClient returns an HTTP client with the given timeout (DefaultTimeout
// when zero) that reports requests to the registered HTTP hooks.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &hookTransport{next: http.DefaultTransport},
	}
}

// Instrument wraps c's transport with the HTTP hooks. A nil client gets a
// new one from [NewClient].
func Instrument(c *http.Client) *http.Client {
	if c == nil {
		return NewClient(0)
	}
	if _, ok := c.Transport.(*hookTransport); ok {
		return c
	}
	next := c.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	out := *c
	out.Transport = &hookTransport{next: next}
	return &out
}

type hookTransport struct {
	next http.RoundTripper
}

func (t *hookTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path

	hooks.OnRequest(ctx, req.Method, host, path)
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, host, path, err)
		return nil, err
	}
	hooks.OnResponse(ctx, req.Method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// CheckStatus returns nil for 2xx responses. Any other status yields a
// NETWORK error carrying the status and the start of the body; the body is
// left for the caller to close.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := resp.Status
	if len(snippet) > 0 {
		msg += ": " + string(snippet)
	}
	return errs.New(errs.ErrCodeNetwork, "unexpected HTTP status %s", msg)
}

// StatusOK is like CheckStatus but accepts only 200.
func StatusOK(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if err := CheckStatus(resp); err != nil {
		return err
	}
	return errs.New(errs.ErrCodeNetwork, "unexpected HTTP status %s", resp.Status)
}
