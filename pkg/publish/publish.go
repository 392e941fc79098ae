// Package publish delivers finished mockups to the external consumer.
//
// The delivery endpoint receives a multipart POST with two fields: "id",
// the job identifier, and "image", the artifact bytes with part content
// type image/jpg. Requests carry "Authorization: Bearer <token>" where the
// token comes from a [TokenSource]. Any non-2xx response is a NETWORK
// error. Deliveries are not retried.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/httputil"
)

// Multipart field names and the image part content type expected by the
// delivery endpoint.
const (
	FieldID          = "id"
	FieldImage       = "image"
	ImageContentType = "image/jpg"
)

// Publisher delivers an artifact for a job.
type Publisher interface {
	Publish(ctx context.Context, id, filename string, data []byte) error
}

// HTTP publishes to a delivery endpoint over HTTP.
type HTTP struct {
	endpoint string
	tokens   TokenSource
	client   *http.Client
}

// Option configures an HTTP publisher.
type Option func(*HTTP)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTP) { h.client = httputil.Instrument(c) }
}

// NewHTTP creates a publisher for endpoint authenticated by tokens.
func NewHTTP(endpoint string, tokens TokenSource, opts ...Option) (*HTTP, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errs.New(errs.ErrCodeConfig, "invalid publish endpoint %q", endpoint)
	}
	if tokens == nil {
		return nil, errs.New(errs.ErrCodeConfig, "no publish token configured")
	}
	h := &HTTP{
		endpoint: u.String(),
		tokens:   tokens,
		client:   httputil.NewClient(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Endpoint returns the delivery URL.
func (h *HTTP) Endpoint() string { return h.endpoint }

// Publish implements Publisher.
func (h *HTTP) Publish(ctx context.Context, id, filename string, data []byte) error {
	token, err := h.tokens.Token(ctx)
	if err != nil {
		return err
	}

	body, contentType, err := encodeForm(id, filename, data)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "build multipart body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return errs.Wrap(errs.ErrCodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := h.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrCodeNetwork, err, "publish %s", id)
	}
	defer resp.Body.Close()

	if err := httputil.CheckStatus(resp); err != nil {
		return fmt.Errorf("publish %s: %w", id, err)
	}
	return nil
}

func encodeForm(id, filename string, data []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if err := mw.WriteField(FieldID, id); err != nil {
		return nil, "", err
	}

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldImage, filename))
	hdr.Set("Content-Type", ImageContentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// Discard accepts every artifact without delivering it. It is used for
// offline batch runs.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, string, string, []byte) error { return nil }

// Func adapts a function to the Publisher interface.
type Func func(ctx context.Context, id, filename string, data []byte) error

// Publish calls f.
func (f Func) Publish(ctx context.Context, id, filename string, data []byte) error {
	return f(ctx, id, filename, data)
}

var (
	_ Publisher = (*HTTP)(nil)
	_ Publisher = Discard{}
	_ Publisher = Func(nil)
)
