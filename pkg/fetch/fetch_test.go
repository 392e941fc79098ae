package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/mockup/pkg/cache"
	errs "github.com/matzehuels/mockup/pkg/errors"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1, 2, 3}

func TestFetchRemote(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		gotUA = r.Header.Get("User-Agent")
		w.Write(pngBytes)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithHeader("User-Agent", "mockup-test"))
	data, err := c.Fetch(context.Background(), srv.URL+"/design.png")
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if !bytes.Equal(data, pngBytes) {
		t.Errorf("Fetch = %v, want %v", data, pngBytes)
	}
	if gotUA != "mockup-test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestFetchRemoteNon200(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusNoContent, http.StatusInternalServerError, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		_, err := New(WithHTTPClient(srv.Client())).Fetch(context.Background(), srv.URL)
		if !errs.Is(err, errs.ErrCodeNetwork) {
			t.Errorf("status %d: err = %v, want NETWORK", code, err)
		}
		srv.Close()
	}
}

func TestFetchRemoteTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := New().Fetch(context.Background(), addr+"/x.png")
	if !errs.Is(err, errs.ErrCodeNetwork) {
		t.Errorf("err = %v, want NETWORK", err)
	}
}

func TestFetchRemoteMaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	_, err := New(WithHTTPClient(srv.Client()), WithMaxBytes(10)).Fetch(context.Background(), srv.URL)
	if !errs.Is(err, errs.ErrCodeNetwork) {
		t.Errorf("err = %v, want NETWORK", err)
	}
}

func TestFetchRemoteCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(pngBytes)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithCache(cache.NewMemory(0), time.Minute))
	for range 3 {
		if _, err := c.Fetch(context.Background(), srv.URL+"/a.png"); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestFetchRemoteErrorNotCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(WithHTTPClient(srv.Client()), WithCache(cache.NewMemory(0), time.Minute))
	c.Fetch(context.Background(), srv.URL)
	c.Fetch(context.Background(), srv.URL)
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestFetchLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.png")
	if err := os.WriteFile(path, pngBytes, 0644); err != nil {
		t.Fatal(err)
	}

	c := New()
	for _, loc := range []string{path, "file://" + path, "  " + path + "  "} {
		data, err := c.Fetch(context.Background(), loc)
		if err != nil {
			t.Errorf("Fetch(%q) error: %v", loc, err)
			continue
		}
		if !bytes.Equal(data, pngBytes) {
			t.Errorf("Fetch(%q) returned wrong bytes", loc)
		}
	}
}

func TestFetchLocalErrors(t *testing.T) {
	dir := t.TempDir()
	c := New()

	tests := []struct {
		name    string
		locator string
		code    errs.Code
	}{
		{"missing file", filepath.Join(dir, "nope.png"), errs.ErrCodeNotFound},
		{"missing file url", "file://" + filepath.Join(dir, "nope.png"), errs.ErrCodeNotFound},
		{"directory", dir, errs.ErrCodeIO},
		{"unsupported scheme", "ftp://example.com/a.png", errs.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Fetch(context.Background(), tt.locator)
			if got := errs.GetCode(err); got != tt.code {
				t.Errorf("code = %s, want %s (err %v)", got, tt.code, err)
			}
		})
	}
}

func TestFunc(t *testing.T) {
	var f Fetcher = Func(func(_ context.Context, loc string) ([]byte, error) {
		return []byte(loc), nil
	})
	data, _ := f.Fetch(context.Background(), "x")
	if string(data) != "x" {
		t.Errorf("Func.Fetch = %q", data)
	}
}
