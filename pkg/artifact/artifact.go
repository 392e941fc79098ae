// Package artifact persists composited mockups to a results directory.
//
// File names follow {CATEGORY}_resultado_{id}.{ext}. When the job id is the
// category itself, as in offline batch runs, the id suffix is omitted and
// the name reduces to {CATEGORY}_resultado.{ext}.
package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/placement"
)

// Supported output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpg"
)

// DefaultJPEGQuality is used when no quality is configured.
const DefaultJPEGQuality = 90

const resultSuffix = "_resultado"

// CompositeResult is a composited image ready to be persisted.
type CompositeResult struct {
	Image    image.Image
	JobID    string
	Category string
}

// Filename returns the artifact file name for format.
func (r CompositeResult) Filename(format string) string {
	cat := placement.Normalize(r.Category)
	name := cat + resultSuffix
	if id := strings.TrimSpace(r.JobID); id != "" && !strings.EqualFold(id, cat) {
		name += "_" + id
	}
	return name + "." + NormalizeFormat(format)
}

// NormalizeFormat maps format aliases to FormatPNG or FormatJPEG. Unknown
// formats are returned lowercased.
func NormalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")); f {
	case "", FormatPNG:
		return FormatPNG
	case "jpeg", FormatJPEG:
		return FormatJPEG
	default:
		return f
	}
}

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	if NormalizeFormat(format) == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format string, quality int) error {
	switch NormalizeFormat(format) {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	default:
		return errs.New(errs.ErrCodeConfig, "unsupported output format %q", format)
	}
}

// Store persists and removes artifacts.
type Store interface {
	// Save encodes the result and returns the path it was written to.
	Save(result CompositeResult) (string, error)
	// Remove deletes a previously saved artifact. Removing a missing
	// artifact is not an error.
	Remove(path string) error
	// Read returns the encoded bytes of a saved artifact.
	Read(path string) ([]byte, error)
}

// Dir stores artifacts as files in a single directory.
type Dir struct {
	root    string
	format  string
	quality int
}

// NewDir creates a Dir store writing format files into root. The directory
// is created on first Save.
func NewDir(root, format string, quality int) (*Dir, error) {
	if root == "" {
		return nil, errs.New(errs.ErrCodeConfig, "results directory is empty")
	}
	f := NormalizeFormat(format)
	if f != FormatPNG && f != FormatJPEG {
		return nil, errs.New(errs.ErrCodeConfig, "unsupported output format %q", format)
	}
	return &Dir{root: root, format: f, quality: quality}, nil
}

// Root returns the results directory.
func (d *Dir) Root() string { return d.root }

// Format returns the output format.
func (d *Dir) Format() string { return d.format }

// Save implements Store.
func (d *Dir) Save(result CompositeResult) (string, error) {
	if result.Image == nil {
		return "", errs.New(errs.ErrCodeInternal, "no image to save")
	}
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return "", errs.Wrap(errs.ErrCodeIO, err, "create results directory %s", d.root)
	}

	path := filepath.Join(d.root, result.Filename(d.format))
	if err := d.write(path, result.Image); err != nil {
		return "", errs.Wrap(errs.ErrCodeIO, err, "write %s", path)
	}
	return path, nil
}

// write encodes img to a temporary file next to path and renames it into
// place, so path never holds a partial image.
func (d *Dir) write(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	w := bufio.NewWriter(tmp)
	if err := Encode(w, img, d.format, d.quality); err != nil {
		return fail(fmt.Errorf("encode: %w", err))
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Remove implements Store.
func (d *Dir) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(errs.ErrCodeIO, err, "remove %s", path)
	}
	return nil
}

// Read implements Store.
func (d *Dir) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrCodeNotFound, err, "artifact %s", path)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "read %s", path)
	}
	return data, nil
}

var _ Store = (*Dir)(nil)
