// Package catalog loads the garment base photos, one per category.
//
// The catalog is built once by scanning a directory: every .png, .jpg or
// .jpeg file becomes a base image keyed by its normalized file name
// (extension stripped, uppercased). After [Scan] returns the catalog is
// read-only.
package catalog

import (
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockup/pkg/composite"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/placement"
)

// Extensions lists the base image file extensions, lowercase.
var Extensions = []string{".png", ".jpg", ".jpeg"}

// Catalog maps normalized category names to base images.
type Catalog struct {
	images map[string]image.Image
	paths  map[string]string
}

// New builds a catalog from an in-memory map. Keys are normalized.
func New(images map[string]image.Image) *Catalog {
	c := &Catalog{
		images: make(map[string]image.Image, len(images)),
		paths:  make(map[string]string, len(images)),
	}
	for k, img := range images {
		c.images[placement.Normalize(k)] = img
	}
	return c
}

// Scan decodes every base image in dir. Files are visited in lexical order;
// when two files normalize to the same category the first one wins.
// Undecodable files are logged and skipped.
func Scan(dir string, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "read base image directory %s", dir)
	}

	c := New(nil)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() || !IsImageFile(e.Name()) {
			continue
		}
		key := CategoryFromFilename(e.Name())
		path := filepath.Join(dir, e.Name())
		if prev, dup := c.paths[key]; dup {
			logger.Warn("duplicate base image, keeping first", "category", key, "kept", prev, "skipped", path)
			continue
		}
		img, err := loadImage(path)
		if err != nil {
			logger.Error("skipping base image", "path", path, "err", err)
			continue
		}
		c.images[key] = img
		c.paths[key] = path
		logger.Debug("loaded base image", "category", key, "path", path,
			"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}

	if len(c.images) == 0 {
		logger.Warn("no base images found", "dir", dir)
	}
	return c, nil
}

// Lookup returns the base image for category, ignoring case.
func (c *Catalog) Lookup(category string) (image.Image, error) {
	img, ok := c.images[placement.Normalize(category)]
	if !ok {
		return nil, errs.New(errs.ErrCodeNotFound, "no base image for category %q", category)
	}
	return img, nil
}

// Path returns the file a category was loaded from, if any.
func (c *Catalog) Path(category string) (string, bool) {
	p, ok := c.paths[placement.Normalize(category)]
	return p, ok
}

// Categories returns the loaded category keys in sorted order.
func (c *Catalog) Categories() []string {
	keys := make([]string, 0, len(c.images))
	for k := range c.images {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of loaded base images.
func (c *Catalog) Len() int { return len(c.images) }

// IsImageFile reports whether name has a base image extension.
func IsImageFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CategoryFromFilename strips the extension and normalizes the rest.
func CategoryFromFilename(name string) string {
	base := filepath.Base(name)
	return placement.Normalize(strings.TrimSuffix(base, filepath.Ext(base)))
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "open %s", path)
	}
	defer f.Close()
	img, _, err := composite.Decode(f)
	return img, err
}
