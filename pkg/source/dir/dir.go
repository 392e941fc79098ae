// Package dir provides a finite job source for offline batch runs.
//
// Every base image in a directory becomes one job: the file name without its
// extension, uppercased, is the category and also the job id, and a single
// overlay file is applied to all of them. Results are therefore named
// {CATEGORY}_resultado.{ext}.
package dir

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mockup/pkg/catalog"
	errs "github.com/matzehuels/mockup/pkg/errors"
	"github.com/matzehuels/mockup/pkg/job"
	"github.com/matzehuels/mockup/pkg/source"
)

// Source yields one payload per base image file.
type Source struct {
	mu       sync.Mutex
	payloads []job.Payload
	pos      int
}

// New scans baseDir and prepares one job per image file, each pointing at
// overlay. Files that share a category after normalization yield a single
// job for the first file in lexical order.
func New(baseDir, overlay string, logger *log.Logger) (*Source, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if overlay == "" {
		return nil, errs.New(errs.ErrCodeConfig, "no overlay file given")
	}
	abs, err := filepath.Abs(overlay)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "resolve overlay path")
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeIO, err, "read base directory %s", baseDir)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && catalog.IsImageFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	s := &Source{}
	seen := make(map[string]string, len(names))
	for _, name := range names {
		cat := catalog.CategoryFromFilename(name)
		if first, dup := seen[cat]; dup {
			logger.Warn("duplicate base image, skipping", "file", name, "category", cat, "using", first)
			continue
		}
		seen[cat] = name
		s.payloads = append(s.payloads, job.Payload{
			URL:      abs,
			ID:       job.ID(cat),
			Category: cat,
		})
	}
	logger.Debug("directory source ready", "dir", baseDir, "jobs", len(s.payloads))
	return s, nil
}

// Len returns the total number of jobs.
func (s *Source) Len() int { return len(s.payloads) }

// Next implements source.Source.
func (s *Source) Next(ctx context.Context) (job.Payload, error) {
	if err := ctx.Err(); err != nil {
		return job.Payload{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.payloads) {
		return job.Payload{}, source.ErrEndOfStream
	}
	p := s.payloads[s.pos]
	s.pos++
	return p, nil
}

// Close implements source.Source.
func (s *Source) Close() error { return nil }

var _ source.Source = (*Source)(nil)
