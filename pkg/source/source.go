// Package source defines where jobs come from.
//
// A [Source] is pull based: the job loop asks for one payload at a time and
// processes it to completion before asking again. Implementations live in
// subpackages:
//
//   - dir: one job per base image in a directory, for offline batch runs
//   - mqtt: a persistent MQTT subscription
//   - redis: a Redis list consumed with BLPOP
//
// Sources deliver raw payloads. Semantic validation belongs to the pipeline;
// a source only drops messages it cannot decode at all.
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/matzehuels/mockup/pkg/job"
)

// ErrEndOfStream is returned by Next when a finite source is exhausted.
// Unbounded sources never return it; they block until a payload arrives or
// the context is done.
var ErrEndOfStream = errors.New("end of job stream")

// Source yields job payloads.
type Source interface {
	// Next blocks until a payload is available, the source is exhausted
	// (ErrEndOfStream), or ctx is done (ctx.Err()).
	Next(ctx context.Context) (job.Payload, error)

	// Close releases the source's resources. Next must not be called after
	// Close.
	Close() error
}

// Slice is an in-memory source over a fixed list of payloads.
type Slice struct {
	mu    sync.Mutex
	items []job.Payload
	pos   int
}

// NewSlice returns a source yielding items in order.
func NewSlice(items ...job.Payload) *Slice {
	return &Slice{items: items}
}

// Next implements Source.
func (s *Slice) Next(ctx context.Context) (job.Payload, error) {
	if err := ctx.Err(); err != nil {
		return job.Payload{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return job.Payload{}, ErrEndOfStream
	}
	p := s.items[s.pos]
	s.pos++
	return p, nil
}

// Remaining returns how many payloads have not been yielded yet.
func (s *Slice) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) - s.pos
}

// Close implements Source.
func (s *Slice) Close() error { return nil }

var _ Source = (*Slice)(nil)
