package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Counters is a PipelineHooks implementation that keeps running totals for
// the status endpoint. It is safe for concurrent use.
type Counters struct {
	started   atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64

	code CodeFunc

	mu          sync.Mutex
	byCode      map[string]int64
	lastJobID   string
	lastState   string
	lastEndedAt time.Time
	startedAt   time.Time
}

// Snapshot is a point-in-time copy of [Counters].
type Snapshot struct {
	Started     int64            `json:"started"`
	Delivered   int64            `json:"delivered"`
	Failed      int64            `json:"failed"`
	Rejected    int64            `json:"rejected"`
	FailedBy    map[string]int64 `json:"failed_by,omitempty"`
	LastJobID   string           `json:"last_job_id,omitempty"`
	LastState   string           `json:"last_state,omitempty"`
	LastEndedAt *time.Time       `json:"last_ended_at,omitempty"`
	Uptime      string           `json:"uptime"`
}

// CodeFunc extracts a failure code from an error. It is set by callers that
// know the error taxonomy so this package stays dependency-free.
type CodeFunc func(error) string

// NewCounters creates zeroed counters. code classifies failures; nil files
// every failure under "error".
func NewCounters(code CodeFunc) *Counters {
	if code == nil {
		code = func(error) string { return "error" }
	}
	return &Counters{code: code, byCode: make(map[string]int64), startedAt: time.Now()}
}

func (c *Counters) OnJobStart(context.Context, string, string) {
	c.started.Add(1)
}

func (c *Counters) OnStageComplete(context.Context, string, string, time.Duration, error) {}

func (c *Counters) OnJobComplete(_ context.Context, jobID, _, state string, _ time.Duration, err error) {
	if err != nil {
		c.failed.Add(1)
	} else {
		c.delivered.Add(1)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.byCode[c.code(err)]++
	}
	c.lastJobID = jobID
	c.lastState = state
	c.lastEndedAt = time.Now()
}

func (c *Counters) OnJobRejected(context.Context, error) {
	c.rejected.Add(1)
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{
		Started:   c.started.Load(),
		Delivered: c.delivered.Load(),
		Failed:    c.failed.Load(),
		Rejected:  c.rejected.Load(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.byCode) > 0 {
		s.FailedBy = make(map[string]int64, len(c.byCode))
		for k, v := range c.byCode {
			s.FailedBy[k] = v
		}
	}
	s.LastJobID = c.lastJobID
	s.LastState = c.lastState
	if !c.lastEndedAt.IsZero() {
		t := c.lastEndedAt
		s.LastEndedAt = &t
	}
	s.Uptime = time.Since(c.startedAt).Round(time.Second).String()
	return s
}

var _ PipelineHooks = (*Counters)(nil)
