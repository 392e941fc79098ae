package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnJobStart(ctx, "42", "CROPPED")
	p.OnStageComplete(ctx, "42", "fetch", time.Second, nil)
	p.OnJobComplete(ctx, "42", "CROPPED", "cleaned_up", time.Second, nil)
	p.OnJobRejected(ctx, errors.New("missing field"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "overlay")
	c.OnCacheMiss(ctx, "overlay")
	c.OnCacheSet(ctx, "overlay", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "cdn.example.com", "/a.png")
	h.OnResponse(ctx, "GET", "cdn.example.com", "/a.png", 200, time.Second)
	h.OnError(ctx, "GET", "cdn.example.com", "/a.png", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &testPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}

	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}

	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	custom := &testPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)
	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should keep existing hooks")
	}
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	a, b := &testPipelineHooks{}, &testPipelineHooks{}
	m := Multi(a, nil, b)

	m.OnJobStart(ctx, "1", "CANECA")
	m.OnStageComplete(ctx, "1", "composite", time.Millisecond, nil)
	m.OnJobComplete(ctx, "1", "CANECA", "cleaned_up", time.Millisecond, nil)
	m.OnJobRejected(ctx, errors.New("bad"))

	for i, h := range []*testPipelineHooks{a, b} {
		if h.starts != 1 || h.stages != 1 || h.completes != 1 || h.rejects != 1 {
			t.Errorf("hooks[%d] = %+v, want one of each event", i, *h)
		}
	}
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	c := NewCounters(func(err error) string { return "NETWORK" })

	c.OnJobStart(ctx, "1", "CROPPED")
	c.OnJobComplete(ctx, "1", "CROPPED", "cleaned_up", time.Millisecond, nil)
	c.OnJobStart(ctx, "2", "CROPPED")
	c.OnJobComplete(ctx, "2", "CROPPED", "failed", time.Millisecond, errors.New("boom"))
	c.OnJobRejected(ctx, errors.New("missing id"))

	s := c.Snapshot()
	if s.Started != 2 || s.Delivered != 1 || s.Failed != 1 || s.Rejected != 1 {
		t.Errorf("Snapshot = %+v", s)
	}
	if s.FailedBy["NETWORK"] != 1 {
		t.Errorf("FailedBy = %v, want NETWORK:1", s.FailedBy)
	}
	if s.LastJobID != "2" || s.LastState != "failed" || s.LastEndedAt == nil {
		t.Errorf("last job = %q/%q/%v", s.LastJobID, s.LastState, s.LastEndedAt)
	}

	// Snapshot must not alias internal state.
	s.FailedBy["NETWORK"] = 99
	if c.Snapshot().FailedBy["NETWORK"] != 1 {
		t.Error("Snapshot should return a copy of FailedBy")
	}
}

func TestCountersDefaultCode(t *testing.T) {
	c := NewCounters(nil)
	c.OnJobComplete(context.Background(), "x", "INFANTIL", "failed", 0, errors.New("e"))
	if got := c.Snapshot().FailedBy["error"]; got != 1 {
		t.Errorf("FailedBy[error] = %d, want 1", got)
	}
}

type testPipelineHooks struct {
	starts, stages, completes, rejects int
}

func (h *testPipelineHooks) OnJobStart(context.Context, string, string) { h.starts++ }
func (h *testPipelineHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {
	h.stages++
}
func (h *testPipelineHooks) OnJobComplete(context.Context, string, string, string, time.Duration, error) {
	h.completes++
}
func (h *testPipelineHooks) OnJobRejected(context.Context, error) { h.rejects++ }

type testCacheHooks struct{ NoopCacheHooks }

type testHTTPHooks struct{ NoopHTTPHooks }
