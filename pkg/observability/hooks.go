// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about job processing, cache operations and
// outbound HTTP calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the pipeline packages
// never import a tracing or metrics backend directly. See the tracing
// subpackage for an OpenTelemetry implementation and [Counters] for the
// in-process counters served by the status endpoint.
//
// # Usage
//
//	func main() {
//	    counters := observability.NewCounters(nil)
//	    observability.SetPipelineHooks(observability.Multi(counters, tracingHooks))
//	    // ... run the job loop
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnJobStart(ctx, jobID, category)
//	// ... run stages ...
//	observability.Pipeline().OnJobComplete(ctx, jobID, category, "cleaned_up", duration, nil)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the mockup pipeline.
type PipelineHooks interface {
	// OnJobStart records that a validated job entered the pipeline.
	OnJobStart(ctx context.Context, jobID, category string)

	// OnStageComplete records the outcome of one pipeline stage.
	OnStageComplete(ctx context.Context, jobID, stage string, duration time.Duration, err error)

	// OnJobComplete records a job reaching a terminal state.
	OnJobComplete(ctx context.Context, jobID, category, state string, duration time.Duration, err error)

	// OnJobRejected records a payload that failed validation.
	OnJobRejected(ctx context.Context, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnJobStart(context.Context, string, string)                          {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, string, time.Duration, error) {}
func (NoopPipelineHooks) OnJobComplete(context.Context, string, string, string, time.Duration, error) {
}
func (NoopPipelineHooks) OnJobRejected(context.Context, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Fan-out
// =============================================================================

type multiPipeline []PipelineHooks

// Multi returns PipelineHooks that forwards every event to each of hs in
// order. Nil entries are skipped.
func Multi(hs ...PipelineHooks) PipelineHooks {
	var m multiPipeline
	for _, h := range hs {
		if h != nil {
			m = append(m, h)
		}
	}
	return m
}

func (m multiPipeline) OnJobStart(ctx context.Context, jobID, category string) {
	for _, h := range m {
		h.OnJobStart(ctx, jobID, category)
	}
}

func (m multiPipeline) OnStageComplete(ctx context.Context, jobID, stage string, d time.Duration, err error) {
	for _, h := range m {
		h.OnStageComplete(ctx, jobID, stage, d, err)
	}
}

func (m multiPipeline) OnJobComplete(ctx context.Context, jobID, category, state string, d time.Duration, err error) {
	for _, h := range m {
		h.OnJobComplete(ctx, jobID, category, state, d, err)
	}
}

func (m multiPipeline) OnJobRejected(ctx context.Context, err error) {
	for _, h := range m {
		h.OnJobRejected(ctx, err)
	}
}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any jobs run.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
