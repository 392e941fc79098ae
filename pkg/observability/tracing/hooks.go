package tracing

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/matzehuels/mockup/pkg/observability"
)

// Span and attribute names.
const (
	SpanJob      = "mockup.job"
	SpanRejected = "mockup.rejected"

	AttrJobID       = "job.id"
	AttrJobCategory = "job.category"
	AttrJobState    = "job.state"
	AttrStageName   = "stage.name"
	AttrStageMillis = "stage.duration_ms"
	AttrErrorMsg    = "error.message"

	EventStage = "stage.complete"
)

// Hooks emits one span per job. Stages are recorded as span events, so a
// job shows up as a single span with a timeline of its stages.
type Hooks struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewHooks creates pipeline hooks that trace with tracer.
func NewHooks(tracer trace.Tracer) *Hooks {
	return &Hooks{tracer: tracer, spans: make(map[string]trace.Span)}
}

func (h *Hooks) OnJobStart(ctx context.Context, jobID, category string) {
	_, span := h.tracer.Start(ctx, SpanJob, trace.WithAttributes(
		attribute.String(AttrJobID, jobID),
		attribute.String(AttrJobCategory, category),
	))

	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.spans[jobID]; ok {
		prev.End()
	}
	h.spans[jobID] = span
}

func (h *Hooks) OnStageComplete(_ context.Context, jobID, stage string, d time.Duration, err error) {
	h.mu.Lock()
	span, ok := h.spans[jobID]
	h.mu.Unlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(AttrStageName, stage),
		attribute.Int64(AttrStageMillis, d.Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(AttrErrorMsg, err.Error()))
	}
	span.AddEvent(EventStage, trace.WithAttributes(attrs...))
}

func (h *Hooks) OnJobComplete(_ context.Context, jobID, _, state string, _ time.Duration, err error) {
	h.mu.Lock()
	span, ok := h.spans[jobID]
	delete(h.spans, jobID)
	h.mu.Unlock()
	if !ok {
		return
	}

	span.SetAttributes(attribute.String(AttrJobState, state))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (h *Hooks) OnJobRejected(ctx context.Context, err error) {
	_, span := h.tracer.Start(ctx, SpanRejected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

var _ observability.PipelineHooks = (*Hooks)(nil)
