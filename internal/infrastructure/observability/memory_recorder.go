package observability

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carequery/decision-support/internal/domain/providers"
)

// MemoryRecorder collects the span tree in memory. Used by tests and the
// offline evaluation command, where exporting to a collector is noise.
type MemoryRecorder struct {
	mu    sync.Mutex
	spans []*RecordedSpan
}

var _ providers.TraceRecorder = (*MemoryRecorder)(nil)

// RecordedSpan is one closed or open span in the recorded tree
type RecordedSpan struct {
	ID         string
	ParentID   string
	Name       string
	StartedAt  time.Time
	EndedAt    time.Time
	Status     providers.SpanStatus
	Summary    string
	Attributes map[string]any

	recorder *MemoryRecorder
	mu       sync.Mutex
	ended    bool
}

type memorySpanKey struct{}

// NewMemoryRecorder creates an in-memory trace recorder
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// StartSpan starts a span parented to the span carried by ctx, if any
func (r *MemoryRecorder) StartSpan(ctx context.Context, name string) (context.Context, providers.TraceSpan) {
	span := &RecordedSpan{
		ID:         uuid.NewString(),
		Name:       name,
		StartedAt:  time.Now(),
		Attributes: make(map[string]any),
		recorder:   r,
	}
	if parent, ok := ctx.Value(memorySpanKey{}).(*RecordedSpan); ok {
		span.ParentID = parent.ID
	}

	r.mu.Lock()
	r.spans = append(r.spans, span)
	r.mu.Unlock()

	return context.WithValue(ctx, memorySpanKey{}, span), span
}

// Spans returns all recorded spans in start order
func (r *MemoryRecorder) Spans() []*RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RecordedSpan, len(r.spans))
	copy(out, r.spans)
	return out
}

// Find returns the first span with the given name, or nil
func (r *MemoryRecorder) Find(name string) *RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spans {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// SetAttribute attaches a key/value pair to the span
func (s *RecordedSpan) SetAttribute(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Attributes[key] = value
}

// End closes the span. Spans are append-only: a second End is ignored.
func (s *RecordedSpan) End(status providers.SpanStatus, summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.EndedAt = time.Now()
	s.Status = status
	s.Summary = summary
}
