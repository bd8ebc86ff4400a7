package providers

import (
	"context"
)

// SpanStatus is the terminal status of a trace span
type SpanStatus string

const (
	SpanStatusOK      SpanStatus = "ok"
	SpanStatusError   SpanStatus = "error"
	SpanStatusTimeout SpanStatus = "timeout"
)

// TraceSpan is one node in the invocation trace tree. Append-only: once
// ended, a span is never mutated.
type TraceSpan interface {
	// SetAttribute attaches a key/value pair to the span
	SetAttribute(key string, value any)

	// End closes the span with a status and a serialized output summary.
	// Must be called exactly once.
	End(status SpanStatus, summary string)
}

// TraceRecorder records every pipeline step as a causally-ordered span tree
// rooted at the invocation. The returned context carries the span so child
// spans nest under it.
type TraceRecorder interface {
	StartSpan(ctx context.Context, name string) (context.Context, TraceSpan)
}
