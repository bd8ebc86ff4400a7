package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carequery/decision-support/internal/domain/providers"
)

const tracerName = "github.com/carequery/decision-support"

// OTelRecorder is the production TraceRecorder: every pipeline step becomes
// an otel span nested under the invocation root.
type OTelRecorder struct{}

var _ providers.TraceRecorder = (*OTelRecorder)(nil)

// NewOTelRecorder creates an otel-backed trace recorder
func NewOTelRecorder() *OTelRecorder {
	return &OTelRecorder{}
}

// StartSpan starts a span; parent linkage comes from ctx.
func (r *OTelRecorder) StartSpan(ctx context.Context, name string) (context.Context, providers.TraceSpan) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) End(status providers.SpanStatus, summary string) {
	if summary != "" {
		s.span.SetAttributes(attribute.String("output.summary", summary))
	}
	s.span.SetAttributes(attribute.String("span.status", string(status)))
	if status != providers.SpanStatusOK {
		s.span.SetStatus(codes.Error, string(status))
	}
	s.span.End()
}
