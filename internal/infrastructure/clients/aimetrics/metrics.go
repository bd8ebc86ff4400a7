// Package aimetrics records request metrics shared by the completion
// provider clients.
package aimetrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type completionMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
	tokensUsed      metric.Int64Counter
	rateLimitWait   metric.Float64Histogram
}

var (
	initOnce sync.Once
	ready    bool
	metrics  completionMetrics
)

func ensure() {
	initOnce.Do(func() {
		meter := otel.Meter("github.com/carequery/decision-support/llm")

		requestCount, err := meter.Int64Counter(
			"ai.completion.request.count",
			metric.WithDescription("Number of completion requests"),
		)
		if err != nil {
			return
		}
		requestDuration, err := meter.Float64Histogram(
			"ai.completion.request.duration",
			metric.WithDescription("Completion request duration in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}
		requestErrors, err := meter.Int64Counter(
			"ai.completion.request.errors",
			metric.WithDescription("Number of completion request errors"),
		)
		if err != nil {
			return
		}
		tokensUsed, err := meter.Int64Counter(
			"ai.completion.tokens.used",
			metric.WithDescription("Tokens consumed by completion requests"),
		)
		if err != nil {
			return
		}
		rateLimitWait, err := meter.Float64Histogram(
			"ai.completion.rate_limit.wait",
			metric.WithDescription("Time spent waiting for the provider rate limiter in milliseconds"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			return
		}

		metrics = completionMetrics{
			requestCount:    requestCount,
			requestDuration: requestDuration,
			requestErrors:   requestErrors,
			tokensUsed:      tokensUsed,
			rateLimitWait:   rateLimitWait,
		}
		ready = true
	})
}

func attrs(provider, model string, statusCode int) []attribute.KeyValue {
	kv := []attribute.KeyValue{
		attribute.String("ai.provider", provider),
		attribute.String("ai.model", model),
	}
	if statusCode > 0 {
		kv = append(kv, attribute.Int("http.status_code", statusCode))
	}
	return kv
}

// RecordCompletion records one completion request outcome
func RecordCompletion(ctx context.Context, provider, model string, statusCode int, duration time.Duration, err error) {
	ensure()
	if !ready {
		return
	}
	kv := attrs(provider, model, statusCode)
	metrics.requestCount.Add(ctx, 1, metric.WithAttributes(kv...))
	metrics.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(kv...))
	if err != nil {
		metrics.requestErrors.Add(ctx, 1, metric.WithAttributes(kv...))
	}
}

// RecordTokens records token usage reported by the provider
func RecordTokens(ctx context.Context, provider, model string, tokens int) {
	ensure()
	if !ready || tokens <= 0 {
		return
	}
	metrics.tokensUsed.Add(ctx, int64(tokens), metric.WithAttributes(attrs(provider, model, 0)...))
}

// RecordRateLimitWait records time spent blocked on the client rate limiter
func RecordRateLimitWait(ctx context.Context, provider, model string, wait time.Duration) {
	ensure()
	if !ready {
		return
	}
	metrics.rateLimitWait.Record(ctx, float64(wait.Milliseconds()), metric.WithAttributes(attrs(provider, model, 0)...))
}
