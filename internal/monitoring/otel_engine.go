package monitoring

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/meetsmatch/matchengine/internal/monitoring"
	instrumentationVersion = "1.0.0"
)

// Match attempt outcomes recorded on matchengine_match_attempts_total
const (
	OutcomeCreated       = "created"
	OutcomeAlreadyExists = "already_exists"
	OutcomeNotCompatible = "not_compatible"
	OutcomeBlocked       = "blocked"
	OutcomeInactive      = "inactive"
	OutcomeFailed        = "failed"
)

// EngineInstrumentation provides OpenTelemetry spans and metrics for engine operations
type EngineInstrumentation struct {
	tracer trace.Tracer
	meter  metric.Meter

	matchAttempts     metric.Int64Counter
	compatibility     metric.Float64Histogram
	recommendations   metric.Int64Counter
	recommendDuration metric.Float64Histogram
}

// NewEngineInstrumentation creates instruments on the global providers
func NewEngineInstrumentation() (*EngineInstrumentation, error) {
	return NewEngineInstrumentationWith(otel.GetTracerProvider(), otel.GetMeterProvider())
}

// NewEngineInstrumentationWith creates instruments on explicit providers
func NewEngineInstrumentationWith(tp trace.TracerProvider, mp metric.MeterProvider) (*EngineInstrumentation, error) {
	tracer := tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
	meter := mp.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	matchAttempts, err := meter.Int64Counter(
		"matchengine_match_attempts_total",
		metric.WithDescription("Match creation attempts by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matchengine_match_attempts_total counter: %w", err)
	}

	compatibility, err := meter.Float64Histogram(
		"matchengine_compatibility_score",
		metric.WithDescription("Distribution of computed compatibility scores"),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matchengine_compatibility_score histogram: %w", err)
	}

	recommendations, err := meter.Int64Counter(
		"matchengine_recommendations_total",
		metric.WithDescription("Recommendations returned by source"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matchengine_recommendations_total counter: %w", err)
	}

	recommendDuration, err := meter.Float64Histogram(
		"matchengine_recommend_duration_seconds",
		metric.WithDescription("Recommendation computation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create matchengine_recommend_duration_seconds histogram: %w", err)
	}

	return &EngineInstrumentation{
		tracer:            tracer,
		meter:             meter,
		matchAttempts:     matchAttempts,
		compatibility:     compatibility,
		recommendations:   recommendations,
		recommendDuration: recommendDuration,
	}, nil
}

// StartOperation opens a span named matching.<operation>. A nil receiver
// returns a non-recording span.
func (e *EngineInstrumentation) StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if e == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return e.tracer.Start(ctx, "matching."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndOperation records err on the span, if any, and ends it
func EndOperation(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// RecordMatchAttempt counts one match creation attempt
func (e *EngineInstrumentation) RecordMatchAttempt(ctx context.Context, outcome string) {
	if e == nil {
		return
	}
	e.matchAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCompatibility records one computed score
func (e *EngineInstrumentation) RecordCompatibility(ctx context.Context, score float64) {
	if e == nil {
		return
	}
	e.compatibility.Record(ctx, score)
}

// RecordRecommendations records the size and latency of one recommendation run
func (e *EngineInstrumentation) RecordRecommendations(ctx context.Context, source string, count int, duration time.Duration) {
	if e == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	e.recommendations.Add(ctx, int64(count), attrs)
	e.recommendDuration.Record(ctx, duration.Seconds(), attrs)
}
