package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestInstrumentation(t *testing.T) (*EngineInstrumentation, *sdkmetric.ManualReader, *tracetest.SpanRecorder) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	recorder := tracetest.NewSpanRecorder()

	inst, err := NewEngineInstrumentationWith(
		sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)),
		sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)),
	)
	require.NoError(t, err)
	return inst, reader, recorder
}

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Metrics{}
}

func TestEngineInstrumentation_MatchAttempts(t *testing.T) {
	inst, reader, _ := newTestInstrumentation(t)
	ctx := context.Background()

	inst.RecordMatchAttempt(ctx, OutcomeCreated)
	inst.RecordMatchAttempt(ctx, OutcomeCreated)
	inst.RecordMatchAttempt(ctx, OutcomeNotCompatible)

	m := findMetric(t, reader, "matchengine_match_attempts_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	byOutcome := map[string]int64{}
	for _, dp := range sum.DataPoints {
		outcome, _ := dp.Attributes.Value(attribute.Key("outcome"))
		byOutcome[outcome.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), byOutcome[OutcomeCreated])
	assert.Equal(t, int64(1), byOutcome[OutcomeNotCompatible])
}

func TestEngineInstrumentation_Recommendations(t *testing.T) {
	inst, reader, _ := newTestInstrumentation(t)
	ctx := context.Background()

	inst.RecordRecommendations(ctx, "content", 4, 20*time.Millisecond)
	inst.RecordCompatibility(ctx, 0.75)

	m := findMetric(t, reader, "matchengine_recommendations_total")
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(4), sum.DataPoints[0].Value)

	h := findMetric(t, reader, "matchengine_compatibility_score")
	hist, ok := h.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestEngineInstrumentation_Spans(t *testing.T) {
	inst, _, recorder := newTestInstrumentation(t)

	_, span := inst.StartOperation(context.Background(), "TryCreateMatch", attribute.String("user_id", "alice"))
	EndOperation(span, errors.New("chat insert failed"))

	_, scoreSpan := inst.StartOperation(context.Background(), "Score")
	EndOperation(scoreSpan, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "matching.TryCreateMatch", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "matching.Score", spans[1].Name())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)
}

func TestEngineInstrumentation_NilIsNoop(t *testing.T) {
	var inst *EngineInstrumentation
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, span := inst.StartOperation(ctx, "Score")
		EndOperation(span, nil)
		inst.RecordMatchAttempt(ctx, OutcomeCreated)
		inst.RecordCompatibility(ctx, 0.5)
		inst.RecordRecommendations(ctx, "hybrid", 1, time.Millisecond)
	})
}
