package llm

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const callMeterName = "github.com/ghelleks/email-labeler-agent-sub001/internal/llm"

var (
	callCostHistogram   metric.Float64Histogram
	callTokensHistogram metric.Int64Histogram
	callMetricsOnce     sync.Once
	callMetricsReady    bool
)

func initCallMetrics() {
	meter := otel.Meter(callMeterName)
	var err error
	callCostHistogram, err = meter.Float64Histogram(
		"labeler.model.cost",
		metric.WithDescription("Cost in EUR per classification model call"),
		metric.WithUnit("eur"),
	)
	if err != nil {
		return
	}
	callTokensHistogram, err = meter.Int64Histogram(
		"labeler.model.tokens",
		metric.WithDescription("Total tokens per classification model call"),
	)
	if err != nil {
		return
	}
	callMetricsReady = true
}

// RecordCallMetrics records cost and token usage after a classification model
// call. The retry attribute separates first attempts from escalated retries.
func RecordCallMetrics(ctx context.Context, costEUR float64, model string, inputTokens, outputTokens int, retry bool) {
	callMetricsOnce.Do(initCallMetrics)
	if !callMetricsReady {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.Bool("retry", retry),
	)
	callCostHistogram.Record(ctx, costEUR, attrs)
	callTokensHistogram.Record(ctx, int64(inputTokens+outputTokens), attrs)
}
