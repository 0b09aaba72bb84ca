// Package observe records OpenTelemetry metrics for report submissions and
// exposes them to Prometheus.
//
// Tests should build their own Metrics with NewMetrics and an SDK meter
// provider backed by a ManualReader.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/dcarowpilot/daily-report-ai"

// Metrics holds the instruments used by the ingestion pipeline and the HTTP
// server. All fields are safe for concurrent use.
type Metrics struct {
	// Submissions counts finished submissions by status ("ok" or "failed").
	Submissions metric.Int64Counter

	// StepFailures counts degraded or failed steps by step name.
	StepFailures metric.Int64Counter

	// StepDuration tracks per-step latency by step name.
	StepDuration metric.Float64Histogram

	// SubmitDuration tracks end-to-end submission latency.
	SubmitDuration metric.Float64Histogram

	// MediaBytes counts uploaded bytes by kind ("photo" or "audio").
	MediaBytes metric.Int64Counter

	HTTPRequestDuration metric.Float64Histogram
}

// Transcription and extraction calls take seconds, uploads can take longer.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Submissions, err = m.Int64Counter("dailyreport.submissions",
		metric.WithDescription("Finished report submissions by status."),
	); err != nil {
		return nil, err
	}
	if met.StepFailures, err = m.Int64Counter("dailyreport.step.failures",
		metric.WithDescription("Pipeline step failures by step."),
	); err != nil {
		return nil, err
	}
	if met.StepDuration, err = m.Float64Histogram("dailyreport.step.duration",
		metric.WithDescription("Latency of a pipeline step."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SubmitDuration, err = m.Float64Histogram("dailyreport.submit.duration",
		metric.WithDescription("End-to-end submission latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MediaBytes, err = m.Int64Counter("dailyreport.media.bytes",
		metric.WithDescription("Uploaded media bytes by kind."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("dailyreport.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics built from the global
// meter provider. Call InitProvider first so the instruments are exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordStep records the duration of one step and, when failed is true,
// increments the failure counter for it.
func (m *Metrics) RecordStep(ctx context.Context, step string, d time.Duration, failed bool) {
	attrs := metric.WithAttributes(attribute.String("step", step))
	m.StepDuration.Record(ctx, d.Seconds(), attrs)
	if failed {
		m.StepFailures.Add(ctx, 1, attrs)
	}
}

// RecordSubmission records a finished submission.
func (m *Metrics) RecordSubmission(ctx context.Context, status string, d time.Duration) {
	m.Submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.SubmitDuration.Record(ctx, d.Seconds())
}

// RecordMedia adds n uploaded bytes for kind.
func (m *Metrics) RecordMedia(ctx context.Context, kind string, n int) {
	m.MediaBytes.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", kind)))
}
