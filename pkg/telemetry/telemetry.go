// Package telemetry wires the orchestrator's per-stage latency
// instrumentation into OpenTelemetry metrics, generalizing the teacher's
// manual LatencyBreakdown timestamps (pkg/orchestrator/managed_stream.go in
// the source repo) into real histograms exportable to Prometheus
// (go.opentelemetry.io/otel/exporters/prometheus, as wired directly in
// MrWong99-glyphoxa and lookatitude-beluga-ai).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records stage-duration histograms for one process. A single
// Recorder is normally shared across all Sessions in a process; each
// recording call is independent and safe for concurrent use.
type Recorder struct {
	sttDuration     metric.Float64Histogram
	llmDuration     metric.Float64Histogram
	ttsDuration     metric.Float64Histogram
	endToEndLatency metric.Float64Histogram
	interruptions   metric.Int64Counter

	provider *sdkmetric.MeterProvider
}

// New creates a Recorder backed by a Prometheus exporter. Callers expose
// the returned provider's registry via an HTTP handler (see cmd/server).
func New() (*Recorder, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := mp.Meter("conversation_orchestrator")

	sttHist, err := meter.Float64Histogram("orchestrator.stt.duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	llmHist, err := meter.Float64Histogram("orchestrator.llm.duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	ttsHist, err := meter.Float64Histogram("orchestrator.tts.duration_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	e2eHist, err := meter.Float64Histogram("orchestrator.turn.end_to_end_ms", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	interruptions, err := meter.Int64Counter("orchestrator.interruptions.total")
	if err != nil {
		return nil, err
	}

	return &Recorder{
		sttDuration:     sttHist,
		llmDuration:     llmHist,
		ttsDuration:     ttsHist,
		endToEndLatency: e2eHist,
		interruptions:   interruptions,
		provider:        mp,
	}, nil
}

// NoOp returns a Recorder whose instruments are unset; every Record* call is
// then a cheap nil-check no-op. Used as the default when a caller doesn't
// wire a real Recorder (tests, the local cmd/agent demo).
func NoOp() *Recorder { return &Recorder{} }

func (r *Recorder) RecordSTT(d time.Duration) {
	if r == nil || r.sttDuration == nil {
		return
	}
	r.sttDuration.Record(context.Background(), float64(d.Milliseconds()))
}

func (r *Recorder) RecordLLM(d time.Duration) {
	if r == nil || r.llmDuration == nil {
		return
	}
	r.llmDuration.Record(context.Background(), float64(d.Milliseconds()))
}

func (r *Recorder) RecordTTS(d time.Duration) {
	if r == nil || r.ttsDuration == nil {
		return
	}
	r.ttsDuration.Record(context.Background(), float64(d.Milliseconds()))
}

func (r *Recorder) RecordEndToEnd(d time.Duration) {
	if r == nil || r.endToEndLatency == nil {
		return
	}
	r.endToEndLatency.Record(context.Background(), float64(d.Milliseconds()))
}

func (r *Recorder) RecordInterruption() {
	if r == nil || r.interruptions == nil {
		return
	}
	r.interruptions.Add(context.Background(), 1)
}

// Shutdown flushes and releases the underlying meter provider, if any.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
