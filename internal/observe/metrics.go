// Package observe provides the service's OpenTelemetry metrics, tracing
// helpers, trace-aware logging and the HTTP middleware that ties them
// together.
//
// Metrics are exported through a Prometheus bridge set up by [InitProvider]
// and scraped at /metrics. [DefaultMetrics] is backed by the global meter
// provider; tests should build their own with [NewMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/mockinterview"

// Metrics holds every instrument the service records. The OTel types are
// safe for concurrent use.
type Metrics struct {
	// ActiveSessions is the number of live interview sessions.
	ActiveSessions metric.Int64UpDownCounter

	// SessionsStarted counts sessions started for a newly joined candidate.
	SessionsStarted metric.Int64Counter

	// SessionsReplaced counts live reconfigurations by "continuity"
	// (preserved, lost) and "status" (ok, error).
	SessionsReplaced metric.Int64Counter

	// RPCCalls counts incoming room RPCs by "method" and "outcome".
	RPCCalls metric.Int64Counter

	// ToolCalls counts model tool invocations by "tool" and "status".
	ToolCalls metric.Int64Counter

	// ToolDuration tracks tool handler latency by "tool".
	ToolDuration metric.Float64Histogram

	// ImageGenerationDuration tracks image backend latency.
	ImageGenerationDuration metric.Float64Histogram

	// QuestionGenerationDuration tracks question bank generation latency.
	QuestionGenerationDuration metric.Float64Histogram

	// InterviewMessages counts transcript appends by "result" (stored,
	// updated, duplicate).
	InterviewMessages metric.Int64Counter

	// ProviderRequests counts backend calls by "provider", "kind", "status".
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts backend errors by "provider" and "kind".
	ProviderErrors metric.Int64Counter

	// HTTPRequestDuration tracks API latency by "method", "route", "status".
	HTTPRequestDuration metric.Float64Histogram
}

var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.SessionsStarted, "mockinterview.sessions.started", "Interview sessions started."},
		{&met.SessionsReplaced, "mockinterview.sessions.replaced", "Interview sessions replaced by a live reconfiguration."},
		{&met.RPCCalls, "mockinterview.rpc.calls", "Room RPC invocations by method and outcome."},
		{&met.ToolCalls, "mockinterview.tool.calls", "Model tool invocations by tool and status."},
		{&met.InterviewMessages, "mockinterview.interview.messages", "Transcript messages appended to interview history by result."},
		{&met.ProviderRequests, "mockinterview.provider.requests", "Backend requests by provider, kind and status."},
		{&met.ProviderErrors, "mockinterview.provider.errors", "Backend errors by provider and kind."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.ToolDuration, "mockinterview.tool.duration", "Latency of tool handlers."},
		{&met.ImageGenerationDuration, "mockinterview.image.generation.duration", "Latency of image generation."},
		{&met.QuestionGenerationDuration, "mockinterview.questions.generation.duration", "Latency of question bank generation."},
		{&met.HTTPRequestDuration, "mockinterview.http.request.duration", "HTTP request latency by method, route and status."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("mockinterview.sessions.active",
		metric.WithDescription("Number of live interview sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns a package-level Metrics backed by the global meter
// provider. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Status maps err to the "ok"/"error" attribute value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// SessionStarted records a new live session.
func (m *Metrics) SessionStarted(ctx context.Context) {
	m.SessionsStarted.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
}

// SessionEnded records a live session going away.
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.ActiveSessions.Add(ctx, -1)
}

// RecordReplace records a reconfiguration outcome.
func (m *Metrics) RecordReplace(ctx context.Context, continuity string, err error) {
	m.SessionsReplaced.Add(ctx, 1, metric.WithAttributes(Attr("continuity", continuity), Attr("status", Status(err))))
}

// RecordRPC records an RPC invocation.
func (m *Metrics) RecordRPC(ctx context.Context, method, outcome string) {
	m.RPCCalls.Add(ctx, 1, metric.WithAttributes(Attr("method", method), Attr("outcome", outcome)))
}

// RecordToolCall records a tool invocation and its latency.
func (m *Metrics) RecordToolCall(ctx context.Context, tool string, d time.Duration, err error) {
	m.ToolCalls.Add(ctx, 1, metric.WithAttributes(Attr("tool", tool), Attr("status", Status(err))))
	m.ToolDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("tool", tool)))
}

// RecordProviderRequest records one backend call. Errors are also counted
// in ProviderErrors.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind string, err error) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind), Attr("status", Status(err))))
	if err != nil {
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
	}
}

// RecordInterviewMessage records a transcript append result.
func (m *Metrics) RecordInterviewMessage(ctx context.Context, result string) {
	m.InterviewMessages.Add(ctx, 1, metric.WithAttributes(Attr("result", result)))
}
