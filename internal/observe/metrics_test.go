package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the int64 sum data point whose attributes include every
// pair in want.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name string, want ...attribute.KeyValue) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %s not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %s is %T, want Sum[int64]", name, met.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		match := true
		for _, kv := range want {
			v, ok := dp.Attributes.Value(kv.Key)
			if !ok || v != kv.Value {
				match = false
				break
			}
		}
		if match {
			total += dp.Value
		}
	}
	return total
}

func TestSessionLifecycleCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.SessionStarted(ctx)
	m.SessionStarted(ctx)
	m.SessionEnded(ctx)

	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.sessions.started"); got != 2 {
		t.Errorf("sessions.started = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mockinterview.sessions.active"); got != 1 {
		t.Errorf("sessions.active = %d, want 1", got)
	}
}

func TestRecordReplace(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordReplace(ctx, "preserved", nil)
	m.RecordReplace(ctx, "preserved", nil)
	m.RecordReplace(ctx, "lost", errors.New("boom"))

	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.sessions.replaced", Attr("continuity", "preserved"), Attr("status", "ok")); got != 2 {
		t.Errorf("preserved/ok = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mockinterview.sessions.replaced", Attr("continuity", "lost"), Attr("status", "error")); got != 1 {
		t.Errorf("lost/error = %d, want 1", got)
	}
}

func TestRecordRPC(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRPC(ctx, "pg.updateConfig", "changed")
	m.RecordRPC(ctx, "pg.updateConfig", "unchanged")
	m.RecordRPC(ctx, "pg.updateConfig", "changed")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.rpc.calls", Attr("outcome", "changed")); got != 2 {
		t.Errorf("changed = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mockinterview.rpc.calls", Attr("method", "pg.updateConfig")); got != 3 {
		t.Errorf("total = %d, want 3", got)
	}
}

func TestRecordToolCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordToolCall(ctx, "generate_image", 1500*time.Millisecond, nil)
	m.RecordToolCall(ctx, "generate_image", 200*time.Millisecond, errors.New("quota"))

	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.tool.calls", Attr("status", "error")); got != 1 {
		t.Errorf("error calls = %d, want 1", got)
	}
	met := findMetric(rm, "mockinterview.tool.duration")
	if met == nil {
		t.Fatal("tool.duration not found")
	}
	hist := met.Data.(metricdata.Histogram[float64])
	if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 2 {
		t.Fatalf("tool.duration points = %+v, want one point with count 2", hist.DataPoints)
	}
	if hist.DataPoints[0].Sum < 1.69 || hist.DataPoints[0].Sum > 1.71 {
		t.Errorf("tool.duration sum = %f, want 1.7", hist.DataPoints[0].Sum)
	}
}

func TestRecordProviderRequest(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "imagen", "image", nil)
	m.RecordProviderRequest(ctx, "imagen", "image", errors.New("503"))

	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.provider.requests", Attr("provider", "imagen")); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := sumFor(t, rm, "mockinterview.provider.errors", Attr("kind", "image")); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}
}

func TestRecordInterviewMessage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	for _, r := range []string{"stored", "stored", "duplicate"} {
		m.RecordInterviewMessage(ctx, r)
	}
	rm := collect(t, reader)
	if got := sumFor(t, rm, "mockinterview.interview.messages", Attr("result", "duplicate")); got != 1 {
		t.Errorf("duplicate = %d, want 1", got)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != "ok" || Status(errors.New("x")) != "error" {
		t.Error("Status mapping wrong")
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
