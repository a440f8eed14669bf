package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/wippyai/luathread/pin"
)

func TestExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewExporter("luathread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}

	exporter.ThreadSpawned()
	exporter.ThreadSpawned()
	exporter.ThreadFinished(20*time.Millisecond, false)
	exporter.ThreadFinished(5*time.Millisecond, true)
	exporter.ThreadJoined(time.Millisecond)
	exporter.ThreadDetached()

	if got := testutil.ToFloat64(exporter.spawnedTotal); got != 2 {
		t.Fatalf("spawned total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(exporter.finishedTotal.WithLabelValues("ok")); got != 1 {
		t.Fatalf("finished ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.finishedTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("finished error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.joinedTotal); got != 1 {
		t.Fatalf("joined total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(exporter.detachedTotal); got != 1 {
		t.Fatalf("detached total = %v, want 1", got)
	}

	count, err := histogramSampleCount(exporter.durationSeconds)
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("duration sample count = %d, want 2", count)
	}
}

func TestExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewExporter("luathread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewExporter failed: %v", err)
	}
	second, err := NewExporter("luathread", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewExporter failed: %v", err)
	}

	first.ThreadDetached()
	second.ThreadDetached()

	if got := testutil.ToFloat64(first.detachedTotal); got != 2 {
		t.Fatalf("shared detached counter = %v, want 2", got)
	}
}

func TestExporter_WatchPinTable(t *testing.T) {
	exporter, err := NewExporter("luathread", prom.NewRegistry(), ExporterOptions{})
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	table := pin.NewTable()
	if err := table.Pin(pin.NewToken(), "a"); err != nil {
		t.Fatalf("pin: %v", err)
	}

	stop := exporter.Watch(table)
	if got := testutil.ToFloat64(exporter.pinnedContexts); got != 1 {
		t.Fatalf("pinned after watch = %v, want 1", got)
	}

	tok := pin.NewToken()
	if err := table.Pin(tok, "b"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if got := testutil.ToFloat64(exporter.pinnedContexts); got != 2 {
		t.Fatalf("pinned = %v, want 2", got)
	}

	stop()
	table.Unpin(tok)
	if got := testutil.ToFloat64(exporter.pinnedContexts); got != 2 {
		t.Fatalf("pinned after stop = %v, want 2 (unchanged)", got)
	}
}

func TestExporter_NilReceiver(t *testing.T) {
	var e *Exporter
	e.ThreadSpawned()
	e.ThreadFinished(time.Second, true)
	e.ThreadJoined(time.Second)
	e.ThreadDetached()
	e.OnPinEvent(pin.Event{})
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
