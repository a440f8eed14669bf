package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/luathread/pin"
	"github.com/wippyai/luathread/runtime"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// Exporter adapts runtime.Metrics and pin table events to Prometheus collectors.
type Exporter struct {
	spawnedTotal    prom.Counter
	finishedTotal   *prom.CounterVec
	joinedTotal     prom.Counter
	detachedTotal   prom.Counter
	durationSeconds prom.Histogram
	joinWaitSeconds prom.Histogram
	pinnedContexts  prom.Gauge
}

var (
	_ runtime.Metrics = (*Exporter)(nil)
	_ pin.Observer    = (*Exporter)(nil)
)

// NewExporter creates and registers the collectors. A nil registerer means
// the default one.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "luathread"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	spawned := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_spawned_total",
		Help:      "Total number of spawned script threads.",
	})
	finished := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_finished_total",
		Help:      "Total number of script threads whose function returned.",
	}, []string{"result"})
	joined := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_joined_total",
		Help:      "Total number of joined thread handles.",
	})
	detached := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "threads_detached_total",
		Help:      "Total number of thread handles collected while running.",
	})
	duration := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "thread_duration_seconds",
		Help:      "Script thread run time in seconds.",
		Buckets:   buckets,
	})
	joinWait := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "join_wait_seconds",
		Help:      "Time join callers spent blocked, in seconds.",
		Buckets:   buckets,
	})
	pinned := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pinned_contexts",
		Help:      "Execution contexts currently pinned.",
	})

	var err error
	if spawned, err = registerCollector(reg, spawned); err != nil {
		return nil, err
	}
	if finished, err = registerCollector(reg, finished); err != nil {
		return nil, err
	}
	if joined, err = registerCollector(reg, joined); err != nil {
		return nil, err
	}
	if detached, err = registerCollector(reg, detached); err != nil {
		return nil, err
	}
	if duration, err = registerCollector(reg, duration); err != nil {
		return nil, err
	}
	if joinWait, err = registerCollector(reg, joinWait); err != nil {
		return nil, err
	}
	if pinned, err = registerCollector(reg, pinned); err != nil {
		return nil, err
	}

	return &Exporter{
		spawnedTotal:    spawned,
		finishedTotal:   finished,
		joinedTotal:     joined,
		detachedTotal:   detached,
		durationSeconds: duration,
		joinWaitSeconds: joinWait,
		pinnedContexts:  pinned,
	}, nil
}

// Watch keeps the pinned gauge in sync with t and returns a function that stops it.
func (e *Exporter) Watch(t *pin.Table) (stop func()) {
	e.pinnedContexts.Set(float64(t.Len()))
	return t.Subscribe(e)
}

// ThreadSpawned records a spawn.
func (e *Exporter) ThreadSpawned() {
	if e == nil {
		return
	}
	e.spawnedTotal.Inc()
}

// ThreadFinished records a completed thread function.
func (e *Exporter) ThreadFinished(elapsed time.Duration, failed bool) {
	if e == nil {
		return
	}
	e.finishedTotal.WithLabelValues(resultLabel(failed)).Inc()
	e.durationSeconds.Observe(elapsed.Seconds())
}

// ThreadJoined records a join and how long it blocked.
func (e *Exporter) ThreadJoined(wait time.Duration) {
	if e == nil {
		return
	}
	e.joinedTotal.Inc()
	e.joinWaitSeconds.Observe(wait.Seconds())
}

// ThreadDetached records a handle collected while running.
func (e *Exporter) ThreadDetached() {
	if e == nil {
		return
	}
	e.detachedTotal.Inc()
}

// OnPinEvent tracks the pin table size.
func (e *Exporter) OnPinEvent(ev pin.Event) {
	if e == nil {
		return
	}
	e.pinnedContexts.Set(float64(ev.Len))
}

func resultLabel(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
