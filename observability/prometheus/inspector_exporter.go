package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/schemora/go-scanner/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	DriftBuckets    []float64
}

// InspectorExporter adapts core.Inspector to Prometheus collectors.
type InspectorExporter struct {
	firingDurationSeconds *prom.HistogramVec
	firingDriftSeconds    *prom.HistogramVec
	firingFailedTotal     *prom.CounterVec
	runsTotal             prom.Counter
	runFiredTotal         prom.Counter
	runFailedTotal        prom.Counter
	runKept               prom.Gauge
	runDurationSeconds    prom.Histogram
}

var _ core.Inspector = (*InspectorExporter)(nil)

// NewInspectorExporter creates and registers Prometheus collectors for
// core.Inspector.
func NewInspectorExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*InspectorExporter, error) {
	if namespace == "" {
		namespace = "scanner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	durationBuckets := opts.DurationBuckets
	if len(durationBuckets) == 0 {
		durationBuckets = prom.DefBuckets
	}
	driftBuckets := opts.DriftBuckets
	if len(driftBuckets) == 0 {
		driftBuckets = prom.ExponentialBuckets(0.001, 4, 8)
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "firing_duration_seconds",
		Help:      "Execution duration of scheduled firings in seconds.",
		Buckets:   durationBuckets,
	}, []string{"function"})
	driftVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "firing_drift_seconds",
		Help:      "Deviation between target and actual start time in seconds.",
		Buckets:   driftBuckets,
	}, []string{"function"})
	failedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "firing_failed_total",
		Help:      "Total number of firings that ended in a failure.",
	}, []string{"function"})
	runsTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of concluded runs.",
	})
	runFired := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_fired_total",
		Help:      "Total firings across concluded runs.",
	})
	runFailed := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "run_failed_total",
		Help:      "Total failed firings across concluded runs.",
	})
	runKept := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "run_kept",
		Help:      "Kept handles of the most recently concluded run.",
	})
	runDuration := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of concluded runs in seconds.",
		Buckets:   durationBuckets,
	})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if driftVec, err = registerCollector(reg, driftVec); err != nil {
		return nil, err
	}
	if failedVec, err = registerCollector(reg, failedVec); err != nil {
		return nil, err
	}
	if runsTotal, err = registerCollector(reg, runsTotal); err != nil {
		return nil, err
	}
	if runFired, err = registerCollector(reg, runFired); err != nil {
		return nil, err
	}
	if runFailed, err = registerCollector(reg, runFailed); err != nil {
		return nil, err
	}
	if runKept, err = registerCollector(reg, runKept); err != nil {
		return nil, err
	}
	if runDuration, err = registerCollector(reg, runDuration); err != nil {
		return nil, err
	}

	return &InspectorExporter{
		firingDurationSeconds: durationVec,
		firingDriftSeconds:    driftVec,
		firingFailedTotal:     failedVec,
		runsTotal:             runsTotal,
		runFiredTotal:         runFired,
		runFailedTotal:        runFailed,
		runKept:               runKept,
		runDurationSeconds:    runDuration,
	}, nil
}

// RecordFiring records one completed firing.
func (e *InspectorExporter) RecordFiring(function string, drift, duration time.Duration, failed bool) {
	if e == nil {
		return
	}
	label := normalizeLabel(function, "anonymous")
	e.firingDurationSeconds.WithLabelValues(label).Observe(duration.Seconds())
	e.firingDriftSeconds.WithLabelValues(label).Observe(drift.Abs().Seconds())
	if failed {
		e.firingFailedTotal.WithLabelValues(label).Inc()
	}
}

// RecordRun records a concluded run.
func (e *InspectorExporter) RecordRun(summary core.RunSummary) {
	if e == nil {
		return
	}
	e.runsTotal.Inc()
	e.runFiredTotal.Add(float64(summary.Fired))
	e.runFailedTotal.Add(float64(summary.Failed))
	e.runKept.Set(float64(summary.Kept))
	e.runDurationSeconds.Observe(summary.Concluded.Sub(summary.Started).Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
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
