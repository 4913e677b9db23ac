package core

import (
	"sync"
	"time"
)

// Result wraps one Overview for the lifetime of a run: it exposes the kept
// handles, an aggregate wait, and the conclude step that finalizes the run.
type Result struct {
	overview *Overview
	started  time.Time

	mu        sync.Mutex
	concluded bool
}

// NewResult wraps an Overview into a Result.
func NewResult(overview *Overview) *Result {
	return &Result{overview: overview, started: time.Now()}
}

// Overview returns the wrapped scheduler.
func (r *Result) Overview() *Overview {
	return r.overview
}

// Resolves returns the kept handles in insertion order. The slice is a
// read-only view; mutating it does not affect the run.
func (r *Result) Resolves() []*PendingResolve {
	return r.overview.Kept()
}

// Wait blocks until every kept handle has settled or the global timeout
// elapses, delegating to Overview.WaitAll.
func (r *Result) Wait(timeout time.Duration) []*Resolve {
	return r.overview.WaitAll(timeout)
}

// Conclude finalizes the run: it ends the Overview (no further loads) and
// reports the run summary to the Inspector. Conclude does not wait for
// unsettled handles. It must be called exactly once per run; a second call
// fails with ErrConcluded.
func (r *Result) Conclude() error {
	r.mu.Lock()
	if r.concluded {
		r.mu.Unlock()
		return ErrConcluded
	}
	r.concluded = true
	r.mu.Unlock()

	r.overview.End()
	r.overview.inspector.RecordRun(r.overview.summarize(r.started))
	return nil
}

// Concluded reports whether Conclude has been called.
func (r *Result) Concluded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.concluded
}

// =============================================================================
// Scan / QuickScan
// =============================================================================

// LoadFunc is the load function handed to a scan's init callback, bound to
// that run's Overview.
type LoadFunc func(when When, fn Func, args ...any) (*PendingResolve, error)

// KeepFunc is the keep function handed to a scan's init callback.
type KeepFunc func(pending ...*PendingResolve) error

// Option customizes the Overviews built by Scan and QuickScan.
type Option func(*scanOptions)

type scanOptions struct {
	clock  func() Clock
	config Config
}

func buildOptions(opts []Option) scanOptions {
	so := scanOptions{
		clock:  func() Clock { return NewWallClock() },
		config: (*Config)(nil).normalized(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&so)
		}
	}
	return so
}

// WithClock supplies the clock for every run of the scan. Runs share the
// clock; use WithClockFactory for a fresh clock per run.
func WithClock(clock Clock) Option {
	return func(so *scanOptions) {
		if clock != nil {
			so.clock = func() Clock { return clock }
		}
	}
}

// WithClockFactory supplies a fresh clock per run.
func WithClockFactory(factory func() Clock) Option {
	return func(so *scanOptions) {
		if factory != nil {
			so.clock = factory
		}
	}
}

// WithLogger supplies the logger for every run of the scan.
func WithLogger(logger Logger) Option {
	return func(so *scanOptions) {
		if logger != nil {
			so.config.Logger = logger
		}
	}
}

// WithInspector supplies the instrumentation sink for every run of the
// scan.
func WithInspector(inspector Inspector) Option {
	return func(so *scanOptions) {
		if inspector != nil {
			so.config.Inspector = inspector
		}
	}
}

// Scan returns a zero-argument runner. Every runner invocation is an
// independent run: it builds a fresh Overview, hands the run's load and
// keep functions to init, and returns the run's Result. The caller decides
// when to Wait and Conclude.
func Scan(init func(load LoadFunc, keep KeepFunc), opts ...Option) func() *Result {
	so := buildOptions(opts)

	return func() *Result {
		cfg := so.config
		overview := NewOverviewWithConfig(so.clock(), &cfg)
		result := NewResult(overview)
		if init != nil {
			init(overview.Load, overview.Keep)
		}
		return result
	}
}

// QuickScan is the convenience form: objects receives the run's load
// function and returns the handles to keep; the started Result is returned
// immediately. An error can only come from keeping the returned handles
// (e.g. a nil entry).
func QuickScan(objects func(load LoadFunc) []*PendingResolve, opts ...Option) (*Result, error) {
	var keepErr error
	runner := Scan(func(load LoadFunc, keep KeepFunc) {
		if objects == nil {
			return
		}
		keepErr = keep(objects(load)...)
	}, opts...)

	result := runner()
	if keepErr != nil {
		result.overview.End()
		return nil, keepErr
	}
	return result, nil
}
