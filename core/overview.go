package core

import (
	"fmt"
	"sync"
	"time"
)

// Overview is the scheduler: it accepts Load requests against one Clock,
// fires each accepted call when the clock reaches its target, and tracks
// which PendingResolves are kept for aggregate retrieval.
//
// The Clock may be shared by multiple Overviews. Load, Keep and End never
// block; Wait and WaitAll are the only suspension points and they block only
// the caller, never the dispatch path.
type Overview struct {
	clock     Clock
	logger    Logger
	inspector Inspector
	dispatch  *dispatcher

	mu      sync.Mutex
	ended   bool
	kept    []*PendingResolve
	keptSet map[*PendingResolve]struct{}
	loaded  int
	fired   int
	failed  int

	inflight sync.WaitGroup
}

// OverviewStats is a point-in-time snapshot of an Overview.
type OverviewStats struct {
	Loaded  int
	Fired   int
	Failed  int
	Kept    int
	Pending int
	Ended   bool
}

// NewOverview creates an Overview bound to the given clock with default
// collaborators.
func NewOverview(clock Clock) *Overview {
	return NewOverviewWithConfig(clock, DefaultConfig())
}

// NewOverviewWithConfig creates an Overview with explicit collaborators.
// A nil clock falls back to a fresh WallClock.
func NewOverviewWithConfig(clock Clock, config *Config) *Overview {
	if clock == nil {
		clock = NewWallClock()
	}
	cfg := config.normalized()

	return &Overview{
		clock:     clock,
		logger:    cfg.Logger,
		inspector: cfg.Inspector,
		dispatch:  newDispatcher(clock, cfg.Logger),
		keptSet:   make(map[*PendingResolve]struct{}),
	}
}

// Clock returns the time source this Overview schedules against.
func (o *Overview) Clock() Clock {
	return o.clock
}

// Load schedules fn to run when the clock reaches the target, binding the
// given positional arguments. It returns a fresh PendingResolve immediately;
// scheduling never blocks. After End, Load fails with ErrEnded.
func (o *Overview) Load(when When, fn Func, args ...any) (*PendingResolve, error) {
	return o.LoadCall(when, fn, Call{Args: args})
}

// LoadCall is Load with full argument binding, including named values.
func (o *Overview) LoadCall(when When, fn Func, call Call) (*PendingResolve, error) {
	if fn == nil {
		return nil, fmt.Errorf("load: function cannot be nil")
	}
	target, err := o.resolveWhen(when)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return nil, ErrEnded
	}
	o.loaded++
	o.inflight.Add(1)
	o.mu.Unlock()

	pending := newPendingResolve(o, fn, call.clone(), target)

	if target == Immediate {
		// Immediate targets bypass the dispatcher entirely.
		go o.fire(pending)
	} else if !o.dispatch.Add(target, func() { o.fire(pending) }) {
		// End raced the Load; intake closed between the checks.
		o.mu.Lock()
		o.loaded--
		o.mu.Unlock()
		o.inflight.Done()
		return nil, ErrEnded
	}

	o.logger.Debug("call loaded",
		F("function", funcName(fn)),
		F("target", target),
		F("args", len(call.Args)),
	)
	return pending, nil
}

// resolveWhen normalizes the When union into the clock's time domain.
func (o *Overview) resolveWhen(when When) (Time, error) {
	switch when.kind {
	case whenImmediate:
		return Immediate, nil
	case whenTime:
		if when.t < 0 {
			return Immediate, nil
		}
		return when.t, nil
	case whenIn:
		return o.clock.Now().Add(when.d), nil
	case whenWall:
		mapper, ok := o.clock.(WallMapper)
		if !ok {
			return 0, ErrWallTimeUnsupported
		}
		t := mapper.TimeOf(when.wall)
		if t < 0 {
			return Immediate, nil
		}
		return t, nil
	default:
		return 0, fmt.Errorf("unknown when kind %d", when.kind)
	}
}

// fire executes one scheduled call and settles its handle. A failure or
// panic of the user function becomes the Resolve's error; it never reaches
// the dispatcher or other pending calls.
func (o *Overview) fire(pending *PendingResolve) {
	defer o.inflight.Done()

	start := o.clock.Now()
	value, err := safeInvoke(pending.fn, pending.call)
	end := o.clock.Now()

	resolve := NewResolve(pending.target, start, end, pending.fn, value, err)
	if setErr := pending.SetResolve(resolve); setErr != nil {
		o.logger.Warn("duplicate resolve dropped", F("error", setErr))
		return
	}

	o.mu.Lock()
	o.fired++
	if resolve.Failed() {
		o.failed++
	}
	o.mu.Unlock()

	o.inspector.RecordFiring(funcName(pending.fn), resolve.Drift(), resolve.Duration(), resolve.Failed())
	o.logger.Debug("call fired",
		F("function", funcName(pending.fn)),
		F("drift", resolve.Drift()),
		F("duration", resolve.Duration()),
		F("failed", resolve.Failed()),
	)
}

// Keep marks the given handles as tracked for aggregate retrieval. It is
// idempotent and order-independent with respect to Load; keeping a handle
// produced by a different Overview fails with ErrForeignPending and keeps
// none of the batch.
func (o *Overview) Keep(pending ...*PendingResolve) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, p := range pending {
		if p == nil {
			return fmt.Errorf("keep: handle %d is nil", i)
		}
		if p.owner != o {
			return fmt.Errorf("keep: handle %d: %w", i, ErrForeignPending)
		}
	}
	for _, p := range pending {
		if _, dup := o.keptSet[p]; dup {
			continue
		}
		o.keptSet[p] = struct{}{}
		o.kept = append(o.kept, p)
	}
	return nil
}

// Kept returns the kept handles in insertion order.
func (o *Overview) Kept() []*PendingResolve {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*PendingResolve, len(o.kept))
	copy(out, o.kept)
	return out
}

// End closes the Overview: no further Load is accepted. Calls already
// scheduled or in flight still fire. End is idempotent.
func (o *Overview) End() {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.mu.Unlock()

	o.dispatch.CloseIntake()
	o.logger.Debug("overview ended")
}

// Drain blocks until every accepted call has fired. Call End first; with
// intake still open new loads keep the drain alive. On a manually advanced
// clock, entries whose target is never reached keep Drain blocked.
func (o *Overview) Drain() {
	o.inflight.Wait()
}

// Ended reports whether End has been called.
func (o *Overview) Ended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ended
}

// WaitAll blocks until every kept handle has settled or the timeout
// elapses. The timeout is a single global budget for the whole batch, not
// per handle. The returned slice holds, per kept handle in insertion order,
// its Resolve or nil if it had not settled when the budget ran out. Pass
// NoTimeout to wait indefinitely.
func (o *Overview) WaitAll(timeout time.Duration) []*Resolve {
	kept := o.Kept()
	results := make([]*Resolve, len(kept))

	if timeout < 0 {
		for i, p := range kept {
			results[i] = p.Wait(NoTimeout)
		}
		return results
	}

	deadline := time.Now().Add(timeout)
	for i, p := range kept {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			// Budget exhausted; only settled handles yield a Resolve.
			results[i] = p.Resolve()
			continue
		}
		results[i] = p.Wait(remaining)
	}
	return results
}

// Stats returns a point-in-time snapshot of the Overview.
func (o *Overview) Stats() OverviewStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OverviewStats{
		Loaded:  o.loaded,
		Fired:   o.fired,
		Failed:  o.failed,
		Kept:    len(o.kept),
		Pending: o.loaded - o.fired,
		Ended:   o.ended,
	}
}

// summarize builds the RunSummary reported when a Result concludes.
func (o *Overview) summarize(started time.Time) RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	var total time.Duration
	for _, p := range o.kept {
		if r := p.Resolve(); r != nil {
			total += r.Duration()
		}
	}
	return RunSummary{
		Started:       started,
		Concluded:     time.Now(),
		Loaded:        o.loaded,
		Fired:         o.fired,
		Failed:        o.failed,
		Kept:          len(o.kept),
		TotalDuration: total,
	}
}
