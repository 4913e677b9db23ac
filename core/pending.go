package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NoTimeout makes Wait and WaitAll block until every handle settles.
const NoTimeout time.Duration = -1

// PendingResolve is the settle-once handle returned by Load. It becomes
// readable exactly once the scheduled call finishes, supports any number of
// concurrent waiters, and can invoke the underlying function directly,
// independent of the schedule.
type PendingResolve struct {
	owner  *Overview
	fn     Func
	call   Call
	target Time

	mu      sync.Mutex
	done    chan struct{}
	resolve *Resolve

	statsMu       sync.Mutex
	calledCount   int64
	totalDuration time.Duration
}

func newPendingResolve(owner *Overview, fn Func, call Call, target Time) *PendingResolve {
	return &PendingResolve{
		owner:  owner,
		fn:     fn,
		call:   call,
		target: target,
		done:   make(chan struct{}),
	}
}

// SetResolve settles the handle and wakes all current and future waiters.
// The handle settles exactly once; a second call returns ErrAlreadySettled
// and leaves the first Resolve in place.
func (p *PendingResolve) SetResolve(r *Resolve) error {
	if r == nil {
		return fmt.Errorf("set resolve: resolve cannot be nil")
	}

	p.mu.Lock()
	if p.resolve != nil {
		p.mu.Unlock()
		return ErrAlreadySettled
	}
	// Publish the value before the broadcast so no waiter can observe the
	// closed channel without seeing the fully constructed Resolve.
	p.resolve = r
	p.mu.Unlock()

	close(p.done)
	return nil
}

// IsSet reports whether the handle has settled. Non-blocking.
func (p *PendingResolve) IsSet() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Resolve returns the settled Resolve, or nil if the handle is still
// pending. Non-blocking.
func (p *PendingResolve) Resolve() *Resolve {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolve
}

// Wait blocks until the handle settles or the timeout elapses. It returns
// nil on timeout; the handle stays eligible for a later Wait. Pass NoTimeout
// to wait indefinitely.
func (p *PendingResolve) Wait(timeout time.Duration) *Resolve {
	if timeout < 0 {
		<-p.done
		return p.Resolve()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.Resolve()
	case <-timer.C:
		// The handle may have settled in the same instant; prefer it.
		return p.Resolve()
	}
}

// WaitContext blocks until the handle settles or ctx is done.
func (p *PendingResolve) WaitContext(ctx context.Context) (*Resolve, error) {
	select {
	case <-p.done:
		return p.Resolve(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Target returns the normalized target time bound at Load.
func (p *PendingResolve) Target() Time {
	return p.target
}

// BoundCall returns a copy of the arguments bound at Load.
func (p *PendingResolve) BoundCall() Call {
	return p.call.clone()
}

// =============================================================================
// Direct invocation
// =============================================================================

// Invoke runs the underlying function directly with the given arguments,
// bypassing the schedule. Panics are converted into a *PanicError. Each
// invocation updates CalledCount and TotalDuration; the settled Resolve is
// never touched. Safe to call concurrently, including while the scheduled
// firing is in flight.
func (p *PendingResolve) Invoke(call Call) (any, error) {
	start := time.Now()
	value, err := safeInvoke(p.fn, call)
	elapsed := time.Since(start)

	p.statsMu.Lock()
	p.calledCount++
	p.totalDuration += elapsed
	p.statsMu.Unlock()

	return value, err
}

// Call invokes the function with the supplied positional arguments, or with
// the arguments bound at Load when none are given.
func (p *PendingResolve) Call(args ...any) (any, error) {
	call := p.call
	if len(args) > 0 {
		call = Call{Args: args, Named: p.call.Named}
	}
	return p.Invoke(call)
}

// CalledCount returns how many times the handle was invoked directly.
func (p *PendingResolve) CalledCount() int64 {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.calledCount
}

// TotalDuration returns the accumulated execution time of direct
// invocations.
func (p *PendingResolve) TotalDuration() time.Duration {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.totalDuration
}
