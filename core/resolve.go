package core

import (
	"fmt"
	"reflect"
	"runtime"
	"runtime/debug"
	"time"
)

// Func is the unit of schedulable work. The bound arguments of the call are
// delivered through Call; a returned error marks the resolve as failed.
type Func func(call Call) (any, error)

// Call carries the arguments bound to a scheduled function: ordered
// positional values plus a string-keyed mapping of named values. A Call is
// bound at Load time and never mutated afterwards.
type Call struct {
	Args  []any
	Named map[string]any
}

// Arg returns the i-th positional argument, or nil if out of range.
func (c Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// NamedArg returns the named argument for key.
func (c Call) NamedArg(key string) (any, bool) {
	v, ok := c.Named[key]
	return v, ok
}

// clone detaches the Call from caller-owned slices and maps.
func (c Call) clone() Call {
	out := Call{}
	if len(c.Args) > 0 {
		out.Args = make([]any, len(c.Args))
		copy(out.Args, c.Args)
	}
	if len(c.Named) > 0 {
		out.Named = make(map[string]any, len(c.Named))
		for k, v := range c.Named {
			out.Named[k] = v
		}
	}
	return out
}

// PanicError wraps a panic recovered from a scheduled function. The panic is
// captured into the Resolve instead of crashing the scheduler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduled function panicked: %v", e.Value)
}

// safeInvoke runs fn and converts a panic into a *PanicError.
func safeInvoke(fn Func, call Call) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(call)
}

// funcName resolves a printable name for a scheduled function.
func funcName(fn Func) string {
	if fn == nil {
		return "anonymous"
	}
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.Pointer() == 0 {
		return "anonymous"
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil || rf.Name() == "" {
		return "anonymous"
	}
	return rf.Name()
}

// =============================================================================
// Resolve: immutable outcome record of one completed scheduled call
// =============================================================================

// Resolve records the outcome of exactly one firing: the target time, the
// actual execution bounds, the function identity, and either its return
// value or its failure. A Resolve is never mutated after construction.
type Resolve struct {
	target Time
	start  Time
	end    Time
	fn     Func
	value  any
	err    error
}

// NewResolve constructs a Resolve. An end before start is clamped to start
// so Duration never goes negative.
func NewResolve(target, start, end Time, fn Func, value any, err error) *Resolve {
	if end < start {
		end = start
	}
	return &Resolve{target: target, start: start, end: end, fn: fn, value: value, err: err}
}

// Target returns the scheduled target time.
func (r *Resolve) Target() Time { return r.target }

// Start returns the time execution actually began.
func (r *Resolve) Start() Time { return r.start }

// End returns the time execution finished.
func (r *Resolve) End() Time { return r.end }

// Func returns the scheduled function. Identity only; the Resolve does not
// own or re-invoke it.
func (r *Resolve) Func() Func { return r.fn }

// Value returns the function's return value. Meaningful only when Err is
// nil.
func (r *Resolve) Value() any { return r.value }

// Err returns the function's failure, or nil if it returned normally.
func (r *Resolve) Err() error { return r.err }

// Failed reports whether the firing ended in a failure.
func (r *Resolve) Failed() bool { return r.err != nil }

// Drift is the deviation between the target time and the actual start.
// Immediate targets report zero drift.
func (r *Resolve) Drift() time.Duration {
	if r.target == Immediate {
		return 0
	}
	return r.start.Sub(r.target)
}

// Duration is how long the firing took.
func (r *Resolve) Duration() time.Duration {
	return r.end.Sub(r.start)
}
