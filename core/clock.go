package core

import (
	"sync"
	"time"
)

// Time is a point in a Clock's time domain, measured in seconds. It is an
// ordered value: subtracting two Times yields the elapsed duration between
// them, and a raw float64 timestamp converts directly.
type Time float64

// Immediate is the sentinel target meaning "fire as soon as possible".
// Any negative target normalizes to Immediate at the Load boundary.
const Immediate Time = -1

// Seconds returns the time as raw seconds.
func (t Time) Seconds() float64 {
	return float64(t)
}

// Sub returns the duration elapsed from o to t.
func (t Time) Sub(o Time) time.Duration {
	return time.Duration(float64(t-o) * float64(time.Second))
}

// Add returns the time shifted forward by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d.Seconds())
}

// =============================================================================
// When: target time of a scheduled call
// =============================================================================

type whenKind int

const (
	whenImmediate whenKind = iota
	whenTime
	whenIn
	whenWall
)

// When is the target time of a scheduled call. It is a tagged union over
// "as soon as possible", an absolute clock-domain Time, a delay relative to
// the clock's current time, and a wall-clock time.Time. The union is
// normalized into a single Time at the Load boundary.
type When struct {
	kind whenKind
	t    Time
	d    time.Duration
	wall time.Time
}

// ASAP requests immediate execution. The zero When value behaves the same.
var ASAP = When{kind: whenImmediate}

// At targets an absolute time in the clock's domain.
// Negative values normalize to immediate execution.
func At(t Time) When {
	if t < 0 {
		return ASAP
	}
	return When{kind: whenTime, t: t}
}

// AtSeconds targets a raw seconds timestamp in the clock's domain.
func AtSeconds(s float64) When {
	return At(Time(s))
}

// In targets a delay relative to the clock's current time at Load.
func In(d time.Duration) When {
	if d <= 0 {
		return ASAP
	}
	return When{kind: whenIn, d: d}
}

// AtWall targets a wall-clock time. Loading a wall target requires a clock
// that implements WallMapper; Load fails with ErrWallTimeUnsupported
// otherwise.
func AtWall(t time.Time) When {
	return When{kind: whenWall, wall: t}
}

// =============================================================================
// Clock: the time source driving an Overview
// =============================================================================

// Clock is the time source an Overview schedules against. A Clock may be
// shared by multiple Overviews; implementations must be safe for concurrent
// use.
type Clock interface {
	// Now reports the current time in the clock's domain.
	Now() Time

	// Until estimates the wall-clock duration until the clock reaches t.
	// ok is false when no estimate exists, e.g. for a manually advanced
	// clock; the dispatcher then waits for an advance signal instead.
	Until(t Time) (d time.Duration, ok bool)
}

// WallMapper is implemented by clocks whose domain has a fixed mapping to
// wall-clock time. It is required for wall-time and cron-expression loads.
type WallMapper interface {
	// TimeOf converts a wall-clock time into the clock's domain.
	TimeOf(wall time.Time) Time
}

// AdvanceSignaler is implemented by clocks whose time can jump without
// wall-clock progress. The dispatcher re-checks due entries on each signal.
type AdvanceSignaler interface {
	AdvanceSignal() <-chan struct{}
}

// =============================================================================
// WallClock
// =============================================================================

// WallClock is a Clock anchored to real time. Its domain counts seconds from
// an origin captured at construction, optionally shifted by a start offset.
type WallClock struct {
	origin time.Time
	start  Time
}

// NewWallClock creates a WallClock whose time starts at zero.
func NewWallClock() *WallClock {
	return NewWallClockAt(0)
}

// NewWallClockAt creates a WallClock whose time starts at the given value.
func NewWallClockAt(start Time) *WallClock {
	return &WallClock{origin: time.Now(), start: start}
}

func (c *WallClock) Now() Time {
	return c.start + Time(time.Since(c.origin).Seconds())
}

func (c *WallClock) Until(t Time) (time.Duration, bool) {
	d := t.Sub(c.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// TimeOf converts a wall-clock time into this clock's domain.
func (c *WallClock) TimeOf(wall time.Time) Time {
	return c.start + Time(wall.Sub(c.origin).Seconds())
}

var (
	_ Clock      = (*WallClock)(nil)
	_ WallMapper = (*WallClock)(nil)
)

// =============================================================================
// VirtualClock
// =============================================================================

// VirtualClock is a Clock that only moves when told to. It is the time
// source for deterministic scheduling tests and for scanning against a
// simulated timeline.
type VirtualClock struct {
	mu   sync.Mutex
	now  Time
	subs []chan struct{}
}

// NewVirtualClock creates a VirtualClock at the given start time.
func NewVirtualClock(start Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Until reports ok=false for future targets: a virtual clock cannot estimate
// when it will be advanced.
func (c *VirtualClock) Until(t Time) (time.Duration, bool) {
	if t <= c.Now() {
		return 0, true
	}
	return 0, false
}

// Advance moves the clock forward by d and signals the dispatcher.
func (c *VirtualClock) Advance(d time.Duration) {
	c.Set(c.Now().Add(d))
}

// Set moves the clock to t. Moving backwards is ignored. Every subscriber
// is signaled, so a clock shared by multiple dispatchers wakes them all.
func (c *VirtualClock) Set(t Time) {
	c.mu.Lock()
	if t > c.now {
		c.now = t
	}
	subs := make([]chan struct{}, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// AdvanceSignal subscribes the caller to clock jumps. Each call returns a
// fresh subscription.
func (c *VirtualClock) AdvanceSignal() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{}, 1)
	c.subs = append(c.subs, ch)
	return ch
}

var (
	_ Clock           = (*VirtualClock)(nil)
	_ AdvanceSignaler = (*VirtualClock)(nil)
)
