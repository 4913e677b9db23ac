package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RepeatHandle controls the lifecycle of a repeating load. Each cycle is a
// regular scheduled call: it fires through the dispatcher, produces its own
// internal Resolve, and re-arms the next cycle. Stop prevents further
// re-arming; the cycle already armed still fires and resolves with
// ErrRepeatStopped.
type RepeatHandle struct {
	overview *Overview
	fn       Func
	call     Call
	next     func() (Time, error)

	mu        sync.Mutex
	stopped   bool
	fireCount int64
}

// LoadEvery schedules fn to run repeatedly at the given interval, starting
// one interval from now. Works on any clock.
func (o *Overview) LoadEvery(interval time.Duration, fn Func, args ...any) (*RepeatHandle, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("load every: interval must be positive, got %v", interval)
	}
	if fn == nil {
		return nil, fmt.Errorf("load every: function cannot be nil")
	}

	h := &RepeatHandle{
		overview: o,
		fn:       fn,
		call:     Call{Args: args}.clone(),
	}
	h.next = func() (Time, error) {
		return o.clock.Now().Add(interval), nil
	}
	if err := h.arm(); err != nil {
		return nil, err
	}
	return h, nil
}

// LoadCron schedules fn against a standard five-field cron expression.
// Cron fields are wall-clock times, so the Overview's clock must implement
// WallMapper; otherwise LoadCron fails with ErrWallTimeUnsupported.
func (o *Overview) LoadCron(spec string, fn Func, args ...any) (*RepeatHandle, error) {
	if fn == nil {
		return nil, fmt.Errorf("load cron: function cannot be nil")
	}
	mapper, ok := o.clock.(WallMapper)
	if !ok {
		return nil, fmt.Errorf("load cron: %w", ErrWallTimeUnsupported)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("load cron: parse %q: %w", spec, err)
	}

	h := &RepeatHandle{
		overview: o,
		fn:       fn,
		call:     Call{Args: args}.clone(),
	}
	h.next = func() (Time, error) {
		wall := schedule.Next(time.Now())
		if wall.IsZero() {
			return 0, fmt.Errorf("cron spec %q yields no next time", spec)
		}
		return mapper.TimeOf(wall), nil
	}
	if err := h.arm(); err != nil {
		return nil, err
	}
	return h, nil
}

// arm loads the next cycle.
func (h *RepeatHandle) arm() error {
	target, err := h.next()
	if err != nil {
		return err
	}
	_, err = h.overview.LoadCall(At(target), h.cycle, h.call)
	return err
}

// cycle runs one firing of the repeating load and re-arms the next one.
// Re-arming happens even when the user function fails; only Stop or an
// ended Overview breaks the chain.
func (h *RepeatHandle) cycle(call Call) (any, error) {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrRepeatStopped
	}
	h.mu.Unlock()

	defer h.rearm()

	value, err := safeInvoke(h.fn, call)

	h.mu.Lock()
	h.fireCount++
	h.mu.Unlock()

	return value, err
}

func (h *RepeatHandle) rearm() {
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		return
	}

	if err := h.arm(); err != nil {
		// The Overview ended underneath us; the chain stops here.
		h.overview.logger.Debug("repeating load not re-armed", F("error", err))
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()
	}
}

// Stop prevents further cycles from being armed. Idempotent.
func (h *RepeatHandle) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
}

// IsStopped reports whether the handle has been stopped.
func (h *RepeatHandle) IsStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

// FireCount returns how many cycles have executed the user function.
func (h *RepeatHandle) FireCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fireCount
}
