package core

import (
	"errors"
	"time"
)

// Usage errors. A scheduled function's own failure is never one of these;
// it is captured into the Resolve instead.
var (
	// ErrEnded is returned by Load after End has been called.
	ErrEnded = errors.New("overview already ended")

	// ErrForeignPending is returned by Keep for a handle produced by a
	// different Overview.
	ErrForeignPending = errors.New("pending resolve belongs to a different overview")

	// ErrAlreadySettled is returned by SetResolve after the handle settled.
	ErrAlreadySettled = errors.New("pending resolve already settled")

	// ErrConcluded is returned by Conclude after the Result has already
	// been concluded.
	ErrConcluded = errors.New("result already concluded")

	// ErrWallTimeUnsupported is returned when a wall-clock or cron target
	// is loaded against a clock with no wall-time mapping.
	ErrWallTimeUnsupported = errors.New("clock has no wall-time mapping")

	// ErrRepeatStopped marks firings of a repeating load that were already
	// armed when Stop was called.
	ErrRepeatStopped = errors.New("repeating load stopped")
)

// =============================================================================
// Inspector: optional per-firing and per-run instrumentation sink
// =============================================================================

// Inspector receives firing and run statistics from an Overview. It is an
// injected side channel, not required for correctness.
//
// Implementations must be safe for concurrent use and should be fast and
// non-blocking; they are called from the firing goroutines.
type Inspector interface {
	// RecordFiring is called once per completed firing.
	//
	// Parameters:
	// - function: resolved name of the scheduled function
	// - drift: deviation between target and actual start time
	// - duration: how long the firing took
	// - failed: whether the firing ended in a failure
	RecordFiring(function string, drift, duration time.Duration, failed bool)

	// RecordRun is called once when a Result concludes.
	RecordRun(summary RunSummary)
}

// RunSummary aggregates one scheduler run for the Inspector.
type RunSummary struct {
	Started       time.Time
	Concluded     time.Time
	Loaded        int
	Fired         int
	Failed        int
	Kept          int
	TotalDuration time.Duration
}

// NilInspector is a no-op Inspector. It is the default when none is
// provided.
type NilInspector struct{}

func (NilInspector) RecordFiring(function string, drift, duration time.Duration, failed bool) {}
func (NilInspector) RecordRun(summary RunSummary)                                             {}

// =============================================================================
// Config: configuration for an Overview
// =============================================================================

// Config holds optional collaborators for an Overview. All fields are
// optional; nil fields fall back to no-op implementations.
type Config struct {
	// Logger receives dispatch and firing diagnostics.
	Logger Logger

	// Inspector receives per-firing and per-run statistics.
	Inspector Inspector
}

// DefaultConfig returns a config with no-op collaborators.
func DefaultConfig() *Config {
	return &Config{
		Logger:    NewNoOpLogger(),
		Inspector: NilInspector{},
	}
}

// normalized fills nil fields with defaults without mutating the original.
func (c *Config) normalized() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Logger == nil {
		out.Logger = NewNoOpLogger()
	}
	if out.Inspector == nil {
		out.Inspector = NilInspector{}
	}
	return out
}
