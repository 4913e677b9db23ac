package scanner

import "github.com/schemora/go-scanner/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the scanner package for most use cases.

// Time is a point in a Clock's time domain, measured in seconds.
type Time = core.Time

// When is the target time of a scheduled call.
type When = core.When

// Clock is the time source an Overview schedules against.
type Clock = core.Clock

// WallClock is a Clock anchored to real time.
type WallClock = core.WallClock

// VirtualClock is a Clock that only moves when told to.
type VirtualClock = core.VirtualClock

// Func is the unit of schedulable work.
type Func = core.Func

// Call carries the arguments bound to a scheduled function.
type Call = core.Call

// Resolve is the immutable outcome record of one completed scheduled call.
type Resolve = core.Resolve

// PendingResolve is the settle-once handle to a future Resolve.
type PendingResolve = core.PendingResolve

// Overview is the scheduler instance bound to a time source.
type Overview = core.Overview

// Result aggregates a scheduler run's kept handles.
type Result = core.Result

// RepeatHandle controls the lifecycle of a repeating load.
type RepeatHandle = core.RepeatHandle

// LoadFunc and KeepFunc are the callbacks handed to a scan's init.
type LoadFunc = core.LoadFunc
type KeepFunc = core.KeepFunc

// Option customizes the Overviews built by Scan and QuickScan.
type Option = core.Option

// Logger, Field and Inspector are the ambient collaborator contracts.
type Logger = core.Logger
type Field = core.Field
type Inspector = core.Inspector
type RunSummary = core.RunSummary

// Sentinels
const (
	// Immediate is the target meaning "fire as soon as possible".
	Immediate = core.Immediate

	// NoTimeout makes Wait and WaitAll block until settled.
	NoTimeout = core.NoTimeout
)

// ASAP requests immediate execution.
var ASAP = core.ASAP

// When constructors
var (
	At        = core.At
	AtSeconds = core.AtSeconds
	AtWall    = core.AtWall
	In        = core.In
)

// F creates a structured logging field.
var F = core.F

// Usage errors
var (
	ErrEnded               = core.ErrEnded
	ErrForeignPending      = core.ErrForeignPending
	ErrAlreadySettled      = core.ErrAlreadySettled
	ErrConcluded           = core.ErrConcluded
	ErrWallTimeUnsupported = core.ErrWallTimeUnsupported
	ErrRepeatStopped       = core.ErrRepeatStopped
)

// Constructors re-exported for advanced users who want to wire an Overview
// directly instead of going through Scan or QuickScan.
var (
	NewOverview           = core.NewOverview
	NewOverviewWithConfig = core.NewOverviewWithConfig
	NewResult             = core.NewResult
	NewWallClock          = core.NewWallClock
	NewWallClockAt        = core.NewWallClockAt
	NewVirtualClock       = core.NewVirtualClock
)

// Scan options
var (
	WithClock        = core.WithClock
	WithClockFactory = core.WithClockFactory
	WithLogger       = core.WithLogger
	WithInspector    = core.WithInspector
)
