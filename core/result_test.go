package core_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schemora/go-scanner/core"
)

// recordingInspector captures Inspector calls for assertions.
type recordingInspector struct {
	mu      sync.Mutex
	firings []string
	runs    []core.RunSummary
}

func (r *recordingInspector) RecordFiring(function string, drift, duration time.Duration, failed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firings = append(r.firings, function)
}

func (r *recordingInspector) RecordRun(summary core.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, summary)
}

func (r *recordingInspector) snapshot() (int, []core.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.firings), append([]core.RunSummary(nil), r.runs...)
}

func TestResult_ResolvesMirrorsKept(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	result := core.NewResult(overview)

	noop := func(call core.Call) (any, error) { return nil, nil }
	a, err := overview.Load(core.At(1), noop)
	require.NoError(t, err)
	require.NoError(t, overview.Keep(a))

	require.Equal(t, []*core.PendingResolve{a}, result.Resolves())

	// The returned slice is a view copy; mutating it changes nothing.
	view := result.Resolves()
	view[0] = nil
	require.Equal(t, []*core.PendingResolve{a}, result.Resolves())
}

func TestResult_WaitDelegates(t *testing.T) {
	overview := core.NewOverview(core.NewWallClock())
	result := core.NewResult(overview)

	pending, err := overview.Load(core.ASAP, func(call core.Call) (any, error) {
		return "done", nil
	})
	require.NoError(t, err)
	require.NoError(t, overview.Keep(pending))

	resolves := result.Wait(2 * time.Second)
	require.Len(t, resolves, 1)
	require.NotNil(t, resolves[0])
	require.Equal(t, "done", resolves[0].Value())
}

func TestResult_ConcludeOnce(t *testing.T) {
	overview := core.NewOverview(core.NewWallClock())
	result := core.NewResult(overview)

	require.False(t, result.Concluded())
	require.NoError(t, result.Conclude())
	require.True(t, result.Concluded())
	require.True(t, overview.Ended())

	require.ErrorIs(t, result.Conclude(), core.ErrConcluded)
}

func TestResult_ConcludeDoesNotWait(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	result := core.NewResult(overview)

	pending, err := overview.Load(core.At(1e9), func(call core.Call) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.NoError(t, overview.Keep(pending))

	start := time.Now()
	require.NoError(t, result.Conclude())
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.False(t, pending.IsSet())
}

func TestResult_ConcludeReportsRunSummary(t *testing.T) {
	inspector := &recordingInspector{}
	overview := core.NewOverviewWithConfig(core.NewWallClock(), &core.Config{Inspector: inspector})
	result := core.NewResult(overview)

	ok, err := overview.Load(core.ASAP, func(call core.Call) (any, error) {
		return "fine", nil
	})
	require.NoError(t, err)
	bad, err := overview.Load(core.ASAP, func(call core.Call) (any, error) {
		panic("broken")
	})
	require.NoError(t, err)
	require.NoError(t, overview.Keep(ok, bad))

	resolves := result.Wait(2 * time.Second)
	require.NotNil(t, resolves[0])
	require.NotNil(t, resolves[1])

	require.NoError(t, result.Conclude())

	firings, runs := inspector.snapshot()
	require.Equal(t, 2, firings)
	require.Len(t, runs, 1)
	require.Equal(t, 2, runs[0].Loaded)
	require.Equal(t, 2, runs[0].Fired)
	require.Equal(t, 1, runs[0].Failed)
	require.Equal(t, 2, runs[0].Kept)
	require.GreaterOrEqual(t, runs[0].TotalDuration, time.Duration(0))
	require.False(t, runs[0].Concluded.Before(runs[0].Started))
}

func TestScan_IndependentRuns(t *testing.T) {
	var mu sync.Mutex
	loads := 0

	runner := core.Scan(func(load core.LoadFunc, keep core.KeepFunc) {
		mu.Lock()
		loads++
		mu.Unlock()

		p, err := load(core.ASAP, func(call core.Call) (any, error) {
			return "run", nil
		})
		if err != nil {
			t.Error(err)
			return
		}
		_ = keep(p)
	})

	first := runner()
	second := runner()

	require.NotSame(t, first.Overview(), second.Overview())

	mu.Lock()
	require.Equal(t, 2, loads)
	mu.Unlock()

	for _, result := range []*core.Result{first, second} {
		resolves := result.Wait(2 * time.Second)
		require.Len(t, resolves, 1)
		require.NotNil(t, resolves[0])
		require.NoError(t, result.Conclude())
	}

	// Concluding one run never touches the other.
	require.ErrorIs(t, first.Conclude(), core.ErrConcluded)
}

func TestQuickScan_TwoKeptLoads(t *testing.T) {
	result, err := core.QuickScan(func(load core.LoadFunc) []*core.PendingResolve {
		double, err := load(core.ASAP, func(call core.Call) (any, error) {
			return call.Arg(0).(int) * 2, nil
		}, 5)
		if err != nil {
			t.Fatal(err)
		}
		echo, err := load(core.ASAP, func(call core.Call) (any, error) {
			return call.Arg(0), nil
		}, "hello")
		if err != nil {
			t.Fatal(err)
		}
		return []*core.PendingResolve{double, echo}
	})
	require.NoError(t, err)

	resolves := result.Wait(5 * time.Second)
	require.Len(t, resolves, 2)
	require.NotNil(t, resolves[0])
	require.NotNil(t, resolves[1])
	require.Equal(t, 10, resolves[0].Value())
	require.Equal(t, "hello", resolves[1].Value())

	require.NoError(t, result.Conclude())
}

func TestQuickScan_NilHandleRejected(t *testing.T) {
	_, err := core.QuickScan(func(load core.LoadFunc) []*core.PendingResolve {
		return []*core.PendingResolve{nil}
	})
	require.Error(t, err)
}

func TestScan_Options(t *testing.T) {
	clock := core.NewVirtualClock(0)
	inspector := &recordingInspector{}

	runner := core.Scan(func(load core.LoadFunc, keep core.KeepFunc) {
		p, err := load(core.At(5), func(call core.Call) (any, error) {
			return "virtual", nil
		})
		if err != nil {
			t.Error(err)
			return
		}
		_ = keep(p)
	}, core.WithClock(clock), core.WithInspector(inspector))

	result := runner()
	require.Same(t, clock, result.Overview().Clock())

	clock.Advance(10 * time.Second)
	resolves := result.Wait(2 * time.Second)
	require.NotNil(t, resolves[0])
	require.Equal(t, "virtual", resolves[0].Value())

	require.NoError(t, result.Conclude())
	firings, runs := inspector.snapshot()
	require.Equal(t, 1, firings)
	require.Len(t, runs, 1)
}
