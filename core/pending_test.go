package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schemora/go-scanner/core"
)

// loadUnsettled returns a handle that never fires on its own: the target is
// far in the virtual clock's future.
func loadUnsettled(t *testing.T) (*core.Overview, *core.PendingResolve) {
	t.Helper()
	overview := core.NewOverview(core.NewVirtualClock(0))
	pending, err := overview.Load(core.At(1e9), func(call core.Call) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	return overview, pending
}

func TestPendingResolve_SettleOnce(t *testing.T) {
	_, pending := loadUnsettled(t)
	require.False(t, pending.IsSet())
	require.Nil(t, pending.Resolve())

	first := core.NewResolve(0, 1, 2, nil, "first", nil)
	require.NoError(t, pending.SetResolve(first))
	require.True(t, pending.IsSet())

	second := core.NewResolve(0, 3, 4, nil, "second", nil)
	require.ErrorIs(t, pending.SetResolve(second), core.ErrAlreadySettled)

	// Wait always returns the first settled Resolve.
	got := pending.Wait(core.NoTimeout)
	require.Equal(t, "first", got.Value())
}

func TestPendingResolve_SetResolveNil(t *testing.T) {
	_, pending := loadUnsettled(t)
	require.Error(t, pending.SetResolve(nil))
	require.False(t, pending.IsSet())
}

func TestPendingResolve_WaitTimeout(t *testing.T) {
	_, pending := loadUnsettled(t)

	start := time.Now()
	got := pending.Wait(50 * time.Millisecond)
	elapsed := time.Since(start)

	require.Nil(t, got)
	require.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)

	// Timeout leaves the handle eligible for a later wait.
	require.NoError(t, pending.SetResolve(core.NewResolve(0, 1, 2, nil, "late", nil)))
	require.Equal(t, "late", pending.Wait(time.Second).Value())
}

func TestPendingResolve_WaitContext(t *testing.T) {
	_, pending := loadUnsettled(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := pending.WaitContext(ctx)
	require.Nil(t, got)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPendingResolve_BroadcastToManyWaiters(t *testing.T) {
	_, pending := loadUnsettled(t)

	const waiters = 32
	results := make([]*core.Resolve, waiters)

	var ready, done sync.WaitGroup
	ready.Add(waiters)
	done.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func(i int) {
			defer done.Done()
			ready.Done()
			results[i] = pending.Wait(core.NoTimeout)
		}(i)
	}

	ready.Wait()
	resolve := core.NewResolve(0, 1, 2, nil, "broadcast", nil)
	require.NoError(t, pending.SetResolve(resolve))
	done.Wait()

	for i := 0; i < waiters; i++ {
		require.Same(t, resolve, results[i], "waiter %d", i)
	}
}

func TestPendingResolve_DirectInvocationStats(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	pending, err := overview.Load(core.At(1e9), func(call core.Call) (any, error) {
		return call.Arg(0).(int) * 2, nil
	}, 5)
	require.NoError(t, err)

	// Bound arguments are used when none are supplied.
	v, err := pending.Call()
	require.NoError(t, err)
	require.Equal(t, 10, v)

	// Supplied arguments override the bound ones.
	v, err = pending.Call(7)
	require.NoError(t, err)
	require.Equal(t, 14, v)

	require.Equal(t, int64(2), pending.CalledCount())
	require.GreaterOrEqual(t, pending.TotalDuration(), time.Duration(0))

	// Direct invocation never settles the handle.
	require.False(t, pending.IsSet())
}

func TestPendingResolve_ConcurrentDirectInvocation(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	pending, err := overview.Load(core.At(1e9), func(call core.Call) (any, error) {
		time.Sleep(time.Millisecond)
		return nil, nil
	})
	require.NoError(t, err)

	const calls = 50
	var wg sync.WaitGroup
	wg.Add(calls)
	for i := 0; i < calls; i++ {
		go func() {
			defer wg.Done()
			_, _ = pending.Call()
		}()
	}
	wg.Wait()

	require.Equal(t, int64(calls), pending.CalledCount())
	require.GreaterOrEqual(t, pending.TotalDuration(), calls*time.Millisecond/2)
}

func TestPendingResolve_InvokeCapturesPanic(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	pending, err := overview.Load(core.At(1e9), func(call core.Call) (any, error) {
		panic("direct panic")
	})
	require.NoError(t, err)

	v, err := pending.Call()
	require.Nil(t, v)

	var panicErr *core.PanicError
	require.True(t, errors.As(err, &panicErr))
	require.Equal(t, "direct panic", panicErr.Value)
	require.Equal(t, int64(1), pending.CalledCount())
}

func TestPendingResolve_BoundCallIsCopy(t *testing.T) {
	overview := core.NewOverview(core.NewVirtualClock(0))
	pending, err := overview.LoadCall(core.At(1e9), func(call core.Call) (any, error) {
		return nil, nil
	}, core.Call{Args: []any{1}, Named: map[string]any{"k": "v"}})
	require.NoError(t, err)

	bound := pending.BoundCall()
	bound.Args[0] = 99
	bound.Named["k"] = "mutated"

	fresh := pending.BoundCall()
	require.Equal(t, 1, fresh.Arg(0))
	v, _ := fresh.NamedArg("k")
	require.Equal(t, "v", v)
}
