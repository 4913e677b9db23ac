// Package scanner provides a deferred-execution scheduler for Go.
//
// Callers register functions to run at a virtual or wall-clock time and
// later retrieve the resolved outcome (return value, failure, and timing)
// through a blocking or non-blocking handle.
//
// # Quick Start
//
// Schedule a call and wait for its outcome:
//
//	result, err := scanner.QuickScan(func(load scanner.LoadFunc) []*scanner.PendingResolve {
//		double, _ := load(scanner.ASAP, func(call scanner.Call) (any, error) {
//			return call.Arg(0).(int) * 2, nil
//		}, 5)
//		return []*scanner.PendingResolve{double}
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	resolves := result.Wait(5 * time.Second)
//	fmt.Println(resolves[0].Value()) // 10
//	result.Conclude()
//
// # Key Concepts
//
// Overview: the scheduler instance bound to one time source (Clock). Load
// schedules a call and returns a PendingResolve immediately; Keep marks
// handles for batch retrieval; End closes intake without cancelling
// scheduled calls.
//
// PendingResolve: a settle-once handle. It becomes readable exactly once
// the call finishes, supports any number of concurrent waiters, and can
// invoke the underlying function directly while tracking invocation
// statistics.
//
// Resolve: the immutable outcome record of one firing: target time, actual
// start/end, return value or captured failure, and the derived Drift and
// Duration.
//
// Result: aggregator over a run's kept handles, with a global-timeout Wait
// and a Conclude step that finalizes the run.
//
// # Time Sources
//
// A WallClock anchors the schedule to real time; a VirtualClock only moves
// when advanced, which makes scheduling deterministic in tests and
// simulations. Clocks may be shared between Overviews.
//
// # Failure Model
//
// A scheduled function's error or panic is captured into its Resolve and
// never propagates: the run continues normally for all other calls. Usage
// errors (Load after End, keeping a foreign handle, double SetResolve,
// double Conclude) are reported as distinct errors on the offending call.
// Timeouts are not errors: Wait and WaitAll report them as nil entries.
package scanner
