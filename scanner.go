package scanner

import "github.com/schemora/go-scanner/core"

// Scan returns a zero-argument runner. Every runner invocation is an
// independent run: it builds a fresh Overview on a wall clock (unless
// overridden by options), hands the run's load and keep functions to init,
// and returns the run's Result.
//
//	runner := scanner.Scan(func(load scanner.LoadFunc, keep scanner.KeepFunc) {
//		p, _ := load(scanner.In(100*time.Millisecond), work)
//		keep(p)
//	})
//	result := runner()
//	resolves := result.Wait(time.Second)
//	result.Conclude()
func Scan(init func(load LoadFunc, keep KeepFunc), opts ...Option) func() *Result {
	return core.Scan(init, opts...)
}

// QuickScan builds a run, hands load to objects, keeps the handles it
// returns, and returns the started Result immediately.
func QuickScan(objects func(load LoadFunc) []*PendingResolve, opts ...Option) (*Result, error) {
	return core.QuickScan(objects, opts...)
}
