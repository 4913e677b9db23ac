package core

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// idleWait bounds the timer when nothing is due; the loop re-checks on
// wakeup or advance signals long before it fires.
const idleWait = 1000 * time.Hour

// scheduledEntry is one deferred firing waiting in the dispatcher.
type scheduledEntry struct {
	at    Time
	fire  func()
	index int // for heap interface
}

// entryHeap implements heap.Interface ordered by target time.
type entryHeap []*scheduledEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].at < h[j].at }
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	n := len(*h)
	item := x.(*scheduledEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *entryHeap) Peek() *scheduledEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// dispatcher drives deferred firings against a Clock: a min-heap of entries,
// a timer armed for the earliest target, and a wakeup channel for new
// entries. Each due entry fires in its own goroutine so firings never block
// each other or the loop.
type dispatcher struct {
	clock  Clock
	logger Logger

	mu     sync.Mutex
	pq     entryHeap
	closed bool // intake closed; loop exits once drained

	wakeup chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newDispatcher(clock Clock, logger Logger) *dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &dispatcher{
		clock:  clock,
		logger: logger,
		pq:     make(entryHeap, 0),
		wakeup: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	heap.Init(&d.pq)
	go d.loop()
	return d
}

// Add schedules an entry. Returns false if intake has closed.
func (d *dispatcher) Add(at Time, fire func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	item := &scheduledEntry{at: at, fire: fire}
	heap.Push(&d.pq, item)
	first := item.index == 0
	d.mu.Unlock()

	if first {
		d.signal()
	}
	return true
}

// CloseIntake stops accepting entries. Entries already scheduled still fire;
// the loop exits once the heap is drained.
func (d *dispatcher) CloseIntake() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.signal()
}

// Stop aborts the loop without draining. Used only on abandoned runs.
func (d *dispatcher) Stop() {
	d.CloseIntake()
	d.cancel()
	<-d.done

	d.mu.Lock()
	d.pq = make(entryHeap, 0)
	heap.Init(&d.pq)
	d.mu.Unlock()
}

func (d *dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pq)
}

func (d *dispatcher) signal() {
	select {
	case d.wakeup <- struct{}{}:
	default:
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)

	timer := time.NewTimer(idleWait)
	timer.Stop()
	defer timer.Stop()

	var advance <-chan struct{}
	if sig, ok := d.clock.(AdvanceSignaler); ok {
		advance = sig.AdvanceSignal()
	}

	for {
		wait, exit := d.nextWait()
		if exit {
			return
		}

		timer.Reset(wait)

		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			d.fireDue()
		case <-d.wakeup:
			d.drainTimer(timer)
		case <-advance:
			d.drainTimer(timer)
			d.fireDue()
		}
	}
}

func (d *dispatcher) drainTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// nextWait computes how long to sleep until the earliest entry is due.
// exit is true when intake has closed and the heap is drained.
func (d *dispatcher) nextWait() (wait time.Duration, exit bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item := d.pq.Peek()
	if item == nil {
		if d.closed {
			return 0, true
		}
		return idleWait, false
	}

	until, ok := d.clock.Until(item.at)
	if !ok {
		// No wall estimate; wait for the clock's advance signal.
		return idleWait, false
	}
	return until, false
}

// fireDue pops every entry whose target has been reached and fires each in
// its own goroutine, outside the lock.
func (d *dispatcher) fireDue() {
	d.mu.Lock()
	now := d.clock.Now()

	var due []*scheduledEntry
	for d.pq.Len() > 0 {
		item := d.pq.Peek()
		if item.at > now {
			break
		}
		heap.Pop(&d.pq)
		due = append(due, item)
	}
	d.mu.Unlock()

	if len(due) > 0 {
		d.logger.Debug("dispatching due entries", F("count", len(due)), F("now", now))
	}
	for _, item := range due {
		go item.fire()
	}
}
