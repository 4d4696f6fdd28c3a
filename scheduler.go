package moya

import "sync"

// Scheduler decides where completion callbacks run.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(fn func())

func (f SchedulerFunc) Schedule(fn func()) {
	f(fn)
}

// InlineScheduler runs callbacks on the goroutine that produced the result.
// It is the default, so immediate stubs complete before Request returns.
var InlineScheduler Scheduler = SchedulerFunc(func(fn func()) { fn() })

// GoScheduler runs every callback on a new goroutine.
var GoScheduler Scheduler = SchedulerFunc(func(fn func()) { go fn() })

// SerialQueue runs callbacks one at a time, in the order they were
// scheduled, on a single worker goroutine.
type SerialQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool
	done   chan struct{}
}

// NewSerialQueue starts the worker goroutine. Call Close to stop it.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Schedule enqueues fn. Callbacks scheduled after Close are dropped.
func (q *SerialQueue) Schedule(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.queue = append(q.queue, fn)
	q.cond.Signal()
}

// Close stops accepting work, drains what is queued and waits for the worker.
func (q *SerialQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()
	<-q.done
}

func (q *SerialQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.queue) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.queue) == 0 {
			q.mu.Unlock()
			return
		}
		fn := q.queue[0]
		q.queue[0] = nil
		q.queue = q.queue[1:]
		q.mu.Unlock()

		fn()
	}
}
