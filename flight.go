package moya

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixyzehn/Moya/internal/inflight"
)

// waiter is one caller of Request. Every waiter receives exactly one
// delivery: its completion, or nothing beyond plugin notification if it
// cancelled first.
type waiter[T Target] struct {
	ctx        context.Context
	target     T
	completion func(Result)
	scheduler  Scheduler
	token      *CancellableToken
	requestID  string
	started    time.Time

	once sync.Once
	stop func() bool
}

// cancelled reports whether the caller cancelled its token or its context.
func (w *waiter[T]) cancelled() bool {
	return w.token.IsCancelled() || w.ctx.Err() != nil
}

// flight is one underlying execution: a live transport call or a stub. A
// tracked flight is shared by every waiter of its group; an untracked flight
// has a single solo waiter.
type flight[T Target] struct {
	provider *Provider[T]
	endpoint *Endpoint
	target   T
	behavior StubBehavior
	method   string
	label    string

	group *inflight.Group[*flight[T], *waiter[T]]
	solo  *waiter[T]

	ctx    context.Context
	cancel context.CancelFunc

	aborted atomic.Bool
	done    atomic.Bool

	mu         sync.Mutex
	task       Task
	timer      *time.Timer
	dispatched bool
	sent       *http.Request
}

func (p *Provider[T]) newFlight(ctx context.Context, endpoint *Endpoint, target T, behavior StubBehavior, group *inflight.Group[*flight[T], *waiter[T]]) *flight[T] {
	f := &flight[T]{
		provider: p,
		endpoint: endpoint,
		target:   target,
		behavior: behavior,
		method:   string(endpoint.Method()),
		label:    endpointLabel(endpoint),
		group:    group,
	}
	// A shared call outlives the context of whichever caller started it.
	if group != nil {
		ctx = context.WithoutCancel(ctx)
	}
	f.ctx, f.cancel = context.WithCancel(ctx)
	return f
}

// begin marks the flight as executing req in mode, records it and notifies
// WillSend.
func (f *flight[T]) begin(mode string, req *http.Request) {
	f.mu.Lock()
	f.dispatched = true
	f.sent = req
	f.mu.Unlock()

	f.provider.metrics.RecordDispatchStart(mode, f.method, f.label)
	f.provider.notifyWillSend(req, f.target)
}

func (f *flight[T]) setTask(task Task) {
	if task == nil {
		return
	}
	f.mu.Lock()
	f.task = task
	f.mu.Unlock()

	if f.aborted.Load() {
		task.Cancel()
	}
}

func (f *flight[T]) setTimer(timer *time.Timer) {
	f.mu.Lock()
	f.timer = timer
	f.mu.Unlock()

	if f.aborted.Load() {
		f.stopTimer(timer)
	}
}

// stopTimer finishes the flight as cancelled when the stub timer had not
// fired yet. A timer that already fired sees the abort flag itself.
func (f *flight[T]) stopTimer(timer *time.Timer) {
	if timer != nil && timer.Stop() {
		f.finish(Failure(newCancelledError()), true)
	}
}

// abort cancels the underlying execution for every waiter. New callers for
// the same endpoint start a fresh flight.
func (f *flight[T]) abort() {
	if f.done.Load() || !f.aborted.CompareAndSwap(false, true) {
		return
	}
	if f.group != nil {
		f.provider.inflight.Forget(f.group)
	}
	f.cancel()

	f.mu.Lock()
	task, timer := f.task, f.timer
	f.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	f.stopTimer(timer)
}

// abandoned reports whether nobody is left to receive the outcome. For a
// tracked flight whose waiters all cancelled, the group is unmapped in the
// same step so no new caller can join it.
func (f *flight[T]) abandoned() bool {
	if f.aborted.Load() {
		return true
	}
	if f.group == nil {
		return f.solo.cancelled()
	}
	return f.provider.inflight.ForgetIf(f.group, allCancelled[T])
}

// finish delivers result to every waiter in join order. Only the first call
// has any effect.
func (f *flight[T]) finish(result Result, notify bool) {
	if !f.done.CompareAndSwap(false, true) {
		return
	}
	f.cancel()

	f.mu.Lock()
	dispatched, sent := f.dispatched, f.sent
	f.mu.Unlock()
	if dispatched {
		f.provider.metrics.RecordDispatchEnd(f.method, f.label)
		f.provider.notifyDidComplete(sent, result, f.target)
	}

	var waiters []*waiter[T]
	if f.group != nil {
		waiters = f.provider.inflight.Drain(f.group)
	} else {
		waiters = []*waiter[T]{f.solo}
	}

	for _, w := range waiters {
		f.provider.deliver(f, w, result, notify)
	}
}

func allCancelled[T Target](waiters []*waiter[T]) bool {
	for _, w := range waiters {
		if !w.cancelled() {
			return false
		}
	}
	return true
}

// endpointLabel is the host and path used as the metrics endpoint label.
func endpointLabel(e *Endpoint) string {
	u, err := url.Parse(e.URL())
	if err != nil || u.Host == "" {
		return "unknown"
	}

	var b strings.Builder
	b.WriteString(u.Host)
	if u.Path != "" {
		b.WriteString(u.Path)
	} else {
		b.WriteByte('/')
	}
	return b.String()
}
