package moya

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pixyzehn/Moya/internal/inflight"
)

// Provider dispatches requests for targets of type T. It maps each target to
// an Endpoint, resolves the request, answers it from the network or from
// sample data, notifies plugins and delivers a Result to the caller. With
// inflight tracking enabled, concurrent requests for equal endpoints share a
// single execution. A Provider is safe for concurrent use.
type Provider[T Target] struct {
	endpointMapper    EndpointMapper[T]
	requestResolver   RequestResolver
	stubSelector      StubSelector[T]
	plugins           []Plugin[T]
	trackInflights    bool
	cancelPolicy      CancelPolicy
	transport         Transport
	callbackScheduler Scheduler
	metrics           *MetricsCollector
	debug             *DebugConfig
	logger            Logger
	inflight          *inflight.Registry[*flight[T], *waiter[T]]
	validationError   error
}

// New constructs a Provider from DefaultConfig and the given options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
func New[T Target](options ...Option[T]) *Provider[T] {
	cfg := DefaultConfig[T]()
	for _, option := range options {
		option(&cfg)
	}
	return NewProvider(cfg)
}

// NewProvider constructs a Provider from cfg. Zero fields take their defaults.
func NewProvider[T Target](cfg Config[T]) *Provider[T] {
	cfg.applyDefaults()

	p := &Provider[T]{
		endpointMapper:    cfg.EndpointMapper,
		requestResolver:   cfg.RequestResolver,
		stubSelector:      cfg.StubSelector,
		plugins:           append([]Plugin[T](nil), cfg.Plugins...),
		trackInflights:    cfg.TrackInflights,
		cancelPolicy:      cfg.CancelPolicy,
		transport:         cfg.Transport,
		callbackScheduler: cfg.CallbackScheduler,
		metrics:           cfg.Metrics,
		debug:             cfg.Debug,
		logger:            cfg.Logger,
		inflight:          inflight.New[*flight[T], *waiter[T]](),
	}

	if err := cfg.Validate(); err != nil {
		p.validationError = err
	}

	return p
}

// Endpoint returns the endpoint target maps to.
func (p *Provider[T]) Endpoint(target T) *Endpoint {
	return p.endpointMapper(target)
}

// Request dispatches target and delivers its Result to completion on the
// provider's callback scheduler. Cancelling ctx is equivalent to calling
// Cancel on the returned token.
func (p *Provider[T]) Request(ctx context.Context, target T, completion func(Result)) Cancellable {
	return p.RequestOn(ctx, target, nil, completion)
}

// RequestOn is Request with completion run on scheduler. A nil scheduler
// uses the provider's callback scheduler.
func (p *Provider[T]) RequestOn(ctx context.Context, target T, scheduler Scheduler, completion func(Result)) Cancellable {
	if ctx == nil {
		ctx = context.Background()
	}
	if scheduler == nil {
		scheduler = p.callbackScheduler
	}
	if completion == nil {
		completion = func(Result) {}
	}

	endpoint := p.Endpoint(target)
	behavior := p.stubSelector(target)

	w := &waiter[T]{
		ctx:        ctx,
		target:     target,
		completion: completion,
		scheduler:  scheduler,
		token:      NewCancellableToken(nil),
		requestID:  p.newRequestID(),
		started:    time.Now(),
	}
	w.stop = context.AfterFunc(ctx, w.token.Cancel)

	if p.debugEnabled(p.debug.LogRequests) {
		p.logger.Debug("Starting request", "requestID", w.requestID, "method", endpoint.Method(), "url", endpoint.URL(), "stub", behavior.String())
	}

	if !p.trackInflights {
		f := p.newFlight(ctx, endpoint, target, behavior, nil)
		f.solo = w
		w.token.setAction(f.abort)
		p.dispatch(f)
		return w.token
	}

	g, owner := p.inflight.Join(endpoint.Key(), w, func(g *inflight.Group[*flight[T], *waiter[T]]) *flight[T] {
		return p.newFlight(ctx, endpoint, target, behavior, g)
	})
	f := g.Value
	w.token.setAction(func() { p.waiterCancelled(f, w) })

	if !owner {
		p.metrics.RecordCoalesced(f.method, f.label)
		if p.debugEnabled(p.debug.LogCoalescing) {
			p.logger.Debug("Joined in-flight request", "requestID", w.requestID, "key", g.Key())
		}
		return w.token
	}

	if p.debugEnabled(p.debug.LogCoalescing) {
		p.logger.Debug("Started in-flight request", "requestID", w.requestID, "key", g.Key())
	}
	p.dispatch(f)
	return w.token
}

// Do dispatches target and waits for its Result. If ctx ends first the
// request is cancelled and a cancelled error is returned.
func (p *Provider[T]) Do(ctx context.Context, target T) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ch := make(chan Result, 1)
	token := p.RequestOn(ctx, target, InlineScheduler, func(result Result) {
		ch <- result
	})

	select {
	case result := <-ch:
		return result.Unwrap()
	case <-ctx.Done():
		token.Cancel()
		err := newCancelledError()
		err.Message = fmt.Sprintf("request cancelled: %v", ctx.Err())
		return nil, err
	}
}

// InflightCount returns the number of open coalesced groups.
func (p *Provider[T]) InflightCount() int {
	return p.inflight.Len()
}

// IsValid reports whether the configuration passed validation.
func (p *Provider[T]) IsValid() bool {
	return p.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (p *Provider[T]) ValidationError() error {
	return p.validationError
}

// ValidateConfigurationStrict panics if configuration is invalid.
func (p *Provider[T]) ValidateConfigurationStrict() {
	if p.validationError != nil {
		panic(fmt.Sprintf("invalid provider configuration: %v", p.validationError))
	}
}

// dispatch resolves the flight's request and hands it to the network or the
// stub engine. The resolver's callback is honored once.
func (p *Provider[T]) dispatch(f *flight[T]) {
	var once sync.Once
	p.requestResolver(f.ctx, f.endpoint, func(req *http.Request, err error) {
		once.Do(func() {
			p.resolved(f, req, err)
		})
	})
}

func (p *Provider[T]) resolved(f *flight[T], req *http.Request, err error) {
	if err == nil && req == nil {
		err = newConfigurationError("request resolver returned no request", nil, f.endpoint.Method(), f.endpoint.URL())
	}
	if err != nil {
		if p.debugEnabled(p.debug.LogRequests) {
			p.logger.Warn("Request resolution failed", "url", f.endpoint.URL(), "error", err.Error())
		}
		f.finish(Failure(Underlying(err)), false)
		return
	}

	if f.aborted.Load() {
		f.finish(Failure(newCancelledError()), true)
		return
	}

	req = p.prepare(req, f.target)
	if f.behavior.IsStubbed() {
		p.stubRequest(f, req)
		return
	}
	p.send(f, req)
}

// send performs the live transport call.
func (p *Provider[T]) send(f *flight[T], req *http.Request) {
	f.begin("network", req)

	task := p.transport.Send(req, func(resp *http.Response, body []byte, err error) {
		result := convertResponse(resp, body, err)
		if err != nil && f.aborted.Load() && errors.Is(err, context.Canceled) {
			result = Failure(newCancelledError())
		}
		f.finish(result, true)
	})
	f.setTask(task)
}

// stubRequest answers the request from the endpoint's sample response.
// Reaching it with NeverStub is a programming error.
func (p *Provider[T]) stubRequest(f *flight[T], req *http.Request) {
	switch f.behavior.kind {
	case stubImmediate:
		f.begin("immediate", req)
		p.runStub(f, req)
	case stubDelayed:
		f.begin("delayed", req)
		f.setTimer(time.AfterFunc(f.behavior.delay, func() {
			p.runStub(f, req)
		}))
	default:
		panic(ErrStubbingDisabled)
	}
}

// runStub invokes the sample response closure unless every caller has gone.
func (p *Provider[T]) runStub(f *flight[T], req *http.Request) {
	if f.abandoned() {
		if p.debugEnabled(p.debug.LogStubs) {
			p.logger.Debug("Stub skipped for cancelled request", "url", f.endpoint.URL())
		}
		f.finish(Failure(newCancelledError()), true)
		return
	}

	result := stubResult(f.endpoint.SampleResponse(), req)
	if p.debugEnabled(p.debug.LogStubs) {
		p.logger.Debug("Stub response", "url", f.endpoint.URL(), "behavior", f.behavior.String(), "success", result.IsSuccess())
	}
	f.finish(result, true)
}

// waiterCancelled applies the cancel policy when a tracked caller cancels.
func (p *Provider[T]) waiterCancelled(f *flight[T], w *waiter[T]) {
	if p.debugEnabled(p.debug.LogCancellation) {
		p.logger.Debug("Request cancelled", "requestID", w.requestID, "policy", p.cancelPolicy.String())
	}

	switch p.cancelPolicy {
	case CancelSharedCall:
		f.abort()
	case CancelWhenAllWaitersCancelled:
		if p.inflight.ForgetIf(f.group, allCancelled[T]) {
			f.abort()
		}
	}
}

// deliver hands result to one waiter. A cancelled waiter's plugins see a
// cancelled failure and its completion is not invoked.
func (p *Provider[T]) deliver(f *flight[T], w *waiter[T], result Result, notify bool) {
	w.once.Do(func() {
		if w.stop != nil {
			w.stop()
		}

		cancelled := w.cancelled()
		if cancelled {
			result = Failure(newCancelledError())
		}

		if notify {
			p.notifyDidReceive(result, w.target)
		}
		p.recordOutcome(f, w, result, cancelled)

		if cancelled {
			return
		}
		w.scheduler.Schedule(func() {
			w.completion(result)
		})
	})
}

func (p *Provider[T]) recordOutcome(f *flight[T], w *waiter[T], result Result, cancelled bool) {
	duration := time.Since(w.started)

	if cancelled {
		p.metrics.RecordCancelled(f.method, f.label)
		if p.debugEnabled(p.debug.LogCancellation) {
			p.logger.Debug("Delivery suppressed for cancelled request", "requestID", w.requestID, "duration", duration)
		}
		return
	}

	statusCode := 0
	if result.Response != nil {
		statusCode = result.Response.StatusCode
	}
	p.metrics.RecordRequest(f.method, f.label, statusCode, duration)
	if result.Err != nil {
		p.metrics.RecordError(errorType(result.Err), f.method, f.label)
	}

	if p.debugEnabled(p.debug.LogRequests) {
		if result.Err != nil {
			p.logger.Warn("Request failed", "requestID", w.requestID, "duration", duration, "error", result.Err.Error())
		} else {
			p.logger.Debug("Request completed", "requestID", w.requestID, "statusCode", statusCode, "duration", duration)
		}
	}
}

func errorType(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnderlying
}
