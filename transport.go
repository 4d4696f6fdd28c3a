package moya

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Transport executes resolved requests. Send must return promptly and call
// done exactly once, from any goroutine, with the raw outcome.
type Transport interface {
	Send(req *http.Request, done func(resp *http.Response, body []byte, err error)) Task
}

// Task is an in-flight transport call.
type Task interface {
	Cancel()
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(req *http.Request, done func(resp *http.Response, body []byte, err error)) Task

func (f TransportFunc) Send(req *http.Request, done func(resp *http.Response, body []byte, err error)) Task {
	return f(req, done)
}

// TaskFunc adapts a cancel function to Task.
type TaskFunc func()

func (f TaskFunc) Cancel() {
	f()
}

// Middleware wraps the round trip performed by HTTPTransport.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// HTTPTransport sends requests with an *http.Client on a goroutine per call
// and reads the whole body before reporting the outcome.
type HTTPTransport struct {
	client     *http.Client
	middleware []Middleware
}

// NewHTTPTransport wraps client; a nil client uses a client with a 30s timeout.
func NewHTTPTransport(client *http.Client, middleware ...Middleware) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		client:     client,
		middleware: middleware,
	}
}

// Send implements Transport. Cancelling the returned task cancels the
// request context.
func (t *HTTPTransport) Send(req *http.Request, done func(resp *http.Response, body []byte, err error)) Task {
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	go func() {
		defer cancel()

		resp, err := t.roundTrip(req)
		if err != nil {
			done(nil, nil, err)
			return
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			done(resp, nil, err)
			return
		}
		// The response may be shared by coalesced callers; body is the only copy.
		resp.Body = http.NoBody
		done(resp, body, nil)
	}()

	return TaskFunc(cancel)
}

func (t *HTTPTransport) roundTrip(req *http.Request) (*http.Response, error) {
	if len(t.middleware) == 0 {
		return t.client.Do(req)
	}

	current := RoundTripperFunc(t.client.Do)

	for i := len(t.middleware) - 1; i >= 0; i-- {
		middleware := t.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// RateLimitMiddleware delays each round trip until limiter grants a token,
// failing early if the request context ends first.
func RateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
		return next.RoundTrip(req)
	}
}

// HeaderMiddleware sets fixed headers on every outgoing request.
func HeaderMiddleware(headers map[string]string) Middleware {
	return func(req *http.Request, next RoundTripper) (*http.Response, error) {
		req = req.Clone(req.Context())
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return next.RoundTrip(req)
	}
}
