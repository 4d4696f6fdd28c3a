package moya

import (
	"net/http"
	"sync"
)

// NetworkLoggerPlugin logs every request and outcome through a Logger.
type NetworkLoggerPlugin[T Target] struct {
	logger Logger
}

// NewNetworkLoggerPlugin returns a plugin writing to logger.
func NewNetworkLoggerPlugin[T Target](logger Logger) *NetworkLoggerPlugin[T] {
	return &NetworkLoggerPlugin[T]{logger: logger}
}

func (p *NetworkLoggerPlugin[T]) WillSend(req *http.Request, target T) {
	p.logger.Info("Request", "method", req.Method, "url", req.URL.String(), "path", target.Path())
}

func (p *NetworkLoggerPlugin[T]) DidReceive(result Result, target T) {
	if result.Err != nil {
		p.logger.Warn("Response failed", "path", target.Path(), "error", result.Err.Error())
		return
	}
	p.logger.Info("Response", "path", target.Path(), "statusCode", result.Response.StatusCode, "bytes", len(result.Response.Data))
}

// NetworkActivityChange is reported by NetworkActivityPlugin.
type NetworkActivityChange int

const (
	ActivityBegan NetworkActivityChange = iota
	ActivityEnded
)

// NetworkActivityPlugin reports when the provider goes from idle to busy and
// back. It counts underlying dispatches, so a coalesced call with many
// callers counts once.
type NetworkActivityPlugin[T Target] struct {
	onChange func(change NetworkActivityChange)

	mu     sync.Mutex
	active int64
}

// NewNetworkActivityPlugin returns a plugin invoking onChange on transitions.
func NewNetworkActivityPlugin[T Target](onChange func(change NetworkActivityChange)) *NetworkActivityPlugin[T] {
	return &NetworkActivityPlugin[T]{onChange: onChange}
}

func (p *NetworkActivityPlugin[T]) WillSend(*http.Request, T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active++
	if p.active == 1 {
		p.onChange(ActivityBegan)
	}
}

func (p *NetworkActivityPlugin[T]) DidComplete(*http.Request, Result, T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == 0 {
		return
	}
	p.active--
	if p.active == 0 {
		p.onChange(ActivityEnded)
	}
}

func (p *NetworkActivityPlugin[T]) DidReceive(Result, T) {}

// Active returns the number of dispatches without an outcome yet.
func (p *NetworkActivityPlugin[T]) Active() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// AccessTokenPlugin sets a bearer Authorization header on every request.
type AccessTokenPlugin[T Target] struct {
	tokenFunc func() string
}

// NewAccessTokenPlugin returns a plugin that asks tokenFunc for the token of
// each request. An empty token leaves the request untouched.
func NewAccessTokenPlugin[T Target](tokenFunc func() string) *AccessTokenPlugin[T] {
	return &AccessTokenPlugin[T]{tokenFunc: tokenFunc}
}

func (p *AccessTokenPlugin[T]) Prepare(req *http.Request, _ T) *http.Request {
	token := p.tokenFunc()
	if token == "" {
		return req
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func (p *AccessTokenPlugin[T]) WillSend(*http.Request, T) {}

func (p *AccessTokenPlugin[T]) DidReceive(Result, T) {}
