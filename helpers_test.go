package moya

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const zenSample = "Half measures are as bad as nothing at all."

type testTarget struct {
	name    string
	base    string
	path    string
	method  Method
	params  map[string]any
	headers map[string]string
	sample  []byte
}

func (t testTarget) BaseURL() string { return t.base }
func (t testTarget) Path() string { return t.path }
func (t testTarget) Method() Method { return t.method }
func (t testTarget) Parameters() map[string]any { return t.params }
func (t testTarget) SampleData() []byte { return t.sample }
func (t testTarget) Headers() map[string]string { return t.headers }
func (t testTarget) Name() string { return t.name }

func zen() testTarget {
	return testTarget{
		name:   "zen",
		base:   "https://api.github.com",
		path:   "/zen",
		method: GET,
		sample: []byte(zenSample),
	}
}

func userRepositories(user string) testTarget {
	return testTarget{
		name:   "userRepositories",
		base:   "https://api.github.com",
		path:   "/users/" + user + "/repos",
		method: GET,
		params: map[string]any{"sort": "pushed"},
		sample: []byte(`[{"name": "Repo Name"}]`),
	}
}

// recordingPlugin records every hook call in order.
type recordingPlugin struct {
	mu       sync.Mutex
	events   []string
	sent     []*http.Request
	received []Result
	targets  []testTarget
}

func (p *recordingPlugin) WillSend(req *http.Request, target testTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "willSend")
	p.sent = append(p.sent, req)
}

func (p *recordingPlugin) DidReceive(result Result, target testTarget) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "didReceive")
	p.received = append(p.received, result)
	p.targets = append(p.targets, target)
}

func (p *recordingPlugin) sentCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func (p *recordingPlugin) receivedResults() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.received...)
}

func (p *recordingPlugin) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// blockingTransport holds every call until release is closed or the request
// context ends.
type blockingTransport struct {
	calls     atomic.Int32
	cancelled atomic.Int32
	release   chan struct{}
	body      []byte
}

func newBlockingTransport(body string) *blockingTransport {
	return &blockingTransport{release: make(chan struct{}), body: []byte(body)}
}

func (t *blockingTransport) Send(req *http.Request, done func(*http.Response, []byte, error)) Task {
	t.calls.Add(1)
	ctx, cancel := context.WithCancel(req.Context())
	go func() {
		select {
		case <-t.release:
			done(&http.Response{StatusCode: http.StatusOK, Request: req}, t.body, nil)
		case <-ctx.Done():
			done(nil, nil, ctx.Err())
		}
	}()
	return TaskFunc(func() {
		t.cancelled.Add(1)
		cancel()
	})
}

// countingSample wraps the default mapping with a sample closure that counts
// its invocations.
func countingSample(count *atomic.Int32) EndpointMapper[testTarget] {
	return func(target testTarget) *Endpoint {
		return DefaultEndpointMapper(target).WithSampleResponse(func() SampleResponse {
			count.Add(1)
			return NetworkResponse{StatusCode: http.StatusOK, Data: target.SampleData()}
		})
	}
}

func waitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
		return Result{}
	}
}
