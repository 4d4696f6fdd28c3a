package moya

import "net/http"

// Plugin observes requests without altering control flow. Hooks run
// synchronously on the dispatcher's delivery path and must return quickly.
type Plugin[T Target] interface {
	// WillSend is called once per live or stubbed dispatch, before execution.
	WillSend(req *http.Request, target T)
	// DidReceive is called once per caller for every terminal outcome,
	// including cancellation reported as a failure.
	DidReceive(result Result, target T)
}

// RequestPreparer is an optional Plugin capability. Prepare runs after
// request resolution and before WillSend, and may return a modified request.
type RequestPreparer[T Target] interface {
	Prepare(req *http.Request, target T) *http.Request
}

// DispatchObserver is an optional Plugin capability. DidComplete is called
// once per dispatch that WillSend was called for, with the same request and
// the shared outcome, before that outcome is delivered to any caller.
type DispatchObserver[T Target] interface {
	DidComplete(req *http.Request, result Result, target T)
}

// PluginFuncs builds a Plugin from optional functions.
type PluginFuncs[T Target] struct {
	OnWillSend   func(req *http.Request, target T)
	OnDidReceive func(result Result, target T)
}

func (p PluginFuncs[T]) WillSend(req *http.Request, target T) {
	if p.OnWillSend != nil {
		p.OnWillSend(req, target)
	}
}

func (p PluginFuncs[T]) DidReceive(result Result, target T) {
	if p.OnDidReceive != nil {
		p.OnDidReceive(result, target)
	}
}

func (p *Provider[T]) prepare(req *http.Request, target T) *http.Request {
	for _, plugin := range p.plugins {
		if preparer, ok := plugin.(RequestPreparer[T]); ok {
			if prepared := preparer.Prepare(req, target); prepared != nil {
				req = prepared
			}
		}
	}
	return req
}

func (p *Provider[T]) notifyWillSend(req *http.Request, target T) {
	for _, plugin := range p.plugins {
		plugin.WillSend(req, target)
	}
}

func (p *Provider[T]) notifyDidComplete(req *http.Request, result Result, target T) {
	for _, plugin := range p.plugins {
		if observer, ok := plugin.(DispatchObserver[T]); ok {
			observer.DidComplete(req, result, target)
		}
	}
}

func (p *Provider[T]) notifyDidReceive(result Result, target T) {
	for _, plugin := range p.plugins {
		plugin.DidReceive(result, target)
	}
}
