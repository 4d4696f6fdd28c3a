package moya

import (
	"sync"
	"sync/atomic"
)

// Cancellable is the handle returned for every request.
type Cancellable interface {
	// Cancel suppresses delivery of a result that has not been delivered
	// yet and, where the cancel policy allows, aborts the underlying call.
	Cancel()
	IsCancelled() bool
}

// CancellableToken is the Cancellable used by Provider. It runs its action
// at most once, on the first call to Cancel.
type CancellableToken struct {
	cancelled atomic.Bool

	mu     sync.Mutex
	action func()
}

// NewCancellableToken returns a token that runs action when cancelled.
func NewCancellableToken(action func()) *CancellableToken {
	return &CancellableToken{action: action}
}

func (t *CancellableToken) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.mu.Lock()
	action := t.action
	t.action = nil
	t.mu.Unlock()

	if action != nil {
		action()
	}
}

func (t *CancellableToken) IsCancelled() bool {
	return t.cancelled.Load()
}

// setAction installs the cancel action. If the token was already cancelled
// the action runs immediately.
func (t *CancellableToken) setAction(action func()) {
	t.mu.Lock()
	if !t.cancelled.Load() {
		t.action = action
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	action()
}
