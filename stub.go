package moya

import (
	"fmt"
	"net/http"
	"time"
)

// SampleResponse is the canned outcome produced by an endpoint's sample
// closure. It is either a NetworkResponse or a NetworkError.
type SampleResponse interface {
	sampleResponse()
}

// NetworkResponse is a successful stubbed response.
type NetworkResponse struct {
	StatusCode int
	Data       []byte
}

// NetworkError is a stubbed transport failure.
type NetworkError struct {
	Err error
}

func (NetworkResponse) sampleResponse() {}
func (NetworkError) sampleResponse() {}

type stubKind int

const (
	stubNever stubKind = iota
	stubImmediate
	stubDelayed
)

// StubBehavior controls whether and when a request is answered from its
// endpoint's sample response instead of the network.
type StubBehavior struct {
	kind  stubKind
	delay time.Duration
}

var (
	// NeverStub sends requests over the transport.
	NeverStub = StubBehavior{kind: stubNever}
	// ImmediateStub answers on the calling goroutine before Request returns.
	ImmediateStub = StubBehavior{kind: stubImmediate}
)

// DelayedStub answers after d on a timer goroutine.
func DelayedStub(d time.Duration) StubBehavior {
	return StubBehavior{kind: stubDelayed, delay: d}
}

// IsStubbed reports whether b answers from sample data.
func (b StubBehavior) IsStubbed() bool {
	return b.kind != stubNever
}

// Delay returns the stub delay; zero unless b is a DelayedStub.
func (b StubBehavior) Delay() time.Duration {
	return b.delay
}

func (b StubBehavior) String() string {
	switch b.kind {
	case stubImmediate:
		return "immediate"
	case stubDelayed:
		return fmt.Sprintf("delayed(%s)", b.delay)
	default:
		return "never"
	}
}

// StubSelector picks the stub behavior for a target.
type StubSelector[T Target] func(target T) StubBehavior

// NeverStubSelector is the default selector.
func NeverStubSelector[T Target](T) StubBehavior {
	return NeverStub
}

// ImmediatelyStubSelector stubs every target immediately.
func ImmediatelyStubSelector[T Target](T) StubBehavior {
	return ImmediateStub
}

// DelayedStubSelector stubs every target after d.
func DelayedStubSelector[T Target](d time.Duration) StubSelector[T] {
	return func(T) StubBehavior {
		return DelayedStub(d)
	}
}

// stubResult maps a sample response onto the canonical Result.
func stubResult(sample SampleResponse, req *http.Request) Result {
	switch s := sample.(type) {
	case NetworkResponse:
		data := s.Data
		if data == nil {
			data = []byte{}
		}
		return Success(&Response{
			StatusCode: s.StatusCode,
			Data:       data,
			Request:    req,
		})
	case NetworkError:
		return Failure(Underlying(s.Err))
	default:
		return Failure(Underlying(ErrUnknownOutcome))
	}
}
