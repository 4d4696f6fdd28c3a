package moya

import (
	"net/http"
	"strings"
)

// Method is an HTTP request method.
type Method string

const (
	GET     Method = http.MethodGet
	POST    Method = http.MethodPost
	PUT     Method = http.MethodPut
	DELETE  Method = http.MethodDelete
	OPTIONS Method = http.MethodOptions
	HEAD    Method = http.MethodHead
	PATCH   Method = http.MethodPatch
	TRACE   Method = http.MethodTrace
	CONNECT Method = http.MethodConnect
)

// Target describes one API call. Implementations are usually a small closed
// set of values per API client, and must be free of side effects.
type Target interface {
	BaseURL() string
	Path() string
	Method() Method
	Parameters() map[string]any
	SampleData() []byte
}

// HeaderProvider is implemented by targets that carry default headers.
// DefaultEndpointMapper adds them to the endpoint.
type HeaderProvider interface {
	Headers() map[string]string
}

// EncodingProvider is implemented by targets that need a parameter encoding
// other than the default URLEncoding.
type EncodingProvider interface {
	ParameterEncoding() ParameterEncoding
}

// MultiTarget lets a single Provider serve targets of different types.
type MultiTarget struct {
	Target Target
}

// NewMultiTarget wraps t.
func NewMultiTarget(t Target) MultiTarget {
	return MultiTarget{Target: t}
}

func (m MultiTarget) BaseURL() string { return m.Target.BaseURL() }
func (m MultiTarget) Path() string { return m.Target.Path() }
func (m MultiTarget) Method() Method { return m.Target.Method() }
func (m MultiTarget) Parameters() map[string]any { return m.Target.Parameters() }
func (m MultiTarget) SampleData() []byte { return m.Target.SampleData() }

// Headers forwards to the wrapped target when it is a HeaderProvider.
func (m MultiTarget) Headers() map[string]string {
	if hp, ok := m.Target.(HeaderProvider); ok {
		return hp.Headers()
	}
	return nil
}

// ParameterEncoding forwards to the wrapped target when it is an EncodingProvider.
func (m MultiTarget) ParameterEncoding() ParameterEncoding {
	if ep, ok := m.Target.(EncodingProvider); ok {
		return ep.ParameterEncoding()
	}
	return nil
}

// joinURL appends path to base as a single path component boundary.
func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
