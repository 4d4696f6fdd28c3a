package moya

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// SampleResponseClosure produces the canned response used when a request is stubbed.
type SampleResponseClosure func() SampleResponse

// Endpoint is an immutable, fully parameterized request description.
// Every modifier returns a new *Endpoint and leaves the receiver untouched.
//
// Two endpoints are equal when they resolve to the same HTTP request, which
// is what lets the Provider coalesce concurrent identical requests.
type Endpoint struct {
	url            string
	method         Method
	parameters     map[string]any
	encoding       ParameterEncoding
	headers        map[string]string
	sampleResponse SampleResponseClosure

	keyOnce sync.Once
	key     string
}

// NewEndpoint creates an endpoint with no parameters or headers and the
// default URLEncoding.
func NewEndpoint(rawURL string, method Method, sampleResponse SampleResponseClosure) *Endpoint {
	return &Endpoint{
		url:            rawURL,
		method:         method,
		encoding:       URLEncoding{},
		sampleResponse: sampleResponse,
	}
}

func (e *Endpoint) URL() string { return e.url }
func (e *Endpoint) Method() Method { return e.method }
func (e *Endpoint) Encoding() ParameterEncoding { return e.encoding }
func (e *Endpoint) Parameters() map[string]any { return copyParameters(e.parameters) }
func (e *Endpoint) Headers() map[string]string { return copyHeaders(e.headers) }

// SampleResponse invokes the endpoint's sample-response closure. Endpoints
// without one answer with an empty 200.
func (e *Endpoint) SampleResponse() SampleResponse {
	if e.sampleResponse == nil {
		return NetworkResponse{StatusCode: http.StatusOK, Data: []byte{}}
	}
	return e.sampleResponse()
}

// WithAddedParameters returns a copy with parameters merged in. Keys in
// parameters win over existing keys. An empty map returns e itself.
func (e *Endpoint) WithAddedParameters(parameters map[string]any) *Endpoint {
	if len(parameters) == 0 {
		return e
	}
	merged := copyParameters(e.parameters)
	if merged == nil {
		merged = make(map[string]any, len(parameters))
	}
	for k, v := range parameters {
		merged[k] = v
	}
	return e.with(func(n *Endpoint) { n.parameters = merged })
}

// WithAddedHeaders returns a copy with headers merged in. Keys in headers win
// over existing keys. An empty map returns e itself.
func (e *Endpoint) WithAddedHeaders(headers map[string]string) *Endpoint {
	if len(headers) == 0 {
		return e
	}
	merged := copyHeaders(e.headers)
	if merged == nil {
		merged = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		merged[k] = v
	}
	return e.with(func(n *Endpoint) { n.headers = merged })
}

// WithEncoding returns a copy using encoding. A nil encoding returns e itself.
func (e *Endpoint) WithEncoding(encoding ParameterEncoding) *Endpoint {
	if encoding == nil {
		return e
	}
	return e.with(func(n *Endpoint) { n.encoding = encoding })
}

// WithSampleResponse returns a copy answering stubs with sampleResponse. It
// does not change the endpoint's identity. A nil closure returns e itself.
func (e *Endpoint) WithSampleResponse(sampleResponse SampleResponseClosure) *Endpoint {
	if sampleResponse == nil {
		return e
	}
	return e.with(func(n *Endpoint) { n.sampleResponse = sampleResponse })
}

func (e *Endpoint) with(modify func(*Endpoint)) *Endpoint {
	n := &Endpoint{
		url:            e.url,
		method:         e.method,
		parameters:     e.parameters,
		encoding:       e.encoding,
		headers:        e.headers,
		sampleResponse: e.sampleResponse,
	}
	modify(n)
	return n
}

// Request resolves the endpoint into an *http.Request bound to ctx. The
// result depends only on the endpoint's fields. A URL that is not absolute or
// cannot be parsed is reported as an ErrorTypeConfiguration error.
func (e *Endpoint) Request(ctx context.Context) (*http.Request, error) {
	u, err := url.Parse(e.url)
	if err != nil {
		return nil, newConfigurationError("invalid endpoint URL", err, e.method, e.url)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, newConfigurationError("endpoint URL must be absolute", nil, e.method, e.url)
	}

	req, err := http.NewRequestWithContext(ctx, string(e.method), u.String(), nil)
	if err != nil {
		return nil, newConfigurationError("cannot build request", err, e.method, e.url)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}

	encoding := e.encoding
	if encoding == nil {
		encoding = URLEncoding{}
	}
	if len(e.parameters) > 0 {
		if err := encoding.Encode(req, e.parameters); err != nil {
			return nil, newConfigurationError("cannot encode parameters", err, e.method, e.url)
		}
	}
	return req, nil
}

// Key is the canonical identity of the resolved request: method, URL with
// sorted query, sorted headers and a digest of the body.
func (e *Endpoint) Key() string {
	e.keyOnce.Do(func() {
		e.key = e.computeKey()
	})
	return e.key
}

// Hash returns an FNV-1a hash of Key.
func (e *Endpoint) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(e.Key()))
	return h.Sum64()
}

// Equal reports whether e and other resolve to the same request.
func (e *Endpoint) Equal(other *Endpoint) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e == other || e.Key() == other.Key()
}

// String returns the method and URL.
func (e *Endpoint) String() string {
	return fmt.Sprintf("%s %s", e.method, e.url)
}

func (e *Endpoint) computeKey() string {
	req, err := e.Request(context.Background())
	if err != nil {
		return "invalid " + string(e.method) + " " + e.url
	}

	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(canonicalURL(req.URL))

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(req.Header[name], ","))
	}

	// req is built only for the key, so a body without GetBody may be consumed.
	var body io.ReadCloser
	switch {
	case req.GetBody != nil:
		body, _ = req.GetBody()
	case req.Body != nil && req.Body != http.NoBody:
		body = req.Body
	}
	if body != nil {
		sum := sha256.New()
		if _, err := io.Copy(sum, body); err == nil {
			b.WriteString("\nbody ")
			b.WriteString(hex.EncodeToString(sum.Sum(nil)))
		} else {
			b.WriteString("\nbody unreadable")
		}
		body.Close()
	}
	return b.String()
}

func canonicalURL(u *url.URL) string {
	c := *u
	if c.RawQuery != "" {
		c.RawQuery = c.Query().Encode()
	}
	return c.String()
}

func copyParameters(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func copyHeaders(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
