package moya

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMappingIsDeterministic(t *testing.T) {
	targets := []testTarget{zen(), userRepositories("octocat")}

	for _, target := range targets {
		t.Run(target.name, func(t *testing.T) {
			e1 := DefaultEndpointMapper(target)
			e2 := DefaultEndpointMapper(target)

			assert.NotSame(t, e1, e2)
			assert.True(t, e1.Equal(e2))
			assert.Equal(t, e1.Key(), e2.Key())
			assert.Equal(t, e1.Hash(), e2.Hash())
		})
	}
}

func TestDefaultMappingCarriesTargetFields(t *testing.T) {
	target := userRepositories("octocat")
	target.headers = map[string]string{"Accept": "application/json"}

	endpoint := DefaultEndpointMapper(target)
	assert.Equal(t, "https://api.github.com/users/octocat/repos", endpoint.URL())
	assert.Equal(t, GET, endpoint.Method())
	assert.Equal(t, map[string]any{"sort": "pushed"}, endpoint.Parameters())
	assert.Equal(t, map[string]string{"Accept": "application/json"}, endpoint.Headers())

	sample, ok := endpoint.SampleResponse().(NetworkResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, sample.StatusCode)
	assert.Equal(t, target.sample, sample.Data)
}

func TestEmptyMergesReturnReceiver(t *testing.T) {
	endpoint := DefaultEndpointMapper(zen())

	assert.Same(t, endpoint, endpoint.WithAddedParameters(nil))
	assert.Same(t, endpoint, endpoint.WithAddedParameters(map[string]any{}))
	assert.Same(t, endpoint, endpoint.WithAddedHeaders(nil))
	assert.Same(t, endpoint, endpoint.WithAddedHeaders(map[string]string{}))
	assert.Same(t, endpoint, endpoint.WithEncoding(nil))
	assert.Same(t, endpoint, endpoint.WithSampleResponse(nil))
}

func TestAddedParametersLastWins(t *testing.T) {
	base := NewEndpoint("https://example.com/items", GET, nil)

	e := base.
		WithAddedParameters(map[string]any{"a": "1", "b": "1"}).
		WithAddedParameters(map[string]any{"b": "2", "c": "2"}).
		WithAddedParameters(map[string]any{"c": "3", "d": "3"})

	assert.Equal(t, map[string]any{"a": "1", "b": "2", "c": "3", "d": "3"}, e.Parameters())
	assert.Nil(t, base.Parameters(), "receiver must not change")
}

func TestAddedHeadersLastWins(t *testing.T) {
	base := NewEndpoint("https://example.com", GET, nil).
		WithAddedHeaders(map[string]string{"Accept": "text/plain", "X-A": "a"})

	e := base.WithAddedHeaders(map[string]string{"Accept": "application/json"})

	assert.Equal(t, map[string]string{"Accept": "application/json", "X-A": "a"}, e.Headers())
	assert.Equal(t, "text/plain", base.Headers()["Accept"])
}

func TestAccessorsReturnCopies(t *testing.T) {
	e := NewEndpoint("https://example.com", GET, nil).
		WithAddedParameters(map[string]any{"q": "go"}).
		WithAddedHeaders(map[string]string{"X-A": "a"})

	e.Parameters()["q"] = "changed"
	e.Headers()["X-A"] = "changed"

	assert.Equal(t, "go", e.Parameters()["q"])
	assert.Equal(t, "a", e.Headers()["X-A"])
}

func TestEqualityIsOverResolvedRequest(t *testing.T) {
	withQuery := NewEndpoint("https://example.com/search?b=2&a=1", GET, nil)
	withParams := NewEndpoint("https://example.com/search", GET, nil).
		WithAddedParameters(map[string]any{"b": "2", "a": "1"})

	assert.True(t, withQuery.Equal(withParams))
	assert.Equal(t, withQuery.Hash(), withParams.Hash())

	post := NewEndpoint("https://example.com/search", POST, nil).
		WithAddedParameters(map[string]any{"b": "2", "a": "1"})
	assert.False(t, withParams.Equal(post))

	otherBody := NewEndpoint("https://example.com/search", POST, nil).
		WithAddedParameters(map[string]any{"b": "3", "a": "1"})
	assert.False(t, post.Equal(otherBody))

	jsonBody := post.WithEncoding(JSONEncoding{})
	assert.False(t, post.Equal(jsonBody))
}

func TestSampleResponseDoesNotAffectIdentity(t *testing.T) {
	e := NewEndpoint("https://example.com", GET, nil)
	stubbed := e.WithSampleResponse(func() SampleResponse {
		return NetworkResponse{StatusCode: http.StatusTeapot}
	})

	assert.True(t, e.Equal(stubbed))
	assert.Equal(t, http.StatusTeapot, stubbed.SampleResponse().(NetworkResponse).StatusCode)
}

func TestSampleResponseDefault(t *testing.T) {
	e := NewEndpoint("https://example.com", GET, nil)

	sample, ok := e.SampleResponse().(NetworkResponse)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, sample.StatusCode)
	assert.NotNil(t, sample.Data)
}

func TestEqualNil(t *testing.T) {
	var a, b *Endpoint
	assert.True(t, a.Equal(b))
	assert.False(t, NewEndpoint("https://example.com", GET, nil).Equal(nil))
}

func TestEndpointRequest(t *testing.T) {
	e := NewEndpoint("https://example.com/users", POST, nil).
		WithAddedHeaders(map[string]string{"X-Trace": "1"}).
		WithAddedParameters(map[string]any{"name": "moya"}).
		WithEncoding(JSONEncoding{})

	ctx := context.WithValue(context.Background(), struct{}{}, "v")
	req, err := e.Request(ctx)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "https://example.com/users", req.URL.String())
	assert.Equal(t, "1", req.Header.Get("X-Trace"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, ctx, req.Context())

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "moya"}`, string(body))
}

func TestEndpointRequestConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unparseable", "://missing-scheme"},
		{"relative", "/users/octocat"},
		{"no host", "https://"},
		{"bad method", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := GET
			if tt.name == "bad method" {
				tt.url = "https://example.com"
				method = Method("BAD METHOD")
			}
			_, err := NewEndpoint(tt.url, method, nil).Request(context.Background())
			require.Error(t, err)
			assert.True(t, IsConfiguration(err))
		})
	}
}

func TestInvalidEndpointsStillHaveKeys(t *testing.T) {
	a := NewEndpoint("://bad", GET, nil)
	b := NewEndpoint("://bad", GET, nil)
	c := NewEndpoint("://other", GET, nil)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestEndpointString(t *testing.T) {
	assert.Equal(t, "GET https://example.com/zen", NewEndpoint("https://example.com/zen", GET, nil).String())
}

// bodyOnlyEncoding writes the "q" parameter as the body without setting GetBody.
var bodyOnlyEncoding = EncodingFunc(func(req *http.Request, p map[string]any) error {
	req.Body = io.NopCloser(strings.NewReader(fmt.Sprint(p["q"])))
	return nil
})

func TestBodyWithoutGetBodyAffectsIdentity(t *testing.T) {
	build := func(q string) *Endpoint {
		return NewEndpoint("https://example.com/search", POST, nil).
			WithAddedParameters(map[string]any{"q": q}).
			WithEncoding(bodyOnlyEncoding)
	}

	alpha, beta := build("alpha"), build("beta")
	assert.False(t, alpha.Equal(beta))
	assert.NotEqual(t, alpha.Hash(), beta.Hash())
	assert.True(t, alpha.Equal(build("alpha")))
}
