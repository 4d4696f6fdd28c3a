package moya

import (
	"context"
	"fmt"
	"net/http"
)

// EndpointMapper turns a target into an Endpoint.
type EndpointMapper[T Target] func(target T) *Endpoint

// RequestResolver turns an Endpoint into an *http.Request and reports it
// through done, which may be called from any goroutine. It is the place for
// asynchronous work such as refreshing credentials.
type RequestResolver func(ctx context.Context, endpoint *Endpoint, done func(*http.Request, error))

// CancelPolicy decides what cancelling one caller of a coalesced request
// does to the shared underlying call.
type CancelPolicy int

const (
	// CancelDetach suppresses delivery to the cancelling caller only.
	CancelDetach CancelPolicy = iota
	// CancelWhenAllWaitersCancelled aborts the shared call once every
	// caller waiting on it has cancelled.
	CancelWhenAllWaitersCancelled
	// CancelSharedCall aborts the shared call for every waiter as soon as
	// any one of them cancels.
	CancelSharedCall
)

func (c CancelPolicy) String() string {
	switch c {
	case CancelDetach:
		return "detach"
	case CancelWhenAllWaitersCancelled:
		return "all-waiters"
	case CancelSharedCall:
		return "shared"
	default:
		return fmt.Sprintf("CancelPolicy(%d)", int(c))
	}
}

// DefaultEndpointMapper joins the target's base URL and path, carries over
// method, parameters, headers and encoding, and answers stubs with the
// target's sample data and status 200.
func DefaultEndpointMapper[T Target](target T) *Endpoint {
	sampleData := target.SampleData()
	endpoint := NewEndpoint(joinURL(target.BaseURL(), target.Path()), target.Method(), func() SampleResponse {
		return NetworkResponse{StatusCode: http.StatusOK, Data: sampleData}
	})
	endpoint = endpoint.WithAddedParameters(target.Parameters())
	if hp, ok := any(target).(HeaderProvider); ok {
		endpoint = endpoint.WithAddedHeaders(hp.Headers())
	}
	if ep, ok := any(target).(EncodingProvider); ok {
		endpoint = endpoint.WithEncoding(ep.ParameterEncoding())
	}
	return endpoint
}

// DefaultRequestResolver resolves synchronously and never adds work.
func DefaultRequestResolver(ctx context.Context, endpoint *Endpoint, done func(*http.Request, error)) {
	done(endpoint.Request(ctx))
}

// Config lists everything a Provider can be configured with. Zero fields
// take the documented default.
type Config[T Target] struct {
	// EndpointMapper defaults to DefaultEndpointMapper.
	EndpointMapper EndpointMapper[T]
	// RequestResolver defaults to DefaultRequestResolver.
	RequestResolver RequestResolver
	// StubSelector defaults to NeverStubSelector.
	StubSelector StubSelector[T]
	// Plugins are notified in order.
	Plugins []Plugin[T]
	// TrackInflights coalesces concurrent requests for equal endpoints.
	TrackInflights bool
	// CancelPolicy applies to coalesced requests; defaults to CancelDetach.
	CancelPolicy CancelPolicy
	// Transport defaults to an HTTPTransport over a 30s-timeout client.
	Transport Transport
	// CallbackScheduler defaults to InlineScheduler.
	CallbackScheduler Scheduler

	Logger  Logger
	Debug   *DebugConfig
	Metrics *MetricsCollector
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig[T Target]() Config[T] {
	return Config[T]{
		EndpointMapper:    DefaultEndpointMapper[T],
		RequestResolver:   DefaultRequestResolver,
		StubSelector:      NeverStubSelector[T],
		Plugins:           nil,
		TrackInflights:    false,
		CancelPolicy:      CancelDetach,
		Transport:         NewHTTPTransport(nil),
		CallbackScheduler: InlineScheduler,
		Logger:            nil,
		Debug:             DefaultDebugConfig(),
		Metrics:           nil,
	}
}

func (c *Config[T]) applyDefaults() {
	defaults := DefaultConfig[T]()
	if c.EndpointMapper == nil {
		c.EndpointMapper = defaults.EndpointMapper
	}
	if c.RequestResolver == nil {
		c.RequestResolver = defaults.RequestResolver
	}
	if c.StubSelector == nil {
		c.StubSelector = defaults.StubSelector
	}
	if c.Transport == nil {
		c.Transport = defaults.Transport
	}
	if c.CallbackScheduler == nil {
		c.CallbackScheduler = defaults.CallbackScheduler
	}
	if c.Debug == nil {
		c.Debug = defaults.Debug
	}
}

// Validate reports configuration problems as one ErrorTypeValidation error.
func (c *Config[T]) Validate() error {
	var problems []string

	for i, plugin := range c.Plugins {
		if plugin == nil {
			problems = append(problems, fmt.Sprintf("plugins[%d] cannot be nil", i))
		}
	}

	if c.CancelPolicy < CancelDetach || c.CancelPolicy > CancelSharedCall {
		problems = append(problems, fmt.Sprintf("unknown cancel policy %d", int(c.CancelPolicy)))
	}

	if c.CancelPolicy != CancelDetach && !c.TrackInflights {
		problems = append(problems, "cancel policy only applies when inflight tracking is enabled")
	}

	if c.Debug != nil && c.Debug.Enabled {
		if c.Debug.RequestIDGen == nil {
			problems = append(problems, "debug RequestIDGen must be set when debug is enabled")
		}
		if c.Logger == nil {
			problems = append(problems, "logger must be set when debug is enabled")
		}
	}

	if len(problems) > 0 {
		return &Error{
			Type:    ErrorTypeValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", problems),
		}
	}
	return nil
}

// Option represents a configuration option
type Option[T Target] func(*Config[T])

// WithEndpointMapper replaces the target to endpoint mapping.
func WithEndpointMapper[T Target](fn EndpointMapper[T]) Option[T] {
	return func(c *Config[T]) {
		c.EndpointMapper = fn
	}
}

// WithRequestResolver replaces the endpoint to request resolution.
func WithRequestResolver[T Target](fn RequestResolver) Option[T] {
	return func(c *Config[T]) {
		c.RequestResolver = fn
	}
}

// WithStubSelector sets the stub behavior selection.
func WithStubSelector[T Target](fn StubSelector[T]) Option[T] {
	return func(c *Config[T]) {
		c.StubSelector = fn
	}
}

// WithPlugins appends plugins.
func WithPlugins[T Target](plugins ...Plugin[T]) Option[T] {
	return func(c *Config[T]) {
		c.Plugins = append(c.Plugins, plugins...)
	}
}

// WithInflightTracking enables request coalescing.
func WithInflightTracking[T Target]() Option[T] {
	return func(c *Config[T]) {
		c.TrackInflights = true
	}
}

// WithCancelPolicy sets the cancel policy for coalesced requests.
func WithCancelPolicy[T Target](policy CancelPolicy) Option[T] {
	return func(c *Config[T]) {
		c.CancelPolicy = policy
	}
}

// WithTransport sets a custom transport.
func WithTransport[T Target](transport Transport) Option[T] {
	return func(c *Config[T]) {
		c.Transport = transport
	}
}

// WithHTTPClient sends live requests with client through middleware.
func WithHTTPClient[T Target](client *http.Client, middleware ...Middleware) Option[T] {
	return func(c *Config[T]) {
		c.Transport = NewHTTPTransport(client, middleware...)
	}
}

// WithCallbackScheduler sets where completions run by default.
func WithCallbackScheduler[T Target](scheduler Scheduler) Option[T] {
	return func(c *Config[T]) {
		c.CallbackScheduler = scheduler
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics[T Target]() Option[T] {
	return func(c *Config[T]) {
		c.Metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector[T Target](collector *MetricsCollector) Option[T] {
	return func(c *Config[T]) {
		c.Metrics = collector
	}
}

// WithDebug enables debug logging with default configuration
func WithDebug[T Target]() Option[T] {
	return func(c *Config[T]) {
		if c.Debug == nil {
			c.Debug = DefaultDebugConfig()
		}
		c.Debug.Enabled = true
	}
}

// WithDebugConfig sets custom debug configuration
func WithDebugConfig[T Target](config *DebugConfig) Option[T] {
	return func(c *Config[T]) {
		c.Debug = config
	}
}

// WithLogger sets a custom logger for debug output
func WithLogger[T Target](logger Logger) Option[T] {
	return func(c *Config[T]) {
		c.Logger = logger
	}
}

// WithSimpleLogger enables debug logging with a simple console logger
func WithSimpleLogger[T Target]() Option[T] {
	return func(c *Config[T]) {
		if c.Debug == nil {
			c.Debug = DefaultDebugConfig()
		}
		c.Debug.Enabled = true
		c.Logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator[T Target](gen func() string) Option[T] {
	return func(c *Config[T]) {
		if c.Debug == nil {
			c.Debug = DefaultDebugConfig()
		}
		c.Debug.RequestIDGen = gen
	}
}
