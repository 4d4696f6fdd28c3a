package moya

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig[testTarget]()

	assert.NotNil(t, cfg.EndpointMapper)
	assert.NotNil(t, cfg.RequestResolver)
	assert.Equal(t, NeverStub, cfg.StubSelector(zen()))
	assert.Empty(t, cfg.Plugins)
	assert.False(t, cfg.TrackInflights)
	assert.Equal(t, CancelDetach, cfg.CancelPolicy)
	assert.NotNil(t, cfg.Transport)
	assert.NotNil(t, cfg.CallbackScheduler)
	assert.NotNil(t, cfg.Debug)
	assert.False(t, cfg.Debug.Enabled)
	assert.Nil(t, cfg.Metrics)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config[testTarget])
		wantErr bool
	}{
		{"defaults", func(*Config[testTarget]) {}, false},
		{"nil plugin", func(c *Config[testTarget]) { c.Plugins = []Plugin[testTarget]{nil} }, true},
		{"unknown policy", func(c *Config[testTarget]) {
			c.TrackInflights = true
			c.CancelPolicy = CancelPolicy(42)
		}, true},
		{"policy without tracking", func(c *Config[testTarget]) { c.CancelPolicy = CancelSharedCall }, true},
		{"policy with tracking", func(c *Config[testTarget]) {
			c.TrackInflights = true
			c.CancelPolicy = CancelWhenAllWaitersCancelled
		}, false},
		{"debug without logger", func(c *Config[testTarget]) { c.Debug.Enabled = true }, true},
		{"debug without id generator", func(c *Config[testTarget]) {
			c.Debug.Enabled = true
			c.Debug.RequestIDGen = nil
			c.Logger = NewWriterLogger(&bytes.Buffer{})
		}, true},
		{"debug complete", func(c *Config[testTarget]) {
			c.Debug.Enabled = true
			c.Logger = NewWriterLogger(&bytes.Buffer{})
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig[testTarget]()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, &Error{Type: ErrorTypeValidation})
		})
	}
}

func TestInvalidProviderIsStillUsable(t *testing.T) {
	provider := New(
		WithCancelPolicy[testTarget](CancelSharedCall),
		WithStubSelector(ImmediatelyStubSelector[testTarget]),
	)

	assert.False(t, provider.IsValid())
	assert.Error(t, provider.ValidationError())
	assert.Panics(t, provider.ValidateConfigurationStrict)

	resp, err := provider.Do(context.Background(), zen())
	require.NoError(t, err)
	assert.Equal(t, zenSample, string(resp.Data))
}

func TestNewProviderAppliesDefaults(t *testing.T) {
	provider := NewProvider(Config[testTarget]{})

	assert.True(t, provider.IsValid())
	assert.NoError(t, provider.ValidationError())
	assert.NotPanics(t, provider.ValidateConfigurationStrict)
	assert.Equal(t, "https://api.github.com/zen", provider.Endpoint(zen()).URL())
}

func TestCancelPolicyString(t *testing.T) {
	assert.Equal(t, "detach", CancelDetach.String())
	assert.Equal(t, "all-waiters", CancelWhenAllWaitersCancelled.String())
	assert.Equal(t, "shared", CancelSharedCall.String())
	assert.Equal(t, "CancelPolicy(9)", CancelPolicy(9).String())
}

func TestOptions(t *testing.T) {
	apply := func(opts ...Option[testTarget]) Config[testTarget] {
		cfg := DefaultConfig[testTarget]()
		for _, opt := range opts {
			opt(&cfg)
		}
		return cfg
	}

	t.Run("plugins append", func(t *testing.T) {
		a, b := &recordingPlugin{}, &recordingPlugin{}
		cfg := apply(WithPlugins[testTarget](a), WithPlugins[testTarget](b))
		require.Len(t, cfg.Plugins, 2)
		assert.Same(t, a, cfg.Plugins[0])
		assert.Same(t, b, cfg.Plugins[1])
	})

	t.Run("inflight tracking and policy", func(t *testing.T) {
		cfg := apply(WithInflightTracking[testTarget](), WithCancelPolicy[testTarget](CancelSharedCall))
		assert.True(t, cfg.TrackInflights)
		assert.Equal(t, CancelSharedCall, cfg.CancelPolicy)
	})

	t.Run("http client", func(t *testing.T) {
		client := &http.Client{Timeout: time.Second}
		cfg := apply(WithHTTPClient[testTarget](client))
		transport, ok := cfg.Transport.(*HTTPTransport)
		require.True(t, ok)
		assert.Same(t, client, transport.client)
	})

	t.Run("transport", func(t *testing.T) {
		transport := newBlockingTransport("")
		cfg := apply(WithTransport[testTarget](transport))
		assert.Same(t, transport, cfg.Transport)
	})

	t.Run("scheduler", func(t *testing.T) {
		cfg := apply(WithCallbackScheduler[testTarget](GoScheduler))
		assert.NotNil(t, cfg.CallbackScheduler)
	})

	t.Run("metrics collector", func(t *testing.T) {
		mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
		cfg := apply(WithMetricsCollector[testTarget](mc))
		assert.Same(t, mc, cfg.Metrics)
	})

	t.Run("debug", func(t *testing.T) {
		cfg := apply(WithDebug[testTarget](), WithLogger[testTarget](NewWriterLogger(&bytes.Buffer{})))
		assert.True(t, cfg.Debug.Enabled)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("debug on nil config", func(t *testing.T) {
		cfg := apply(WithDebugConfig[testTarget](nil), WithDebug[testTarget]())
		require.NotNil(t, cfg.Debug)
		assert.True(t, cfg.Debug.Enabled)
	})

	t.Run("simple logger", func(t *testing.T) {
		cfg := apply(WithSimpleLogger[testTarget]())
		assert.True(t, cfg.Debug.Enabled)
		assert.NotNil(t, cfg.Logger)
	})

	t.Run("request id generator", func(t *testing.T) {
		cfg := apply(WithRequestIDGenerator[testTarget](func() string { return "fixed" }))
		assert.Equal(t, "fixed", cfg.Debug.RequestIDGen())
	})

	t.Run("endpoint mapper", func(t *testing.T) {
		cfg := apply(WithEndpointMapper(func(testTarget) *Endpoint {
			return NewEndpoint("https://mapped.example.com", GET, nil)
		}))
		assert.Equal(t, "https://mapped.example.com", cfg.EndpointMapper(zen()).URL())
	})
}

func TestDebugLoggingThroughProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := New(
		WithStubSelector(ImmediatelyStubSelector[testTarget]),
		WithDebug[testTarget](),
		WithLogger[testTarget](NewWriterLogger(&buf)),
		WithRequestIDGenerator[testTarget](func() string { return "req-1" }),
	)
	require.True(t, provider.IsValid())

	_, err := provider.Do(context.Background(), zen())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Starting request")
	assert.Contains(t, out, "requestID=req-1")
	assert.Contains(t, out, "Stub response")
	assert.Contains(t, out, "Request completed")
}
