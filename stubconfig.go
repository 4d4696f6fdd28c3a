package moya

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Stub configuration errors.
var (
	ErrStubConfigNotFound = errors.New("stub configuration file not found")
	ErrInvalidStubConfig  = errors.New("invalid stub configuration")
)

// NamedTarget is implemented by targets that have a stable name for stub
// configuration. Targets without a name are looked up by Path.
type NamedTarget interface {
	Name() string
}

// StubRule is the stub behavior for one target.
type StubRule struct {
	// Behavior is one of "never", "immediate" or "delayed".
	Behavior string `yaml:"behavior"`
	// Delay applies to "delayed", e.g. "250ms".
	Delay string `yaml:"delay,omitempty"`
	// Status and Body, when set, replace the target's sample response.
	Status int    `yaml:"status,omitempty"`
	Body   string `yaml:"body,omitempty"`
	// Error, when set, makes the stub answer with a network error.
	Error string `yaml:"error,omitempty"`

	behavior StubBehavior
}

// StubConfig selects stub behavior per target from YAML:
//
//	default:
//	  behavior: never
//	targets:
//	  zen:
//	    behavior: immediate
//	  users/octocat:
//	    behavior: delayed
//	    delay: 500ms
//	    status: 404
type StubConfig struct {
	Default StubRule            `yaml:"default"`
	Targets map[string]StubRule `yaml:"targets"`
}

// LoadStubConfig decodes and validates a StubConfig. Unknown fields are errors.
func LoadStubConfig(r io.Reader) (*StubConfig, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg StubConfig
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidStubConfig)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidStubConfig, err)
	}

	if err := cfg.compile(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadStubConfigFile reads a StubConfig from a YAML file.
func LoadStubConfigFile(path string) (*StubConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStubConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read stub configuration: %w", err)
	}
	return LoadStubConfig(bytes.NewReader(data))
}

func (c *StubConfig) compile() error {
	if err := c.Default.compile(); err != nil {
		return fmt.Errorf("%w: default: %v", ErrInvalidStubConfig, err)
	}
	for name, rule := range c.Targets {
		if err := rule.compile(); err != nil {
			return fmt.Errorf("%w: target %q: %v", ErrInvalidStubConfig, name, err)
		}
		c.Targets[name] = rule
	}
	return nil
}

func (r *StubRule) compile() error {
	switch strings.ToLower(strings.TrimSpace(r.Behavior)) {
	case "", "never":
		r.behavior = NeverStub
	case "immediate":
		r.behavior = ImmediateStub
	case "delayed":
		if r.Delay == "" {
			return errors.New("delayed behavior requires a delay")
		}
		d, err := time.ParseDuration(r.Delay)
		if err != nil {
			return fmt.Errorf("bad delay %q: %w", r.Delay, err)
		}
		if d < 0 {
			return fmt.Errorf("negative delay %q", r.Delay)
		}
		r.behavior = DelayedStub(d)
	default:
		return fmt.Errorf("unknown behavior %q", r.Behavior)
	}

	if r.Status != 0 && (r.Status < 100 || r.Status > 599) {
		return fmt.Errorf("status %d out of range", r.Status)
	}
	if r.Error != "" && (r.Status != 0 || r.Body != "") {
		return errors.New("error cannot be combined with status or body")
	}
	return nil
}

// StubBehavior returns the compiled behavior of a loaded rule.
func (r StubRule) StubBehavior() StubBehavior {
	return r.behavior
}

func (r StubRule) overridesSample() bool {
	return r.Status != 0 || r.Body != "" || r.Error != ""
}

func (r StubRule) sampleResponse() SampleResponse {
	if r.Error != "" {
		return NetworkError{Err: errors.New(r.Error)}
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return NetworkResponse{StatusCode: status, Data: []byte(r.Body)}
}

// Rule returns the rule for a target name, falling back to Default.
func (c *StubConfig) Rule(name string) StubRule {
	if rule, ok := c.Targets[name]; ok {
		return rule
	}
	return c.Default
}

func stubTargetName(target Target) string {
	if named, ok := target.(NamedTarget); ok {
		return named.Name()
	}
	if mt, ok := target.(MultiTarget); ok {
		return stubTargetName(mt.Target)
	}
	return strings.TrimPrefix(target.Path(), "/")
}

// StubSelectorFor returns a StubSelector backed by c.
func StubSelectorFor[T Target](c *StubConfig) StubSelector[T] {
	return func(target T) StubBehavior {
		return c.Rule(stubTargetName(target)).behavior
	}
}

// EndpointMapperFor wraps next so that targets whose rule sets a status, body
// or error answer stubs with that sample instead of their own. A nil next
// uses DefaultEndpointMapper.
func EndpointMapperFor[T Target](c *StubConfig, next EndpointMapper[T]) EndpointMapper[T] {
	if next == nil {
		next = DefaultEndpointMapper[T]
	}
	return func(target T) *Endpoint {
		endpoint := next(target)
		rule := c.Rule(stubTargetName(target))
		if !rule.overridesSample() {
			return endpoint
		}
		return endpoint.WithSampleResponse(rule.sampleResponse)
	}
}

// WithStubConfig stubs targets according to c.
func WithStubConfig[T Target](c *StubConfig) Option[T] {
	return func(cfg *Config[T]) {
		cfg.StubSelector = StubSelectorFor[T](c)
		cfg.EndpointMapper = EndpointMapperFor[T](c, cfg.EndpointMapper)
	}
}
