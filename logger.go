package moya

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger is the structured logger used for debug output. Arguments after the
// message are alternating keys and values.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DebugConfig selects which dispatcher events are logged.
type DebugConfig struct {
	Enabled         bool
	LogRequests     bool
	LogStubs        bool
	LogCoalescing   bool
	LogCancellation bool
	RequestIDGen    func() string
}

// DefaultDebugConfig logs every event category once Enabled is set.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:         false,
		LogRequests:     true,
		LogStubs:        true,
		LogCoalescing:   true,
		LogCancellation: true,
		RequestIDGen:    uuid.NewString,
	}
}

// NewSimpleLogger returns a text logger on stderr at debug level.
func NewSimpleLogger() Logger {
	return NewWriterLogger(os.Stderr)
}

// NewWriterLogger returns a text logger writing to w at debug level.
func NewWriterLogger(w io.Writer) Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// NewSlogLogger adapts an existing *slog.Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return l
}

func (p *Provider[T]) debugEnabled(category bool) bool {
	return p.debug != nil && p.debug.Enabled && category && p.logger != nil
}

func (p *Provider[T]) newRequestID() string {
	if p.debug == nil || !p.debug.Enabled || p.debug.RequestIDGen == nil {
		return ""
	}
	return p.debug.RequestIDGen()
}
