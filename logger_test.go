package moya

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriterLoggerWritesDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf)
	logger.Debug("ping", "key", "value")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "key=value")
}

func TestSlogLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewJSONHandler(&buf, nil)))
	logger.Info("ping", "n", 1)
	assert.JSONEq(t, `{"level":"INFO","msg":"ping","n":1}`, stripTime(t, buf.Bytes()))
}

func stripTime(t *testing.T, line []byte) string {
	t.Helper()
	var m map[string]any
	assert.NoError(t, json.Unmarshal(line, &m))
	delete(m, "time")
	out, err := json.Marshal(m)
	assert.NoError(t, err)
	return string(out)
}

func TestRequestIDGeneration(t *testing.T) {
	var buf bytes.Buffer

	disabled := New[testTarget]()
	assert.Empty(t, disabled.newRequestID())
	assert.False(t, disabled.debugEnabled(true))

	enabled := New(WithDebug[testTarget](), WithLogger[testTarget](NewWriterLogger(&buf)))
	a, b := enabled.newRequestID(), enabled.newRequestID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.True(t, enabled.debugEnabled(true))
	assert.False(t, enabled.debugEnabled(false))
}
