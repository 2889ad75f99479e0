package logging_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxsecrets/oxsecrets/internal/logging"
)

// captureStderr captures stderr output for testing
func captureStderr(fn func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestSecretAlwaysRedacted(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "plain password", value: "super_secret_pw"},
		{name: "empty value", value: ""},
		{name: "value with symbols", value: "p@ss:word=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "[REDACTED]", logging.Secret(tt.value).String())
			assert.Equal(t, "[REDACTED]", logging.Secret(tt.value).GoString())
		})
	}
}

func TestLoggerRedactsSecretValues(t *testing.T) {
	// Not parallel: captureStderr swaps the global os.Stderr.
	logger := logging.New(true, true)

	value := "super-secret-password-12345"
	output := captureStderr(func() {
		logger.Debug("resolved %q to %s", "example_pw", logging.Secret(value))
	})

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, value)
	assert.Contains(t, output, "[DEBUG]")
}

func TestDebugSuppressedWithoutFlag(t *testing.T) {
	logger := logging.New(false, true)

	output := captureStderr(func() {
		logger.Debug("loading category %q", "root")
	})

	assert.Empty(t, output)
}

func TestLoggerLevels(t *testing.T) {
	logger := logging.New(false, true)

	output := captureStderr(func() {
		logger.Info("cache cleared")
		logger.Warn("opening secrets file %q", "/tmp/x.csv")
		logger.Error("load failed")
	})

	assert.Contains(t, output, "✓ cache cleared")
	assert.Contains(t, output, "⚠ opening secrets file")
	assert.Contains(t, output, "✗ load failed")
}

func TestRedactReplacesKnownValues(t *testing.T) {
	in := "value=super_secret_pw other=ok"
	out := logging.Redact(in, []string{"super_secret_pw", "ok"})

	assert.NotContains(t, out, "super_secret_pw")
	// Values of three characters or fewer are left alone.
	assert.Contains(t, out, "other=ok")
}
