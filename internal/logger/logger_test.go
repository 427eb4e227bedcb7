package logger

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func reset() {
	SetVerbose(false)
	SetOutput(os.Stderr)
}

func TestSetVerbose(t *testing.T) {
	defer reset()

	SetVerbose(false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Debug("test message %s", "arg")

	out := buf.String()
	assert.Contains(t, out, "DEBUG")
	assert.Contains(t, out, "test message arg")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Debug("test message")
	Section("hidden")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(true)

	Section("Dispatch")

	assert.Contains(t, buf.String(), "=== Dispatch ===")
}

func TestLevels_AlwaysWritten(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(false)

	Info("info %d", 1)
	Warn("warn %d", 2)
	Error("error: %v", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "info 1")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "warn 2")
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "error: boom")
}

func TestWith(t *testing.T) {
	defer reset()

	var buf bytes.Buffer
	SetOutput(&buf)

	With("task_id", "t-1").Infow("task done", "attempts", 2)

	out := buf.String()
	assert.Contains(t, out, "task done")
	assert.Contains(t, out, `"task_id": "t-1"`)
	assert.Contains(t, out, `"attempts": 2`)
}
