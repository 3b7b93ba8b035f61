package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: WarnLevel, Format: TextFormat, Output: &buf})

	l.Info("should not appear")
	l.Warn("should appear")

	assert.NotContains(t, buf.String(), "should not appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestTextFormatIncludesComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf, Component: "fastpath"})

	l.Info("cache miss", map[string]interface{}{"path": "/a.html"})

	out := buf.String()
	assert.Contains(t, out, "cache miss")
	assert.Contains(t, out, "component=fastpath")
	assert.Contains(t, out, "path=/a.html")
}

func TestJSONFormatProducesValidJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: JSONFormat, Output: &buf})

	l.Error("boom")

	var entry LogEntry
	line := strings.TrimSpace(buf.String())
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "boom", entry.Message)
}

func TestColorizeDisabledForNonTerminalOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})

	l.Warn("plain text expected")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "a buffer is never a terminal; output must not contain ANSI escapes")
}

func TestFieldLoggerMergesAccumulatedFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})

	fl := l.WithField("request_id", "abc").WithField("user", "alice")
	fl.Info("handled request")

	out := buf.String()
	assert.Contains(t, out, "request_id=abc")
	assert.Contains(t, out, "user=alice")
}

func TestParseLogLevelRoundTrip(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		lvl, err := ParseLogLevel(s)
		require.NoError(t, err)
		assert.Equal(t, strings.ToUpper(s), lvl.String())
	}

	_, err := ParseLogLevel("nonsense")
	assert.Error(t, err)
}

func TestParseLogFormatRoundTrip(t *testing.T) {
	lvl, err := ParseLogFormat("json")
	require.NoError(t, err)
	assert.Equal(t, JSONFormat, lvl)

	lvl, err = ParseLogFormat("")
	require.NoError(t, err)
	assert.Equal(t, TextFormat, lvl)

	_, err = ParseLogFormat("xml")
	assert.Error(t, err)
}

func TestWithComponentPreservesColorSetting(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})
	l.colorize = true // simulate a tty without requiring a real one in CI

	derived := l.WithComponent("jobqueue")
	assert.True(t, derived.colorize, "WithComponent must not silently disable color")
}

func TestFieldOrderIsDeterministic(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&Config{Level: DebugLevel, Format: TextFormat, Output: &buf})

	l.Info("multi-field", map[string]interface{}{"b": 2, "a": 1, "c": 3})
	first := buf.String()
	buf.Reset()
	l.Info("multi-field", map[string]interface{}{"b": 2, "a": 1, "c": 3})
	second := buf.String()

	assert.Equal(t, first, second)
}
