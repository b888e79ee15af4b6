package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf)

	tests := []struct {
		name    string
		level   Level
		message string
		fields  Fields
		err     error
		want    bool // should log
	}{
		{
			name:    "info message",
			level:   LevelInfo,
			message: "test message",
			fields:  Fields{"key": "value"},
			want:    true,
		},
		{
			name:    "debug below threshold",
			level:   LevelDebug,
			message: "debug message",
			want:    false,
		},
		{
			name:    "error with err",
			level:   LevelError,
			message: "error occurred",
			err:     errors.New("test error"),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := buf.Len()
			logger.log(tt.level, tt.message, tt.fields, tt.err)
			assert.Equal(t, tt.want, buf.Len() > before)
		})
	}
}

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf)

	logger.Error("fetch failed", Fields{"attempt": 2, "url": "https://example.com"}, errors.New("boom"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "fetch failed", entry["message"])
	assert.Equal(t, "boom", entry["error"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.Equal(t, "https://example.com", entry["url"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLogger_ConsoleEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatConsole, &buf)

	logger.Info("Status date found", Fields{"status_date": "26.01.2026"})

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "Status date found")
	assert.Contains(t, line, "26.01.2026")
	assert.True(t, strings.HasSuffix(line, "\n"))
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	logger := New(LevelInfo, FormatJSON, &buf).With(Fields{"run_id": "abc"})

	logger.Info("hello", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "abc", entry["run_id"])
}

func TestLogger_WithKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	child := New(LevelWarn, FormatJSON, &buf).With(Fields{"run_id": "abc"})

	child.Info("dropped", nil)
	assert.Zero(t, buf.Len())

	child.Warn("kept", nil)
	assert.Contains(t, buf.String(), `"message":"kept"`)
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug logs at debug", LevelDebug, LevelDebug, true},
		{"info logs at debug", LevelDebug, LevelInfo, true},
		{"debug doesn't log at info", LevelInfo, LevelDebug, false},
		{"warn doesn't log at error", LevelError, LevelWarn, false},
		{"error always logs", LevelDebug, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(tt.minLevel, FormatConsole, &buf)
			logger.log(tt.logLevel, "test", nil, nil)
			assert.Equal(t, tt.shouldLog, buf.Len() > 0)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("text")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	SetDefault(New(LevelDebug, FormatConsole, &buf))
	defer SetDefault(prev)

	Debug("test debug", nil)
	Info("test info", Fields{"key": "value"})
	Warn("test warning", nil)
	Error("test error", Fields{"component": "test"}, errors.New("test"))

	assert.Equal(t, 4, strings.Count(buf.String(), "\n"))
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("ignored", Fields{"k": 1}, errors.New("x"))
	})
}
