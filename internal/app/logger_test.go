package app

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "debug", LogFormat: "json"}, &buf)
	logger.Debug("hello", "task", "web#build")

	line := strings.TrimSpace(buf.String())
	require.True(t, json.Valid([]byte(line)), "json format emits one JSON document per record: %s", line)
	assert.Contains(t, line, `"msg":"hello"`)
	assert.Contains(t, line, `"task":"web#build"`)
}

func TestNewLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "warn", LogFormat: "text"}, &buf)
	logger.Info("filtered")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "filtered")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewLoggerUnknownSettingsDegrade(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogLevel: "chatty", LogFormat: "xml"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown")

	assert.NotContains(t, buf.String(), "hidden", "unknown level degrades to info")
	assert.Contains(t, buf.String(), "msg=shown", "unknown format degrades to text")
}
