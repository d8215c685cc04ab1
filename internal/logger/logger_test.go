package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]log.Level{
		"debug":   log.DebugLevel,
		"INFO":    log.InfoLevel,
		"warn":    log.WarnLevel,
		"warning": log.WarnLevel,
		"error":   log.ErrorLevel,
		"fatal":   log.FatalLevel,
		"verbose": log.InfoLevel,
		"":        log.InfoLevel,
	}
	for input, want := range tests {
		assert.Equal(t, want, ParseLevel(input), "level %q", input)
	}
}

func TestConfigure_FlagBeatsEnv(t *testing.T) {
	t.Setenv("MYCHAT_LOG_LEVEL", "error")
	t.Cleanup(func() { SetOutput(os.Stderr) })

	require.NoError(t, Configure("debug", ""))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	t.Setenv("MYCHAT_LOG_LEVEL", "")
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "mychat.log")
	require.NoError(t, Configure("info", path))

	Info("server started", "listen", ":8501")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "server started")
	assert.Contains(t, string(data), "listen=:8501")
}

func TestConfigure_ReusesLogFile(t *testing.T) {
	t.Setenv("MYCHAT_LOG_LEVEL", "")
	t.Cleanup(func() { _ = Close() })

	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	require.NoError(t, Configure("info", first))
	opened := file

	require.NoError(t, Configure("debug", first))
	assert.Same(t, opened, file, "same path keeps the open file")
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	second := filepath.Join(dir, "second.log")
	require.NoError(t, Configure("info", second))
	assert.NotSame(t, opened, file)
	_, err := opened.WriteString("late write")
	assert.ErrorIs(t, err, os.ErrClosed, "previous file is closed")

	Info("moved")
	data, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "moved")

	require.NoError(t, Close())
	assert.Nil(t, file)
	assert.Empty(t, filePath)
}

func TestSetOutput_KeepsLevel(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Logger.SetLevel(log.WarnLevel)
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("hidden")
	Warn("visible")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "visible")
}

func TestNewStyledLogger(t *testing.T) {
	t.Cleanup(func() { SetOutput(os.Stderr) })

	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.InfoLevel)

	component := NewStyledLogger("Web")
	component.Info("request", "path", "/")

	assert.Equal(t, log.InfoLevel, component.GetLevel())
	assert.Contains(t, buf.String(), "Web")
	assert.Contains(t, buf.String(), "request")
}
