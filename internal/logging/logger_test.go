package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

func fixedNow() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.Local)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimRight(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func TestLog_RecognizedLevels(t *testing.T) {
	tests := []struct {
		level     string
		wantLabel string
		wantName  string
	}{
		{level: "info", wantLabel: "INFO", wantName: "INFO"},
		{level: "warning", wantLabel: "WARNING", wantName: "WARNING"},
		{level: "error", wantLabel: "ERROR", wantName: "ERROR"},
		{level: "Warning", wantLabel: "WARNING", wantName: "WARNING"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			runLog := filepath.Join(t.TempDir(), "run.log")
			var console bytes.Buffer

			logger, err := New(&console, runLog)
			require.NoError(t, err)
			logger.now = fixedNow

			logger.Log(tt.level, "cowrie repository cloned")
			require.NoError(t, logger.Close())

			assert.Equal(t, "2024-03-09 14:05:07.123456 - "+tt.wantLabel+" - cowrie repository cloned\n", console.String())

			lines := readLines(t, runLog)
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], " - "+tt.wantName+" - cowrie repository cloned")
		})
	}
}

func TestLog_UnrecognizedLevelConsoleOnly(t *testing.T) {
	runLog := filepath.Join(t.TempDir(), "run.log")
	var console bytes.Buffer

	logger, err := New(&console, runLog)
	require.NoError(t, err)

	logger.Log("debug", "not persisted")
	logger.Log("critical", "also not persisted")
	require.NoError(t, logger.Close())

	assert.Contains(t, console.String(), " - DEBUG - not persisted")
	assert.Contains(t, console.String(), " - CRITICAL - also not persisted")
	assert.Empty(t, readLines(t, runLog))
}

func TestLog_AppendsAcrossLoggers(t *testing.T) {
	runLog := filepath.Join(t.TempDir(), "run.log")

	for i := 0; i < 2; i++ {
		logger, err := New(&bytes.Buffer{}, runLog)
		require.NoError(t, err)
		logger.Info("run %d", i)
		require.NoError(t, logger.Close())
	}

	lines := readLines(t, runLog)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "INFO - run 0"))
	assert.True(t, strings.HasSuffix(lines[1], "INFO - run 1"))
}

func TestHelpers(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewWithHandler(&console, NewLineHandler(&file, slog.LevelInfo))

	logger.Info("cloned %s", "cowrie")
	logger.Warning("missing %d files", 2)
	logger.Error("exit status %d", 128)

	out := file.String()
	assert.Contains(t, out, "INFO - cloned cowrie")
	assert.Contains(t, out, "WARNING - missing 2 files")
	assert.Contains(t, out, "ERROR - exit status 128")
	assert.Equal(t, 3, strings.Count(console.String(), "\n"))
}

func TestWith_AddsAttributesToFileOnly(t *testing.T) {
	var console, file bytes.Buffer
	logger := NewWithHandler(&console, NewLineHandler(&file, slog.LevelInfo)).
		With("run_id", "abc-123")

	logger.Info("pipeline started")

	assert.Contains(t, file.String(), "INFO - pipeline started run_id=abc-123")
	assert.NotContains(t, console.String(), "run_id")
}

func TestNew_NoRunLog(t *testing.T) {
	var console bytes.Buffer
	logger, err := New(&console, "")
	require.NoError(t, err)

	logger.Error("console only")
	assert.Contains(t, console.String(), "ERROR - console only")
	assert.NoError(t, logger.Close())
}

func TestNew_UnwritableRunLog(t *testing.T) {
	_, err := New(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing", "dir", "run.log"))
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		ok    bool
	}{
		{"info", slog.LevelInfo, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"warn", 0, false},
		{"debug", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLineHandler_Enabled(t *testing.T) {
	h := NewLineHandler(&bytes.Buffer{}, slog.LevelWarn)
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestLineHandler_Groups(t *testing.T) {
	var file bytes.Buffer
	l := slog.New(NewLineHandler(&file, slog.LevelInfo)).WithGroup("stage").With("name", "collect")
	l.Info("done", "records", 2)

	assert.Contains(t, file.String(), "INFO - done stage.name=collect stage.records=2")
}
