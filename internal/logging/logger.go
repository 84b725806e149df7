package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const (
	consoleTimeFormat = "2006-01-02 15:04:05.000000"
	fileTimeFormat    = "2006-01-02 15:04:05,000"
)

// Severity names accepted by Log.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

var levelColors = map[string]*color.Color{
	LevelInfo:    color.New(color.FgCyan),
	LevelWarning: color.New(color.FgYellow),
	LevelError:   color.New(color.FgRed, color.Bold),
}

// Logger writes every message to a console and recognized severities to an
// append-only run log file.
type Logger struct {
	console io.Writer
	file    *slog.Logger
	closer  io.Closer
	mu      *sync.Mutex
	now     func() time.Time
}

// New returns a Logger that prints to console and appends to the file at
// runLog, creating it if needed. An empty runLog disables the file side.
func New(console io.Writer, runLog string) (*Logger, error) {
	l := &Logger{
		console: console,
		mu:      &sync.Mutex{},
		now:     time.Now,
	}

	if runLog == "" {
		l.file = slog.New(discardHandler{})
		return l, nil
	}

	f, err := os.OpenFile(runLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	l.file = slog.New(NewLineHandler(f, slog.LevelInfo))
	l.closer = f
	return l, nil
}

// NewWithHandler builds a Logger around an existing slog handler. Used by
// tests and by callers that route the persistent side elsewhere.
func NewWithHandler(console io.Writer, h slog.Handler) *Logger {
	return &Logger{
		console: console,
		file:    slog.New(h),
		mu:      &sync.Mutex{},
		now:     time.Now,
	}
}

// Discard returns a Logger that writes nowhere.
func Discard() *Logger {
	return NewWithHandler(io.Discard, discardHandler{})
}

// Log records message at level. The console line is always written; the
// file line only for info, warning and error.
func (l *Logger) Log(level, message string) {
	key := strings.ToLower(level)
	label := strings.ToUpper(level)
	if c, ok := levelColors[key]; ok {
		label = c.Sprint(label)
	}

	l.mu.Lock()
	fmt.Fprintf(l.console, "%s - %s - %s\n", l.now().Format(consoleTimeFormat), label, message)
	l.mu.Unlock()

	if lvl, ok := ParseLevel(key); ok {
		l.file.Log(context.Background(), lvl, message)
	}
}

// Info logs a formatted message at info severity.
func (l *Logger) Info(format string, args ...any) {
	l.Log(LevelInfo, fmt.Sprintf(format, args...))
}

// Warning logs a formatted message at warning severity.
func (l *Logger) Warning(format string, args ...any) {
	l.Log(LevelWarning, fmt.Sprintf(format, args...))
}

// Error logs a formatted message at error severity.
func (l *Logger) Error(format string, args ...any) {
	l.Log(LevelError, fmt.Sprintf(format, args...))
}

// With returns a Logger whose file records carry the given attributes.
// The console format is unchanged.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		console: l.console,
		file:    l.file.With(args...),
		closer:  l.closer,
		mu:      l.mu,
		now:     l.now,
	}
}

// Close releases the run log file.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel converts a severity name to slog.Level.
// Valid values: "info", "warning", "error".
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case LevelInfo:
		return slog.LevelInfo, true
	case LevelWarning:
		return slog.LevelWarn, true
	case LevelError:
		return slog.LevelError, true
	default:
		return 0, false
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
