package common

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel represents logging verbosity levels
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelError:
		return "error"
	case LogLevelWarn:
		return "warn"
	case LogLevelDebug:
		return "debug"
	default:
		return "info"
	}
}

// ToSlogLevel converts LogLevel to slog.Level
func (l LogLevel) ToSlogLevel() slog.Level {
	switch l {
	case LogLevelError:
		return slog.LevelError
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelDebug:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Logger wraps slog.Logger with the context helpers used across intentrun.
type Logger struct {
	*slog.Logger
	level  LogLevel
	masker *Masker
}

func newLogger(h slog.Handler, level LogLevel, m *Masker) *Logger {
	return &Logger{Logger: slog.New(h), level: level, masker: m}
}

// NewLogger creates a text logger on stderr. Stdout is reserved for run output.
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a text logger writing to w.
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	m := NewMasker()
	opts := &slog.HandlerOptions{Level: level.ToSlogLevel(), ReplaceAttr: m.ReplaceAttr}
	return newLogger(slog.NewTextHandler(w, opts), level, m)
}

// NewJSONLogger creates a structured logger with JSON output
func NewJSONLogger(level LogLevel) *Logger {
	m := NewMasker()
	opts := &slog.HandlerOptions{Level: level.ToSlogLevel(), ReplaceAttr: m.ReplaceAttr}
	return newLogger(slog.NewJSONHandler(os.Stderr, opts), level, m)
}

// NewColorLogger creates a logger using ColorHandler. Colors are only emitted on terminals.
func NewColorLogger(level LogLevel) *Logger {
	h := NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level.ToSlogLevel()})
	return newLogger(h, level, h.masker)
}

// Level returns the current log level
func (l *Logger) Level() LogLevel {
	return l.level
}

// EnableMasking toggles masking of sensitive attribute values for this logger.
func (l *Logger) EnableMasking(enabled bool) {
	if l.masker != nil {
		l.masker.SetEnabled(enabled)
	}
}

// IsMaskingEnabled reports whether this logger masks sensitive values.
func (l *Logger) IsMaskingEnabled() bool {
	return l.masker != nil && l.masker.IsEnabled()
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level, masker: l.masker}
}

// WithComponent returns a logger with component context
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithRecord returns a logger tagged with the expected service of a CSV record
func (l *Logger) WithRecord(index int, serviceID string) *Logger {
	return l.with("record", index, "service_id", serviceID)
}

// WithRun returns a logger tagged with a run identifier
func (l *Logger) WithRun(runID string) *Logger {
	return l.with("run_id", runID)
}

// WithStore returns a logger with store context
func (l *Logger) WithStore(storeType string) *Logger {
	return l.with("store", storeType)
}

// WithRequest returns a logger with HTTP request context
func (l *Logger) WithRequest(method, url string) *Logger {
	return l.with("method", method, "url", url)
}

var defaultLogger = NewLogger(LogLevelInfo)

// SetDefaultLogger sets the global default logger
func SetDefaultLogger(logger *Logger) {
	if logger != nil {
		defaultLogger = logger
	}
}

// GetLogger returns the default logger
func GetLogger() *Logger {
	return defaultLogger
}

// ParseLogLevel maps a config string to a LogLevel. Empty means info.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch s {
	case "error":
		return LogLevelError, true
	case "warn", "warning":
		return LogLevelWarn, true
	case "info", "":
		return LogLevelInfo, true
	case "debug":
		return LogLevelDebug, true
	default:
		return LogLevelInfo, false
	}
}
