// Package logger provides the structured logging interface used across the
// application. It is a thin facade over log/slog so components depend on a
// small interface that is trivial to silence in tests.
package logger

import (
	"io"
	"log/slog"
)

// LogLevel controls the minimum severity emitted by a logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a typed key/value attribute attached to a log record.
type Field = slog.Attr

// String returns a string field.
func String(key, value string) Field { return slog.String(key, value) }

// Int returns an int field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Uint64 returns a uint64 field.
func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

// Float64 returns a float64 field.
func Float64(key string, value float64) Field { return slog.Float64(key, value) }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Error returns a field holding an error message under the "error" key.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Logger is the logging interface components depend on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing text-formatted records to w at the
// given minimum level. Extra attrs are attached to every record.
func NewSlogLogger(w io.Writer, level LogLevel, attrs []Field) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	l := slog.New(h)
	if len(attrs) > 0 {
		l = l.With(attrsToAny(attrs)...)
	}
	return &slogLogger{l: l}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrsToAny(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f
	}
	return out
}

func (s *slogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, attrsToAny(fields)...) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, attrsToAny(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, attrsToAny(fields)...) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, attrsToAny(fields)...) }

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(attrsToAny(fields)...)}
}
