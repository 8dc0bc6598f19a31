// Package log provides the structured, key/value logging call shape used
// throughout this module: Info/Warn/Error/Debug/Trace(msg, key, value, ...).
// The call shape matches the upstream node's logging package; the backing
// implementation here is a thin wrapper over log/slog.
package log

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the minimal interface block processing and its collaborators
// log through. New wraps an slog.Handler to produce one.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	inner *slog.Logger
}

// traceLevel sits below slog.LevelDebug so -vvv verbosity can still be
// silenced by a handler configured at slog.LevelDebug.
const traceLevel = slog.Level(-8)

// Root is the package-level logger used by call sites that don't carry their
// own Logger, mirroring the upstream package-level log.Info/log.Warn style.
var Root Logger = New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// New wraps an slog.Handler as a Logger.
func New(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Trace(msg string, ctx ...interface{}) {
	l.inner.Log(context.Background(), traceLevel, msg, ctx...)
}

func (l *logger) Debug(msg string, ctx ...interface{}) { l.inner.Debug(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.inner.Info(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.inner.Warn(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.inner.Error(msg, ctx...) }

func Trace(msg string, ctx ...interface{}) { Root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root.Error(msg, ctx...) }

// Discard returns a Logger that drops everything, used by tests that don't
// want processor chatter on stderr.
func Discard() Logger {
	return New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
