// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package log holds the process wide logger used by the capture producer.
package log // import "go.opentelemetry.io/capture-producer/internal/log"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

// globalLogger holds a reference to the [slog.Logger] used within
// go.opentelemetry.io/capture-producer.
//
// The default logger writes text records to stderr at the Info level.
var globalLogger = func() *atomic.Pointer[slog.Logger] {
	p := new(atomic.Pointer[slog.Logger])
	p.Store(newStderrLogger(slog.LevelInfo))
	return p
}()

func newStderrLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLogger sets the global Logger to l.
func SetLogger(l slog.Logger) {
	globalLogger.Store(&l)
}

// SetLevelLogger replaces the global logger with a stderr text logger that
// emits records at level and above.
func SetLevelLogger(level slog.Level) {
	globalLogger.Store(newStderrLogger(level))
}

// SetDebugLogger configures the global logger to write debug-level logs to stderr.
func SetDebugLogger() {
	SetLevelLogger(slog.LevelDebug)
}

// SetZapLogger routes all records through the core of z.
func SetZapLogger(z *zap.Logger) {
	SetLogger(*slog.New(zapslog.NewHandler(z.Core())))
}

func getLogger() *slog.Logger {
	return globalLogger.Load()
}

func enabled(level slog.Level) bool {
	return getLogger().Enabled(context.Background(), level)
}

// Infof logs informational messages about the state of the producer.
func Infof(msg string, keysAndValues ...any) {
	if enabled(slog.LevelInfo) {
		getLogger().Info(fmt.Sprintf(msg, keysAndValues...))
	}
}

// Info logs msg at the Info level.
func Info(msg string) {
	if enabled(slog.LevelInfo) {
		getLogger().Info(msg)
	}
}

// Errorf logs error messages about exceptional states, e.g. a failed write
// to the collector stream.
func Errorf(msg string, keysAndValues ...any) {
	if enabled(slog.LevelError) {
		getLogger().Error(fmt.Sprintf(msg, keysAndValues...))
	}
}

// Error logs err at the Error level.
func Error(err error) {
	if enabled(slog.LevelError) {
		getLogger().Error(err.Error())
	}
}

// Debugf logs detailed information about internal producer behavior.
func Debugf(msg string, keysAndValues ...any) {
	if enabled(slog.LevelDebug) {
		getLogger().Debug(fmt.Sprintf(msg, keysAndValues...))
	}
}

// Debug logs msg at the Debug level.
func Debug(msg string) {
	if enabled(slog.LevelDebug) {
		getLogger().Debug(msg)
	}
}

// Warnf logs conditions that are not errors but deserve attention.
func Warnf(msg string, keysAndValues ...any) {
	if enabled(slog.LevelWarn) {
		getLogger().Warn(fmt.Sprintf(msg, keysAndValues...))
	}
}

// Warn logs msg at the Warn level.
func Warn(msg string) {
	if enabled(slog.LevelWarn) {
		getLogger().Warn(msg)
	}
}
