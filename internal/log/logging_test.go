// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package log

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withBuffer(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	prev := getLogger()
	t.Cleanup(func() { globalLogger.Store(prev) })

	buf := &bytes.Buffer{}
	SetLogger(*slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})))
	return buf
}

func TestLevels(t *testing.T) {
	tests := map[string]struct {
		level    slog.Level
		emit     func()
		expected string
		dropped  bool
	}{
		"infof": {
			level:    slog.LevelInfo,
			emit:     func() { Infof("connected to %s", "collector") },
			expected: "connected to collector",
		},
		"debug filtered": {
			level:   slog.LevelInfo,
			emit:    func() { Debugf("stream %d", 1) },
			dropped: true,
		},
		"debug enabled": {
			level:    slog.LevelDebug,
			emit:     func() { Debug("duplicate command") },
			expected: "duplicate command",
		},
		"warn": {
			level:    slog.LevelWarn,
			emit:     func() { Warnf("retrying in %v", "4s") },
			expected: "retrying in 4s",
		},
		"info filtered by warn": {
			level:   slog.LevelWarn,
			emit:    func() { Info("hidden") },
			dropped: true,
		},
		"error value": {
			level:    slog.LevelError,
			emit:     func() { Error(errors.New("write failed")) },
			expected: "write failed",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			buf := withBuffer(t, tc.level)
			tc.emit()
			if tc.dropped {
				assert.Empty(t, buf.String())
				return
			}
			assert.Contains(t, buf.String(), tc.expected)
		})
	}
}

func TestSetZapLogger(t *testing.T) {
	prev := getLogger()
	t.Cleanup(func() { globalLogger.Store(prev) })

	core, logs := observer.New(zapcore.InfoLevel)
	SetZapLogger(zap.New(core))

	Infof("capture %s", "started")
	Debug("not recorded")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "capture started", entries[0].Message)
	}
}
