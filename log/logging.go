// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package log provides a public logging interface for go.opentelemetry.io/capture-producer.
package log // import "go.opentelemetry.io/capture-producer/log"

import (
	"log/slog"

	"go.uber.org/zap"

	"go.opentelemetry.io/capture-producer/internal/log"
)

// SetLevel configures the log level for the producer's internal logger.
func SetLevel(level slog.Level) {
	log.SetLevelLogger(level)
}

// SetLogger configures the producer's internal logger.
func SetLogger(l slog.Logger) {
	log.SetLogger(l)
}

// SetZapLogger makes the producer log through z.
func SetZapLogger(z *zap.Logger) {
	log.SetZapLogger(z)
}
