// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics counts what the capture producer does and exports the counts
through the global OpenTelemetry meter provider.

Metric definitions live in metrics.json; ids.go is generated from it. Install a
meter provider with otel.SetMeterProvider to export the values, or read them
back with Value and Snapshot.

	metrics
	├── agentmetrics/   // goroutines, heap and rusage of the producer process
	├── genids/         // ids.go generator
	├── metrics.go      // Add, Value, Snapshot
	├── metrics.json    // definitions
	└── types.go        // Metric, MetricID, MetricValue, MetricDefinition
*/
package metrics // import "go.opentelemetry.io/capture-producer/metrics"
