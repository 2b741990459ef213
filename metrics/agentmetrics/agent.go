// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentmetrics reports resource usage of the producer process.
package agentmetrics // import "go.opentelemetry.io/capture-producer/metrics/agentmetrics"

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/metrics"
	"go.opentelemetry.io/capture-producer/periodiccaller"
)

// sampler remembers the CPU times of the previous sample.
type sampler struct {
	utime unix.Timeval
	stime unix.Timeval
}

// timeDelta returns now - prev in whole milliseconds.
func timeDelta(now, prev unix.Timeval) int64 {
	return (now.Nano() - prev.Nano()) / int64(time.Millisecond)
}

func (s *sampler) sample() []metrics.Metric {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	sample := []metrics.Metric{
		{ID: metrics.IDAgentGoRoutines, Value: metrics.MetricValue(runtime.NumGoroutine())},
		{ID: metrics.IDAgentHeapAlloc, Value: metrics.MetricValue(stats.HeapAlloc)},
	}

	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		log.Errorf("Failed to fetch rusage: %v", err)
		return sample
	}

	sample = append(sample,
		metrics.Metric{ID: metrics.IDAgentUTime, Value: metrics.MetricValue(timeDelta(rusage.Utime, s.utime))},
		metrics.Metric{ID: metrics.IDAgentSTime, Value: metrics.MetricValue(timeDelta(rusage.Stime, s.stime))})
	s.utime, s.stime = rusage.Utime, rusage.Stime
	return sample
}

// Start reports process metrics every interval until ctx is done or the
// returned function is called.
func Start(ctx context.Context, interval time.Duration) (func(), error) {
	var rusage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &rusage); err != nil {
		return func() {}, err
	}
	s := &sampler{utime: rusage.Utime, stime: rusage.Stime}

	ctx, cancel := context.WithCancel(ctx)
	stop := periodiccaller.Start(ctx, interval, func() {
		metrics.AddSlice(s.sample())
	})

	return func() {
		cancel()
		stop()
	}, nil
}
