// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics // import "go.opentelemetry.io/capture-producer/metrics"

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/vc"
)

var (
	//go:embed metrics.json
	metricsJSON []byte

	metricTypes [IDMax]MetricType

	// totals mirrors what has been reported to OTel so it can be read back
	// without an exporter.
	totals [IDMax]atomic.Int64

	meter = otel.Meter("go.opentelemetry.io/capture-producer",
		metric.WithInstrumentationVersion(vc.Version()))
	counters [IDMax]metric.Int64Counter
	gauges   [IDMax]metric.Int64Gauge
)

func init() {
	defs, err := GetDefinitions()
	if err != nil {
		panic(err)
	}
	for _, md := range defs {
		if md.Obsolete || md.ID == IDInvalid {
			continue
		}
		metricTypes[md.ID] = md.Type
		switch typ := md.Type; typ {
		case MetricTypeCounter:
			counter, err := meter.Int64Counter(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Counter %s: %v", md.Field, err)
				continue
			}
			counters[md.ID] = counter
		case MetricTypeGauge:
			gauge, err := meter.Int64Gauge(md.Field,
				metric.WithDescription(md.Description),
				metric.WithUnit(md.Unit))
			if err != nil {
				log.Errorf("Creating Int64Gauge %s: %v", md.Field, err)
				continue
			}
			gauges[md.ID] = gauge
		default:
			panic(fmt.Sprintf("Unknown metric type: %v", typ))
		}
	}
}

// Add records value for id. Counters accumulate, gauges keep the last value.
// Add is safe for concurrent use.
func Add(id MetricID, value MetricValue) {
	if id <= IDInvalid || id >= IDMax {
		log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
			id, IDInvalid+1, IDMax-1)
		return
	}

	ctx := context.Background()
	switch metricTypes[id] {
	case MetricTypeCounter:
		if value == 0 {
			return
		}
		totals[id].Add(int64(value))
		if counter := counters[id]; counter != nil {
			counter.Add(ctx, int64(value))
		}
	case MetricTypeGauge:
		totals[id].Store(int64(value))
		if gauge := gauges[id]; gauge != nil {
			gauge.Record(ctx, int64(value))
		}
	default:
		log.Warnf("Invalid metric id %d, skipping", id)
	}
}

// AddSlice records every metric of newMetrics.
func AddSlice(newMetrics []Metric) {
	for _, m := range newMetrics {
		Add(m.ID, m.Value)
	}
}

// Value returns the accumulated value of a counter or the last value of a gauge.
func Value(id MetricID) MetricValue {
	if id <= IDInvalid || id >= IDMax {
		return 0
	}
	return MetricValue(totals[id].Load())
}

// Snapshot returns all metrics with a non-zero value.
func Snapshot() Summary {
	s := make(Summary)
	for id := MetricID(IDInvalid + 1); id < IDMax; id++ {
		if v := totals[id].Load(); v != 0 {
			s[id] = MetricValue(v)
		}
	}
	return s
}

// GetDefinitions returns the metric definitions from the embedded metrics.json file.
func GetDefinitions() ([]MetricDefinition, error) {
	var defs []MetricDefinition

	dec := json.NewDecoder(bytes.NewReader(metricsJSON))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("extracting definitions from metrics.json: %w", err)
	}
	return defs, nil
}
