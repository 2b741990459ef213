// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// successfailurecounter reports the outcome of an operation to one of two
// counter metrics, exactly once.
//
// A SuccessFailureCounter is meant to live on the stack of a single call and
// is not safe for concurrent use.
package successfailurecounter // import "go.opentelemetry.io/capture-producer/successfailurecounter"

import (
	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/metrics"
)

// SuccessFailureCounter adds 1 to either its success or its failure metric.
type SuccessFailureCounter struct {
	success, fail metrics.MetricID
	sealed        bool
}

// New returns a SuccessFailureCounter reporting to the success and fail
// counters.
func New(success, fail metrics.MetricID) SuccessFailureCounter {
	return SuccessFailureCounter{success: success, fail: fail}
}

// ReportSuccess increments the success counter or logs an error if an
// outcome was already reported.
func (sfc *SuccessFailureCounter) ReportSuccess() {
	sfc.report(sfc.success)
}

// ReportFailure increments the failure counter or logs an error if an
// outcome was already reported.
func (sfc *SuccessFailureCounter) ReportFailure() {
	sfc.report(sfc.fail)
}

func (sfc *SuccessFailureCounter) report(id metrics.MetricID) {
	if sfc.sealed {
		log.Errorf("Attempted to report success/failure status more than once.")
		return
	}
	metrics.Add(id, 1)
	sfc.sealed = true
}

// DefaultToSuccess increments the success counter if nothing was reported.
func (sfc *SuccessFailureCounter) DefaultToSuccess() {
	if !sfc.sealed {
		sfc.ReportSuccess()
	}
}

// DefaultToFailure increments the failure counter if nothing was reported.
func (sfc *SuccessFailureCounter) DefaultToFailure() {
	if !sfc.sealed {
		sfc.ReportFailure()
	}
}
