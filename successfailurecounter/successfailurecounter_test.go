// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package successfailurecounter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/capture-producer/metrics"
)

const (
	successID = metrics.IDRequestsSent
	failureID = metrics.IDSendFailures
)

func defaultToSuccess(sfc SuccessFailureCounter, n int) {
	defer sfc.DefaultToSuccess()
	report(&sfc, n)
}

func defaultToFailure(sfc SuccessFailureCounter, n int) {
	defer sfc.DefaultToFailure()
	report(&sfc, n)
}

func report(sfc *SuccessFailureCounter, n int) {
	if n%2 == 0 {
		sfc.ReportSuccess()
	} else if n%3 == 0 {
		sfc.ReportFailure()
	}
	if n%5 == 0 {
		// Reported twice, only the first outcome counts.
		sfc.ReportFailure()
	}
}

func TestSuccessFailureCounter(t *testing.T) {
	tests := map[string]struct {
		call            func(SuccessFailureCounter, int)
		input           int
		expectedSuccess metrics.MetricValue
		expectedFailure metrics.MetricValue
	}{
		"default success - no report": {
			call:            defaultToSuccess,
			input:           1,
			expectedSuccess: 1,
		},
		"default success - report success": {
			call:            defaultToSuccess,
			input:           2,
			expectedSuccess: 1,
		},
		"default success - report failure": {
			call:            defaultToSuccess,
			input:           3,
			expectedFailure: 1,
		},
		"default failure - no report": {
			call:            defaultToFailure,
			input:           1,
			expectedFailure: 1,
		},
		"default failure - report success": {
			call:            defaultToFailure,
			input:           2,
			expectedSuccess: 1,
		},
		"default failure - report failure": {
			call:            defaultToFailure,
			input:           3,
			expectedFailure: 1,
		},
		"default failure - report success twice": {
			call:            defaultToFailure,
			input:           10,
			expectedSuccess: 1,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			success, failure := metrics.Value(successID), metrics.Value(failureID)
			test.call(New(successID, failureID), test.input)
			assert.Equal(t, test.expectedSuccess, metrics.Value(successID)-success)
			assert.Equal(t, test.expectedFailure, metrics.Value(failureID)-failure)
		})
	}
}
