// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package periodiccaller allows periodic calls of functions.
package periodiccaller // import "go.opentelemetry.io/capture-producer/periodiccaller"

import (
	"context"
	"math/rand/v2"
	"time"
)

// Start starts a timer that calls <callback> every <interval> until the <ctx> is canceled.
func Start(ctx context.Context, interval time.Duration, callback func()) func() {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback()
			case <-ctx.Done():
				return
			}
		}
	}()

	return ticker.Stop
}

// StartWithJitter starts a timer that calls <callback> every <baseDuration+jitter>
// until the <ctx> is canceled. <jitter>, [0..1], is used to add +/- jitter
// to <baseDuration> at every iteration of the timer.
func StartWithJitter(ctx context.Context, baseDuration time.Duration, jitter float64,
	callback func()) func() {
	ticker := time.NewTicker(addJitter(baseDuration, jitter))
	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				callback()
			case <-ctx.Done():
				return
			}
			ticker.Reset(addJitter(baseDuration, jitter))
		}
	}()

	return ticker.Stop
}

// addJitter returns baseDuration scaled by a random factor in [1-jitter, 1+jitter].
// Out of range jitter values are clamped to [0..1].
func addJitter(baseDuration time.Duration, jitter float64) time.Duration {
	jitter = min(max(jitter, 0), 1)
	return time.Duration((1 + jitter - 2*jitter*rand.Float64()) * float64(baseDuration))
}
