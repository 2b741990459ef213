// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "go.opentelemetry.io/capture-producer/vc"

import "fmt"

var (
	// The following variables are set at link time using ldflags, e.g.
	// -X go.opentelemetry.io/capture-producer/vc.version=v0.1.0

	// revision of the service
	revision = ""
	// buildTimestamp, timestamp of the build
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = ""
)

// Revision of the service.
func Revision() string {
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format. Unset versions read as "dev".
func Version() string {
	if version == "" {
		return "dev"
	}
	return version
}

// UserAgent identifies the producer towards the collector.
func UserAgent() string {
	return fmt.Sprintf("capture-producer/%s", Version())
}
