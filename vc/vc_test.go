// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package vc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	prev := version
	t.Cleanup(func() { version = prev })

	version = ""
	assert.Equal(t, "capture-producer/dev", UserAgent())

	version = "v1.2.3"
	assert.Equal(t, "capture-producer/v1.2.3", UserAgent())
}
