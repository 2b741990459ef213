// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bufferproducer // import "go.opentelemetry.io/capture-producer/bufferproducer"

import (
	"fmt"
	"time"

	"go.opentelemetry.io/capture-producer/producer"
)

const (
	// DefaultMaxEventsPerRequest caps the number of events of a single
	// BufferedCaptureEvents request.
	DefaultMaxEventsPerRequest = 10000
	// DefaultSleepOnEmptyQueue is the pause of the forwarder after draining the queue.
	DefaultSleepOnEmptyQueue = time.Millisecond
)

// Config configures a LockFreeBufferProducer.
type Config struct {
	Producer producer.Config

	MaxEventsPerRequest int
	SleepOnEmptyQueue   time.Duration
	// ArenaBlockSize is the size in bytes of the arena block used to
	// translate a batch.
	ArenaBlockSize int
}

// DefaultConfig returns the configuration used when no value is overridden.
func DefaultConfig() Config {
	return Config{
		Producer:            producer.DefaultConfig(),
		MaxEventsPerRequest: DefaultMaxEventsPerRequest,
		SleepOnEmptyQueue:   DefaultSleepOnEmptyQueue,
		ArenaBlockSize:      DefaultArenaBlockSize,
	}
}

// Validate returns an error describing the first invalid setting.
func (cfg *Config) Validate() error {
	if err := cfg.Producer.Validate(); err != nil {
		return err
	}
	if cfg.MaxEventsPerRequest <= 0 {
		return fmt.Errorf("invalid max events per request: %d", cfg.MaxEventsPerRequest)
	}
	if cfg.SleepOnEmptyQueue <= 0 {
		return fmt.Errorf("invalid sleep on empty queue: %v", cfg.SleepOnEmptyQueue)
	}
	if cfg.ArenaBlockSize <= 0 {
		return fmt.Errorf("invalid arena block size: %d", cfg.ArenaBlockSize)
	}
	return nil
}
