// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producer // import "go.opentelemetry.io/capture-producer/producer"

import (
	"fmt"
	"time"

	"google.golang.org/grpc"

	"go.opentelemetry.io/capture-producer/producerside"
)

// DefaultReconnectionDelay is the wait between a failed or ended stream and
// the next connection attempt.
const DefaultReconnectionDelay = 4 * time.Second

// Config configures a CaptureEventProducer.
type Config struct {
	// ReconnectionDelay is the initial wait between connection attempts. It
	// can be changed later with SetReconnectionDelay.
	ReconnectionDelay time.Duration
	// ProducerName is attached to every stream as the producer-name
	// metadata entry. Optional.
	ProducerName string
	// Compression is one of none, gzip or zstd.
	Compression string
	// CallOptions are appended to the options of every stream.
	CallOptions []grpc.CallOption
}

// DefaultConfig returns the configuration used when no value is overridden.
func DefaultConfig() Config {
	return Config{
		ReconnectionDelay: DefaultReconnectionDelay,
		Compression:       producerside.CompressionNone,
	}
}

// Validate returns an error describing the first invalid setting.
func (cfg *Config) Validate() error {
	if cfg.ReconnectionDelay <= 0 {
		return fmt.Errorf("invalid reconnection delay: %v", cfg.ReconnectionDelay)
	}
	if _, err := producerside.CompressionCallOptions(cfg.Compression); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) callOptions() []grpc.CallOption {
	// Validate has already accepted the compression.
	opts, _ := producerside.CompressionCallOptions(cfg.Compression)
	return append(opts, cfg.CallOptions...)
}
