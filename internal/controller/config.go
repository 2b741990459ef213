// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/capture-producer/internal/controller"

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"go.opentelemetry.io/capture-producer/bufferproducer"
	"go.opentelemetry.io/capture-producer/eventproducer"
	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/producer"
)

const (
	LogFormatText = "text"
	LogFormatZap  = "zap"

	// MaxEventsPerSecond is the highest rate a single event worker can tick at.
	MaxEventsPerSecond = 1_000_000
)

type Config struct {
	CollectorAddr string
	// ProducerName is announced to the collector with every stream.
	ProducerName string
	Compression  string

	ReconnectionDelayMs  uint
	MaxEventsPerRequest  uint
	SleepOnEmptyQueueUs  uint
	ArenaBlockSizeBytes  uint
	InternedStringsCache uint

	// EventsPerSecond is the rate of synthetic scopes emitted by every
	// worker while a capture is in progress. Zero disables the event source.
	EventsPerSecond uint
	EventWorkers    uint

	AgentMetricsInterval time.Duration

	LogFormat   string
	VerboseMode bool
	Version     bool

	Fs *flag.FlagSet
}

// Dump visits all flag sets, and dumps them all to debug
// Used for verbose mode logging.
func (cfg *Config) Dump() {
	log.Debug("Config:")
	cfg.Fs.VisitAll(func(f *flag.Flag) {
		log.Debug(fmt.Sprintf("%s: %v", f.Name, f.Value))
	})
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.CollectorAddr == "" {
		return errors.New("missing collector address")
	}
	if cfg.EventsPerSecond > MaxEventsPerSecond {
		return fmt.Errorf("events per second must not exceed %d", MaxEventsPerSecond)
	}
	if cfg.EventsPerSecond > 0 && cfg.EventWorkers == 0 {
		return errors.New("at least one event worker is required to emit events")
	}
	if cfg.AgentMetricsInterval <= 0 {
		return fmt.Errorf("invalid agent metrics interval: %v", cfg.AgentMetricsInterval)
	}
	switch cfg.LogFormat {
	case LogFormatText, LogFormatZap:
	default:
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	epCfg := cfg.eventProducerConfig()
	if epCfg.InternedStringsCacheSize == 0 {
		return errors.New("invalid interned strings cache size: 0")
	}
	return epCfg.Buffer.Validate()
}

func (cfg *Config) eventProducerConfig() eventproducer.Config {
	return eventproducer.Config{
		Buffer: bufferproducer.Config{
			Producer: producer.Config{
				ReconnectionDelay: time.Duration(cfg.ReconnectionDelayMs) * time.Millisecond,
				ProducerName:      cfg.ProducerName,
				Compression:       cfg.Compression,
			},
			MaxEventsPerRequest: int(cfg.MaxEventsPerRequest),
			SleepOnEmptyQueue:   time.Duration(cfg.SleepOnEmptyQueueUs) * time.Microsecond,
			ArenaBlockSize:      int(cfg.ArenaBlockSizeBytes),
		},
		InternedStringsCacheSize: uint32(cfg.InternedStringsCache),
	}
}
