// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/capture-producer/bufferproducer"
	"go.opentelemetry.io/capture-producer/eventproducer"
	"go.opentelemetry.io/capture-producer/internal/controller"
	"go.opentelemetry.io/capture-producer/producer"
	"go.opentelemetry.io/capture-producer/producerside"
)

const (
	// Default values for CLI flags
	defaultArgCollectorAddr        = "127.0.0.1:44765"
	defaultArgReconnectionDelayMs  = uint(producer.DefaultReconnectionDelay / time.Millisecond)
	defaultArgMaxEventsPerRequest  = bufferproducer.DefaultMaxEventsPerRequest
	defaultArgSleepOnEmptyQueueUs  = uint(bufferproducer.DefaultSleepOnEmptyQueue / time.Microsecond)
	defaultArgArenaBlockSizeBytes  = bufferproducer.DefaultArenaBlockSize
	defaultArgInternedStringsCache = eventproducer.DefaultInternedStringsCacheSize
	defaultArgEventsPerSecond      = 100
	defaultArgEventWorkers         = 4
	defaultArgAgentMetricsInterval = 10 * time.Second
)

// Help strings for command line arguments
var (
	collectorAddrHelp = "The collector address in the format of host:port."
	producerNameHelp  = "Name announced to the collector with every stream."
	compressionHelp   = fmt.Sprintf("Compression of the event stream (%s, %s or %s).",
		producerside.CompressionNone, producerside.CompressionGzip, producerside.CompressionZstd)
	reconnectionDelayHelp = "Wait in milliseconds between connection attempts to the collector."
	maxEventsHelp         = "Maximum number of events sent in a single request."
	sleepOnEmptyQueueHelp = "Pause in microseconds of the forwarder after draining the event queue."
	arenaBlockSizeHelp    = "Size in bytes of the arena block used to translate a batch of events."
	internedStringsHelp   = "Number of interned strings remembered per capture."
	eventsPerSecondHelp   = fmt.Sprintf("Rate of synthetic scopes emitted by every event worker "+
		"during a capture, at most %d. Zero disables the synthetic event source.",
		controller.MaxEventsPerSecond)
	eventWorkersHelp         = "Number of goroutines emitting synthetic events."
	agentMetricsIntervalHelp = "Interval at which process metrics are sampled."
	logFormatHelp            = fmt.Sprintf("Log output format (%s or %s).",
		controller.LogFormatText, controller.LogFormatZap)
	configFileHelp  = "Path to a plain configuration file with one flag per line."
	verboseModeHelp = "Enable verbose logging and debugging capabilities."
	versionHelp     = "Show version."
)

func parseArgs(args []string) (*controller.Config, error) {
	var cfg controller.Config

	fs := flag.NewFlagSet("capture-producer", flag.ContinueOnError)

	// Please keep the parameters ordered alphabetically in the source-code.
	fs.DurationVar(&cfg.AgentMetricsInterval, "agent-metrics-interval",
		defaultArgAgentMetricsInterval, agentMetricsIntervalHelp)

	fs.UintVar(&cfg.ArenaBlockSizeBytes, "arena-block-size-bytes",
		defaultArgArenaBlockSizeBytes, arenaBlockSizeHelp)

	fs.StringVar(&cfg.CollectorAddr, "collector", defaultArgCollectorAddr, collectorAddrHelp)
	fs.StringVar(&cfg.Compression, "compression", producerside.CompressionNone, compressionHelp)
	fs.String("config", "", configFileHelp)

	fs.UintVar(&cfg.EventWorkers, "event-workers", defaultArgEventWorkers, eventWorkersHelp)
	fs.UintVar(&cfg.EventsPerSecond, "events-per-second", defaultArgEventsPerSecond,
		eventsPerSecondHelp)

	fs.UintVar(&cfg.InternedStringsCache, "interned-strings-cache-size",
		defaultArgInternedStringsCache, internedStringsHelp)

	fs.StringVar(&cfg.LogFormat, "log-format", controller.LogFormatText, logFormatHelp)

	fs.UintVar(&cfg.MaxEventsPerRequest, "max-events-per-request",
		defaultArgMaxEventsPerRequest, maxEventsHelp)

	fs.StringVar(&cfg.ProducerName, "producer-name", "", producerNameHelp)

	fs.UintVar(&cfg.ReconnectionDelayMs, "reconnection-delay-ms",
		defaultArgReconnectionDelayMs, reconnectionDelayHelp)

	fs.UintVar(&cfg.SleepOnEmptyQueueUs, "sleep-on-empty-queue-us",
		defaultArgSleepOnEmptyQueueUs, sleepOnEmptyQueueHelp)

	fs.BoolVar(&cfg.VerboseMode, "v", false, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.VerboseMode, "verbose", false, verboseModeHelp)
	fs.BoolVar(&cfg.Version, "version", false, versionHelp)

	fs.Usage = func() {
		fs.PrintDefaults()
	}

	cfg.Fs = fs

	return &cfg, ff.Parse(fs, args,
		ff.WithEnvVarPrefix("CAPTURE_PRODUCER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		// This will ignore configuration file (only) options that the current
		// producer does not recognize.
		ff.WithIgnoreUndefined(true),
		ff.WithAllowMissingConfigFile(true),
	)
}
