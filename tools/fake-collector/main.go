// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// fake-collector serves the producer side service and cycles captures on
// every connected producer: start, stop, finished, then again.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/peterbourgon/ff/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"go.opentelemetry.io/capture-producer/fakecollector"
	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/periodiccaller"
	"go.opentelemetry.io/capture-producer/producerside"
)

type config struct {
	listenAddr       string
	phase            time.Duration
	jitter           float64
	pid              int
	samplesPerSecond float64
	verbose          bool
}

func parseArgs(args []string) (*config, error) {
	var cfg config
	fs := flag.NewFlagSet("fake-collector", flag.ContinueOnError)
	fs.StringVar(&cfg.listenAddr, "listen", "127.0.0.1:44765", "Address to serve producers on.")
	fs.DurationVar(&cfg.phase, "phase", 5*time.Second,
		"Time spent in every capture phase before sending the next command.")
	fs.Float64Var(&cfg.jitter, "jitter", 0.2, "Jitter [0..1] applied to every phase.")
	fs.IntVar(&cfg.pid, "pid", 0, "Pid sent with every StartCapture command.")
	fs.Float64Var(&cfg.samplesPerSecond, "samples-per-second", 1000,
		"Sampling rate sent with every StartCapture command.")
	fs.BoolVar(&cfg.verbose, "v", false, "Enable verbose logging.")
	fs.Usage = func() {
		fs.PrintDefaults()
	}
	return &cfg, ff.Parse(fs, args, ff.WithEnvVarPrefix("FAKE_COLLECTOR"))
}

// cycle sends the next capture command every time it is called.
type cycle struct {
	collector *fakecollector.Collector
	opts      *producerside.CaptureOptions
	step      atomic.Uint32
}

func (c *cycle) next() {
	switch c.step.Add(1) % 3 {
	case 1:
		c.collector.Reset()
		if c.collector.SendStartCaptureCommand(c.opts) {
			log.Info("Sent StartCapture")
		}
	case 2:
		if c.collector.SendStopCaptureCommand() {
			log.Info("Sent StopCapture")
		}
	case 0:
		if c.collector.SendCaptureFinishedCommand() {
			log.Infof("Sent CaptureFinished: %d events in %d batches, %d AllEventsSent",
				c.collector.CaptureEventsReceived(), c.collector.BatchesReceived(),
				c.collector.AllEventsSentReceived())
		}
	}
}

func run(ctx context.Context, cfg *config) error {
	lis, err := net.Listen("tcp", cfg.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.listenAddr, err)
	}

	collector := fakecollector.New()
	collector.OnAllEventsSentReceived(func() {
		log.Info("Producer sent AllEventsSent")
	})
	server := fakecollector.NewServer(collector)

	c := &cycle{
		collector: collector,
		opts: &producerside.CaptureOptions{
			Pid:              int32(cfg.pid),
			SamplesPerSecond: cfg.samplesPerSecond,
			EnableAPI:        true,
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("Serving producers on %s", lis.Addr())
		return server.Serve(lis)
	})
	g.Go(func() error {
		stop := periodiccaller.StartWithJitter(gctx, cfg.phase, cfg.jitter, c.next)
		<-gctx.Done()
		stop()
		server.Stop()
		return nil
	})
	return g.Wait()
}

func main() {
	cfg, err := parseArgs(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Errorf("Failure to parse arguments: %v", err)
		os.Exit(2)
	}
	if cfg.verbose {
		log.SetDebugLogger()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error(err)
		cancel()
		os.Exit(1)
	}
}
