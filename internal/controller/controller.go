// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "go.opentelemetry.io/capture-producer/internal/controller"

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/capture-producer/eventproducer"
	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/metrics/agentmetrics"
	"go.opentelemetry.io/capture-producer/producerside"
	"go.opentelemetry.io/capture-producer/vc"
)

// Controller is an instance that runs, manages and stops the producer agent.
type Controller struct {
	config *Config

	conn     *grpc.ClientConn
	producer *eventproducer.Producer
	status   *captureStatus

	stopMetrics func()
	cancel      context.CancelFunc
	workers     *errgroup.Group
}

// New creates a new controller.
func New(cfg *Config) *Controller {
	return &Controller{
		config:      cfg,
		status:      &captureStatus{},
		stopMetrics: func() {},
		cancel:      func() {},
	}
}

// Start connects to the collector and starts the synthetic event source.
// The controller should only be started once.
func (c *Controller) Start(ctx context.Context) error {
	conn, err := grpc.NewClient(c.config.CollectorAddr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent(vc.UserAgent()))
	if err != nil {
		return fmt.Errorf("failed to create collector channel: %w", err)
	}
	c.conn = conn

	p, err := eventproducer.New(c.config.eventProducerConfig())
	if err != nil {
		return fmt.Errorf("failed to create event producer: %w", err)
	}
	p.SetCaptureStatusListener(c.status)
	p.BuildAndStart(conn)
	c.producer = p
	log.Infof("Producer %s connecting to %s", p.ID(), c.config.CollectorAddr)

	stopMetrics, err := agentmetrics.Start(ctx, c.config.AgentMetricsInterval)
	if err != nil {
		return fmt.Errorf("failed to start agent metrics: %w", err)
	}
	c.stopMetrics = stopMetrics

	if c.config.EventsPerSecond == 0 {
		log.Info("Synthetic event source disabled")
		return nil
	}

	ctx, c.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	interval := time.Second / time.Duration(c.config.EventsPerSecond)
	for i := range c.config.EventWorkers {
		w := newEventWorker(p, c.status, int32(i))
		g.Go(func() error {
			return w.run(gctx, interval)
		})
	}
	c.workers = g
	log.Infof("Started %d event workers emitting %d scopes per second each",
		c.config.EventWorkers, c.config.EventsPerSecond)
	return nil
}

// Shutdown stops the event source and disconnects from the collector.
func (c *Controller) Shutdown() {
	log.Info("Stop producing ...")
	c.cancel()
	if c.workers != nil {
		if err := c.workers.Wait(); err != nil {
			log.Errorf("Event worker failed: %v", err)
		}
	}
	if c.producer != nil {
		c.producer.ShutdownAndWait()
	}
	c.stopMetrics()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			log.Errorf("Closing collector channel: %v", err)
		}
	}
}

// captureStatus logs the capture lifecycle and counts the captures started.
type captureStatus struct {
	captures atomic.Uint64
}

func (s *captureStatus) OnCaptureStart(opts *producerside.CaptureOptions) {
	n := s.captures.Add(1)
	log.Infof("Capture %d started (pid %d, %.1f samples/s)", n, opts.Pid, opts.SamplesPerSecond)
}

func (s *captureStatus) OnCaptureStop() {
	log.Infof("Capture %d stopping", s.captures.Load())
}

func (s *captureStatus) OnCaptureFinished() {
	log.Infof("Capture %d finished", s.captures.Load())
}

// eventWorker emits API scopes the way an instrumented thread would.
type eventWorker struct {
	producer *eventproducer.Producer
	status   *captureStatus
	pid      int32
	tid      int32
	name     string

	// capture is the capture the thread name was last announced for.
	capture uint64
	depth   uint32
}

func newEventWorker(p *eventproducer.Producer, status *captureStatus, id int32) *eventWorker {
	return &eventWorker{
		producer: p,
		status:   status,
		pid:      int32(os.Getpid()),
		tid:      id + 1,
		name:     fmt.Sprintf("event-worker-%d", id),
	}
}

func (w *eventWorker) run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.emit()
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *eventWorker) emit() {
	if !w.producer.IsCapturing() {
		return
	}

	if capture := w.status.captures.Load(); capture != w.capture {
		w.capture = capture
		w.producer.EnqueueCaptureEvent(&producerside.ProducerCaptureEvent{
			Event: &producerside.ThreadName{
				Pid:         w.pid,
				Tid:         w.tid,
				Name:        w.name,
				TimestampNs: uint64(time.Now().UnixNano()),
			},
		})
	}

	w.depth = (w.depth + 1) % 8
	nameKey := w.producer.InternStringIfNecessaryAndGetKey(
		fmt.Sprintf("%s/scope-%d", w.name, w.depth))

	start := time.Now()
	w.producer.EnqueueCaptureEvent(&producerside.ProducerCaptureEvent{
		Event: &producerside.APIScopeStart{
			Pid:            w.pid,
			Tid:            w.tid,
			TimestampNs:    uint64(start.UnixNano()),
			EncodedNameKey: nameKey,
			ColorRGBA:      0xff8000ff,
			GroupID:        uint64(w.depth),
		},
	})
	w.producer.EnqueueCaptureEvent(&producerside.ProducerCaptureEvent{
		Event: &producerside.APIScopeStop{
			Pid:         w.pid,
			Tid:         w.tid,
			TimestampNs: uint64(time.Now().UnixNano()),
		},
	})
}
