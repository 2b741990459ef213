// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package producer connects a capture event producer to the collector.
//
// A CaptureEventProducer keeps one ReceiveCommandsAndSendEvents stream open
// towards the collector, reconnecting after a delay whenever the stream
// cannot be opened or ends. Capture commands received on the stream are
// turned into CaptureObserver hooks, and events are written back to the
// same stream with SendCaptureEvents and NotifyAllEventsSent.
package producer // import "go.opentelemetry.io/capture-producer/producer"

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/internal/xsync"
	"go.opentelemetry.io/capture-producer/metrics"
	"go.opentelemetry.io/capture-producer/producerside"
	"go.opentelemetry.io/capture-producer/successfailurecounter"
	"go.opentelemetry.io/capture-producer/vc"
)

const (
	// MetadataProducerID carries the random id of a producer instance.
	MetadataProducerID = "producer-id"
	// MetadataProducerName carries Config.ProducerName.
	MetadataProducerName = "producer-name"
	// MetadataUserAgent carries the producer build.
	MetadataUserAgent = "producer-user-agent"
)

// streamState is the stream currently open towards the collector. Both
// fields are nil while disconnected.
type streamState struct {
	stream producerside.CommandStream
	cancel context.CancelFunc
}

// CaptureEventProducer maintains the connection to the collector and tracks
// the capture state announced by it.
type CaptureEventProducer struct {
	id          uuid.UUID
	name        string
	observer    CaptureObserver
	callOptions []grpc.CallOption

	reconnectionDelay atomic.Int64
	lastCommand       atomic.Uint32

	client producerside.ProducerSideServiceClient
	stream xsync.RWMutex[streamState]
	// sendMu serializes writes, as a gRPC stream does not allow concurrent sends.
	sendMu sync.Mutex

	// ctx is cancelled by ShutdownAndWait. Every stream context derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	started           atomic.Bool
	shutdownRequested atomic.Bool
	shutdownOnce      sync.Once
	loopDone          chan struct{}
}

// New creates a producer that reports capture lifecycle changes to observer.
// The producer does nothing until BuildAndStart is called.
func New(observer CaptureObserver, cfg Config) (*CaptureEventProducer, error) {
	if observer == nil {
		return nil, errors.New("capture observer must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid producer configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &CaptureEventProducer{
		id:          uuid.New(),
		name:        cfg.ProducerName,
		observer:    observer,
		callOptions: cfg.callOptions(),
		stream:      xsync.NewRWMutex(streamState{}),
		ctx:         ctx,
		cancel:      cancel,
		loopDone:    make(chan struct{}),
	}
	p.reconnectionDelay.Store(int64(cfg.ReconnectionDelay))
	p.lastCommand.Store(uint32(commandCaptureFinished))
	return p, nil
}

// ID returns the random id the producer announces to the collector.
func (p *CaptureEventProducer) ID() uuid.UUID {
	return p.id
}

// BuildAndStart starts connecting to the collector over cc. It must be called
// at most once, and cc must stay open until ShutdownAndWait returns.
func (p *CaptureEventProducer) BuildAndStart(cc grpc.ClientConnInterface) {
	if cc == nil {
		panic("BuildAndStart called with a nil channel")
	}
	if !p.started.CompareAndSwap(false, true) {
		panic("BuildAndStart called more than once")
	}
	if p.shutdownRequested.Load() {
		log.Warn("Producer already shut down, not connecting to the collector")
		close(p.loopDone)
		return
	}

	p.client = producerside.NewProducerSideServiceClient(cc)
	go p.connectAndReceiveCommandsLoop()
}

// ShutdownAndWait closes the stream and waits for the connection goroutine to
// exit. Hooks may still run while ShutdownAndWait is in progress, as the
// closed stream finishes an ongoing capture, but none run after it returns.
// Calling it more than once is harmless.
func (p *CaptureEventProducer) ShutdownAndWait() {
	p.shutdownOnce.Do(func() {
		p.shutdownRequested.Store(true)
		// Cancelling the root context ends the reconnection wait, the open
		// stream and any stream being opened.
		p.cancel()
		if p.started.Load() {
			<-p.loopDone
		}
	})
}

// IsCapturing reports whether the last command applied was StartCapture.
func (p *CaptureEventProducer) IsCapturing() bool {
	return command(p.lastCommand.Load()) == commandStartCapture
}

// SetReconnectionDelay changes the wait between connection attempts. The new
// value applies from the next wait on.
func (p *CaptureEventProducer) SetReconnectionDelay(delay time.Duration) {
	p.reconnectionDelay.Store(int64(delay))
}

// SendCaptureEvents writes a batch of events to the collector. It is meant to
// be called while a capture is started or stopping, and returns false if no
// stream is open or the write fails. req must carry BufferedCaptureEvents.
func (p *CaptureEventProducer) SendCaptureEvents(req *producerside.Request) bool {
	if req.GetBufferedCaptureEvents() == nil {
		panic(fmt.Sprintf("SendCaptureEvents called with %T, expected BufferedCaptureEvents",
			req.Event))
	}
	return p.send(req, "BufferedCaptureEvents")
}

// NotifyAllEventsSent tells the collector that all events of the stopping
// capture have been sent. It returns false if no stream is open or the write
// fails.
func (p *CaptureEventProducer) NotifyAllEventsSent() bool {
	return p.send(producerside.NewAllEventsSentRequest(), "AllEventsSent")
}

func (p *CaptureEventProducer) send(req *producerside.Request, kind string) bool {
	counter := successfailurecounter.New(metrics.IDRequestsSent, metrics.IDSendFailures)
	defer counter.DefaultToFailure()

	state := p.stream.RLock()
	defer p.stream.RUnlock(&state)

	if state.stream == nil {
		log.Errorf("Sending %s to the collector: not connected", kind)
		return false
	}

	p.sendMu.Lock()
	err := state.stream.Send(req)
	p.sendMu.Unlock()
	if err != nil {
		log.Errorf("Sending %s to the collector: %v", kind, err)
		return false
	}
	counter.ReportSuccess()
	return true
}

func (p *CaptureEventProducer) connectAndReceiveCommandsLoop() {
	defer close(p.loopDone)

	for !p.shutdownRequested.Load() {
		stream, ok := p.openStream()
		if !ok {
			p.waitBeforeReconnecting()
			continue
		}

		p.receiveCommands(stream)
		p.finishOngoingCapture()
		p.closeStream()

		if !p.shutdownRequested.Load() {
			p.waitBeforeReconnecting()
		}
	}
}

func (p *CaptureEventProducer) openStream() (producerside.CommandStream, bool) {
	ctx, cancel := context.WithCancel(p.ctx)
	kv := []string{
		MetadataProducerID, p.id.String(),
		MetadataUserAgent, vc.UserAgent(),
	}
	if p.name != "" {
		kv = append(kv, MetadataProducerName, p.name)
	}
	ctx = metadata.AppendToOutgoingContext(ctx, kv...)

	stream, err := p.client.ReceiveCommandsAndSendEvents(ctx, p.callOptions...)
	if err != nil {
		cancel()
		if !p.shutdownRequested.Load() {
			log.Errorf("Calling ReceiveCommandsAndSendEvents: %v", err)
			metrics.Add(metrics.IDStreamFailures, 1)
		}
		return nil, false
	}

	state := p.stream.WLock()
	defer p.stream.WUnlock(&state)
	if p.shutdownRequested.Load() {
		cancel()
		return nil, false
	}
	state.stream = stream
	state.cancel = cancel

	log.Infof("Opened ReceiveCommandsAndSendEvents stream (producer %s)", p.id)
	metrics.Add(metrics.IDStreamConnections, 1)
	return stream, true
}

func (p *CaptureEventProducer) closeStream() {
	state := p.stream.WLock()
	defer p.stream.WUnlock(&state)

	if state.cancel != nil {
		state.cancel()
	}
	state.stream = nil
	state.cancel = nil
}

// receiveCommands applies the commands read from stream until reading fails.
func (p *CaptureEventProducer) receiveCommands(stream producerside.CommandStream) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			p.logStreamEnd(err)
			return
		}
		p.dispatch(resp)
	}
}

func (p *CaptureEventProducer) logStreamEnd(err error) {
	switch {
	case p.shutdownRequested.Load():
		log.Debugf("ReceiveCommandsAndSendEvents stream closed on shutdown")
	case errors.Is(err, io.EOF):
		log.Warn("Collector closed the ReceiveCommandsAndSendEvents stream")
		metrics.Add(metrics.IDStreamFailures, 1)
	default:
		log.Errorf("Reading from ReceiveCommandsAndSendEvents stream failed (%v): %v",
			status.Code(err), status.Convert(err).Message())
		metrics.Add(metrics.IDStreamFailures, 1)
	}
}

func (p *CaptureEventProducer) dispatch(resp *producerside.Response) {
	switch cmd := resp.Command.(type) {
	case *producerside.StartCaptureCommand:
		opts := cmd.CaptureOptions
		if opts == nil {
			opts = &producerside.CaptureOptions{}
		}
		log.Infof("Collector sent StartCapture command")
		p.applyCommand(commandStartCapture, opts)
	case *producerside.StopCaptureCommand:
		log.Infof("Collector sent StopCapture command")
		p.applyCommand(commandStopCapture, nil)
	case *producerside.CaptureFinishedCommand:
		log.Infof("Collector sent CaptureFinished command")
		p.applyCommand(commandCaptureFinished, nil)
	default:
		log.Errorf("Collector sent a message without a command")
		metrics.Add(metrics.IDUnsetCommands, 1)
	}
}

// applyCommand runs the hooks moving the observer from the last command to
// incoming. IsCapturing turns true only after OnCaptureStart has returned and
// turns false before OnCaptureStop is called.
func (p *CaptureEventProducer) applyCommand(incoming command, opts *producerside.CaptureOptions) {
	metrics.Add(metrics.IDCommandsReceived, 1)

	last := command(p.lastCommand.Load())
	hooks := transitions[last][incoming]
	if len(hooks) == 0 {
		log.Debugf("Ignoring %v command, the last command was %v too", incoming, last)
		metrics.Add(metrics.IDDuplicateCommands, 1)
		return
	}

	if incoming != commandStartCapture {
		p.lastCommand.Store(uint32(incoming))
	}
	applyHooks(p.observer, hooks, opts)
	if incoming == commandStartCapture {
		p.lastCommand.Store(uint32(incoming))
	}
}

// finishOngoingCapture completes the capture lifecycle after the stream to
// the collector has been lost.
func (p *CaptureEventProducer) finishOngoingCapture() {
	last := command(p.lastCommand.Load())
	hooks := transitions[last][commandCaptureFinished]
	if len(hooks) == 0 {
		return
	}
	log.Infof("Finishing capture after losing the collector (last command %v)", last)
	p.lastCommand.Store(uint32(commandCaptureFinished))
	applyHooks(p.observer, hooks, nil)
}

func (p *CaptureEventProducer) waitBeforeReconnecting() {
	delay := time.Duration(p.reconnectionDelay.Load())
	log.Debugf("Reconnecting to the collector in %v", delay)

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-p.ctx.Done():
	}
}

