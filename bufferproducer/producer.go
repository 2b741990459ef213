// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package bufferproducer implements a capture event producer whose enqueue
// path never blocks.
//
// Instrumented code enqueues lightweight intermediate events of any type T
// into a lock-free queue. A forwarder goroutine drains the queue, translates
// the intermediate events into ProducerCaptureEvents and writes them to the
// collector in batches. When the capture stops, every event queued before the
// stop is flushed and followed by a single AllEventsSent.
package bufferproducer // import "go.opentelemetry.io/capture-producer/bufferproducer"

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"

	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/metrics"
	"go.opentelemetry.io/capture-producer/producer"
	"go.opentelemetry.io/capture-producer/producerside"
)

// Translator converts intermediate events into capture events. Returning nil
// skips the event. The returned event may come from arena.
type Translator[T any] interface {
	TranslateIntermediateEvent(event T, arena *Arena) *producerside.ProducerCaptureEvent
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc[T any] func(event T, arena *Arena) *producerside.ProducerCaptureEvent

// TranslateIntermediateEvent calls f(event, arena).
func (f TranslatorFunc[T]) TranslateIntermediateEvent(event T,
	arena *Arena) *producerside.ProducerCaptureEvent {
	return f(event, arena)
}

// forwarderStatus tells the forwarder what to do with dequeued events.
type forwarderStatus uint8

const (
	statusShouldDrop forwarderStatus = iota
	statusShouldSend
	statusShouldNotifyAllEventsSent
)

func (s forwarderStatus) String() string {
	switch s {
	case statusShouldDrop:
		return "ShouldDrop"
	case statusShouldSend:
		return "ShouldSend"
	case statusShouldNotifyAllEventsSent:
		return "ShouldNotifyAllEventsSent"
	}
	return fmt.Sprintf("forwarderStatus(%d)", uint8(s))
}

// Option customizes a LockFreeBufferProducer.
type Option func(*options)

type options struct {
	observer producer.CaptureObserver
}

// WithCaptureObserver forwards the capture lifecycle to observer once the
// producer has updated its own state.
func WithCaptureObserver(observer producer.CaptureObserver) Option {
	return func(o *options) {
		o.observer = observer
	}
}

// LockFreeBufferProducer buffers intermediate events of type T and forwards
// them to the collector.
type LockFreeBufferProducer[T any] struct {
	base       *producer.CaptureEventProducer
	translator Translator[T]
	observer   producer.CaptureObserver
	cfg        Config

	queue *Queue[T]

	// statusMu is only held to read or update status.
	statusMu sync.Mutex
	status   forwarderStatus

	started           atomic.Bool
	shutdownRequested atomic.Bool
	forwarderDone     chan struct{}
}

// New creates a producer translating intermediate events with translator.
func New[T any](translator Translator[T], cfg Config,
	opts ...Option) (*LockFreeBufferProducer[T], error) {
	if translator == nil {
		return nil, errors.New("translator must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid buffer producer configuration: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	p := &LockFreeBufferProducer[T]{
		translator:    translator,
		observer:      o.observer,
		cfg:           cfg,
		queue:         NewQueue[T](),
		status:        statusShouldDrop,
		forwarderDone: make(chan struct{}),
	}

	base, err := producer.New(captureHooks[T]{p}, cfg.Producer)
	if err != nil {
		return nil, err
	}
	p.base = base
	return p, nil
}

// BuildAndStart connects to the collector over cc and starts the forwarder.
// It must be called at most once.
func (p *LockFreeBufferProducer[T]) BuildAndStart(cc grpc.ClientConnInterface) {
	p.base.BuildAndStart(cc)
	if p.started.CompareAndSwap(false, true) {
		go p.forwardEvents()
	}
}

// ShutdownAndWait stops the forwarder, then disconnects from the collector.
// Events still queued are discarded.
func (p *LockFreeBufferProducer[T]) ShutdownAndWait() {
	if p.shutdownRequested.CompareAndSwap(false, true) && p.started.Load() {
		<-p.forwarderDone
	}
	p.base.ShutdownAndWait()
}

// IsCapturing reports whether a capture is in progress.
func (p *LockFreeBufferProducer[T]) IsCapturing() bool {
	return p.base.IsCapturing()
}

// SetReconnectionDelay changes the wait between connection attempts.
func (p *LockFreeBufferProducer[T]) SetReconnectionDelay(delay time.Duration) {
	p.base.SetReconnectionDelay(delay)
}

// ID returns the id the producer announces to the collector.
func (p *LockFreeBufferProducer[T]) ID() uuid.UUID {
	return p.base.ID()
}

// EnqueueIntermediateEvent queues event regardless of the capture state.
// Events queued while no capture is active are discarded by the forwarder.
func (p *LockFreeBufferProducer[T]) EnqueueIntermediateEvent(event T) {
	p.queue.Enqueue(event)
}

// EnqueueIntermediateEventIfCapturing queues the event built by newEvent if
// a capture is in progress and reports whether it did. newEvent is not
// called otherwise.
func (p *LockFreeBufferProducer[T]) EnqueueIntermediateEventIfCapturing(newEvent func() T) bool {
	if !p.base.IsCapturing() {
		return false
	}
	p.queue.Enqueue(newEvent())
	return true
}

func (p *LockFreeBufferProducer[T]) setStatus(status forwarderStatus) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status = status
}

// takeStatus returns the current status. Once the queue has been emptied
// while AllEventsSent is pending, the status moves on to ShouldDrop in the
// same critical section, so the notification is sent exactly once.
func (p *LockFreeBufferProducer[T]) takeStatus(queueEmptied bool) forwarderStatus {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	status := p.status
	if status == statusShouldNotifyAllEventsSent && queueEmptied {
		p.status = statusShouldDrop
	}
	return status
}

func (p *LockFreeBufferProducer[T]) forwardEvents() {
	defer close(p.forwarderDone)

	dequeued := make([]T, p.cfg.MaxEventsPerRequest)
	batch := make([]*producerside.ProducerCaptureEvent, 0, p.cfg.MaxEventsPerRequest)
	arena := NewArena(p.cfg.ArenaBlockSize)

	for !p.shutdownRequested.Load() {
		batch = p.drainQueue(dequeued, batch, arena)
		time.Sleep(p.cfg.SleepOnEmptyQueue)
	}
}

// drainQueue forwards or drops events until the queue is empty or a write
// to the collector fails.
func (p *LockFreeBufferProducer[T]) drainQueue(dequeued []T,
	batch []*producerside.ProducerCaptureEvent, arena *Arena) []*producerside.ProducerCaptureEvent {
	for {
		n := p.queue.DequeueBulk(dequeued)
		queueEmptied := n < len(dequeued) && p.queue.Empty()
		status := p.takeStatus(queueEmptied)
		if n > 0 {
			metrics.Add(metrics.IDEventsDequeued, metrics.MetricValue(n))
		}

		switch status {
		case statusShouldSend, statusShouldNotifyAllEventsSent:
			if n > 0 {
				var ok bool
				batch, ok = p.sendBatch(dequeued[:n], batch, arena)
				if !ok {
					return batch
				}
			}
			if status == statusShouldNotifyAllEventsSent && queueEmptied {
				if p.base.NotifyAllEventsSent() {
					log.Debugf("Sent AllEventsSent")
					metrics.Add(metrics.IDAllEventsSent, 1)
				}
				return batch
			}
		case statusShouldDrop:
			clear(dequeued[:n])
			if n > 0 {
				metrics.Add(metrics.IDEventsDropped, metrics.MetricValue(n))
			}
		}

		if queueEmptied {
			return batch
		}
		if n < len(dequeued) {
			// An Enqueue is in the middle of linking its element.
			runtime.Gosched()
		}
	}
}

// sendBatch translates events and writes them as a single request.
func (p *LockFreeBufferProducer[T]) sendBatch(events []T, batch []*producerside.ProducerCaptureEvent,
	arena *Arena) ([]*producerside.ProducerCaptureEvent, bool) {
	defer arena.Reset()

	batch = batch[:0]
	for i := range events {
		if ev := p.translator.TranslateIntermediateEvent(events[i], arena); ev != nil {
			batch = append(batch, ev)
		}
	}
	if skipped := len(events) - len(batch); skipped > 0 {
		metrics.Add(metrics.IDTranslationsSkipped, metrics.MetricValue(skipped))
	}
	clear(events)

	if len(batch) == 0 {
		return batch, true
	}

	ok := p.base.SendCaptureEvents(producerside.NewBufferedCaptureEventsRequest(batch))
	if ok {
		metrics.Add(metrics.IDEventsSent, metrics.MetricValue(len(batch)))
		metrics.Add(metrics.IDBatchesSent, 1)
	}
	clear(batch)
	return batch, ok
}

// captureHooks keeps the CaptureObserver methods off the producer's public API.
type captureHooks[T any] struct {
	p *LockFreeBufferProducer[T]
}

func (h captureHooks[T]) OnCaptureStart(opts *producerside.CaptureOptions) {
	h.p.setStatus(statusShouldSend)
	if h.p.observer != nil {
		h.p.observer.OnCaptureStart(opts)
	}
}

func (h captureHooks[T]) OnCaptureStop() {
	h.p.setStatus(statusShouldNotifyAllEventsSent)
	if h.p.observer != nil {
		h.p.observer.OnCaptureStop()
	}
}

func (h captureHooks[T]) OnCaptureFinished() {
	h.p.setStatus(statusShouldDrop)
	if h.p.observer != nil {
		h.p.observer.OnCaptureFinished()
	}
}
