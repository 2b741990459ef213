// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package eventproducer provides a ready to use producer for code that
// builds ProducerCaptureEvents itself, such as instrumentation layers
// injected into a target process. Strings can be interned so that each
// distinct string crosses the wire once per capture.
package eventproducer // import "go.opentelemetry.io/capture-producer/eventproducer"

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/elastic/go-freelru"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"google.golang.org/grpc"

	"go.opentelemetry.io/capture-producer/bufferproducer"
	"go.opentelemetry.io/capture-producer/metrics"
	"go.opentelemetry.io/capture-producer/producer"
	"go.opentelemetry.io/capture-producer/producerside"
)

// DefaultInternedStringsCacheSize is the number of interned keys remembered
// per capture. A string whose key was evicted is interned again.
const DefaultInternedStringsCacheSize = 1 << 16

// Config configures a Producer.
type Config struct {
	Buffer                   bufferproducer.Config
	InternedStringsCacheSize uint32
}

// DefaultConfig returns the configuration used when no value is overridden.
func DefaultConfig() Config {
	return Config{
		Buffer:                   bufferproducer.DefaultConfig(),
		InternedStringsCacheSize: DefaultInternedStringsCacheSize,
	}
}

type listenerHolder struct {
	listener producer.CaptureObserver
}

// Producer forwards ProducerCaptureEvents to the collector.
type Producer struct {
	buffer *bufferproducer.LockFreeBufferProducer[*producerside.ProducerCaptureEvent]

	listener atomic.Pointer[listenerHolder]

	// internMu makes the lookup and the enqueue of an interned string atomic.
	internMu     sync.Mutex
	internedKeys *lru.LRU[uint64, struct{}]
}

func hashKey(key uint64) uint32 {
	return uint32(key ^ key>>32)
}

// New creates a Producer. It does not connect until BuildAndStart is called.
func New(cfg Config) (*Producer, error) {
	if cfg.InternedStringsCacheSize == 0 {
		return nil, fmt.Errorf("invalid interned strings cache size: %d", cfg.InternedStringsCacheSize)
	}
	keys, err := lru.New[uint64, struct{}](cfg.InternedStringsCacheSize, hashKey)
	if err != nil {
		return nil, fmt.Errorf("creating interned strings cache: %w", err)
	}

	p := &Producer{internedKeys: keys}
	p.buffer, err = bufferproducer.New[*producerside.ProducerCaptureEvent](
		bufferproducer.TranslatorFunc[*producerside.ProducerCaptureEvent](passThrough),
		cfg.Buffer, bufferproducer.WithCaptureObserver(captureHooks{p}))
	if err != nil {
		return nil, err
	}
	return p, nil
}

func passThrough(ev *producerside.ProducerCaptureEvent,
	_ *bufferproducer.Arena) *producerside.ProducerCaptureEvent {
	return ev
}

// BuildAndStart connects to the collector over cc.
func (p *Producer) BuildAndStart(cc grpc.ClientConnInterface) {
	p.buffer.BuildAndStart(cc)
}

// ShutdownAndWait disconnects from the collector and stops forwarding.
func (p *Producer) ShutdownAndWait() {
	p.buffer.ShutdownAndWait()
}

// IsCapturing reports whether a capture is in progress.
func (p *Producer) IsCapturing() bool {
	return p.buffer.IsCapturing()
}

// SetReconnectionDelay changes the wait between connection attempts.
func (p *Producer) SetReconnectionDelay(delay time.Duration) {
	p.buffer.SetReconnectionDelay(delay)
}

// ID returns the id the producer announces to the collector.
func (p *Producer) ID() uuid.UUID {
	return p.buffer.ID()
}

// SetCaptureStatusListener installs listener to be told about capture
// starts, stops and ends. A nil listener removes the current one.
func (p *Producer) SetCaptureStatusListener(listener producer.CaptureObserver) {
	if listener == nil {
		p.listener.Store(nil)
		return
	}
	p.listener.Store(&listenerHolder{listener: listener})
}

func (p *Producer) currentListener() producer.CaptureObserver {
	if h := p.listener.Load(); h != nil {
		return h.listener
	}
	return nil
}

// EnqueueCaptureEvent queues ev if a capture is in progress and reports
// whether it did.
func (p *Producer) EnqueueCaptureEvent(ev *producerside.ProducerCaptureEvent) bool {
	return p.buffer.EnqueueIntermediateEventIfCapturing(func() *producerside.ProducerCaptureEvent {
		return ev
	})
}

// InternStringIfNecessaryAndGetKey returns the key other events use to refer
// to s. During a capture, the first call for a given string also queues an
// InternedString event announcing the key.
func (p *Producer) InternStringIfNecessaryAndGetKey(s string) uint64 {
	key := xxh3.HashString(s)

	p.internMu.Lock()
	defer p.internMu.Unlock()

	if p.internedKeys.Contains(key) {
		return key
	}
	queued := p.buffer.EnqueueIntermediateEventIfCapturing(func() *producerside.ProducerCaptureEvent {
		return &producerside.ProducerCaptureEvent{
			Event: &producerside.InternedString{Key: key, Intern: s},
		}
	})
	if queued {
		p.internedKeys.Add(key, struct{}{})
		metrics.Add(metrics.IDInternedStrings, 1)
	}
	return key
}

func (p *Producer) resetInternedStrings() {
	p.internMu.Lock()
	defer p.internMu.Unlock()
	p.internedKeys.Purge()
}

type captureHooks struct {
	p *Producer
}

func (h captureHooks) OnCaptureStart(opts *producerside.CaptureOptions) {
	h.p.resetInternedStrings()
	if l := h.p.currentListener(); l != nil {
		l.OnCaptureStart(opts)
	}
}

func (h captureHooks) OnCaptureStop() {
	if l := h.p.currentListener(); l != nil {
		l.OnCaptureStop()
	}
}

func (h captureHooks) OnCaptureFinished() {
	if l := h.p.currentListener(); l != nil {
		l.OnCaptureFinished()
	}
}
