// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bufferproducer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"go.opentelemetry.io/capture-producer/fakecollector"
	"go.opentelemetry.io/capture-producer/metrics"
	"go.opentelemetry.io/capture-producer/producerside"
)

const (
	waitFor = 10 * time.Second
	tick    = time.Millisecond
	settle  = 50 * time.Millisecond
)

var fakeCaptureOptions = &producerside.CaptureOptions{Pid: 42}

// keyTranslator turns every intermediate event into an InternedString
// carrying the event as key.
func keyTranslator(event uint64, arena *Arena) *producerside.ProducerCaptureEvent {
	ev := arena.NewCaptureEvent()
	ev.Event = &producerside.InternedString{Key: event}
	return ev
}

type testEnv struct {
	collector *fakecollector.InProcess
	producer  *LockFreeBufferProducer[uint64]
}

func newTestEnv(t *testing.T, cfg Config, translator Translator[uint64], opts ...Option) *testEnv {
	t.Helper()
	collector := fakecollector.StartInProcess()
	conn, err := collector.Dial()
	require.NoError(t, err)

	if translator == nil {
		translator = TranslatorFunc[uint64](keyTranslator)
	}
	p, err := New(translator, cfg, opts...)
	require.NoError(t, err)
	p.BuildAndStart(conn)
	t.Cleanup(func() {
		p.ShutdownAndWait()
		_ = conn.Close()
		collector.Stop()
	})

	require.Eventually(t, func() bool { return collector.Connections() == 1 }, waitFor, tick)
	return &testEnv{collector: collector, producer: p}
}

// newDrainEnv connects a producer whose forwarder is not running, so the test
// drives drainQueue itself.
func newDrainEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	collector := fakecollector.StartInProcess()
	conn, err := collector.Dial()
	require.NoError(t, err)

	p, err := New(TranslatorFunc[uint64](keyTranslator), cfg)
	require.NoError(t, err)
	p.base.BuildAndStart(conn)
	t.Cleanup(func() {
		p.ShutdownAndWait()
		_ = conn.Close()
		collector.Stop()
	})

	require.Eventually(t, func() bool { return collector.Connections() == 1 }, waitFor, tick)
	return &testEnv{collector: collector, producer: p}
}

func (env *testEnv) startCapture(t *testing.T) {
	t.Helper()
	require.True(t, env.collector.SendStartCaptureCommand(fakeCaptureOptions))
	require.Eventually(t, env.producer.IsCapturing, waitFor, tick)
}

func (env *testEnv) stopCapture(t *testing.T) {
	t.Helper()
	require.True(t, env.collector.SendStopCaptureCommand())
	require.Eventually(t, func() bool { return !env.producer.IsCapturing() }, waitFor, tick)
}

func (env *testEnv) waitEvents(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return env.collector.CaptureEventsReceived() == n
	}, waitFor, tick, "received %d events", env.collector.CaptureEventsReceived())
}

func (env *testEnv) waitAllEventsSent(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return env.collector.AllEventsSentReceived() == n
	}, waitFor, tick)
}

func receivedKeys(c *fakecollector.InProcess) []uint64 {
	var keys []uint64
	for _, ev := range c.Events() {
		keys = append(keys, ev.GetInternedString().Key)
	}
	return keys
}

func TestNew(t *testing.T) {
	translator := TranslatorFunc[uint64](keyTranslator)
	tests := map[string]struct {
		translator Translator[uint64]
		modify     func(*Config)
		wantErr    bool
	}{
		"default":                 {translator: translator, modify: func(*Config) {}},
		"nil translator":          {modify: func(*Config) {}, wantErr: true},
		"zero events per request": {translator: translator, modify: func(c *Config) { c.MaxEventsPerRequest = 0 }, wantErr: true},
		"zero sleep":              {translator: translator, modify: func(c *Config) { c.SleepOnEmptyQueue = 0 }, wantErr: true},
		"zero arena block":        {translator: translator, modify: func(c *Config) { c.ArenaBlockSize = 0 }, wantErr: true},
		"invalid producer":        {translator: translator, modify: func(c *Config) { c.Producer.ReconnectionDelay = 0 }, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.modify(&cfg)
			p, err := New(tc.translator, cfg)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, p.IsCapturing())
			p.ShutdownAndWait()
		})
	}
}

func TestEnqueueIntermediateEventIfCapturing(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)
	p := env.producer

	never := func() uint64 {
		t.Error("event built while not capturing")
		return 0
	}
	assert.False(t, p.EnqueueIntermediateEventIfCapturing(never))

	env.startCapture(t)
	for k := range uint64(3) {
		assert.True(t, p.EnqueueIntermediateEventIfCapturing(func() uint64 { return k }))
	}
	env.waitEvents(t, 3)
	batches := env.collector.BatchesReceived()
	assert.GreaterOrEqual(t, batches, 1)
	assert.LessOrEqual(t, batches, 3)
	assert.Equal(t, []uint64{0, 1, 2}, receivedKeys(env.collector))

	env.stopCapture(t)
	env.waitAllEventsSent(t, 1)
	assert.False(t, p.EnqueueIntermediateEventIfCapturing(never))

	time.Sleep(settle)
	assert.Equal(t, 3, env.collector.CaptureEventsReceived())
	assert.Equal(t, 1, env.collector.AllEventsSentReceived())
}

func TestEventsOutsideCaptureAreDropped(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)
	p := env.producer

	for k := range uint64(3) {
		p.EnqueueIntermediateEvent(k)
	}
	time.Sleep(settle)
	assert.Zero(t, env.collector.CaptureEventsReceived())

	env.startCapture(t)
	for k := range uint64(3) {
		p.EnqueueIntermediateEvent(10 + k)
	}
	env.waitEvents(t, 3)
	assert.Equal(t, []uint64{10, 11, 12}, receivedKeys(env.collector))

	env.stopCapture(t)
	env.waitAllEventsSent(t, 1)

	for k := range uint64(3) {
		p.EnqueueIntermediateEvent(20 + k)
	}
	time.Sleep(settle)
	assert.Equal(t, 3, env.collector.CaptureEventsReceived())
	assert.Equal(t, 1, env.collector.AllEventsSentReceived())
}

func TestDuplicatedCommands(t *testing.T) {
	env := newTestEnv(t, DefaultConfig(), nil)
	p := env.producer

	env.startCapture(t)
	require.True(t, env.collector.SendStartCaptureCommand(fakeCaptureOptions))
	for k := range uint64(3) {
		p.EnqueueIntermediateEvent(k)
	}
	env.waitEvents(t, 3)

	env.stopCapture(t)
	require.True(t, env.collector.SendStopCaptureCommand())
	env.waitAllEventsSent(t, 1)

	require.True(t, env.collector.SendCaptureFinishedCommand())
	require.True(t, env.collector.SendCaptureFinishedCommand())
	time.Sleep(settle)
	assert.Equal(t, 1, env.collector.AllEventsSentReceived())
	assert.Equal(t, 3, env.collector.CaptureEventsReceived())
}

func TestAllEventsSentFollowsEveryQueuedEvent(t *testing.T) {
	producers := 8
	perProducer := 50000
	if testing.Short() {
		perProducer = 5000
	}

	cfg := DefaultConfig()
	cfg.MaxEventsPerRequest = 1000
	env := newTestEnv(t, cfg, nil)
	p := env.producer
	env.startCapture(t)

	var g errgroup.Group
	for id := range producers {
		g.Go(func() error {
			for seq := range perProducer {
				p.EnqueueIntermediateEvent(uint64(id)<<32 | uint64(seq))
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	env.stopCapture(t)
	env.waitAllEventsSent(t, 1)

	records := env.collector.Records()
	require.NotEmpty(t, records)
	assert.True(t, records[len(records)-1].AllEventsSent)

	next := make([]uint64, producers)
	total := 0
	for _, r := range records[:len(records)-1] {
		require.False(t, r.AllEventsSent)
		assert.LessOrEqual(t, len(r.Events), cfg.MaxEventsPerRequest)
		for _, ev := range r.Events {
			key := ev.GetInternedString().Key
			id, seq := key>>32, key&0xffffffff
			require.Equal(t, next[id], seq, "events of producer %d out of order", id)
			next[id]++
			total++
		}
	}
	assert.Equal(t, producers*perProducer, total)
}

func TestBatchesRespectMaxEventsPerRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEventsPerRequest = 10
	env := newTestEnv(t, cfg, nil)
	env.startCapture(t)

	for k := range uint64(105) {
		env.producer.EnqueueIntermediateEvent(k)
	}
	env.waitEvents(t, 105)
	assert.GreaterOrEqual(t, env.collector.BatchesReceived(), 11)
	for _, r := range env.collector.Records() {
		assert.LessOrEqual(t, len(r.Events), 10)
	}
}

func TestDrainExactlyMaxEventsPerRequest(t *testing.T) {
	tests := map[string]struct {
		stopBeforeDrain bool
	}{
		"stop before drain": {stopBeforeDrain: true},
		"stop after drain":  {},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxEventsPerRequest = 10
			env := newDrainEnv(t, cfg)
			p := env.producer
			env.startCapture(t)

			dequeued := make([]uint64, cfg.MaxEventsPerRequest)
			batch := make([]*producerside.ProducerCaptureEvent, 0, cfg.MaxEventsPerRequest)
			arena := NewArena(cfg.ArenaBlockSize)
			stop := func() {
				env.stopCapture(t)
				require.Eventually(t, func() bool {
					return p.takeStatus(false) == statusShouldNotifyAllEventsSent
				}, waitFor, tick)
			}

			for k := range uint64(10) {
				p.EnqueueIntermediateEvent(k)
			}
			if tc.stopBeforeDrain {
				stop()
			}
			batch = p.drainQueue(dequeued, batch, arena)
			env.waitEvents(t, 10)
			if !tc.stopBeforeDrain {
				time.Sleep(settle)
				assert.Zero(t, env.collector.AllEventsSentReceived())
				stop()
				batch = p.drainQueue(dequeued, batch, arena)
			}
			env.waitAllEventsSent(t, 1)
			assert.Equal(t, statusShouldDrop, p.takeStatus(false))

			// Nothing is left to send or notify.
			p.drainQueue(dequeued, batch, arena)
			time.Sleep(settle)

			records := env.collector.Records()
			require.Len(t, records, 2)
			assert.Len(t, records[0].Events, 10)
			assert.True(t, records[1].AllEventsSent)
			assert.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, receivedKeys(env.collector))
		})
	}
}

func TestShutdownDuringCapture(t *testing.T) {
	collector := fakecollector.StartInProcess()
	t.Cleanup(collector.Stop)
	conn, err := collector.Dial()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	p, err := New(TranslatorFunc[uint64](keyTranslator), DefaultConfig())
	require.NoError(t, err)
	p.BuildAndStart(conn)
	require.Eventually(t, func() bool { return collector.Connections() == 1 }, waitFor, tick)
	require.True(t, collector.SendStartCaptureCommand(fakeCaptureOptions))
	require.Eventually(t, p.IsCapturing, waitFor, tick)

	var enqueuing errgroup.Group
	done := make(chan struct{})
	enqueuing.Go(func() error {
		for k := uint64(0); ; k++ {
			select {
			case <-done:
				return nil
			default:
				p.EnqueueIntermediateEvent(k)
				if k%64 == 0 {
					time.Sleep(time.Microsecond)
				}
			}
		}
	})
	require.Eventually(t, func() bool { return collector.CaptureEventsReceived() > 0 }, waitFor, tick)

	failures := metrics.Value(metrics.IDSendFailures)
	p.ShutdownAndWait()
	assert.Equal(t, failures, metrics.Value(metrics.IDSendFailures))
	assert.False(t, p.IsCapturing())
	select {
	case <-p.forwarderDone:
	default:
		t.Fatal("forwarder still running after ShutdownAndWait")
	}
	close(done)
	require.NoError(t, enqueuing.Wait())

	time.Sleep(settle)
	received := collector.CaptureEventsReceived()
	time.Sleep(settle)
	assert.Equal(t, received, collector.CaptureEventsReceived())
	assert.Zero(t, collector.AllEventsSentReceived())
	assert.Equal(t, failures, metrics.Value(metrics.IDSendFailures))
}

func TestBuildAndStartWithNilChannel(t *testing.T) {
	p, err := New(TranslatorFunc[uint64](keyTranslator), DefaultConfig())
	require.NoError(t, err)

	assert.Panics(t, func() { p.BuildAndStart(nil) })
	assert.False(t, p.started.Load())
	p.ShutdownAndWait()
	select {
	case <-p.forwarderDone:
		t.Fatal("forwarder started without a channel")
	default:
	}
}

func TestSkippedTranslations(t *testing.T) {
	evenOnly := TranslatorFunc[uint64](func(event uint64, arena *Arena) *producerside.ProducerCaptureEvent {
		if event%2 == 1 {
			return nil
		}
		return keyTranslator(event, arena)
	})
	env := newTestEnv(t, DefaultConfig(), evenOnly)
	env.startCapture(t)

	for k := range uint64(6) {
		env.producer.EnqueueIntermediateEvent(k)
	}
	env.waitEvents(t, 3)
	env.stopCapture(t)
	env.waitAllEventsSent(t, 1)
	assert.Equal(t, []uint64{0, 2, 4}, receivedKeys(env.collector))
}

func TestServiceDisconnect(t *testing.T) {
	var stops, finishes atomic.Int32
	observer := &countingObserver{stops: &stops, finishes: &finishes}
	env := newTestEnv(t, DefaultConfig(), nil, WithCaptureObserver(observer))
	env.startCapture(t)

	for k := range uint64(3) {
		env.producer.EnqueueIntermediateEvent(k)
	}
	env.waitEvents(t, 3)

	env.collector.FinishAndDisallowRpc()
	require.Eventually(t, func() bool { return finishes.Load() == 1 }, waitFor, tick)
	assert.Equal(t, int32(1), stops.Load())
	assert.False(t, env.producer.IsCapturing())

	// The stream is gone, so AllEventsSent cannot reach the collector.
	time.Sleep(settle)
	assert.Zero(t, env.collector.AllEventsSentReceived())
	assert.False(t, env.producer.EnqueueIntermediateEventIfCapturing(func() uint64 { return 0 }))
}

func TestDisconnectAndReconnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Producer.ReconnectionDelay = time.Hour
	env := newTestEnv(t, cfg, nil)
	env.producer.SetReconnectionDelay(20 * time.Millisecond)
	env.startCapture(t)
	env.producer.EnqueueIntermediateEvent(1)
	env.waitEvents(t, 1)

	env.collector.FinishAndDisallowRpc()
	require.Eventually(t, func() bool { return !env.producer.IsCapturing() }, waitFor, tick)
	env.collector.ReAllowRpc()
	require.Eventually(t, func() bool { return env.collector.Connections() == 1 }, waitFor, tick)

	env.startCapture(t)
	env.producer.EnqueueIntermediateEvent(2)
	env.waitEvents(t, 2)
	env.stopCapture(t)
	env.waitAllEventsSent(t, 1)
	assert.Equal(t, []uint64{1, 2}, receivedKeys(env.collector))
}

func TestObserverSeesUpdatedStatus(t *testing.T) {
	var p *LockFreeBufferProducer[uint64]
	statuses := make(chan forwarderStatus, 3)
	observer := &funcObserver{
		onStart:    func() { statuses <- p.takeStatus(false) },
		onStop:     func() { statuses <- p.takeStatus(false) },
		onFinished: func() { statuses <- p.takeStatus(false) },
	}

	var err error
	p, err = New[uint64](TranslatorFunc[uint64](keyTranslator), DefaultConfig(), WithCaptureObserver(observer))
	require.NoError(t, err)

	hooks := captureHooks[uint64]{p}
	hooks.OnCaptureStart(fakeCaptureOptions)
	hooks.OnCaptureStop()
	hooks.OnCaptureFinished()
	assert.Equal(t, statusShouldSend, <-statuses)
	assert.Equal(t, statusShouldNotifyAllEventsSent, <-statuses)
	assert.Equal(t, statusShouldDrop, <-statuses)
}

func TestTakeStatus(t *testing.T) {
	tests := map[string]struct {
		status       forwarderStatus
		queueEmptied bool
		next         forwarderStatus
	}{
		"drop":                 {status: statusShouldDrop, queueEmptied: true, next: statusShouldDrop},
		"send":                 {status: statusShouldSend, queueEmptied: true, next: statusShouldSend},
		"notify pending":       {status: statusShouldNotifyAllEventsSent, next: statusShouldNotifyAllEventsSent},
		"notify queue emptied": {status: statusShouldNotifyAllEventsSent, queueEmptied: true, next: statusShouldDrop},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			p := &LockFreeBufferProducer[uint64]{status: tc.status}
			assert.Equal(t, tc.status, p.takeStatus(tc.queueEmptied))
			assert.Equal(t, tc.next, p.status)
		})
	}
}

type countingObserver struct {
	stops    *atomic.Int32
	finishes *atomic.Int32
}

func (o *countingObserver) OnCaptureStart(*producerside.CaptureOptions) {}
func (o *countingObserver) OnCaptureStop()                              { o.stops.Add(1) }
func (o *countingObserver) OnCaptureFinished()                          { o.finishes.Add(1) }

type funcObserver struct {
	onStart, onStop, onFinished func()
}

func (o *funcObserver) OnCaptureStart(*producerside.CaptureOptions) { o.onStart() }
func (o *funcObserver) OnCaptureStop()                              { o.onStop() }
func (o *funcObserver) OnCaptureFinished()                          { o.onFinished() }

func TestSendBatchOfSkippedEvents(t *testing.T) {
	p := &LockFreeBufferProducer[uint64]{
		translator: TranslatorFunc[uint64](func(uint64, *Arena) *producerside.ProducerCaptureEvent {
			return nil
		}),
	}
	events := []uint64{1, 3, 5}
	batch, ok := p.sendBatch(events, make([]*producerside.ProducerCaptureEvent, 0, 3), NewArena(1))
	assert.True(t, ok)
	assert.Empty(t, batch)
	assert.Equal(t, []uint64{0, 0, 0}, events)
}
