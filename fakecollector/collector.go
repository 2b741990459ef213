// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package fakecollector provides a collector double speaking the producer
// side protocol. It sends capture commands on demand and records what
// producers send back.
package fakecollector // import "go.opentelemetry.io/capture-producer/fakecollector"

import (
	"errors"
	"io"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/capture-producer/internal/log"
	"go.opentelemetry.io/capture-producer/producerside"
)

// Record is a single request received from a producer.
type Record struct {
	// Events holds the batch of a BufferedCaptureEvents request.
	Events []*producerside.ProducerCaptureEvent
	// AllEventsSent is set for AllEventsSent requests.
	AllEventsSent bool
}

type connection struct {
	stream producerside.EventStream
	// done is closed to end the stream from the collector side.
	done chan struct{}

	// mu serializes sends and guards closed. Nothing is written to the
	// stream once closed is set.
	mu     sync.Mutex
	closed bool
}

func (conn *connection) send(resp *producerside.Response) error {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if conn.closed {
		return errConnectionClosed
	}
	return conn.stream.Send(resp)
}

// close waits for an ongoing send and ends the stream handler.
func (conn *connection) close() {
	conn.mu.Lock()
	defer conn.mu.Unlock()
	if !conn.closed {
		conn.closed = true
		close(conn.done)
	}
}

var errConnectionClosed = errors.New("connection closed")

// Collector implements producerside.ProducerSideServiceServer.
type Collector struct {
	mu          sync.Mutex
	rpcAllowed  bool
	conns       map[*connection]struct{}
	records     []Record
	events      int
	producerIDs []string

	onCaptureEventsReceived func([]*producerside.ProducerCaptureEvent)
	onAllEventsSentReceived func()
}

var _ producerside.ProducerSideServiceServer = (*Collector)(nil)

// New returns a collector accepting streams.
func New() *Collector {
	return &Collector{
		rpcAllowed: true,
		conns:      make(map[*connection]struct{}),
	}
}

// ReceiveCommandsAndSendEvents serves a producer until it disconnects or
// FinishAndDisallowRpc is called.
func (c *Collector) ReceiveCommandsAndSendEvents(stream producerside.EventStream) error {
	conn := &connection{stream: stream, done: make(chan struct{})}

	c.mu.Lock()
	if !c.rpcAllowed {
		c.mu.Unlock()
		return status.Error(codes.Unavailable, "collector does not accept producers")
	}
	c.conns[conn] = struct{}{}
	if md, ok := metadata.FromIncomingContext(stream.Context()); ok {
		c.producerIDs = append(c.producerIDs, md.Get("producer-id")...)
	}
	c.mu.Unlock()

	recvErr := make(chan error, 1)
	go func() {
		for {
			req, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			c.handleRequest(conn, req)
		}
	}()

	var err error
	select {
	case <-conn.done:
	case err = <-recvErr:
		if errors.Is(err, io.EOF) {
			err = nil
		}
	case <-stream.Context().Done():
	}
	conn.close()

	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	return err
}

func (c *Collector) handleRequest(conn *connection, req *producerside.Request) {
	c.mu.Lock()
	if _, ok := c.conns[conn]; !ok {
		c.mu.Unlock()
		return
	}

	switch ev := req.Event.(type) {
	case *producerside.BufferedCaptureEvents:
		c.records = append(c.records, Record{Events: ev.CaptureEvents})
		c.events += len(ev.CaptureEvents)
		cb := c.onCaptureEventsReceived
		c.mu.Unlock()
		if cb != nil {
			cb(ev.CaptureEvents)
		}
	case *producerside.AllEventsSent:
		c.records = append(c.records, Record{AllEventsSent: true})
		cb := c.onAllEventsSentReceived
		c.mu.Unlock()
		if cb != nil {
			cb()
		}
	default:
		c.mu.Unlock()
		log.Warnf("Producer sent a request without an event")
	}
}

// broadcast sends resp to every open stream. A producer that stops reading
// commands only blocks the commands sent to it.
func (c *Collector) broadcast(resp *producerside.Response) bool {
	c.mu.Lock()
	conns := make([]*connection, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	sent := false
	for _, conn := range conns {
		if err := conn.send(resp); err != nil {
			log.Warnf("Sending command to producer: %v", err)
			continue
		}
		sent = true
	}
	return sent
}

// SendStartCaptureCommand sends StartCapture to every connected producer and
// reports whether at least one producer received it.
func (c *Collector) SendStartCaptureCommand(opts *producerside.CaptureOptions) bool {
	return c.broadcast(producerside.NewStartCaptureResponse(opts))
}

// SendStopCaptureCommand sends StopCapture to every connected producer.
func (c *Collector) SendStopCaptureCommand() bool {
	return c.broadcast(producerside.NewStopCaptureResponse())
}

// SendCaptureFinishedCommand sends CaptureFinished to every connected producer.
func (c *Collector) SendCaptureFinishedCommand() bool {
	return c.broadcast(producerside.NewCaptureFinishedResponse())
}

// SendUnsetCommand sends a message without any command set.
func (c *Collector) SendUnsetCommand() bool {
	return c.broadcast(&producerside.Response{})
}

// FinishAndDisallowRpc ends all open streams and rejects new ones until
// ReAllowRpc is called. No command reaches the ended streams once it returns.
func (c *Collector) FinishAndDisallowRpc() {
	c.mu.Lock()
	c.rpcAllowed = false
	conns := make([]*connection, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
		delete(c.conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		conn.close()
	}
}

// ReAllowRpc makes the collector accept streams again.
func (c *Collector) ReAllowRpc() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rpcAllowed = true
}

// Connections returns the number of open streams.
func (c *Collector) Connections() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// CaptureEventsReceived returns the number of events received so far.
func (c *Collector) CaptureEventsReceived() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events
}

// BatchesReceived returns the number of BufferedCaptureEvents requests received.
func (c *Collector) BatchesReceived() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if !r.AllEventsSent {
			n++
		}
	}
	return n
}

// AllEventsSentReceived returns the number of AllEventsSent requests received.
func (c *Collector) AllEventsSentReceived() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if r.AllEventsSent {
			n++
		}
	}
	return n
}

// Records returns the requests received so far, in order of arrival.
func (c *Collector) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

// Events returns all received events in order of arrival.
func (c *Collector) Events() []*producerside.ProducerCaptureEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	events := make([]*producerside.ProducerCaptureEvent, 0, c.events)
	for _, r := range c.records {
		events = append(events, r.Events...)
	}
	return events
}

// ProducerIDs returns the producer-id metadata of every stream accepted so far.
func (c *Collector) ProducerIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.producerIDs...)
}

// OnCaptureEventsReceived installs a callback invoked for every received batch.
func (c *Collector) OnCaptureEventsReceived(fn func([]*producerside.ProducerCaptureEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCaptureEventsReceived = fn
}

// OnAllEventsSentReceived installs a callback invoked for every AllEventsSent.
func (c *Collector) OnAllEventsSentReceived(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAllEventsSentReceived = fn
}

// Reset forgets all received requests.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.events = 0
}
