// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import "google.golang.org/protobuf/encoding/protowire"

// Request is a message a producer writes to the stream.
type Request struct {
	// Event is either *BufferedCaptureEvents or *AllEventsSent.
	Event RequestEvent
}

// RequestEvent is the set of payloads a Request carries.
type RequestEvent interface {
	message
	requestField() protowire.Number
}

// BufferedCaptureEvents is a batch of capture events.
type BufferedCaptureEvents struct {
	CaptureEvents []*ProducerCaptureEvent
}

// AllEventsSent tells the collector that the producer has flushed every
// event of the capture that is being stopped.
type AllEventsSent struct{}

const (
	fieldRequestBufferedCaptureEvents protowire.Number = 1
	fieldRequestAllEventsSent         protowire.Number = 2

	fieldBufferedCaptureEvents protowire.Number = 1
)

func (*BufferedCaptureEvents) requestField() protowire.Number { return fieldRequestBufferedCaptureEvents }
func (*AllEventsSent) requestField() protowire.Number         { return fieldRequestAllEventsSent }

// NewBufferedCaptureEventsRequest wraps events into a Request.
func NewBufferedCaptureEventsRequest(events []*ProducerCaptureEvent) *Request {
	return &Request{Event: &BufferedCaptureEvents{CaptureEvents: events}}
}

// NewAllEventsSentRequest returns the Request marking the end of a capture's events.
func NewAllEventsSentRequest() *Request {
	return &Request{Event: &AllEventsSent{}}
}

// GetBufferedCaptureEvents returns the batch carried by r, or nil.
func (r *Request) GetBufferedCaptureEvents() *BufferedCaptureEvents {
	if e, ok := r.Event.(*BufferedCaptureEvents); ok {
		return e
	}
	return nil
}

// IsAllEventsSent reports whether r carries AllEventsSent.
func (r *Request) IsAllEventsSent() bool {
	_, ok := r.Event.(*AllEventsSent)
	return ok
}

func (r *Request) size() int {
	if r.Event == nil {
		return 0
	}
	return sizeMessageField(r.Event.requestField(), r.Event)
}

func (r *Request) appendFields(b []byte) []byte {
	if r.Event == nil {
		return b
	}
	return appendMessageField(b, r.Event.requestField(), r.Event)
}

func (r *Request) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var ev RequestEvent
		switch num {
		case fieldRequestBufferedCaptureEvents:
			ev = &BufferedCaptureEvents{}
		case fieldRequestAllEventsSent:
			ev = &AllEventsSent{}
		default:
			return 0, nil
		}
		n, err := consumeSubMessage(typ, b, ev)
		if err != nil {
			return 0, err
		}
		r.Event = ev
		return n, nil
	})
}

// Marshal encodes r in protobuf wire format.
func (r *Request) Marshal() ([]byte, error) {
	return r.appendFields(make([]byte, 0, r.size())), nil
}

// Unmarshal replaces r with the request decoded from b.
func (r *Request) Unmarshal(b []byte) error {
	*r = Request{}
	return r.consumeFields(b)
}

func (e *BufferedCaptureEvents) size() int {
	n := 0
	for _, ev := range e.CaptureEvents {
		n += sizeMessageField(fieldBufferedCaptureEvents, ev)
	}
	return n
}

func (e *BufferedCaptureEvents) appendFields(b []byte) []byte {
	for _, ev := range e.CaptureEvents {
		b = appendMessageField(b, fieldBufferedCaptureEvents, ev)
	}
	return b
}

func (e *BufferedCaptureEvents) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldBufferedCaptureEvents {
			return 0, nil
		}
		ev := &ProducerCaptureEvent{}
		n, err := consumeSubMessage(typ, b, ev)
		if err != nil {
			return 0, err
		}
		e.CaptureEvents = append(e.CaptureEvents, ev)
		return n, nil
	})
}

func (*AllEventsSent) size() int                    { return 0 }
func (*AllEventsSent) appendFields(b []byte) []byte { return b }
func (*AllEventsSent) consumeFields(b []byte) error { return skipAll(b) }

// Response is a command the collector writes to the stream.
type Response struct {
	// Command is one of *StartCaptureCommand, *StopCaptureCommand or
	// *CaptureFinishedCommand. A nil Command is a message with no command set.
	Command ResponseCommand
}

// ResponseCommand is the set of commands a Response carries.
type ResponseCommand interface {
	message
	responseField() protowire.Number
}

// StartCaptureCommand asks the producer to start producing events.
type StartCaptureCommand struct {
	CaptureOptions *CaptureOptions
}

// StopCaptureCommand asks the producer to flush its events and send AllEventsSent.
type StopCaptureCommand struct{}

// CaptureFinishedCommand tells the producer that the collector is done with
// the capture and that producer side state can be discarded.
type CaptureFinishedCommand struct{}

const (
	fieldResponseStartCapture    protowire.Number = 1
	fieldResponseStopCapture     protowire.Number = 2
	fieldResponseCaptureFinished protowire.Number = 3

	fieldStartCaptureOptions protowire.Number = 1
)

func (*StartCaptureCommand) responseField() protowire.Number    { return fieldResponseStartCapture }
func (*StopCaptureCommand) responseField() protowire.Number     { return fieldResponseStopCapture }
func (*CaptureFinishedCommand) responseField() protowire.Number { return fieldResponseCaptureFinished }

// NewStartCaptureResponse builds a StartCapture command.
func NewStartCaptureResponse(opts *CaptureOptions) *Response {
	return &Response{Command: &StartCaptureCommand{CaptureOptions: opts}}
}

// NewStopCaptureResponse builds a StopCapture command.
func NewStopCaptureResponse() *Response {
	return &Response{Command: &StopCaptureCommand{}}
}

// NewCaptureFinishedResponse builds a CaptureFinished command.
func NewCaptureFinishedResponse() *Response {
	return &Response{Command: &CaptureFinishedCommand{}}
}

func (r *Response) size() int {
	if r.Command == nil {
		return 0
	}
	return sizeMessageField(r.Command.responseField(), r.Command)
}

func (r *Response) appendFields(b []byte) []byte {
	if r.Command == nil {
		return b
	}
	return appendMessageField(b, r.Command.responseField(), r.Command)
}

func (r *Response) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var cmd ResponseCommand
		switch num {
		case fieldResponseStartCapture:
			cmd = &StartCaptureCommand{}
		case fieldResponseStopCapture:
			cmd = &StopCaptureCommand{}
		case fieldResponseCaptureFinished:
			cmd = &CaptureFinishedCommand{}
		default:
			return 0, nil
		}
		n, err := consumeSubMessage(typ, b, cmd)
		if err != nil {
			return 0, err
		}
		r.Command = cmd
		return n, nil
	})
}

// Marshal encodes r in protobuf wire format.
func (r *Response) Marshal() ([]byte, error) {
	return r.appendFields(make([]byte, 0, r.size())), nil
}

// Unmarshal replaces r with the response decoded from b.
func (r *Response) Unmarshal(b []byte) error {
	*r = Response{}
	return r.consumeFields(b)
}

func (c *StartCaptureCommand) size() int {
	if c.CaptureOptions == nil {
		return 0
	}
	return sizeMessageField(fieldStartCaptureOptions, c.CaptureOptions)
}

func (c *StartCaptureCommand) appendFields(b []byte) []byte {
	if c.CaptureOptions == nil {
		return b
	}
	return appendMessageField(b, fieldStartCaptureOptions, c.CaptureOptions)
}

func (c *StartCaptureCommand) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != fieldStartCaptureOptions {
			return 0, nil
		}
		opts := &CaptureOptions{}
		n, err := consumeSubMessage(typ, b, opts)
		if err != nil {
			return 0, err
		}
		c.CaptureOptions = opts
		return n, nil
	})
}

func (*StopCaptureCommand) size() int                    { return 0 }
func (*StopCaptureCommand) appendFields(b []byte) []byte { return b }
func (*StopCaptureCommand) consumeFields(b []byte) error { return skipAll(b) }

func (*CaptureFinishedCommand) size() int                    { return 0 }
func (*CaptureFinishedCommand) appendFields(b []byte) []byte { return b }
func (*CaptureFinishedCommand) consumeFields(b []byte) error { return skipAll(b) }

// skipAll validates b while ignoring every field.
func skipAll(b []byte) error {
	return consumeMessage(b, func(protowire.Number, protowire.Type, []byte) (int, error) {
		return 0, nil
	})
}
