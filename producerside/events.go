// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ProducerCaptureEvent is a single event emitted by a producer during a capture.
type ProducerCaptureEvent struct {
	// Event is one of *InternedString, *ThreadName, *FunctionCall,
	// *APIScopeStart, *APIScopeStop or *WarningEvent.
	Event CaptureEventPayload
}

// CaptureEventPayload is the set of event kinds a ProducerCaptureEvent carries.
type CaptureEventPayload interface {
	message
	captureEventField() protowire.Number
}

const (
	fieldEventInternedString protowire.Number = 1
	fieldEventThreadName     protowire.Number = 2
	fieldEventFunctionCall   protowire.Number = 3
	fieldEventAPIScopeStart  protowire.Number = 4
	fieldEventAPIScopeStop   protowire.Number = 5
	fieldEventWarning        protowire.Number = 6
)

// InternedString maps Key to Intern for the remainder of a capture. Other
// events refer to the string by Key only.
type InternedString struct {
	Key    uint64
	Intern string
}

// ThreadName reports the name of a thread.
type ThreadName struct {
	Pid         int32
	Tid         int32
	Name        string
	TimestampNs uint64
}

// FunctionCall reports a completed call of an instrumented function.
type FunctionCall struct {
	Pid            int32
	Tid            int32
	FunctionID     uint64
	DurationNs     uint64
	EndTimestampNs uint64
	Depth          int32
	ReturnValue    uint64
	Registers      []uint64
}

// APIScopeStart opens a manually instrumented scope. The scope name is
// referenced through EncodedNameKey, a key previously sent as InternedString.
type APIScopeStart struct {
	Pid            int32
	Tid            int32
	TimestampNs    uint64
	EncodedNameKey uint64
	ColorRGBA      uint32
	GroupID        uint64
}

// APIScopeStop closes the innermost open scope of a thread.
type APIScopeStop struct {
	Pid         int32
	Tid         int32
	TimestampNs uint64
}

// WarningEvent carries a message for the user of the collector.
type WarningEvent struct {
	TimestampNs uint64
	Message     string
}

func (*InternedString) captureEventField() protowire.Number { return fieldEventInternedString }
func (*ThreadName) captureEventField() protowire.Number     { return fieldEventThreadName }
func (*FunctionCall) captureEventField() protowire.Number   { return fieldEventFunctionCall }
func (*APIScopeStart) captureEventField() protowire.Number  { return fieldEventAPIScopeStart }
func (*APIScopeStop) captureEventField() protowire.Number   { return fieldEventAPIScopeStop }
func (*WarningEvent) captureEventField() protowire.Number   { return fieldEventWarning }

// GetInternedString returns the payload if it is an InternedString, nil otherwise.
func (e *ProducerCaptureEvent) GetInternedString() *InternedString {
	if s, ok := e.Event.(*InternedString); ok {
		return s
	}
	return nil
}

func (e *ProducerCaptureEvent) size() int {
	if e.Event == nil {
		return 0
	}
	return sizeMessageField(e.Event.captureEventField(), e.Event)
}

func (e *ProducerCaptureEvent) appendFields(b []byte) []byte {
	if e.Event == nil {
		return b
	}
	return appendMessageField(b, e.Event.captureEventField(), e.Event)
}

func (e *ProducerCaptureEvent) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var payload CaptureEventPayload
		switch num {
		case fieldEventInternedString:
			payload = &InternedString{}
		case fieldEventThreadName:
			payload = &ThreadName{}
		case fieldEventFunctionCall:
			payload = &FunctionCall{}
		case fieldEventAPIScopeStart:
			payload = &APIScopeStart{}
		case fieldEventAPIScopeStop:
			payload = &APIScopeStop{}
		case fieldEventWarning:
			payload = &WarningEvent{}
		default:
			return 0, nil
		}
		n, err := consumeSubMessage(typ, b, payload)
		if err != nil {
			return 0, err
		}
		e.Event = payload
		return n, nil
	})
}

// Marshal encodes e in protobuf wire format.
func (e *ProducerCaptureEvent) Marshal() ([]byte, error) {
	return e.appendFields(make([]byte, 0, e.size())), nil
}

// Unmarshal replaces e with the event decoded from b.
func (e *ProducerCaptureEvent) Unmarshal(b []byte) error {
	*e = ProducerCaptureEvent{}
	return e.consumeFields(b)
}

func (e *ProducerCaptureEvent) String() string {
	if e.Event == nil {
		return "ProducerCaptureEvent{}"
	}
	return fmt.Sprintf("ProducerCaptureEvent{%T%+v}", e.Event, e.Event)
}

func (s *InternedString) size() int {
	return sizeVarintField(1, s.Key) + sizeStringField(2, s.Intern)
}

func (s *InternedString) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, s.Key)
	return appendStringField(b, 2, s.Intern)
}

func (s *InternedString) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &s.Key)
		case 2:
			return consumeString(typ, b, &s.Intern)
		}
		return 0, nil
	})
}

func (t *ThreadName) size() int {
	return sizeVarintField(1, int32Bits(t.Pid)) +
		sizeVarintField(2, int32Bits(t.Tid)) +
		sizeStringField(3, t.Name) +
		sizeVarintField(4, t.TimestampNs)
}

func (t *ThreadName) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, int32Bits(t.Pid))
	b = appendVarintField(b, 2, int32Bits(t.Tid))
	b = appendStringField(b, 3, t.Name)
	return appendVarintField(b, 4, t.TimestampNs)
}

func (t *ThreadName) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &t.Pid)
		case 2:
			return consumeInt32(typ, b, &t.Tid)
		case 3:
			return consumeString(typ, b, &t.Name)
		case 4:
			return consumeVarint(typ, b, &t.TimestampNs)
		}
		return 0, nil
	})
}

func (f *FunctionCall) size() int {
	return sizeVarintField(1, int32Bits(f.Pid)) +
		sizeVarintField(2, int32Bits(f.Tid)) +
		sizeVarintField(3, f.FunctionID) +
		sizeVarintField(4, f.DurationNs) +
		sizeVarintField(5, f.EndTimestampNs) +
		sizeVarintField(6, int32Bits(f.Depth)) +
		sizeVarintField(7, f.ReturnValue) +
		sizePackedVarints(8, f.Registers)
}

func (f *FunctionCall) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, int32Bits(f.Pid))
	b = appendVarintField(b, 2, int32Bits(f.Tid))
	b = appendVarintField(b, 3, f.FunctionID)
	b = appendVarintField(b, 4, f.DurationNs)
	b = appendVarintField(b, 5, f.EndTimestampNs)
	b = appendVarintField(b, 6, int32Bits(f.Depth))
	b = appendVarintField(b, 7, f.ReturnValue)
	return appendPackedVarints(b, 8, f.Registers)
}

func (f *FunctionCall) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &f.Pid)
		case 2:
			return consumeInt32(typ, b, &f.Tid)
		case 3:
			return consumeVarint(typ, b, &f.FunctionID)
		case 4:
			return consumeVarint(typ, b, &f.DurationNs)
		case 5:
			return consumeVarint(typ, b, &f.EndTimestampNs)
		case 6:
			return consumeInt32(typ, b, &f.Depth)
		case 7:
			return consumeVarint(typ, b, &f.ReturnValue)
		case 8:
			return consumeRepeatedVarint(typ, b, &f.Registers)
		}
		return 0, nil
	})
}

func (s *APIScopeStart) size() int {
	return sizeVarintField(1, int32Bits(s.Pid)) +
		sizeVarintField(2, int32Bits(s.Tid)) +
		sizeVarintField(3, s.TimestampNs) +
		sizeVarintField(4, s.EncodedNameKey) +
		sizeVarintField(5, uint64(s.ColorRGBA)) +
		sizeVarintField(6, s.GroupID)
}

func (s *APIScopeStart) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, int32Bits(s.Pid))
	b = appendVarintField(b, 2, int32Bits(s.Tid))
	b = appendVarintField(b, 3, s.TimestampNs)
	b = appendVarintField(b, 4, s.EncodedNameKey)
	b = appendVarintField(b, 5, uint64(s.ColorRGBA))
	return appendVarintField(b, 6, s.GroupID)
}

func (s *APIScopeStart) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &s.Pid)
		case 2:
			return consumeInt32(typ, b, &s.Tid)
		case 3:
			return consumeVarint(typ, b, &s.TimestampNs)
		case 4:
			return consumeVarint(typ, b, &s.EncodedNameKey)
		case 5:
			return consumeUint32(typ, b, &s.ColorRGBA)
		case 6:
			return consumeVarint(typ, b, &s.GroupID)
		}
		return 0, nil
	})
}

func (s *APIScopeStop) size() int {
	return sizeVarintField(1, int32Bits(s.Pid)) +
		sizeVarintField(2, int32Bits(s.Tid)) +
		sizeVarintField(3, s.TimestampNs)
}

func (s *APIScopeStop) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, int32Bits(s.Pid))
	b = appendVarintField(b, 2, int32Bits(s.Tid))
	return appendVarintField(b, 3, s.TimestampNs)
}

func (s *APIScopeStop) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(typ, b, &s.Pid)
		case 2:
			return consumeInt32(typ, b, &s.Tid)
		case 3:
			return consumeVarint(typ, b, &s.TimestampNs)
		}
		return 0, nil
	})
}

func (w *WarningEvent) size() int {
	return sizeVarintField(1, w.TimestampNs) + sizeStringField(2, w.Message)
}

func (w *WarningEvent) appendFields(b []byte) []byte {
	b = appendVarintField(b, 1, w.TimestampNs)
	return appendStringField(b, 2, w.Message)
}

func (w *WarningEvent) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarint(typ, b, &w.TimestampNs)
		case 2:
			return consumeString(typ, b, &w.Message)
		}
		return 0, nil
	})
}
