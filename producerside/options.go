// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import "google.golang.org/protobuf/encoding/protowire"

// CaptureOptions are the settings the collector attaches to a StartCapture
// command.
type CaptureOptions struct {
	// Pid of the process being captured.
	Pid int32
	// SamplesPerSecond is the callstack sampling rate.
	SamplesPerSecond float64
	// StackDumpSize is the number of stack bytes copied per sample.
	StackDumpSize uint32
	// TraceThreadState enables thread state change events.
	TraceThreadState bool
	// EnableAPI enables manual instrumentation events.
	EnableAPI bool
}

const (
	fieldOptionsPid              protowire.Number = 1
	fieldOptionsSamplesPerSecond protowire.Number = 2
	fieldOptionsStackDumpSize    protowire.Number = 3
	fieldOptionsTraceThreadState protowire.Number = 4
	fieldOptionsEnableAPI        protowire.Number = 5
)

func (o *CaptureOptions) size() int {
	return sizeVarintField(fieldOptionsPid, int32Bits(o.Pid)) +
		sizeDoubleField(fieldOptionsSamplesPerSecond, o.SamplesPerSecond) +
		sizeVarintField(fieldOptionsStackDumpSize, uint64(o.StackDumpSize)) +
		sizeVarintField(fieldOptionsTraceThreadState, boolBits(o.TraceThreadState)) +
		sizeVarintField(fieldOptionsEnableAPI, boolBits(o.EnableAPI))
}

func (o *CaptureOptions) appendFields(b []byte) []byte {
	b = appendVarintField(b, fieldOptionsPid, int32Bits(o.Pid))
	b = appendDoubleField(b, fieldOptionsSamplesPerSecond, o.SamplesPerSecond)
	b = appendVarintField(b, fieldOptionsStackDumpSize, uint64(o.StackDumpSize))
	b = appendVarintField(b, fieldOptionsTraceThreadState, boolBits(o.TraceThreadState))
	return appendVarintField(b, fieldOptionsEnableAPI, boolBits(o.EnableAPI))
}

func (o *CaptureOptions) consumeFields(b []byte) error {
	return consumeMessage(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case fieldOptionsPid:
			return consumeInt32(typ, b, &o.Pid)
		case fieldOptionsSamplesPerSecond:
			return consumeDouble(typ, b, &o.SamplesPerSecond)
		case fieldOptionsStackDumpSize:
			return consumeUint32(typ, b, &o.StackDumpSize)
		case fieldOptionsTraceThreadState:
			return consumeBool(typ, b, &o.TraceThreadState)
		case fieldOptionsEnableAPI:
			return consumeBool(typ, b, &o.EnableAPI)
		}
		return 0, nil
	})
}

// Marshal encodes o in protobuf wire format.
func (o *CaptureOptions) Marshal() ([]byte, error) {
	return o.appendFields(make([]byte, 0, o.size())), nil
}

// Unmarshal replaces o with the options decoded from b.
func (o *CaptureOptions) Unmarshal(b []byte) error {
	*o = CaptureOptions{}
	return o.consumeFields(b)
}
