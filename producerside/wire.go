// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// message is implemented by every type that travels on the producer side stream.
type message interface {
	// size returns the length of the encoded fields, without any tag or
	// length prefix of an enclosing message.
	size() int
	appendFields(b []byte) []byte
	consumeFields(b []byte) error
}

var errWireType = errors.New("unexpected wire type")

func sizeVarintField(num protowire.Number, v uint64) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeVarint(v)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// int32 values are sign extended to 64 bits, matching protobuf int32 encoding.
func int32Bits(v int32) uint64 { return uint64(int64(v)) }

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func sizeDoubleField(num protowire.Number, v float64) int {
	if v == 0 {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeFixed64()
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func sizeStringField(num protowire.Number, s string) int {
	if s == "" {
		return 0
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(len(s))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func sizePackedVarints(num protowire.Number, vs []uint64) int {
	if len(vs) == 0 {
		return 0
	}
	n := 0
	for _, v := range vs {
		n += protowire.SizeVarint(v)
	}
	return protowire.SizeTag(num) + protowire.SizeBytes(n)
}

func appendPackedVarints(b []byte, num protowire.Number, vs []uint64) []byte {
	if len(vs) == 0 {
		return b
	}
	n := 0
	for _, v := range vs {
		n += protowire.SizeVarint(v)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(n))
	for _, v := range vs {
		b = protowire.AppendVarint(b, v)
	}
	return b
}

// sizeMessageField is always non-zero: an empty sub message still marks
// which oneof member is set.
func sizeMessageField(num protowire.Number, m message) int {
	return protowire.SizeTag(num) + protowire.SizeBytes(m.size())
}

func appendMessageField(b []byte, num protowire.Number, m message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(m.size()))
	return m.appendFields(b)
}

// fieldConsumer decodes the value of a single field starting at b and
// returns the number of bytes consumed. Returning 0 without an error marks
// the field as unknown, in which case it is skipped.
type fieldConsumer func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func consumeMessage(b []byte, consume fieldConsumer) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := consume(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if n == 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = v
	return n, nil
}

func consumeInt32(typ protowire.Type, b []byte, dst *int32) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	*dst = int32(v)
	return n, err
}

func consumeUint32(typ protowire.Type, b []byte, dst *uint32) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	*dst = uint32(v)
	return n, err
}

func consumeBool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	var v uint64
	n, err := consumeVarint(typ, b, &v)
	*dst = v != 0
	return n, err
}

func consumeDouble(typ protowire.Type, b []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return 0, errWireType
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func consumeString(typ protowire.Type, b []byte, dst *string) (int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	*dst = string(v)
	return n, nil
}

// consumeRepeatedVarint accepts both the packed and the unpacked encoding.
func consumeRepeatedVarint(typ protowire.Type, b []byte, dst *[]uint64) (int, error) {
	if typ == protowire.VarintType {
		var v uint64
		n, err := consumeVarint(typ, b, &v)
		if err == nil {
			*dst = append(*dst, v)
		}
		return n, err
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*dst = append(*dst, v)
		packed = packed[m:]
	}
	return n, nil
}

func consumeSubMessage(typ protowire.Type, b []byte, m message) (int, error) {
	v, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if err := m.consumeFields(v); err != nil {
		return 0, err
	}
	return n, nil
}
