// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the gRPC content subtype under which the producer side
// messages are exchanged.
const CodecName = "producerside"

// Marshaler is implemented by every message exchanged on the producer side stream.
type Marshaler interface {
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Marshaler)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", CodecName, v)
	}
	return m.Marshal()
}

func (codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Marshaler)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", CodecName, v)
	}
	return m.Unmarshal(data)
}

func (codec) Name() string {
	return CodecName
}

func init() {
	encoding.RegisterCodec(codec{})
}
