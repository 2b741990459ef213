// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package bufferproducer // import "go.opentelemetry.io/capture-producer/bufferproducer"

import (
	"unsafe"

	"go.opentelemetry.io/capture-producer/producerside"
)

// DefaultArenaBlockSize is the size of the block an Arena starts with.
const DefaultArenaBlockSize = 1 << 20

// Arena hands out capture events from preallocated blocks, so translating a
// batch does not allocate every event separately. The forwarder resets the
// arena once a batch has been written: events obtained from it must not be
// retained by the translator.
type Arena struct {
	blocks   [][]producerside.ProducerCaptureEvent
	current  int
	used     int
	perBlock int
}

// NewArena returns an arena whose blocks hold blockSize bytes of events.
func NewArena(blockSize int) *Arena {
	perBlock := max(1, blockSize/int(unsafe.Sizeof(producerside.ProducerCaptureEvent{})))
	return &Arena{
		blocks:   [][]producerside.ProducerCaptureEvent{make([]producerside.ProducerCaptureEvent, perBlock)},
		perBlock: perBlock,
	}
}

// NewCaptureEvent returns a zeroed event valid until the next Reset.
func (a *Arena) NewCaptureEvent() *producerside.ProducerCaptureEvent {
	if a.used == a.perBlock {
		a.current++
		a.used = 0
		if a.current == len(a.blocks) {
			a.blocks = append(a.blocks, make([]producerside.ProducerCaptureEvent, a.perBlock))
		}
	}
	ev := &a.blocks[a.current][a.used]
	a.used++
	return ev
}

// Len returns the number of events handed out since the last Reset.
func (a *Arena) Len() int {
	return a.current*a.perBlock + a.used
}

// Reset zeroes all handed out events and returns every block but the first.
func (a *Arena) Reset() {
	if a.current == 0 {
		clear(a.blocks[0][:a.used])
	} else {
		clear(a.blocks[0])
	}
	clear(a.blocks[1:])
	a.blocks = a.blocks[:1]
	a.current = 0
	a.used = 0
}
