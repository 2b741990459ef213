// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producer // import "go.opentelemetry.io/capture-producer/producer"

import "go.opentelemetry.io/capture-producer/producerside"

// CaptureObserver receives the capture lifecycle of a producer. The hooks are
// invoked from the producer's connection goroutine and always in the order
// start, stop, finished. Implementations must not block for long and must not
// call back into ShutdownAndWait.
type CaptureObserver interface {
	OnCaptureStart(opts *producerside.CaptureOptions)
	OnCaptureStop()
	OnCaptureFinished()
}

// command is the last capture command applied to the observer.
type command uint32

const (
	commandCaptureFinished command = iota
	commandStartCapture
	commandStopCapture
	numCommands
)

func (c command) String() string {
	switch c {
	case commandCaptureFinished:
		return "CaptureFinished"
	case commandStartCapture:
		return "StartCapture"
	case commandStopCapture:
		return "StopCapture"
	}
	return "Unknown"
}

type hook uint8

const (
	hookStart hook = iota
	// hookStartDefault starts a capture the collector never announced.
	hookStartDefault
	hookStop
	hookFinished
)

// transitions lists the hooks to run for transitions[last][incoming]. An
// empty list marks a duplicate command, which is dropped.
//
// Commands skipped by the collector are filled in, so the observer always
// sees a complete start, stop, finished sequence.
var transitions = [numCommands][numCommands][]hook{
	commandCaptureFinished: {
		commandStartCapture: {hookStart},
		commandStopCapture:  {hookStartDefault, hookStop},
	},
	commandStartCapture: {
		commandStopCapture:     {hookStop},
		commandCaptureFinished: {hookStop, hookFinished},
	},
	commandStopCapture: {
		commandStartCapture:    {hookFinished, hookStart},
		commandCaptureFinished: {hookFinished},
	},
}

// applyHooks drives observer through hooks. opts is only used by hookStart.
func applyHooks(observer CaptureObserver, hooks []hook, opts *producerside.CaptureOptions) {
	for _, h := range hooks {
		switch h {
		case hookStart:
			observer.OnCaptureStart(opts)
		case hookStartDefault:
			observer.OnCaptureStart(&producerside.CaptureOptions{})
		case hookStop:
			observer.OnCaptureStop()
		case hookFinished:
			observer.OnCaptureFinished()
		}
	}
}
