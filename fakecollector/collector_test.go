// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package fakecollector

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"go.opentelemetry.io/capture-producer/producerside"
)

const waitFor = 5 * time.Second

func openStream(t *testing.T, p *InProcess, opts ...grpc.DialOption) (producerside.CommandStream,
	context.CancelFunc) {
	t.Helper()
	conn, err := p.Dial(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	ctx = metadata.AppendToOutgoingContext(ctx, "producer-id", "test-producer")
	stream, err := producerside.NewProducerSideServiceClient(conn).ReceiveCommandsAndSendEvents(ctx)
	require.NoError(t, err)
	return stream, cancel
}

func TestCommandsAndRequests(t *testing.T) {
	p := StartInProcess()
	defer p.Stop()

	stream, cancel := openStream(t, p)
	defer cancel()

	batches := make(chan int, 1)
	p.OnCaptureEventsReceived(func(events []*producerside.ProducerCaptureEvent) {
		batches <- len(events)
	})

	require.NoError(t, stream.Send(producerside.NewBufferedCaptureEventsRequest(
		[]*producerside.ProducerCaptureEvent{
			{Event: &producerside.InternedString{Key: 1, Intern: "a"}},
			{Event: &producerside.InternedString{Key: 2, Intern: "b"}},
		})))
	assert.Equal(t, 2, <-batches)
	require.Eventually(t, func() bool { return p.Connections() == 1 }, waitFor, time.Millisecond)

	require.True(t, p.SendStartCaptureCommand(&producerside.CaptureOptions{Pid: 42}))
	resp, err := stream.Recv()
	require.NoError(t, err)
	start, ok := resp.Command.(*producerside.StartCaptureCommand)
	require.True(t, ok)
	assert.Equal(t, int32(42), start.CaptureOptions.Pid)

	require.True(t, p.SendStopCaptureCommand())
	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.IsType(t, &producerside.StopCaptureCommand{}, resp.Command)

	require.NoError(t, stream.Send(producerside.NewAllEventsSentRequest()))
	require.Eventually(t, func() bool { return p.AllEventsSentReceived() == 1 }, waitFor, time.Millisecond)

	records := p.Records()
	require.Len(t, records, 2)
	assert.Len(t, records[0].Events, 2)
	assert.True(t, records[1].AllEventsSent)
	assert.Equal(t, 2, p.CaptureEventsReceived())
	assert.Equal(t, 1, p.BatchesReceived())
	assert.Equal(t, []string{"test-producer"}, p.ProducerIDs())

	p.Reset()
	assert.Empty(t, p.Records())
	assert.Empty(t, p.Events())
}

func TestFinishAndDisallowRpc(t *testing.T) {
	p := StartInProcess()
	defer p.Stop()

	stream, cancel := openStream(t, p)
	defer cancel()
	require.Eventually(t, func() bool { return p.Connections() == 1 }, waitFor, time.Millisecond)

	p.FinishAndDisallowRpc()
	_, err := stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
	assert.False(t, p.SendCaptureFinishedCommand())

	rejected, cancelRejected := openStream(t, p)
	defer cancelRejected()
	_, err = rejected.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))

	p.ReAllowRpc()
	accepted, cancelAccepted := openStream(t, p)
	defer cancelAccepted()
	require.Eventually(t, func() bool { return p.Connections() == 1 }, waitFor, time.Millisecond)
	require.True(t, p.SendUnsetCommand())
	resp, err := accepted.Recv()
	require.NoError(t, err)
	assert.Nil(t, resp.Command)
}

func TestStalledProducerDoesNotBlockOthers(t *testing.T) {
	p := StartInProcess()
	defer p.Stop()

	// A fixed window keeps the stalled stream from growing its buffer, so
	// sends to it block once the window is full.
	_, cancelStalled := openStream(t, p, grpc.WithInitialWindowSize(1<<16),
		grpc.WithInitialConnWindowSize(1<<16))
	defer cancelStalled()
	active, cancelActive := openStream(t, p)
	defer cancelActive()
	require.Eventually(t, func() bool { return p.Connections() == 2 }, waitFor, time.Millisecond)

	var g errgroup.Group
	g.Go(func() error {
		for {
			if _, err := active.Recv(); err != nil {
				return nil
			}
		}
	})
	var stop atomic.Bool
	g.Go(func() error {
		for !stop.Load() {
			p.SendStartCaptureCommand(&producerside.CaptureOptions{Pid: 42})
		}
		return nil
	})
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, active.Send(producerside.NewBufferedCaptureEventsRequest(
		[]*producerside.ProducerCaptureEvent{
			{Event: &producerside.InternedString{Key: 1, Intern: "a"}},
		})))
	require.Eventually(t, func() bool { return p.CaptureEventsReceived() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 2, p.Connections())

	stop.Store(true)
	cancelStalled()
	cancelActive()
	require.NoError(t, g.Wait())
}

func TestNoCommandsAfterFinishAndDisallowRpc(t *testing.T) {
	p := StartInProcess()
	defer p.Stop()

	stream, cancel := openStream(t, p)
	defer cancel()
	require.Eventually(t, func() bool { return p.Connections() == 1 }, waitFor, time.Millisecond)

	var g errgroup.Group
	recvErr := make(chan error, 1)
	g.Go(func() error {
		for {
			resp, err := stream.Recv()
			if err != nil {
				recvErr <- err
				return nil
			}
			if _, ok := resp.Command.(*producerside.StopCaptureCommand); !ok {
				return fmt.Errorf("unexpected command %T", resp.Command)
			}
		}
	})
	var stop atomic.Bool
	g.Go(func() error {
		for !stop.Load() {
			p.SendStopCaptureCommand()
		}
		return nil
	})

	time.Sleep(10 * time.Millisecond)
	p.FinishAndDisallowRpc()
	stop.Store(true)
	require.NoError(t, g.Wait())
	assert.ErrorIs(t, <-recvErr, io.EOF)
	assert.False(t, p.SendStopCaptureCommand())
}
