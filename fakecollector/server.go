// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package fakecollector // import "go.opentelemetry.io/capture-producer/fakecollector"

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"go.opentelemetry.io/capture-producer/producerside"
)

const (
	bufconnSize = 1 << 20
	// MaxRecvMsgSize is large enough for a full batch of big events.
	MaxRecvMsgSize = 64 << 20
)

// NewServer returns a gRPC server with c registered.
func NewServer(c *Collector, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.MaxRecvMsgSize(MaxRecvMsgSize)}, opts...)
	server := grpc.NewServer(opts...)
	producerside.RegisterProducerSideServiceServer(server, c)
	return server
}

// InProcess runs a Collector on an in-memory listener.
type InProcess struct {
	*Collector

	server *grpc.Server
	lis    *bufconn.Listener
}

// StartInProcess starts serving a new Collector in the background.
func StartInProcess() *InProcess {
	c := New()
	p := &InProcess{
		Collector: c,
		server:    NewServer(c),
		lis:       bufconn.Listen(bufconnSize),
	}
	go func() {
		_ = p.server.Serve(p.lis)
	}()
	return p
}

// Dial returns a client connection to the in-process collector.
func (p *InProcess) Dial(opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return p.lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	return grpc.NewClient("passthrough:///fakecollector", opts...)
}

// Stop closes all streams and the listener.
func (p *InProcess) Stop() {
	p.server.Stop()
}
