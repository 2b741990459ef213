// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package producerside // import "go.opentelemetry.io/capture-producer/producerside"

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully qualified name of the collector service.
	ServiceName = "orbit_grpc_protos.ProducerSideService"

	// ReceiveCommandsAndSendEventsMethod is the full method name of the
	// bidirectional stream between producer and collector.
	ReceiveCommandsAndSendEventsMethod = "/" + ServiceName + "/ReceiveCommandsAndSendEvents"
)

// CommandStream is the producer end of the stream: requests go out, commands come in.
type CommandStream = grpc.BidiStreamingClient[Request, Response]

// EventStream is the collector end of the stream: commands go out, requests come in.
type EventStream = grpc.BidiStreamingServer[Request, Response]

// ProducerSideServiceClient opens streams towards a collector.
type ProducerSideServiceClient interface {
	ReceiveCommandsAndSendEvents(ctx context.Context, opts ...grpc.CallOption) (CommandStream, error)
}

type producerSideServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewProducerSideServiceClient returns a client that opens its streams on cc.
func NewProducerSideServiceClient(cc grpc.ClientConnInterface) ProducerSideServiceClient {
	return &producerSideServiceClient{cc: cc}
}

func (c *producerSideServiceClient) ReceiveCommandsAndSendEvents(ctx context.Context,
	opts ...grpc.CallOption) (CommandStream, error) {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0],
		ReceiveCommandsAndSendEventsMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[Request, Response]{ClientStream: stream}, nil
}

// ProducerSideServiceServer is implemented by collectors.
type ProducerSideServiceServer interface {
	// ReceiveCommandsAndSendEvents serves one producer connection. The
	// stream ends when the method returns.
	ReceiveCommandsAndSendEvents(EventStream) error
}

// RegisterProducerSideServiceServer registers srv with s.
func RegisterProducerSideServiceServer(s grpc.ServiceRegistrar, srv ProducerSideServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func receiveCommandsAndSendEventsHandler(srv any, stream grpc.ServerStream) error {
	return srv.(ProducerSideServiceServer).ReceiveCommandsAndSendEvents(
		&grpc.GenericServerStream[Request, Response]{ServerStream: stream})
}

// ServiceDesc describes ProducerSideService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProducerSideServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ReceiveCommandsAndSendEvents",
			Handler:       receiveCommandsAndSendEventsHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "producer_side_services.proto",
}
