package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// The service uses only well-known types, so it is described by hand instead
// of through generated stubs:
//
//	service EventStream {
//	  rpc Subscribe(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
const (
	ServiceName      = "gonotify.v1.EventStream"
	subscribeMethod  = "/" + ServiceName + "/Subscribe"
	subscribeStream  = "Subscribe"
	protoDescription = "gonotify/v1/event_stream.proto"
)

// EventStreamServer is the server API for the EventStream service
type EventStreamServer interface {
	Subscribe(*emptypb.Empty, EventStream_SubscribeServer) error
}

type EventStream_SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type eventStreamSubscribeServer struct {
	grpc.ServerStream
}

func (x *eventStreamSubscribeServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EventStreamServer).Subscribe(m, &eventStreamSubscribeServer{stream})
}

var EventStreamServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventStreamServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    subscribeStream,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: protoDescription,
}

// RegisterEventStreamServer registers srv on s
func RegisterEventStreamServer(s grpc.ServiceRegistrar, srv EventStreamServer) {
	s.RegisterService(&EventStreamServiceDesc, srv)
}

type EventStream_SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type eventStreamSubscribeClient struct {
	grpc.ClientStream
}

func (x *eventStreamSubscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens the result stream on conn
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, opts ...grpc.CallOption) (EventStream_SubscribeClient, error) {
	stream, err := conn.NewStream(ctx, &EventStreamServiceDesc.Streams[0], subscribeMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &eventStreamSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
