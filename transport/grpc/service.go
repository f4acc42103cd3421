package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const deliverMethod = "/epidemic.v1.Replication/Deliver"

// replicationServer is the server side of the epidemic.v1.Replication
// service. Deliver carries one envelope per call.
type replicationServer interface {
	Deliver(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error)
}

var replicationServiceDesc = grpc.ServiceDesc{
	ServiceName: "epidemic.v1.Replication",
	HandlerType: (*replicationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Deliver", Handler: deliverHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "epidemic/v1/replication.proto",
}

func deliverHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(replicationServer).Deliver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: deliverMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(replicationServer).Deliver(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func invokeDeliver(ctx context.Context, conn grpc.ClientConnInterface, b []byte) error {
	return conn.Invoke(ctx, deliverMethod, wrapperspb.Bytes(b), new(emptypb.Empty))
}
