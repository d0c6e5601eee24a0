package spray_controller

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The control surface carries google.protobuf.Struct payloads, so no
// generated stubs are needed; the descriptor below is what protoc-gen-go-grpc
// would emit for:
//
//	service SprayControl {
//	  rpc StartSpray(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc StopSpray(google.protobuf.Struct)  returns (google.protobuf.Struct);
//	  rpc GetStatus(google.protobuf.Struct)  returns (google.protobuf.Struct);
//	}
const (
	SprayControlServiceName = "sprayer.v1.SprayControl"

	startSprayMethod = "/" + SprayControlServiceName + "/StartSpray"
	stopSprayMethod  = "/" + SprayControlServiceName + "/StopSpray"
	getStatusMethod  = "/" + SprayControlServiceName + "/GetStatus"
)

// SprayControlServer is implemented by GrpcHandler.
type SprayControlServer interface {
	StartSpray(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSpray(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSprayControlServer(s grpc.ServiceRegistrar, srv SprayControlServer) {
	s.RegisterService(&SprayControlServiceDesc, srv)
}

var SprayControlServiceDesc = grpc.ServiceDesc{
	ServiceName: SprayControlServiceName,
	HandlerType: (*SprayControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartSpray", Handler: unaryHandler(startSprayMethod, SprayControlServer.StartSpray)},
		{MethodName: "StopSpray", Handler: unaryHandler(stopSprayMethod, SprayControlServer.StopSpray)},
		{MethodName: "GetStatus", Handler: unaryHandler(getStatusMethod, SprayControlServer.GetStatus)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sprayer/v1/spray_control.proto",
}

type unaryMethod func(SprayControlServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SprayControlServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SprayControlServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SprayControlClient calls a remote SprayControl service.
type SprayControlClient struct {
	cc grpc.ClientConnInterface
}

func NewSprayControlClient(cc grpc.ClientConnInterface) *SprayControlClient {
	return &SprayControlClient{cc: cc}
}

func (c *SprayControlClient) StartSpray(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, startSprayMethod, in, opts...)
}

func (c *SprayControlClient) StopSpray(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, stopSprayMethod, in, opts...)
}

func (c *SprayControlClient) GetStatus(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, getStatusMethod, in, opts...)
}

func (c *SprayControlClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
