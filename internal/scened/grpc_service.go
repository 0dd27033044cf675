package scened

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// SceneServiceName is the fully qualified gRPC service name
const SceneServiceName = "scenesynth.v1.SceneService"

// SceneServiceServer is the server API of the scene service. Requests and
// responses are well-known protobuf types so no generated code is needed.
type SceneServiceServer interface {
	CreateRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	StepRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	GetRun(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListRuns(context.Context, *wrapperspb.Int32Value) (*structpb.Struct, error)
	WatchRun(*wrapperspb.StringValue, grpc.ServerStreamingServer[structpb.Struct]) error
}

func fullMethod(name string) string {
	return "/" + SceneServiceName + "/" + name
}

func unaryMethod[T proto.Message](name string, newIn func() T, call func(SceneServiceServer, context.Context, T) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(SceneServiceServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(T))
			})
		},
	}
}

func newStruct() *structpb.Struct        { return new(structpb.Struct) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newInt32() *wrapperspb.Int32Value   { return new(wrapperspb.Int32Value) }

// SceneServiceDesc describes the service for grpc.Server registration
var SceneServiceDesc = grpc.ServiceDesc{
	ServiceName: SceneServiceName,
	HandlerType: (*SceneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateRun", newStruct, SceneServiceServer.CreateRun),
		unaryMethod("StartRun", newString, SceneServiceServer.StartRun),
		unaryMethod("StepRun", newStruct, SceneServiceServer.StepRun),
		unaryMethod("StopRun", newString, SceneServiceServer.StopRun),
		unaryMethod("GetRun", newString, SceneServiceServer.GetRun),
		unaryMethod("ListRuns", newInt32, SceneServiceServer.ListRuns),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchRun",
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(wrapperspb.StringValue)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(SceneServiceServer).WatchRun(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{ServerStream: stream})
			},
		},
	},
	Metadata: "scenesynth/v1/scene.proto",
}

// RegisterSceneServiceServer registers srv on s
func RegisterSceneServiceServer(s grpc.ServiceRegistrar, srv SceneServiceServer) {
	s.RegisterService(&SceneServiceDesc, srv)
}

// SceneServiceClient calls the scene service
type SceneServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSceneServiceClient(cc grpc.ClientConnInterface) *SceneServiceClient {
	return &SceneServiceClient{cc: cc}
}

func (c *SceneServiceClient) invoke(ctx context.Context, method string, in proto.Message, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SceneServiceClient) CreateRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "CreateRun", in, opts)
}

func (c *SceneServiceClient) StartRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StartRun", in, opts)
}

func (c *SceneServiceClient) StepRun(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StepRun", in, opts)
}

func (c *SceneServiceClient) StopRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "StopRun", in, opts)
}

func (c *SceneServiceClient) GetRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetRun", in, opts)
}

func (c *SceneServiceClient) ListRuns(ctx context.Context, in *wrapperspb.Int32Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListRuns", in, opts)
}

func (c *SceneServiceClient) WatchRun(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &SceneServiceDesc.Streams[0], fullMethod("WatchRun"), opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
