package daemon

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The Inventory service speaks protobuf well-known types so no generated
// code is needed:
//
//	service Inventory {
//	  rpc Ping(google.protobuf.Empty) returns (google.protobuf.StringValue);
//	  rpc List(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Watch(google.protobuf.Struct) returns (stream google.protobuf.Struct);
//	}
const (
	InventoryServiceName = "procview.v1.Inventory"

	inventoryPingMethod  = "/procview.v1.Inventory/Ping"
	inventoryListMethod  = "/procview.v1.Inventory/List"
	inventoryWatchMethod = "/procview.v1.Inventory/Watch"
)

// InventoryServer is the server API for the Inventory service.
type InventoryServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*structpb.Struct, InventoryWatchServer) error
}

// InventoryWatchServer is the server side of a Watch stream.
type InventoryWatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

// UnimplementedInventoryServer can be embedded to satisfy InventoryServer.
type UnimplementedInventoryServer struct{}

func (UnimplementedInventoryServer) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}

func (UnimplementedInventoryServer) List(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method List not implemented")
}

func (UnimplementedInventoryServer) Watch(*structpb.Struct, InventoryWatchServer) error {
	return status.Error(codes.Unimplemented, "method Watch not implemented")
}

// RegisterInventoryServer registers srv on s.
func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: InventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: inventoryPingHandler},
		{MethodName: "List", Handler: inventoryListHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: inventoryWatchHandler, ServerStreams: true},
	},
	Metadata: "procview/v1/inventory.proto",
}

func inventoryPingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: inventoryPingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func inventoryListHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).List(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: inventoryListMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).List(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func inventoryWatchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(InventoryServer).Watch(in, &inventoryWatchServer{stream})
}

type inventoryWatchServer struct {
	grpc.ServerStream
}

func (x *inventoryWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// InventoryClient is the client API for the Inventory service.
type InventoryClient interface {
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (InventoryWatchClient, error)
}

// InventoryWatchClient is the client side of a Watch stream.
type InventoryWatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type inventoryClient struct {
	cc grpc.ClientConnInterface
}

// NewInventoryClient wraps cc.
func NewInventoryClient(cc grpc.ClientConnInterface) InventoryClient {
	return &inventoryClient{cc}
}

func (c *inventoryClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, inventoryPingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, inventoryListMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *inventoryClient) Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (InventoryWatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &inventoryServiceDesc.Streams[0], inventoryWatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &inventoryWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type inventoryWatchClient struct {
	grpc.ClientStream
}

func (x *inventoryWatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
