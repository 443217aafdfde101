package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatdir.v1.Directory"

// Full method names.
const (
	SearchUsersMethod          = "/" + ServiceName + "/SearchUsers"
	GetUserMethod              = "/" + ServiceName + "/GetUser"
	ListConversationsMethod    = "/" + ServiceName + "/ListConversations"
	UpdateProfilePictureMethod = "/" + ServiceName + "/UpdateProfilePicture"
)

// PictureUploadServer is the server side of UpdateProfilePicture.
type PictureUploadServer = grpc.ClientStreamingServer[wrapperspb.BytesValue, structpb.Struct]

// PictureUploadClient is the client side of UpdateProfilePicture.
type PictureUploadClient = grpc.ClientStreamingClient[wrapperspb.BytesValue, structpb.Struct]

// DirectoryServer is implemented by Server.
type DirectoryServer interface {
	SearchUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConversations(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	UpdateProfilePicture(PictureUploadServer) error
}

func unaryHandler[Req any](method string, call func(DirectoryServer, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DirectoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DirectoryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func uploadHandler(srv any, stream grpc.ServerStream) error {
	return srv.(DirectoryServer).UpdateProfilePicture(&grpc.GenericServerStream[wrapperspb.BytesValue, structpb.Struct]{ServerStream: stream})
}

// ServiceDesc describes chatdir.v1.Directory for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SearchUsers", Handler: unaryHandler(SearchUsersMethod, DirectoryServer.SearchUsers)},
		{MethodName: "GetUser", Handler: unaryHandler(GetUserMethod, DirectoryServer.GetUser)},
		{MethodName: "ListConversations", Handler: unaryHandler(ListConversationsMethod, DirectoryServer.ListConversations)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "UpdateProfilePicture", Handler: uploadHandler, ClientStreams: true},
	},
	Metadata: "chatdir/v1/directory.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv DirectoryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls chatdir.v1.Directory.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchUsers calls SearchUsers.
func (c *Client) SearchUsers(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SearchUsersMethod, in, opts...)
}

// GetUser calls GetUser.
func (c *Client) GetUser(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, GetUserMethod, in, opts...)
}

// ListConversations calls ListConversations.
func (c *Client) ListConversations(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListConversationsMethod, &emptypb.Empty{}, opts...)
}

// UpdateProfilePicture opens the upload stream.
func (c *Client) UpdateProfilePicture(ctx context.Context, opts ...grpc.CallOption) (PictureUploadClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], UpdateProfilePictureMethod, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[wrapperspb.BytesValue, structpb.Struct]{ClientStream: stream}, nil
}
