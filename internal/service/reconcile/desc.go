package reconcile

import (
	"context"

	"google.golang.org/grpc"

	"github.com/oggyb/moviematch/internal/server"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "moviematch.v1.ReconcileService"

// ReconcileServer is the server API for the reconcile service.
type ReconcileServer interface {
	Like(context.Context, *LikeRequest) (*LikeResponse, error)
	Pass(context.Context, *PassRequest) (*PassResponse, error)
	GetProjection(context.Context, *GetProjectionRequest) (*GetProjectionResponse, error)
	ListLikedMe(context.Context, *ListLikedMeRequest) (*ListLikedMeResponse, error)
	CountLikedMe(context.Context, *CountLikedMeRequest) (*CountLikedMeResponse, error)
}

// ServiceDesc describes the reconcile service for grpc.ServiceRegistrar.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReconcileServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Like", ReconcileServer.Like),
		unary("Pass", ReconcileServer.Pass),
		unary("GetProjection", ReconcileServer.GetProjection),
		unary("ListLikedMe", ReconcileServer.ListLikedMe),
		unary("CountLikedMe", ReconcileServer.CountLikedMe),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterReconcileServer attaches srv to s.
func RegisterReconcileServer(s grpc.ServiceRegistrar, srv ReconcileServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(ReconcileServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ReconcileServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ReconcileServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client is the client API for the reconcile service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.ForceCodec(server.Codec())}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Like(ctx context.Context, in *LikeRequest, opts ...grpc.CallOption) (*LikeResponse, error) {
	return invoke[LikeResponse](ctx, c.cc, "Like", in, opts)
}

func (c *Client) Pass(ctx context.Context, in *PassRequest, opts ...grpc.CallOption) (*PassResponse, error) {
	return invoke[PassResponse](ctx, c.cc, "Pass", in, opts)
}

func (c *Client) GetProjection(ctx context.Context, in *GetProjectionRequest, opts ...grpc.CallOption) (*GetProjectionResponse, error) {
	return invoke[GetProjectionResponse](ctx, c.cc, "GetProjection", in, opts)
}

func (c *Client) ListLikedMe(ctx context.Context, in *ListLikedMeRequest, opts ...grpc.CallOption) (*ListLikedMeResponse, error) {
	return invoke[ListLikedMeResponse](ctx, c.cc, "ListLikedMe", in, opts)
}

func (c *Client) CountLikedMe(ctx context.Context, in *CountLikedMeRequest, opts ...grpc.CallOption) (*CountLikedMeResponse, error) {
	return invoke[CountLikedMeResponse](ctx, c.cc, "CountLikedMe", in, opts)
}
