package p2mpb

import (
	"context"

	"google.golang.org/grpc"
)

// P2MServer is the service implemented by the middleware for process
// clients, shaped the way protoc-gen-go-grpc would emit it from
// proto/p2m/p2m.proto.
type P2MServer interface {
	LocalEnroll(context.Context, *LocalCt) (*Ack, error)
	RemoteEnroll(context.Context, *RemoteCt) (*Ack, error)
	IoRequest(context.Context, *IoInfo) (*Grant, error)
	IoReport(context.Context, *IoResult) (*Ack, error)
}

// RegisterP2MServer registers srv against s using the trace2e-json codec
// (wire.Name), dispatching via hand-written unary handlers in place of
// protoc-gen-go-grpc output.
func RegisterP2MServer(s grpc.ServiceRegistrar, srv P2MServer) {
	s.RegisterService(&p2MServiceDesc, srv)
}

var p2MServiceDesc = grpc.ServiceDesc{
	ServiceName: "trace2e.p2m.P2M",
	HandlerType: (*P2MServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "LocalEnroll", Handler: p2mLocalEnrollHandler},
		{MethodName: "RemoteEnroll", Handler: p2mRemoteEnrollHandler},
		{MethodName: "IoRequest", Handler: p2mIoRequestHandler},
		{MethodName: "IoReport", Handler: p2mIoReportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "p2m/p2m.proto",
}

func p2mLocalEnrollHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LocalCt)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(P2MServer).LocalEnroll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.p2m.P2M/LocalEnroll"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(P2MServer).LocalEnroll(ctx, req.(*LocalCt))
	}
	return interceptor(ctx, in, info, handler)
}

func p2mRemoteEnrollHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RemoteCt)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(P2MServer).RemoteEnroll(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.p2m.P2M/RemoteEnroll"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(P2MServer).RemoteEnroll(ctx, req.(*RemoteCt))
	}
	return interceptor(ctx, in, info, handler)
}

func p2mIoRequestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(IoInfo)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(P2MServer).IoRequest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.p2m.P2M/IoRequest"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(P2MServer).IoRequest(ctx, req.(*IoInfo))
	}
	return interceptor(ctx, in, info, handler)
}

func p2mIoReportHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(IoResult)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(P2MServer).IoReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.p2m.P2M/IoReport"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(P2MServer).IoReport(ctx, req.(*IoResult))
	}
	return interceptor(ctx, in, info, handler)
}

// P2MClient is the client-side counterpart, used by peerdial-style pooled
// connections from a process's middleware-client library (outside this
// module's scope) or from test harnesses within it.
type P2MClient interface {
	LocalEnroll(ctx context.Context, in *LocalCt, opts ...grpc.CallOption) (*Ack, error)
	RemoteEnroll(ctx context.Context, in *RemoteCt, opts ...grpc.CallOption) (*Ack, error)
	IoRequest(ctx context.Context, in *IoInfo, opts ...grpc.CallOption) (*Grant, error)
	IoReport(ctx context.Context, in *IoResult, opts ...grpc.CallOption) (*Ack, error)
}

type p2MClient struct{ cc grpc.ClientConnInterface }

// NewP2MClient returns a P2MClient using cc, which should have been dialed
// with grpc.WithDefaultCallOptions(grpc.ForceCodec(...)) or an equivalent
// trace2e-json codec selection (see internal/wire).
func NewP2MClient(cc grpc.ClientConnInterface) P2MClient { return &p2MClient{cc} }

func (c *p2MClient) LocalEnroll(ctx context.Context, in *LocalCt, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.p2m.P2M/LocalEnroll", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *p2MClient) RemoteEnroll(ctx context.Context, in *RemoteCt, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.p2m.P2M/RemoteEnroll", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *p2MClient) IoRequest(ctx context.Context, in *IoInfo, opts ...grpc.CallOption) (*Grant, error) {
	out := new(Grant)
	if err := c.cc.Invoke(ctx, "/trace2e.p2m.P2M/IoRequest", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *p2MClient) IoReport(ctx context.Context, in *IoResult, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.p2m.P2M/IoReport", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
