package m2mpb

import (
	"context"

	"google.golang.org/grpc"
)

// M2MServer is the service one middleware node exposes to its peers,
// shaped the way protoc-gen-go-grpc would emit it from proto/m2m/m2m.proto.
type M2MServer interface {
	ReserveRemote(context.Context, *Stream) (*Labels, error)
	SyncProvenance(context.Context, *StreamProv) (*Ack, error)
	EvaluateCompliance(context.Context, *EvaluateComplianceRequest) (*Decision, error)
	BroadcastDeletion(context.Context, *DeletionNotice) (*Ack, error)
	NotifyConsent(context.Context, *ConsentQuery) (*ConsentReply, error)
}

func RegisterM2MServer(s grpc.ServiceRegistrar, srv M2MServer) {
	s.RegisterService(&m2MServiceDesc, srv)
}

var m2MServiceDesc = grpc.ServiceDesc{
	ServiceName: "trace2e.m2m.M2M",
	HandlerType: (*M2MServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReserveRemote", Handler: m2mReserveRemoteHandler},
		{MethodName: "SyncProvenance", Handler: m2mSyncProvenanceHandler},
		{MethodName: "EvaluateCompliance", Handler: m2mEvaluateComplianceHandler},
		{MethodName: "BroadcastDeletion", Handler: m2mBroadcastDeletionHandler},
		{MethodName: "NotifyConsent", Handler: m2mNotifyConsentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "m2m/m2m.proto",
}

func m2mReserveRemoteHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Stream)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(M2MServer).ReserveRemote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.m2m.M2M/ReserveRemote"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(M2MServer).ReserveRemote(ctx, req.(*Stream))
	}
	return interceptor(ctx, in, info, handler)
}

func m2mSyncProvenanceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StreamProv)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(M2MServer).SyncProvenance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.m2m.M2M/SyncProvenance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(M2MServer).SyncProvenance(ctx, req.(*StreamProv))
	}
	return interceptor(ctx, in, info, handler)
}

func m2mEvaluateComplianceHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EvaluateComplianceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(M2MServer).EvaluateCompliance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.m2m.M2M/EvaluateCompliance"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(M2MServer).EvaluateCompliance(ctx, req.(*EvaluateComplianceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func m2mBroadcastDeletionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeletionNotice)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(M2MServer).BroadcastDeletion(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.m2m.M2M/BroadcastDeletion"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(M2MServer).BroadcastDeletion(ctx, req.(*DeletionNotice))
	}
	return interceptor(ctx, in, info, handler)
}

func m2mNotifyConsentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ConsentQuery)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(M2MServer).NotifyConsent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.m2m.M2M/NotifyConsent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(M2MServer).NotifyConsent(ctx, req.(*ConsentQuery))
	}
	return interceptor(ctx, in, info, handler)
}

// M2MClient is the client-side stub used by peerdial-pooled connections.
type M2MClient interface {
	ReserveRemote(ctx context.Context, in *Stream, opts ...grpc.CallOption) (*Labels, error)
	SyncProvenance(ctx context.Context, in *StreamProv, opts ...grpc.CallOption) (*Ack, error)
	EvaluateCompliance(ctx context.Context, in *EvaluateComplianceRequest, opts ...grpc.CallOption) (*Decision, error)
	BroadcastDeletion(ctx context.Context, in *DeletionNotice, opts ...grpc.CallOption) (*Ack, error)
	NotifyConsent(ctx context.Context, in *ConsentQuery, opts ...grpc.CallOption) (*ConsentReply, error)
}

type m2MClient struct{ cc grpc.ClientConnInterface }

func NewM2MClient(cc grpc.ClientConnInterface) M2MClient { return &m2MClient{cc} }

func (c *m2MClient) ReserveRemote(ctx context.Context, in *Stream, opts ...grpc.CallOption) (*Labels, error) {
	out := new(Labels)
	if err := c.cc.Invoke(ctx, "/trace2e.m2m.M2M/ReserveRemote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *m2MClient) SyncProvenance(ctx context.Context, in *StreamProv, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.m2m.M2M/SyncProvenance", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *m2MClient) EvaluateCompliance(ctx context.Context, in *EvaluateComplianceRequest, opts ...grpc.CallOption) (*Decision, error) {
	out := new(Decision)
	if err := c.cc.Invoke(ctx, "/trace2e.m2m.M2M/EvaluateCompliance", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *m2MClient) BroadcastDeletion(ctx context.Context, in *DeletionNotice, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.m2m.M2M/BroadcastDeletion", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *m2MClient) NotifyConsent(ctx context.Context, in *ConsentQuery, opts ...grpc.CallOption) (*ConsentReply, error) {
	out := new(ConsentReply)
	if err := c.cc.Invoke(ctx, "/trace2e.m2m.M2M/NotifyConsent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
