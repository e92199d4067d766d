package o2mpb

import (
	"context"

	"google.golang.org/grpc"
)

// O2MServer is the operator-facing service (spec.md §4.7), shaped the way
// protoc-gen-go-grpc would emit it from proto/o2m/o2m.proto.
type O2MServer interface {
	SetLocalConfidentiality(context.Context, *SetFlag) (*Ack, error)
	SetLocalIntegrity(context.Context, *SetFlag) (*Ack, error)
	SetDeleted(context.Context, *SetDeleted) (*Ack, error)
	EnforceConsent(context.Context, *EnforceConsent) (*Ack, error)
	SetConsentDecision(context.Context, *SetConsentDecision) (*Ack, error)
	GetReferences(context.Context, *GetReferencesRequest) (*References, error)
	GetPolicies(context.Context, *GetPoliciesRequest) (*Policies, error)
}

func RegisterO2MServer(s grpc.ServiceRegistrar, srv O2MServer) {
	s.RegisterService(&o2MServiceDesc, srv)
}

var o2MServiceDesc = grpc.ServiceDesc{
	ServiceName: "trace2e.o2m.O2M",
	HandlerType: (*O2MServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SetLocalConfidentiality", Handler: o2mSetLocalConfidentialityHandler},
		{MethodName: "SetLocalIntegrity", Handler: o2mSetLocalIntegrityHandler},
		{MethodName: "SetDeleted", Handler: o2mSetDeletedHandler},
		{MethodName: "EnforceConsent", Handler: o2mEnforceConsentHandler},
		{MethodName: "SetConsentDecision", Handler: o2mSetConsentDecisionHandler},
		{MethodName: "GetReferences", Handler: o2mGetReferencesHandler},
		{MethodName: "GetPolicies", Handler: o2mGetPoliciesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "o2m/o2m.proto",
}

func o2mSetLocalConfidentialityHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetFlag)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).SetLocalConfidentiality(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/SetLocalConfidentiality"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).SetLocalConfidentiality(ctx, req.(*SetFlag))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mSetLocalIntegrityHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetFlag)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).SetLocalIntegrity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/SetLocalIntegrity"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).SetLocalIntegrity(ctx, req.(*SetFlag))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mSetDeletedHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetDeleted)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).SetDeleted(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/SetDeleted"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).SetDeleted(ctx, req.(*SetDeleted))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mEnforceConsentHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(EnforceConsent)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).EnforceConsent(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/EnforceConsent"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).EnforceConsent(ctx, req.(*EnforceConsent))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mSetConsentDecisionHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SetConsentDecision)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).SetConsentDecision(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/SetConsentDecision"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).SetConsentDecision(ctx, req.(*SetConsentDecision))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mGetReferencesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetReferencesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).GetReferences(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/GetReferences"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).GetReferences(ctx, req.(*GetReferencesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func o2mGetPoliciesHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetPoliciesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(O2MServer).GetPolicies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/trace2e.o2m.O2M/GetPolicies"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(O2MServer).GetPolicies(ctx, req.(*GetPoliciesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// O2MClient is the operator-side client stub.
type O2MClient interface {
	SetLocalConfidentiality(ctx context.Context, in *SetFlag, opts ...grpc.CallOption) (*Ack, error)
	SetLocalIntegrity(ctx context.Context, in *SetFlag, opts ...grpc.CallOption) (*Ack, error)
	SetDeleted(ctx context.Context, in *SetDeleted, opts ...grpc.CallOption) (*Ack, error)
	EnforceConsent(ctx context.Context, in *EnforceConsent, opts ...grpc.CallOption) (*Ack, error)
	SetConsentDecision(ctx context.Context, in *SetConsentDecision, opts ...grpc.CallOption) (*Ack, error)
	GetReferences(ctx context.Context, in *GetReferencesRequest, opts ...grpc.CallOption) (*References, error)
	GetPolicies(ctx context.Context, in *GetPoliciesRequest, opts ...grpc.CallOption) (*Policies, error)
}

type o2MClient struct{ cc grpc.ClientConnInterface }

func NewO2MClient(cc grpc.ClientConnInterface) O2MClient { return &o2MClient{cc} }

func (c *o2MClient) SetLocalConfidentiality(ctx context.Context, in *SetFlag, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/SetLocalConfidentiality", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) SetLocalIntegrity(ctx context.Context, in *SetFlag, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/SetLocalIntegrity", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) SetDeleted(ctx context.Context, in *SetDeleted, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/SetDeleted", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) EnforceConsent(ctx context.Context, in *EnforceConsent, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/EnforceConsent", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) SetConsentDecision(ctx context.Context, in *SetConsentDecision, opts ...grpc.CallOption) (*Ack, error) {
	out := new(Ack)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/SetConsentDecision", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) GetReferences(ctx context.Context, in *GetReferencesRequest, opts ...grpc.CallOption) (*References, error) {
	out := new(References)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/GetReferences", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *o2MClient) GetPolicies(ctx context.Context, in *GetPoliciesRequest, opts ...grpc.CallOption) (*Policies, error) {
	out := new(Policies)
	if err := c.cc.Invoke(ctx, "/trace2e.o2m.O2M/GetPolicies", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
