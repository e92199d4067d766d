// p2m_server.go implements p2mpb.P2MServer: the process-facing surface of
// spec.md §4.5, translating wire messages into kernel.Node/compliance.Engine
// calls and translating their results back into the wire's denial shape
// (spec.md §7: "surface-level RPC handlers translate internal errors into
// the wire's denial shape; nothing escapes as an unhandled panic").
package server

import (
	"context"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/genproto/p2mpb"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/metrics"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/wire"
)

// p2mServer adapts *kernel.Node to p2mpb.P2MServer.
type p2mServer struct {
	node *kernel.Node
}

// NewP2M returns a p2mpb.P2MServer backed by node.
func NewP2M(node *kernel.Node) p2mpb.P2MServer { return &p2mServer{node: node} }

func (s *p2mServer) LocalEnroll(ctx context.Context, in *p2mpb.LocalCt) (*p2mpb.Ack, error) {
	if _, err := s.node.Registry.EnrollLocal(in.ProcessID, in.FileDescriptor, in.Path); err != nil {
		return nil, err
	}
	return &p2mpb.Ack{}, nil
}

func (s *p2mServer) RemoteEnroll(ctx context.Context, in *p2mpb.RemoteCt) (*p2mpb.Ack, error) {
	if _, err := s.node.Registry.EnrollRemote(in.ProcessID, in.FileDescriptor, api.Endpoint(in.LocalSocket), api.Endpoint(in.PeerSocket)); err != nil {
		return nil, err
	}
	return &p2mpb.Ack{}, nil
}

func (s *p2mServer) IoRequest(ctx context.Context, in *p2mpb.IoInfo) (*p2mpb.Grant, error) {
	dir := api.DirectionInput
	if in.Flow == p2mpb.FlowOutput {
		dir = api.DirectionOutput
	}

	grantID, allowed, reason, err := s.node.Compliance.IoRequest(ctx, in.ProcessID, in.FileDescriptor, dir)
	if err != nil {
		metrics.ComplianceDecisions.WithLabelValues(directionLabel(dir), "error").Inc()
		if err == registry.ErrUnknownHandle {
			return &p2mpb.Grant{ID: wire.DenialGrantID(), Reason: "unknown_handle"}, nil
		}
		return nil, err
	}
	if !allowed {
		metrics.ComplianceDecisions.WithLabelValues(directionLabel(dir), string(reason)).Inc()
		addTrace(ctx, "io_request denied: pid=%d fd=%d dir=%s reason=%s", in.ProcessID, in.FileDescriptor, directionLabel(dir), reason)
		return &p2mpb.Grant{ID: wire.DenialGrantID(), Reason: string(reason)}, nil
	}
	metrics.ComplianceDecisions.WithLabelValues(directionLabel(dir), "allow").Inc()
	return &p2mpb.Grant{ID: wire.EncodeGrantID(grantID)}, nil
}

func (s *p2mServer) IoReport(ctx context.Context, in *p2mpb.IoResult) (*p2mpb.Ack, error) {
	grantID, err := wire.DecodeGrantID(in.GrantID)
	if err != nil {
		return nil, err
	}
	s.node.Compliance.IoReport(ctx, in.ProcessID, in.FileDescriptor, grantID.Uint64(), in.Result)
	return &p2mpb.Ack{}, nil
}

func directionLabel(dir api.Direction) string {
	if dir == api.DirectionOutput {
		return "output"
	}
	return "input"
}
