// m2m_server.go implements m2mpb.M2MServer: the peer-facing surface of
// spec.md §4.6, dispatching into compliance.Engine's peer-side half of each
// M2M operation.
package server

import (
	"context"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/genproto/m2mpb"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/wire"
)

// m2mServer adapts *kernel.Node to m2mpb.M2MServer.
type m2mServer struct {
	node *kernel.Node
}

// NewM2M returns a m2mpb.M2MServer backed by node.
func NewM2M(node *kernel.Node) m2mpb.M2MServer { return &m2mServer{node: node} }

func (s *m2mServer) ReserveRemote(ctx context.Context, in *m2mpb.Stream) (*m2mpb.Labels, error) {
	callerLocal := api.Endpoint(in.LocalSocket)
	callerPeer := api.Endpoint(in.PeerSocket)

	label, prov, err := s.node.Compliance.ReserveRemote(ctx, callerLocal, callerPeer)
	if err != nil {
		return nil, err
	}

	// The resource this node owns is the mirror image of the caller's view:
	// its local socket is the caller's peer, and vice versa (same swap
	// compliance.Engine.ReserveRemote performs internally).
	id := api.ID{Node: s.node.ID, Resource: api.Stream(callerPeer, callerLocal)}

	return &m2mpb.Labels{
		Compliance: m2mpb.ComplianceLabel{
			Identifier:           wire.EncodeID(id),
			LocalConfidentiality: label.LocalConfidentiality,
			LocalIntegrity:       label.LocalIntegrity,
		},
		Provenance: wire.EncodeIDs(prov),
	}, nil
}

func (s *m2mServer) SyncProvenance(ctx context.Context, in *m2mpb.StreamProv) (*m2mpb.Ack, error) {
	incoming, err := wire.DecodeIDs(in.Provenance)
	if err != nil {
		return nil, err
	}
	s.node.Compliance.SyncProvenance(api.Endpoint(in.LocalSocket), api.Endpoint(in.PeerSocket), incoming)
	return &m2mpb.Ack{}, nil
}

func (s *m2mServer) EvaluateCompliance(ctx context.Context, in *m2mpb.EvaluateComplianceRequest) (*m2mpb.Decision, error) {
	ancestors, err := wire.DecodeIDs(in.Ancestors)
	if err != nil {
		return nil, err
	}
	destination, err := wire.DecodeID(&in.Destination)
	if err != nil {
		return nil, err
	}

	allow, reason := s.node.Compliance.EvaluateCompliance(ctx, ancestors, destination)
	return &m2mpb.Decision{Allow: allow, Reason: string(reason)}, nil
}

func (s *m2mServer) BroadcastDeletion(ctx context.Context, in *m2mpb.DeletionNotice) (*m2mpb.Ack, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	s.node.Compliance.BroadcastDeletion(id)
	return &m2mpb.Ack{}, nil
}

func (s *m2mServer) NotifyConsent(ctx context.Context, in *m2mpb.ConsentQuery) (*m2mpb.ConsentReply, error) {
	source, err := wire.DecodeID(&in.Source)
	if err != nil {
		return nil, err
	}
	destination, err := wire.DecodeID(&in.Destination)
	if err != nil {
		return nil, err
	}

	granted, timedOut := s.node.Compliance.NotifyConsent(ctx, source, destination)
	return &m2mpb.ConsentReply{Granted: granted, TimedOut: timedOut}, nil
}
