// o2m_server.go implements o2mpb.O2MServer: the operator-facing surface of
// spec.md §4.7, dispatching into the policy/consent/provenance components
// directly (no compliance decision is made on this path) via
// compliance.Engine's thin pass-through methods.
package server

import (
	"context"

	"github.com/mablr/trace2e/genproto/m2mpb"
	"github.com/mablr/trace2e/genproto/o2mpb"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/wire"
)

// o2mServer adapts *kernel.Node to o2mpb.O2MServer.
type o2mServer struct {
	node *kernel.Node
}

// NewO2M returns a o2mpb.O2MServer backed by node.
func NewO2M(node *kernel.Node) o2mpb.O2MServer { return &o2mServer{node: node} }

func (s *o2mServer) SetLocalConfidentiality(ctx context.Context, in *o2mpb.SetFlag) (*o2mpb.Ack, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	s.node.Policy.SetLocalConfidentiality(id, in.On)
	return &o2mpb.Ack{}, nil
}

func (s *o2mServer) SetLocalIntegrity(ctx context.Context, in *o2mpb.SetFlag) (*o2mpb.Ack, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	s.node.Policy.SetLocalIntegrity(id, in.On)
	return &o2mpb.Ack{}, nil
}

func (s *o2mServer) SetDeleted(ctx context.Context, in *o2mpb.SetDeleted) (*o2mpb.Ack, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	if err := s.node.Compliance.SetDeleted(ctx, id); err != nil {
		return nil, err
	}
	return &o2mpb.Ack{}, nil
}

func (s *o2mServer) EnforceConsent(ctx context.Context, in *o2mpb.EnforceConsent) (*o2mpb.Ack, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	s.node.Compliance.EnforceConsent(id)
	return &o2mpb.Ack{}, nil
}

func (s *o2mServer) SetConsentDecision(ctx context.Context, in *o2mpb.SetConsentDecision) (*o2mpb.Ack, error) {
	source, err := wire.DecodeID(&in.Source)
	if err != nil {
		return nil, err
	}
	destination, err := wire.DecodeID(&in.Destination)
	if err != nil {
		return nil, err
	}
	s.node.Compliance.SetConsentDecision(source, destination, in.Grant)
	return &o2mpb.Ack{}, nil
}

func (s *o2mServer) GetReferences(ctx context.Context, in *o2mpb.GetReferencesRequest) (*o2mpb.References, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	closure := s.node.Compliance.GetReferences(id)

	remote := make(map[string][]m2mpb.Id, len(closure.Remote))
	for node, ids := range closure.Remote {
		remote[string(node)] = wire.EncodeIDs(ids)
	}
	return &o2mpb.References{Local: wire.EncodeIDs(closure.Local), Remote: remote}, nil
}

func (s *o2mServer) GetPolicies(ctx context.Context, in *o2mpb.GetPoliciesRequest) (*o2mpb.Policies, error) {
	id, err := wire.DecodeID(&in.Resource)
	if err != nil {
		return nil, err
	}
	label := s.node.Compliance.GetPolicies(id)
	return &o2mpb.Policies{
		LocalConfidentiality: label.LocalConfidentiality,
		LocalIntegrity:       label.LocalIntegrity,
		Deleted:              label.Deleted.String(),
		ConsentRequired:      label.ConsentRequired,
	}, nil
}
