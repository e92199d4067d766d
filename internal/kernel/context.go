// Package kernel bundles the node's owned components into a single object
// that is passed into every P2M/M2M/O2M handler, rather than reached for as
// ambient singletons. This follows spec.md §9's explicit instruction:
// "model them as explicitly owned components passed into handlers (context
// object), not ambient singletons. Each is internally synchronized; external
// code talks only through their interfaces." It plays the role that gazette's
// consumer.ConsumerContext (Cache/Database/Transaction/Writer, scoped to one
// shard) played for a single consumer transaction, generalized here to the
// scope of one TracE2E node.
package kernel

import (
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/compliance"
	"github.com/mablr/trace2e/internal/consent"
	"github.com/mablr/trace2e/internal/peerdial"
	"github.com/mablr/trace2e/internal/policy"
	"github.com/mablr/trace2e/internal/provenance"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/sequencer"
)

// Node is the set of components owned by one running TracE2E middleware
// instance. Every RPC handler (P2M, M2M, O2M) receives a *Node and mutates
// state only through the named component's own interface; no component
// reaches into another's internals directly, and none of them is a package
// level singleton.
type Node struct {
	ID NodeID

	Registry    *registry.Registry
	Sequencer   *sequencer.Sequencer
	Provenance  *provenance.Store
	Policy      *policy.Store
	Consent     *consent.Broker
	Peers       *peerdial.Dialer
	Compliance  *compliance.Engine
	Log         *log.Entry
	stoppingCh  chan struct{}
}

// NodeID aliases api.NodeID for readability within this package.
type NodeID = api.NodeID

// New wires a fresh Node from its components. Callers (cmd/trace2ed, or a
// test harness) are responsible for constructing each component; New does
// not reach for defaults, so tests can substitute fakes (e.g. a fake
// peerdial.Dialer) freely.
func New(id NodeID, reg *registry.Registry, seq *sequencer.Sequencer, prov *provenance.Store,
	pol *policy.Store, cons *consent.Broker, peers *peerdial.Dialer, logger *log.Entry) *Node {

	n := &Node{
		ID:         id,
		Registry:   reg,
		Sequencer:  seq,
		Provenance: prov,
		Policy:     pol,
		Consent:    cons,
		Peers:      peers,
		Log:        logger,
		stoppingCh: make(chan struct{}),
	}
	n.Compliance = compliance.NewEngine(id, reg, seq, prov, pol, cons, peers, logger)
	return n
}

// Stopping returns a channel closed when the Node begins graceful shutdown,
// mirroring gazette's consumer.Service.Stopping(). server.Service exposes it
// to its callers; no RPC handler in this module selects on it.
func (n *Node) Stopping() <-chan struct{} { return n.stoppingCh }

// BeginShutdown closes the stopping channel exactly once.
func (n *Node) BeginShutdown() {
	select {
	case <-n.stoppingCh:
	default:
		close(n.stoppingCh)
	}
}
