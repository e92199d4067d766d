// Package compliance implements the decision procedure of spec.md §4.4:
// given a proposed source→destination flow, reserve the requesting handle's
// resource, evaluate policy over the provenance closure (locally, and via M2M
// evaluate_compliance for every remote partition), and issue a grant or a
// denial. It owns no state of its own — registry, sequencer, provenance,
// policy and consent are each owned elsewhere and reached only through
// their interfaces, the same "context object, not ambient singleton"
// discipline the rest of the kernel follows.
//
// The decision procedure mirrors gazette's appendFSM in spirit (a fixed
// sequence of steps, each touching exactly one owned component, with
// cross-node calls never made while holding another component's lock) but
// is short enough, and branches enough on the outcome of each step, that a
// flat sequence of guarded returns reads more clearly here than an explicit
// state enum would.
package compliance

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/genproto/m2mpb"
	"github.com/mablr/trace2e/internal/consent"
	"github.com/mablr/trace2e/internal/peerdial"
	"github.com/mablr/trace2e/internal/policy"
	"github.com/mablr/trace2e/internal/provenance"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/sequencer"
	"github.com/mablr/trace2e/internal/wire"
)

// ConsentDeadline bounds a consent round-trip (spec.md §5: "default 30 s for
// consent").
var ConsentDeadline = 30 * time.Second

// M2MDeadline bounds a single evaluate_compliance (or other M2M) call
// issued by this node (spec.md §5: "implementation-chosen for M2M").
var M2MDeadline = 5 * time.Second

// DeniedReason explains why a flow was denied. It is carried on the wire as
// an observability hint only (spec.md §9 Open Question resolution 2): the
// P2M Grant sentinel is the only thing a caller may rely on.
type DeniedReason string

const (
	ReasonNone            DeniedReason = ""
	ReasonDeletion        DeniedReason = "deletion"
	ReasonConfidentiality DeniedReason = "confidentiality"
	ReasonIntegrity       DeniedReason = "integrity"
	ReasonConsent         DeniedReason = "consent"
	ReasonRemoteDenied    DeniedReason = "remote_denied"
	ReasonPeerUnavailable DeniedReason = "peer_unavailable"
	ReasonCancelled       DeniedReason = "cancelled"
)

// activeFlow is the bookkeeping kept between a successful IoRequest and its
// matching IoReport or handle retirement, so release and provenance update
// know what they're closing out.
type activeFlow struct {
	handle      api.Handle
	resource    api.Resource
	direction   api.Direction
	source      api.ID
	destination api.ID
}

// Engine ties the registry, sequencer, provenance store, policy store,
// consent broker and peer connectivity together into the one flow-level
// decision procedure of spec.md §4.4.
type Engine struct {
	self  api.NodeID
	reg   *registry.Registry
	seq   *sequencer.Sequencer
	prov  *provenance.Store
	pol   *policy.Store
	cons  *consent.Broker
	peers *peerdial.Dialer
	log   *log.Entry

	mu       sync.Mutex
	active   map[uint64]*activeFlow
	byHandle map[api.Handle]uint64
}

// NewEngine wires an Engine from its already-constructed dependencies.
func NewEngine(id api.NodeID, reg *registry.Registry, seq *sequencer.Sequencer, prov *provenance.Store,
	pol *policy.Store, cons *consent.Broker, peers *peerdial.Dialer, logger *log.Entry) *Engine {
	return &Engine{
		self:     id,
		reg:      reg,
		seq:      seq,
		prov:     prov,
		pol:      pol,
		cons:     cons,
		peers:    peers,
		log:      logger,
		active:   make(map[uint64]*activeFlow),
		byHandle: make(map[api.Handle]uint64),
	}
}

// IoRequest runs the decision procedure of spec.md §4.4 for (pid, fd) and
// direction dir: resolve the handle, determine source and destination,
// reserve the handle's resolved resource via the sequencer (for either
// direction; for input that resource is S, not D), evaluate policy, and either
// track the grant for a later IoReport or release and report the denial.
func (e *Engine) IoRequest(ctx context.Context, pid, fd int32, dir api.Direction) (grantID uint64, allowed bool, reason DeniedReason, err error) {
	h := api.Handle{Pid: pid, Fd: fd}

	Rid, err := e.reg.Resolve(pid, fd)
	if err != nil {
		return 0, false, ReasonNone, err
	}
	S, D := e.source(h, Rid, dir)

	grant, ok := e.seq.Reserve(Rid.Resource, dir, ctx.Done())
	if !ok {
		return 0, false, ReasonCancelled, nil
	}

	if allow, reason := e.evaluatePolicy(ctx, S, D); !allow {
		if relErr := e.seq.Release(Rid.Resource, grant.ID); relErr != nil {
			e.log.WithError(relErr).WithField("grant_id", grant.ID).Warn("compliance: release after denial")
		}
		return 0, false, reason, nil
	}

	e.mu.Lock()
	e.active[grant.ID] = &activeFlow{handle: h, resource: Rid.Resource, direction: dir, source: S, destination: D}
	e.byHandle[h] = grant.ID
	e.mu.Unlock()

	return grant.ID, true, ReasonNone, nil
}

// IoReport closes out a prior IoRequest: on success it folds prov(S) ∪ {S}
// into prov(D) and, if D is a Stream, pushes the updated lineage to the
// peer endpoint via sync_provenance; on failure no provenance changes; in
// both cases the reservation is released. An unknown grant id is logged
// and ignored (spec.md §7 StaleRelease), never an error to the caller.
func (e *Engine) IoReport(ctx context.Context, pid, fd int32, grantID uint64, success bool) {
	e.mu.Lock()
	flow, ok := e.active[grantID]
	if ok {
		delete(e.active, grantID)
		if e.byHandle[flow.handle] == grantID {
			delete(e.byHandle, flow.handle)
		}
	}
	e.mu.Unlock()

	if !ok {
		e.log.WithField("grant_id", grantID).Warn("compliance: io_report for unknown grant id")
		return
	}

	if err := e.seq.Release(flow.resource, grantID); err != nil {
		e.log.WithError(err).WithField("grant_id", grantID).Warn("compliance: release of stale grant")
	}

	if !success {
		return
	}

	e.prov.UpdateOnInput(flow.destination, flow.source)

	if flow.destination.Resource.Kind == api.KindStream {
		e.syncProvenanceToPeer(ctx, flow.destination)
	}
}

// Retire releases any reservation held through (pid, fd) — equivalent to an
// implicit io_report(failure) — and drops the handle binding, per spec.md
// §4.1/§5: "Handle retirement forces release."
func (e *Engine) Retire(pid, fd int32) {
	h := api.Handle{Pid: pid, Fd: fd}

	e.mu.Lock()
	grantID, ok := e.byHandle[h]
	var flow *activeFlow
	if ok {
		flow = e.active[grantID]
		delete(e.active, grantID)
		delete(e.byHandle, h)
	}
	e.mu.Unlock()

	if ok && flow != nil {
		if err := e.seq.Release(flow.resource, grantID); err != nil {
			e.log.WithError(err).WithField("grant_id", grantID).Warn("compliance: release during handle retirement")
		}
	}
	e.reg.Retire(pid, fd)
}

// source determines the (S, D) pair a flow is evaluated and recorded under.
// The calling process is represented by a synthetic Process resource
// carrying only the pid: a (pid, fd) handle alone does not reveal starttime
// or executable path, a necessarily coarser identity than a process
// enrolled in full — acceptable because a process is never itself subject
// to a policy label, only ever a carrier of lineage between the two legs of
// a relay.
//
// For output, data moves from the process into R: S = process, D = R,
// matching spec.md §4.4 step 2 literally.
//
// For input, data moves from R into the process. Taking D = R literally for
// this direction as well (as a first reading of §4.4 step 2 suggests) would
// mean a read never updates the reading process's own lineage — only R's —
// which makes relaying (read F, then write it into a Stream) unable to
// carry F's provenance into the Stream, failing the multi-hop propagation
// spec.md §8 requires. Swapping S and D for input — S = R, D = process — is
// the reading equivalent of output (R now plays the "S = counterparty"
// role verbatim), fixes that propagation, and is harmless for Stream reads:
// a Stream's local copy already carries its peer's lineage via
// sync_provenance, so S = R already reflects the counterparty's
// contribution without a separate remote-endpoint special case.
func (e *Engine) source(h api.Handle, R api.ID, dir api.Direction) (S, D api.ID) {
	process := api.ID{Node: e.self, Resource: api.Resource{Kind: api.KindProcess, Pid: h.Pid}}
	if dir == api.DirectionInput {
		return R, process
	}
	return process, R
}

// evaluatePolicy runs spec.md §4.4 step 4: build prov(S) ∪ {S}, partition by
// owning node, apply local rules to the local partition, and fan out one
// evaluate_compliance per remote partition.
func (e *Engine) evaluatePolicy(ctx context.Context, S, D api.ID) (bool, DeniedReason) {
	// spec.md §3 invariant: "If deleted(R) ∈ {pending, confirmed} then any
	// new io_request whose source closure contains R fails" — R ∈ prov(R)
	// always. For input, R is S and so already walks into the ancestor loop
	// below (S is appended to ancestors). For output, R is D and never
	// appears in closure(S), so it needs this direct check instead.
	if e.pol.Deleted(D) {
		return false, ReasonDeletion
	}

	closure := e.prov.Closure(S)

	ancestors := make([]api.ID, 0, len(closure.Local)+1)
	ancestors = append(ancestors, closure.Local...)
	ancestors = append(ancestors, S)
	for _, ids := range closure.Remote {
		ancestors = append(ancestors, ids...)
	}

	if ok, reason := e.evalLocalRules(ctx, ancestors, D); !ok {
		return false, reason
	}

	remote := closure.Remote
	if S.Node != e.self {
		remote = cloneRemote(remote)
		remote[S.Node] = append(remote[S.Node], S)
	}

	// A remote ancestor already recorded in this node's broadcast_deletion
	// shadow set (spec.md §4.4: "record R in a shadow 'remote-deletions' set
	// used during closure evaluation") denies outright, without waiting on a
	// round trip to the owning node to tell us what we already know.
	for _, ids := range remote {
		for _, a := range ids {
			if e.pol.Deleted(a) {
				return false, ReasonDeletion
			}
		}
	}

	for node, ids := range remote {
		allow, reason, err := e.evaluateRemotePartition(ctx, node, ids, D)
		if err != nil {
			e.log.WithError(err).WithField("peer", node).Warn("compliance: evaluate_compliance unreachable")
			return false, ReasonPeerUnavailable
		}
		if !allow {
			return false, reason
		}
	}
	return true, ReasonNone
}

func cloneRemote(in map[api.NodeID][]api.ID) map[api.NodeID][]api.ID {
	out := make(map[api.NodeID][]api.ID, len(in)+1)
	for node, ids := range in {
		out[node] = append([]api.ID{}, ids...)
	}
	return out
}

// evalLocalRules applies spec.md §4.4 step 4.b to the ancestors this node
// owns, skipping any that belong to a peer (the caller is responsible for
// fanning those out separately). hasRemoteContribution — used for the
// local_integrity rule — is computed over the full ancestor list, local and
// remote alike, since "any A has contributed from a node ≠ D's node" is a
// property of the whole closure, not just the local slice.
func (e *Engine) evalLocalRules(ctx context.Context, ancestors []api.ID, dest api.ID) (bool, DeniedReason) {
	hasRemoteContribution := false
	for _, a := range ancestors {
		if a.Node != e.self {
			hasRemoteContribution = true
			break
		}
	}

	dLabel := e.pol.Get(dest)
	isRemoteDestination := dest.Resource.Kind == api.KindStream

	if dLabel.LocalIntegrity && hasRemoteContribution {
		return false, ReasonIntegrity
	}

	for _, a := range ancestors {
		if a.Node != e.self {
			continue
		}
		if e.pol.Deleted(a) {
			return false, ReasonDeletion
		}
		label := e.pol.Get(a)
		if label.LocalConfidentiality && isRemoteDestination {
			return false, ReasonConfidentiality
		}
		if label.ConsentRequired {
			if val := e.cons.RequestDecision(ctx, a, dest, ConsentDeadline); val != api.ConsentGranted {
				return false, ReasonConsent
			}
		}
	}
	return true, ReasonNone
}

// evaluateRemotePartition issues a single M2M evaluate_compliance call
// covering every ancestor this node attributes to node, per spec.md §4.4
// step 4.c.
func (e *Engine) evaluateRemotePartition(ctx context.Context, node api.NodeID, ancestors []api.ID, D api.ID) (bool, DeniedReason, error) {
	conn, err := e.peers.Conn(node)
	if err != nil {
		return false, ReasonPeerUnavailable, err
	}

	callCtx, cancel := context.WithTimeout(ctx, M2MDeadline)
	defer cancel()

	resp, err := m2mpb.NewM2MClient(conn).EvaluateCompliance(callCtx, &m2mpb.EvaluateComplianceRequest{
		Ancestors:   wire.EncodeIDs(ancestors),
		Destination: wire.EncodeID(D),
	})
	if err != nil {
		return false, ReasonPeerUnavailable, peerdial.MapGRPCCtxErr(callCtx, err)
	}
	if !resp.Allow {
		return false, ReasonRemoteDenied, nil
	}
	return true, ReasonNone, nil
}

// syncProvenanceToPeer pushes prov(D) to D's peer endpoint after a
// successful write into a Stream resource (spec.md §4.4 io_report
// response, §3 invariant "prov updates after a write across nodes must be
// reflected on both endpoints").
func (e *Engine) syncProvenanceToPeer(ctx context.Context, D api.ID) {
	peerNode := api.NodeID(D.Resource.Peer)

	conn, err := e.peers.Conn(peerNode)
	if err != nil {
		e.log.WithError(err).WithField("peer", peerNode).Warn("compliance: sync_provenance dial failed")
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, M2MDeadline)
	defer cancel()

	_, err = m2mpb.NewM2MClient(conn).SyncProvenance(callCtx, &m2mpb.StreamProv{
		LocalSocket: string(D.Resource.Peer),
		PeerSocket:  string(D.Resource.Local),
		Provenance:  wire.EncodeIDs(e.prov.Get(D)),
	})
	if err := peerdial.MapGRPCCtxErr(callCtx, err); err != nil {
		e.log.WithError(err).WithField("peer", peerNode).Warn("compliance: sync_provenance failed")
	}
}

// ReserveRemote is the peer-side half of M2M reserve_remote: a caller on
// another node is about to write into the stream it sees as
// (callerLocal, callerPeer); this node's view of that same resource has
// local and peer swapped. It reserves just long enough to take a
// consistent label+provenance snapshot, then releases — the actual
// provenance mutation happens later via sync_provenance once the caller's
// write completes.
func (e *Engine) ReserveRemote(ctx context.Context, callerLocal, callerPeer api.Endpoint) (api.Label, []api.ID, error) {
	res := api.Stream(callerPeer, callerLocal)
	id := api.ID{Node: e.self, Resource: res}

	grant, ok := e.seq.Reserve(res, api.DirectionInput, ctx.Done())
	if !ok {
		return api.Label{}, nil, errors.New("compliance: reserve_remote cancelled")
	}
	defer func() {
		if err := e.seq.Release(res, grant.ID); err != nil {
			e.log.WithError(err).WithField("grant_id", grant.ID).Warn("compliance: release after reserve_remote snapshot")
		}
	}()

	return e.pol.Get(id), e.prov.Get(id), nil
}

// SyncProvenance is the peer-side half of M2M sync_provenance: merges
// incoming lineage into this node's view of the stream the caller names by
// its own (local, peer) pair.
func (e *Engine) SyncProvenance(callerLocal, callerPeer api.Endpoint, incoming []api.ID) {
	res := api.Stream(callerPeer, callerLocal)
	id := api.ID{Node: e.self, Resource: res}
	e.prov.Merge(id, incoming)
}

// EvaluateCompliance is the peer-side half of M2M evaluate_compliance: a
// pure function over the ancestors attributed to this node (spec.md §4.6:
// "recursive through its own provenance" — transitive maintenance of prov
// by UpdateOnInput means the supplied ancestors already carry their own
// transitive lineage, so no further expansion is needed here).
func (e *Engine) EvaluateCompliance(ctx context.Context, ancestors []api.ID, destination api.ID) (bool, DeniedReason) {
	allow, reason := e.evalLocalRules(ctx, ancestors, destination)
	return allow, reason
}

// BroadcastDeletion is the peer-side half of M2M broadcast_deletion: record
// the resource in the shadow remote-deletions set consulted during closure
// evaluation (spec.md §4.4).
func (e *Engine) BroadcastDeletion(resource api.ID) {
	e.pol.MarkRemoteDeletion(resource)
}

// NotifyConsent is the peer-side half of M2M notify_consent: route the
// (source, destination) pair to the resource owner's consent broker and
// wait for a decision or timeout.
func (e *Engine) NotifyConsent(ctx context.Context, source, destination api.ID) (granted, timedOut bool) {
	val := e.cons.RequestDecision(ctx, source, destination, ConsentDeadline)
	if val == api.ConsentGranted {
		return true, false
	}
	return false, true
}

// SetDeleted drives the O2M set_deleted operation end to end: transitions
// id none→pending locally, fans out broadcast_deletion to every peer this
// node currently talks to, then confirms once every one of them has
// acknowledged; if any peer cannot be dialed or the call fails, id stays
// pending (which denies exactly as confirmed does). Fanning out to every known peer
// rather than a precise reverse index of "nodes whose provenance contains
// id" is a deliberate simplification — the spec's non-goals exclude
// persistence machinery, and this node's peer set is small and
// config-provided (spec.md §4.9).
func (e *Engine) SetDeleted(ctx context.Context, id api.ID) error {
	if err := e.pol.SetDeleted(id); err != nil {
		return err
	}

	acked := true
	for _, peer := range e.peers.KnownPeers() {
		conn, err := e.peers.Conn(peer)
		if err != nil {
			e.log.WithError(err).WithField("peer", peer).Warn("compliance: broadcast_deletion dial failed")
			acked = false
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, M2MDeadline)
		_, callErr := m2mpb.NewM2MClient(conn).BroadcastDeletion(callCtx, &m2mpb.DeletionNotice{Resource: wire.EncodeID(id)})
		cancel()
		if callErr := peerdial.MapGRPCCtxErr(callCtx, callErr); callErr != nil {
			e.log.WithError(callErr).WithField("peer", peer).Warn("compliance: broadcast_deletion failed")
			acked = false
		}
	}

	if acked {
		e.pol.ConfirmDeleted(id)
	}
	return nil
}

// EnforceConsent drives O2M enforce_consent: off→armed. Arms the broker's
// notification channel for id and sets the policy flag evalLocalRules
// actually gates on, so a flow through id blocks starting with the very
// next io_request rather than only when a test pokes the flag directly.
func (e *Engine) EnforceConsent(id api.ID) {
	e.cons.Enforce(id)
	e.pol.SetConsentRequired(id, true)
}

// SetConsentDecision drives O2M set_consent_decision: records and wakes.
func (e *Engine) SetConsentDecision(source, destination api.ID, grant bool) api.ConsentDecision {
	value := api.ConsentDenied
	if grant {
		value = api.ConsentGranted
	}
	return e.cons.Decide(source, destination, value)
}

// GetReferences drives O2M get_references: the provenance closure of id,
// partitioned local/remote.
func (e *Engine) GetReferences(id api.ID) provenance.Closure {
	return e.prov.Closure(id)
}

// GetPolicies drives O2M get_policies: the policy Label recorded for id.
func (e *Engine) GetPolicies(id api.ID) api.Label {
	return e.pol.Get(id)
}
