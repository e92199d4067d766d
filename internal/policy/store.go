// Package policy owns the per-resource Label record of spec.md §3 and the
// deletion state machine of spec.md §4.4: a small map guarded by a mutex,
// the same shape gazette keeps its own in-memory ShardSpec snapshots in
// before a keyspace watch updates them — there is no ecosystem library in
// the pack for a flags-record store this small, so a plain guarded map is
// the idiomatic choice.
package policy

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
)

// Store holds one Label per resource id this node has policy state for. A
// resource with no entry behaves as the zero Label (spec.md §3: "An absent
// record is equivalent to the zero value").
type Store struct {
	log *log.Entry

	mu     sync.RWMutex
	labels map[api.ID]api.Label
	// remoteDeletions is the "shadow remote-deletions set" of spec.md §4.4,
	// populated by broadcast_deletion from a peer, consulted during closure
	// evaluation even for resources this node has no local Label for.
	remoteDeletions map[api.ID]struct{}
}

// New returns an empty Store.
func New(logger *log.Entry) *Store {
	return &Store{
		log:             logger,
		labels:          make(map[api.ID]api.Label),
		remoteDeletions: make(map[api.ID]struct{}),
	}
}

// Get returns the Label for id, or the zero Label if none is recorded.
func (s *Store) Get(id api.ID) api.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[id]
}

// SetLocalConfidentiality sets or clears the local_confidentiality flag
// (O2M surface, spec.md §4.7).
func (s *Store) SetLocalConfidentiality(id api.ID, on bool) {
	s.mutate(id, func(l *api.Label) { l.LocalConfidentiality = on })
}

// SetLocalIntegrity sets or clears the local_integrity flag.
func (s *Store) SetLocalIntegrity(id api.ID, on bool) {
	s.mutate(id, func(l *api.Label) { l.LocalIntegrity = on })
}

// SetConsentRequired sets or clears the consent_required flag, independent
// of the richer enforce_consent/set_consent_decision state machine owned by
// the consent package.
func (s *Store) SetConsentRequired(id api.ID, on bool) {
	s.mutate(id, func(l *api.Label) { l.ConsentRequired = on })
}

// ErrAlreadyPending is returned by SetDeleted when the resource is already
// pending or confirmed deleted — set_deleted is a one-shot none→pending
// transition (spec.md §4.4).
var ErrAlreadyPending = errPending("resource is already pending or confirmed deletion")

type errPending string

func (e errPending) Error() string { return string(e) }

// SetDeleted transitions a locally-owned resource's deletion state from
// none to pending. The caller (compliance engine) is responsible for
// driving the M2M broadcast_deletion fan-out and the eventual
// pending→confirmed transition via ConfirmDeleted.
func (s *Store) SetDeleted(id api.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.labels[id]
	if l.Deleted != api.DeletionNone {
		return ErrAlreadyPending
	}
	l.Deleted = api.DeletionPending
	s.labels[id] = l
	return nil
}

// ConfirmDeleted transitions pending→confirmed once all broadcast_deletion
// acks are in.
func (s *Store) ConfirmDeleted(id api.ID) {
	s.mutate(id, func(l *api.Label) { l.Deleted = api.DeletionConfirmed })
}

// MarkRemoteDeletion records R in the shadow remote-deletions set on
// receipt of M2M broadcast_deletion (spec.md §4.4): "record R in a shadow
// 'remote-deletions' set used during closure evaluation".
func (s *Store) MarkRemoteDeletion(id api.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteDeletions[id] = struct{}{}
}

// Deleted reports whether id is deleted from this node's point of view:
// either its own Label says pending/confirmed, or it appears in the shadow
// remote-deletions set. "Once pending: any new compliance check with R in
// closure denies" (spec.md §4.4) — callers treat both states as deny.
func (s *Store) Deleted(id api.ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.labels[id].Deleted != api.DeletionNone {
		return true
	}
	_, shadow := s.remoteDeletions[id]
	return shadow
}

func (s *Store) mutate(id api.ID, fn func(*api.Label)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.labels[id]
	fn(&l)
	s.labels[id] = l
}
