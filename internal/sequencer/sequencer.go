// Package sequencer implements the Sequencer of spec.md §4.2: per-resource
// mutual exclusion between reservations (states {free, reserved}), FIFO-fair
// across waiters, with a monotonically increasing grant id minted on every
// successful reservation. Exclusion is total — even two concurrent readers
// of the same resource are serialized (spec.md §8, scenario 6) — there is no
// reader co-admission.
//
// The wait queue is built from container/list plus a channel-per-waiter
// hand-off, the same shape gazette's own append_fsm.go uses to chain
// AsyncAppends against a journal: a waiter parks on a channel that the
// previous holder closes when it releases, rather than spinning on a shared
// condition variable.
package sequencer

import (
	"container/list"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/metrics"
)

// ErrNotHeld is returned by Release for a grant id that isn't the current
// holder of its resource (spec.md §7 StaleGrant).
var ErrNotHeld = errors.New("grant id does not hold a reservation on this resource")

// Grant identifies one successful reservation. IDs are unique and strictly
// increasing for the lifetime of the Sequencer; ID is promoted to a
// uint256 only at the P2M wire boundary (spec.md §4.9), so the hot path here
// stays a plain uint64 compare-and-increment.
type Grant struct {
	ID        uint64
	Resource  api.Resource
	Direction api.Direction
}

type waiter struct {
	grantID uint64
	dir     api.Direction
	ready   chan struct{}
}

type queue struct {
	holder *waiter
	waitq  *list.List // of *waiter
}

// Sequencer serializes reservations against a shared resource set, one FIFO
// queue per resource. It holds no reference to provenance or policy state;
// callers snapshot whatever they need before calling Reserve, and must never
// call Reserve or Release while holding a registry or provenance lock
// (spec.md §5).
type Sequencer struct {
	log *log.Entry

	mu     sync.Mutex
	queues map[api.Resource]*queue
	nextID uint64
}

// New returns an empty Sequencer.
func New(logger *log.Entry) *Sequencer {
	return &Sequencer{
		log:    logger,
		queues: make(map[api.Resource]*queue),
	}
}

// Reserve blocks the calling goroutine until it is granted exclusive access
// to res, FIFO-ordered against any other waiters already queued for the same
// resource, or until cancel fires first (in which case it returns false and
// mints no grant).
func (s *Sequencer) Reserve(res api.Resource, dir api.Direction, cancel <-chan struct{}) (Grant, bool) {
	s.mu.Lock()
	q, ok := s.queues[res]
	if !ok {
		q = &queue{waitq: list.New()}
		s.queues[res] = q
	}

	if q.holder == nil {
		s.nextID++
		g := Grant{ID: s.nextID, Resource: res, Direction: dir}
		q.holder = &waiter{grantID: g.ID, dir: dir}
		s.mu.Unlock()
		return g, true
	}

	w := &waiter{ready: make(chan struct{}), dir: dir}
	elem := q.waitq.PushBack(w)
	metrics.ReservationQueueDepth.WithLabelValues(res.Kind.String()).Inc()
	s.mu.Unlock()

	select {
	case <-w.ready:
		return Grant{ID: w.grantID, Resource: res, Direction: dir}, true
	case <-cancel:
		s.mu.Lock()
		// If we're still queued (not yet woken), remove ourselves. If we
		// raced a wakeup, the waker already popped us; fall through to
		// drain the grant we won but no longer want.
		select {
		case <-w.ready:
			s.mu.Unlock()
			s.release(res, w.grantID)
			return Grant{}, false
		default:
			q.waitq.Remove(elem)
			s.mu.Unlock()
			metrics.ReservationQueueDepth.WithLabelValues(res.Kind.String()).Dec()
			return Grant{}, false
		}
	}
}

// Release relinquishes the reservation identified by grantID on res, waking
// the next FIFO waiter if any. Releasing a grant that isn't the current
// holder returns ErrNotHeld and has no effect on the queue (spec.md §7
// StaleGrant).
func (s *Sequencer) Release(res api.Resource, grantID uint64) error {
	if !s.release(res, grantID) {
		return ErrNotHeld
	}
	return nil
}

func (s *Sequencer) release(res api.Resource, grantID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[res]
	if !ok || q.holder == nil || q.holder.grantID != grantID {
		return false
	}

	q.holder = nil
	s.wakeNext(q, res)
	return true
}

// wakeNext must be called with s.mu held. It promotes the single next
// waiter at the front of the FIFO to holder, if any.
func (s *Sequencer) wakeNext(q *queue, res api.Resource) {
	front := q.waitq.Front()
	if front == nil {
		return
	}
	w := front.Value.(*waiter)
	q.waitq.Remove(front)
	metrics.ReservationQueueDepth.WithLabelValues(res.Kind.String()).Dec()

	s.nextID++
	w.grantID = s.nextID
	q.holder = w
	close(w.ready)
}
