// Package consent implements the per-resource consent state machine of
// spec.md §4.4/§4.7: {off, armed, decided}, a bounded notification channel
// addressable by the resource owner, and per-(source, destination) wakers
// that the compliance engine suspends on while a human (or the O2M operator)
// decides.
//
// The notification channel and waker pattern is grounded on
// consumer.Resolver's own single-shot signal channels (storeReadyCh,
// invalidateCh): a consent waiter parks on a one-slot buffered channel that
// the decision handler sends the decision on, rather than polling.
package consent

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/metrics"
)

// DefaultNotificationQueueDepth bounds the per-resource pending-notification
// queue (spec.md §4.4: "opens a notification channel (a bounded queue)").
const DefaultNotificationQueueDepth = 64

// Notification is one pending consent request surfaced to a resource
// owner: the proposed flow (source=R, destination=D) awaiting a decision.
type Notification struct {
	Source      api.ID
	Destination api.ID
}

type pairKey struct {
	source      api.ID
	destination api.ID
}

type waker struct {
	decided chan api.ConsentDecision
}

// Broker owns the armed/off state per resource, the bounded notification
// queues, and the in-flight waker table. Safe for concurrent use.
type Broker struct {
	clock clockwork.Clock
	log   *log.Entry

	mu      sync.Mutex
	armed   map[api.ID]chan Notification
	wakers  map[pairKey]*waker
	nextDec uint64
}

// New returns a Broker using the real wall clock. Pass a
// clockwork.FakeClock in tests to control timeout behavior deterministically.
func New(clock clockwork.Clock, logger *log.Entry) *Broker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Broker{
		clock:  clock,
		log:    logger,
		armed:  make(map[api.ID]chan Notification),
		wakers: make(map[pairKey]*waker),
	}
}

// Enforce transitions a resource's consent state off→armed, opening its
// notification queue. Re-arming an already-armed resource is a no-op.
func (b *Broker) Enforce(id api.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.armed[id]; ok {
		return
	}
	b.armed[id] = make(chan Notification, DefaultNotificationQueueDepth)
}

// Clock returns the Broker's notion of time, so callers can compute
// deadlines (and tests can advance a clockwork.FakeClock) consistently.
func (b *Broker) Clock() clockwork.Clock { return b.clock }

// Armed reports whether consent is currently enforced for id.
func (b *Broker) Armed(id api.ID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.armed[id]
	return ok
}

// Notifications returns the channel a resource owner's O2M client should
// drain to receive pending consent requests for id. Returns nil, false if
// consent is not armed for id.
func (b *Broker) Notifications(id api.ID) (<-chan Notification, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.armed[id]
	return ch, ok
}

// RequestDecision pushes (source, destination) onto source's notification
// queue and blocks the calling compliance check until a decision is
// recorded via Decide, ctx is cancelled, or deadline (measured against the
// Broker's own Clock, so tests can drive it deterministically with a
// clockwork.FakeClock) elapses — whichever comes first. Timeout defaults to
// deny, per spec.md §4.4 ("Default on timeout is deny").
func (b *Broker) RequestDecision(ctx context.Context, source, destination api.ID, deadline time.Duration) api.ConsentDecisionValue {
	key := pairKey{source: source, destination: destination}

	b.mu.Lock()
	w, ok := b.wakers[key]
	if !ok {
		w = &waker{decided: make(chan api.ConsentDecision, 1)}
		b.wakers[key] = w
	}
	ch := b.armed[source]
	b.mu.Unlock()

	if ch != nil {
		select {
		case ch <- Notification{Source: source, Destination: destination}:
			metrics.ConsentQueueDepth.WithLabelValues(source.String()).Set(float64(len(ch)))
		default:
			b.log.WithField("source", source).Warn("consent: notification queue full, dropping")
		}
	}

	select {
	case dec := <-w.decided:
		b.clearWaker(key)
		return dec.Value
	case <-ctx.Done():
		b.clearWaker(key)
		return api.ConsentDenied
	case <-b.clock.After(deadline):
		b.clearWaker(key)
		return api.ConsentDenied
	}
}

func (b *Broker) clearWaker(key pairKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.wakers, key)
}

// Decide records a decision for (source, destination) and wakes the waiting
// compliance check, if one is currently suspended. A decision with no
// waiting checker (decided out of band, ahead of the request) is recorded
// as a buffered send so the next RequestDecision for the same pair observes
// it immediately.
func (b *Broker) Decide(source, destination api.ID, value api.ConsentDecisionValue) api.ConsentDecision {
	b.mu.Lock()
	b.nextDec++
	dec := api.ConsentDecision{Value: value, DecisionID: b.nextDec}

	key := pairKey{source: source, destination: destination}
	w, ok := b.wakers[key]
	if !ok {
		w = &waker{decided: make(chan api.ConsentDecision, 1)}
		b.wakers[key] = w
	}
	b.mu.Unlock()

	select {
	case w.decided <- dec:
	default:
		// A decision is already buffered; overwrite isn't meaningful here
		// since consent decisions are one-shot per pending request.
	}
	return dec
}
