package consent

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mablr/trace2e/api"
)

func TestEnforceArmsResourceOnce(t *testing.T) {
	b := New(nil, nil)
	src := api.ID{Node: "n1", Resource: api.File("/x")}

	assert.False(t, b.Armed(src))
	b.Enforce(src)
	assert.True(t, b.Armed(src))
	b.Enforce(src) // idempotent
	assert.True(t, b.Armed(src))
}

func TestRequestDecisionGranted(t *testing.T) {
	b := New(nil, nil)
	src := api.ID{Node: "n1", Resource: api.File("/x")}
	dst := api.ID{Node: "n1", Resource: api.File("/y")}
	b.Enforce(src)

	notifications, ok := b.Notifications(src)
	require.True(t, ok)

	go func() {
		n := <-notifications
		assert.Equal(t, src, n.Source)
		assert.Equal(t, dst, n.Destination)
		b.Decide(n.Source, n.Destination, api.ConsentGranted)
	}()

	got := b.RequestDecision(context.Background(), src, dst, time.Second)
	assert.Equal(t, api.ConsentGranted, got)
}

func TestRequestDecisionTimesOutToDeny(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New(clock, nil)
	src := api.ID{Node: "n1", Resource: api.File("/x")}
	dst := api.ID{Node: "n1", Resource: api.File("/y")}
	b.Enforce(src)

	done := make(chan api.ConsentDecisionValue, 1)
	go func() {
		done <- b.RequestDecision(context.Background(), src, dst, 30*time.Second)
	}()

	clock.BlockUntil(1)
	clock.Advance(31 * time.Second)

	select {
	case got := <-done:
		assert.Equal(t, api.ConsentDenied, got)
	case <-time.After(time.Second):
		t.Fatal("timeout did not unblock RequestDecision")
	}
}

func TestRequestDecisionCancelledByContext(t *testing.T) {
	b := New(nil, nil)
	src := api.ID{Node: "n1", Resource: api.File("/x")}
	dst := api.ID{Node: "n1", Resource: api.File("/y")}
	b.Enforce(src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan api.ConsentDecisionValue, 1)
	go func() { done <- b.RequestDecision(ctx, src, dst, time.Minute) }()

	cancel()

	select {
	case got := <-done:
		assert.Equal(t, api.ConsentDenied, got)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock RequestDecision")
	}
}

func TestDecisionIDsAreMonotonic(t *testing.T) {
	b := New(nil, nil)
	src := api.ID{Node: "n1", Resource: api.File("/x")}
	d1 := b.Decide(src, src, api.ConsentGranted)
	d2 := b.Decide(src, src, api.ConsentDenied)
	assert.Greater(t, d2.DecisionID, d1.DecisionID)
}
