package compliance

import (
	"context"
	"testing"
	"time"

	gc "github.com/go-check/check"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/internal/consent"
	"github.com/mablr/trace2e/internal/peerdial"
	"github.com/mablr/trace2e/internal/policy"
	"github.com/mablr/trace2e/internal/provenance"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/sequencer"
)

func Test(t *testing.T) { gc.TestingT(t) }

const self api.NodeID = "node-a"

type EngineSuite struct{}

var _ = gc.Suite(&EngineSuite{})

func noPeers(api.NodeID) (string, bool) { return "", false }

func newFixture() (*Engine, *policy.Store, *provenance.Store, *consent.Broker, clockwork.FakeClock) {
	entry := log.NewEntry(log.New())
	reg := registry.New(self, entry)
	seq := sequencer.New(entry)
	prov := provenance.New(self, entry)
	pol := policy.New(entry)
	clock := clockwork.NewFakeClock()
	cons := consent.New(clock, entry)
	dial := peerdial.New(noPeers, entry)
	return NewEngine(self, reg, seq, prov, pol, cons, dial, entry), pol, prov, cons, clock
}

// TestLocalReadDeniedAfterDeletion exercises spec.md §8 scenario 1: a file
// read after set_deleted is denied, and succeeds beforehand.
func (s *EngineSuite) TestLocalReadDeniedAfterDeletion(c *gc.C) {
	e, _, _, _, _ := newFixture()
	ctx := context.Background()

	file := api.File("/tmp/secret")
	_, err := e.reg.Resolve(1, 3)
	c.Assert(err, gc.NotNil)

	_, err = e.reg.EnrollLocal(1, 3, file.Path)
	c.Assert(err, gc.IsNil)

	grantID, allowed, reason, err := e.IoRequest(ctx, 1, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)
	c.Assert(reason, gc.Equals, ReasonNone)
	e.IoReport(ctx, 1, 3, grantID, true)

	c.Assert(e.SetDeleted(ctx, api.ID{Node: self, Resource: file}), gc.IsNil)

	_, allowed, reason, err = e.IoRequest(ctx, 1, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, false)
	c.Assert(reason, gc.Equals, ReasonDeletion)
}

// TestConcurrentReadersSerialize exercises spec.md §8 scenario 6: two
// readers of the same file handle are never granted simultaneously.
func (s *EngineSuite) TestConcurrentReadersSerialize(c *gc.C) {
	e, _, _, _, _ := newFixture()
	ctx := context.Background()

	_, err := e.reg.EnrollLocal(1, 3, "/tmp/shared")
	c.Assert(err, gc.IsNil)

	grant1, allowed, _, err := e.IoRequest(ctx, 1, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)

	done := make(chan uint64, 1)
	go func() {
		id, ok, _, _ := e.IoRequest(context.Background(), 1, 3, api.DirectionInput)
		if ok {
			done <- id
		}
	}()

	select {
	case <-done:
		c.Fatal("second reader admitted while first reservation held")
	case <-time.After(50 * time.Millisecond):
	}

	e.IoReport(ctx, 1, 3, grant1, true)

	select {
	case grant2 := <-done:
		c.Assert(grant2, gc.Not(gc.Equals), grant1)
	case <-time.After(time.Second):
		c.Fatal("second reader never admitted after release")
	}
}

// TestConfidentialityBlocksStreamOutput exercises spec.md §8 scenario 5: a
// process that has read a confidential file may not relay it into a Stream.
func (s *EngineSuite) TestConfidentialityBlocksStreamOutput(c *gc.C) {
	e, pol, _, _, _ := newFixture()
	ctx := context.Background()

	file := api.File("/tmp/classified")
	fileID := api.ID{Node: self, Resource: file}
	pol.SetLocalConfidentiality(fileID, true)

	_, err := e.reg.EnrollLocal(7, 3, file.Path)
	c.Assert(err, gc.IsNil)
	grant, allowed, _, err := e.IoRequest(ctx, 7, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)
	e.IoReport(ctx, 7, 3, grant, true)

	_, err = e.reg.EnrollRemote(7, 4, "127.0.0.1:9000", "10.0.0.2:9000")
	c.Assert(err, gc.IsNil)

	_, allowed, reason, err := e.IoRequest(ctx, 7, 4, api.DirectionOutput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, false)
	c.Assert(reason, gc.Equals, ReasonConfidentiality)
}

// TestConsentGrantPermitsFlow and TestConsentTimeoutDeniesFlow exercise
// spec.md §8 scenarios 3/4 in their single-node form: a consent-armed
// ancestor gates a flow until set_consent_decision or deadline.
func (s *EngineSuite) TestConsentGrantPermitsFlow(c *gc.C) {
	e, pol, _, cons, _ := newFixture()

	file := api.File("/tmp/needs-consent")
	fileID := api.ID{Node: self, Resource: file}
	pol.SetConsentRequired(fileID, true)
	cons.Enforce(fileID)

	_, err := e.reg.EnrollLocal(9, 3, file.Path)
	c.Assert(err, gc.IsNil)

	result := make(chan bool, 1)
	go func() {
		_, allowed, _, _ := e.IoRequest(context.Background(), 9, 3, api.DirectionInput)
		result <- allowed
	}()

	processID := api.ID{Node: self, Resource: api.Resource{Kind: api.KindProcess, Pid: 9}}
	waitForNotification(c, cons, fileID)
	cons.Decide(fileID, processID, api.ConsentGranted)

	select {
	case allowed := <-result:
		c.Assert(allowed, gc.Equals, true)
	case <-time.After(time.Second):
		c.Fatal("io_request never resolved after consent grant")
	}
}

func (s *EngineSuite) TestConsentTimeoutDeniesFlow(c *gc.C) {
	e, pol, _, cons, clock := newFixture()

	file := api.File("/tmp/needs-consent-2")
	fileID := api.ID{Node: self, Resource: file}
	pol.SetConsentRequired(fileID, true)
	cons.Enforce(fileID)

	_, err := e.reg.EnrollLocal(11, 3, file.Path)
	c.Assert(err, gc.IsNil)

	result := make(chan struct {
		allowed bool
		reason  DeniedReason
	}, 1)
	go func() {
		_, allowed, reason, _ := e.IoRequest(context.Background(), 11, 3, api.DirectionInput)
		result <- struct {
			allowed bool
			reason  DeniedReason
		}{allowed, reason}
	}()

	waitForNotification(c, cons, fileID)
	clock.BlockUntil(1)
	clock.Advance(ConsentDeadline + time.Second)

	select {
	case r := <-result:
		c.Assert(r.allowed, gc.Equals, false)
		c.Assert(r.reason, gc.Equals, ReasonConsent)
	case <-time.After(time.Second):
		c.Fatal("io_request never resolved after consent deadline")
	}
}

// TestEnforceConsentGatesFlowWithoutDirectPolicyPoke exercises the O2M
// enforce_consent surface's only real entry point, Engine.EnforceConsent,
// instead of poking policy.Store.SetConsentRequired directly: the operator
// has no way to set that flag except through enforce_consent, so the gate
// must actually arm from this one call.
func (s *EngineSuite) TestEnforceConsentGatesFlowWithoutDirectPolicyPoke(c *gc.C) {
	e, _, _, cons, _ := newFixture()

	file := api.File("/tmp/needs-consent-3")
	fileID := api.ID{Node: self, Resource: file}
	e.EnforceConsent(fileID)

	_, err := e.reg.EnrollLocal(13, 3, file.Path)
	c.Assert(err, gc.IsNil)

	result := make(chan bool, 1)
	go func() {
		_, allowed, _, _ := e.IoRequest(context.Background(), 13, 3, api.DirectionInput)
		result <- allowed
	}()

	processID := api.ID{Node: self, Resource: api.Resource{Kind: api.KindProcess, Pid: 13}}
	waitForNotification(c, cons, fileID)
	cons.Decide(fileID, processID, api.ConsentGranted)

	select {
	case allowed := <-result:
		c.Assert(allowed, gc.Equals, true)
	case <-time.After(time.Second):
		c.Fatal("io_request never resolved after consent grant")
	}
}

// TestRemoteDeletionShadowDeniesWithoutPeerRoundTrip exercises the
// broadcast_deletion shadow set: a remote ancestor recorded as deleted via
// MarkRemoteDeletion must deny the flow directly, rather than only denying
// because the (here, unreachable) owning peer can't be dialed.
func (s *EngineSuite) TestRemoteDeletionShadowDeniesWithoutPeerRoundTrip(c *gc.C) {
	e, pol, prov, _, _ := newFixture()
	ctx := context.Background()

	file := api.File("/tmp/local-read")
	fileID := api.ID{Node: self, Resource: file}
	remoteAnc := api.ID{Node: "node-b", Resource: api.File("/remote/secret")}

	prov.UpdateOnInput(fileID, remoteAnc)
	pol.MarkRemoteDeletion(remoteAnc)

	_, err := e.reg.EnrollLocal(17, 3, file.Path)
	c.Assert(err, gc.IsNil)

	_, allowed, reason, err := e.IoRequest(ctx, 17, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, false)
	c.Assert(reason, gc.Equals, ReasonDeletion)
}

func waitForNotification(c *gc.C, cons *consent.Broker, id api.ID) {
	ch, ok := cons.Notifications(id)
	c.Assert(ok, gc.Equals, true)
	select {
	case <-ch:
	case <-time.After(time.Second):
		c.Fatal("consent notification never arrived")
	}
}

// TestIoReportFailureLeavesProvenanceUnchanged is the io_report round-trip
// law of spec.md §4.4: a failed operation releases the reservation without
// touching provenance.
func (s *EngineSuite) TestIoReportFailureLeavesProvenanceUnchanged(c *gc.C) {
	e, _, prov, _, _ := newFixture()
	ctx := context.Background()

	file := api.File("/tmp/scratch")
	fileID := api.ID{Node: self, Resource: file}
	before := prov.Get(fileID)

	_, err := e.reg.EnrollLocal(13, 3, file.Path)
	c.Assert(err, gc.IsNil)
	grant, allowed, _, err := e.IoRequest(ctx, 13, 3, api.DirectionOutput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)

	e.IoReport(ctx, 13, 3, grant, false)

	c.Assert(prov.Get(fileID), gc.DeepEquals, before)

	// the reservation must also have been released, not left held
	grant2, allowed2, _, err := e.IoRequest(ctx, 13, 3, api.DirectionOutput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed2, gc.Equals, true)
	e.IoReport(ctx, 13, 3, grant2, true)
}

// TestRetireReleasesReservation exercises handle retirement as an implicit
// io_report(failure): a held reservation must not block the next reader.
func (s *EngineSuite) TestRetireReleasesReservation(c *gc.C) {
	e, _, _, _, _ := newFixture()
	ctx := context.Background()

	_, err := e.reg.EnrollLocal(17, 3, "/tmp/retire-me")
	c.Assert(err, gc.IsNil)

	_, allowed, _, err := e.IoRequest(ctx, 17, 3, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)

	e.Retire(17, 3)

	_, err = e.reg.Resolve(17, 3)
	c.Assert(err, gc.NotNil)

	_, err = e.reg.EnrollLocal(19, 4, "/tmp/retire-me")
	c.Assert(err, gc.IsNil)
	_, allowed, _, err = e.IoRequest(ctx, 19, 4, api.DirectionInput)
	c.Assert(err, gc.IsNil)
	c.Assert(allowed, gc.Equals, true)
}
