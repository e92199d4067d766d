package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mablr/trace2e/api"
)

func id(node api.NodeID, path string) api.ID {
	return api.ID{Node: node, Resource: api.File(path)}
}

func TestUpdateOnInputIsIdempotent(t *testing.T) {
	s := New("n1", nil)
	dest, src := id("n1", "/d"), id("n1", "/s")

	s.UpdateOnInput(dest, src)
	first := s.Get(dest)
	s.UpdateOnInput(dest, src)
	second := s.Get(dest)

	assert.ElementsMatch(t, first, second)
	assert.Contains(t, second, src)
}

func TestUpdateOnInputIsCommutative(t *testing.T) {
	a := New("n1", nil)
	b := New("n1", nil)
	dest, s1, s2 := id("n1", "/d"), id("n1", "/s1"), id("n1", "/s2")

	a.UpdateOnInput(dest, s1)
	a.UpdateOnInput(dest, s2)

	b.UpdateOnInput(dest, s2)
	b.UpdateOnInput(dest, s1)

	assert.ElementsMatch(t, a.Get(dest), b.Get(dest))
}

func TestClosureTransitivePartitionsByNode(t *testing.T) {
	s := New("n1", nil)

	c := id("n1", "/c") // root
	b := id("n1", "/b")
	a := id("n2", "/a") // owned by a peer

	s.UpdateOnInput(c, b)
	s.UpdateOnInput(b, a)

	closure := s.Closure(c)
	assert.ElementsMatch(t, closure.Local, []api.ID{b})
	assert.ElementsMatch(t, closure.Remote["n2"], []api.ID{a})
}

func TestClosureHandlesCycles(t *testing.T) {
	s := New("n1", nil)
	x, y := id("n1", "/x"), id("n1", "/y")

	s.UpdateOnInput(x, y)
	s.UpdateOnInput(y, x)

	closure := s.Closure(x)
	assert.ElementsMatch(t, closure.Local, []api.ID{y})
}

func TestGetOnUnknownResourceIsEmpty(t *testing.T) {
	s := New("n1", nil)
	assert.Empty(t, s.Get(id("n1", "/never-seen")))
}

// TestClosureCacheInvalidatesAcrossTransitiveMutation reproduces the stale
// cache scenario review found: p reads f (caching Closure(p) = {f}), then a
// deeper ancestor x is added to f's own provenance well after that cache
// entry was populated. Closure(p) must reflect x on the next call, not
// cache-hit the earlier, too-small set.
func TestClosureCacheInvalidatesAcrossTransitiveMutation(t *testing.T) {
	s := New("n1", nil)
	p, f, x := id("n1", "/p"), id("n1", "/f"), id("n1", "/x")

	s.UpdateOnInput(p, f)
	first := s.Closure(p)
	assert.ElementsMatch(t, first.Local, []api.ID{f})

	s.UpdateOnInput(f, x)

	second := s.Closure(p)
	assert.ElementsMatch(t, second.Local, []api.ID{f, x})
}

func TestMergeFromPeer(t *testing.T) {
	s := New("n1", nil)
	dest := id("n1", "/stream")
	peerAnc := id("n2", "/upstream")

	s.Merge(dest, []api.ID{peerAnc})
	assert.Contains(t, s.Get(dest), peerAnc)
}
