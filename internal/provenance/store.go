// Package provenance implements the Provenance Store of spec.md §4.3:
// maintains prov(R) — the set of resource ids that have contributed to R's
// contents — and exposes a cycle-safe closure walk over the union-of-prov
// graph, partitioning ancestors by owning node so callers can batch a single
// M2M evaluate_compliance per remote partition.
//
// Reads take a snapshot copy of the accessed entries and release the lock
// before returning, the same discipline consumer.Resolver.Resolve uses for
// the keyspace: never hold this store's lock across an M2M call or any
// other suspension point (spec.md §5, §4.3 "copy-on-read ... to avoid
// holding locks across M2M calls").
package provenance

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/mablr/trace2e/api"
)

// closureCacheSize bounds the per-node memoized-closure LRU (spec.md §4.9
// domain stack: closure-partition caching). A cache miss just recomputes the
// walk; this is a performance aid, never a correctness dependency.
const closureCacheSize = 4096

// closureKey is the closure cache's key: a resource id paired with the
// provenance generation it was computed against. Any UpdateOnInput or Merge
// anywhere in the store bumps the generation, so a stale entry is never
// looked up again rather than having to be found and evicted — simpler than
// transitively invalidating every cached closure whose walk passed through
// the mutated resource.
type closureKey struct {
	id  api.ID
	gen uint64
}

// Store owns prov(R) for every resource this node has seen, local or
// remote. It is safe for concurrent use.
type Store struct {
	self api.NodeID
	log  *log.Entry

	mu   sync.RWMutex
	prov map[api.ID]map[api.ID]struct{}
	gen  uint64

	closureCache *lru.Cache[closureKey, Closure]
}

// New returns an empty Store owned by the given node.
func New(self api.NodeID, logger *log.Entry) *Store {
	cache, _ := lru.New[closureKey, Closure](closureCacheSize)
	return &Store{
		self:         self,
		log:          logger,
		prov:         make(map[api.ID]map[api.ID]struct{}),
		closureCache: cache,
	}
}

// Get returns a snapshot copy of prov(R). An unknown resource has an empty
// provenance set, not an error — provenance is additive-only from nothing.
func (s *Store) Get(r api.ID) []api.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.prov[r])
}

// UpdateOnInput sets prov(dest) := prov(dest) ∪ prov(src) ∪ {src}. The
// operation is commutative and idempotent, per spec.md §4.3: applying it
// twice, or in either order against two sources, converges to the same set.
func (s *Store) UpdateOnInput(dest, src api.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.prov[dest]
	if set == nil {
		set = make(map[api.ID]struct{})
		s.prov[dest] = set
	}
	set[src] = struct{}{}
	for anc := range s.prov[src] {
		set[anc] = struct{}{}
	}
	s.gen++
}

// Closure is the result of a closure walk: the distinct ancestor ids
// partitioned into those owned by this node and those owned by each peer.
type Closure struct {
	Local  []api.ID
	Remote map[api.NodeID][]api.ID
}

// Closure performs a breadth-first traversal of the union-of-prov graph
// rooted at r, with a cycle guard (each id visited at most once), and
// returns the distinct ancestors partitioned by owning node (spec.md §4.3:
// "yields whether the resource is local or remote (dispatched by node
// id)"). The walk takes successive read-snapshots per node — it never holds
// the store lock for its full duration.
func (s *Store) Closure(r api.ID) Closure {
	s.mu.RLock()
	key := closureKey{id: r, gen: s.gen}
	s.mu.RUnlock()

	if c, ok := s.closureCache.Get(key); ok {
		return c
	}

	visited := map[api.ID]struct{}{r: {}}
	local := make([]api.ID, 0)
	remote := make(map[api.NodeID][]api.ID)

	queue := []api.ID{r}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		s.mu.RLock()
		next := snapshot(s.prov[cur])
		s.mu.RUnlock()

		for _, anc := range next {
			if _, seen := visited[anc]; seen {
				continue
			}
			visited[anc] = struct{}{}

			if anc.Node == s.self {
				local = append(local, anc)
			} else {
				remote[anc.Node] = append(remote[anc.Node], anc)
			}
			queue = append(queue, anc)
		}
	}

	c := Closure{Local: local, Remote: remote}
	s.closureCache.Add(key, c)
	return c
}

// Merge is the peer-side half of sync_provenance (spec.md §4.6): it merges
// an externally-supplied provenance set into dest's own, without requiring
// the sender's full ancestor closure to already be known locally.
func (s *Store) Merge(dest api.ID, incoming []api.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.prov[dest]
	if set == nil {
		set = make(map[api.ID]struct{})
		s.prov[dest] = set
	}
	for _, anc := range incoming {
		set[anc] = struct{}{}
	}
	s.gen++
}

func snapshot(set map[api.ID]struct{}) []api.ID {
	if len(set) == 0 {
		return nil
	}
	out := make([]api.ID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
