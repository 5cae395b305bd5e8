// Package hnsw implements the Hierarchical Navigable Small World index
// (spec component C4, the hardest subsystem): a multi-layer proximity
// graph supporting concurrent insert and recall-tunable, filter-aware
// search.
//
// Grounded on the teacher's pkg/search/hnsw_index.go (per-node
// sync.RWMutex, two-heap best-first beam search), generalized to
// 64-bit point ids, multi-metric distance dispatch via pkg/vectorstore,
// the diversifying heuristic neighbor selector spec.md §4.3.1 step 4
// requires (the teacher only ever kept "closest M"), soft delete with
// ratio-triggered compaction, and atomic compare-and-set entry-point
// promotion.
package hnsw

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/velesdb/velesdb/pkg/pool"
	"github.com/velesdb/velesdb/pkg/vectorstore"
)

var (
	ErrDimensionMismatch = errors.New("hnsw: dimension mismatch")
	ErrNotFound          = errors.New("hnsw: not found")
)

// Config holds the per-collection HNSW parameters named in spec §4.3,
// persisted alongside the collection manifest.
type Config struct {
	M               int // max neighbors per node at ℓ>0
	M0              int // max neighbors at ℓ=0, default 2M
	EfConstruction  int // candidate list width during insert
	EfSearch        int // default candidate list width for queries
	LevelMultiplier float64
	MaxLevel        int // cap on sampled levels; 0 means unbounded
	// CompactionRatio is the fraction of invalid nodes that triggers a
	// compaction pass (default 0.30, per spec §4.3.4 and Design Notes §9).
	CompactionRatio float64
	// FilterWidenThreshold is the selectivity below which ef is widened
	// 4x during a filtered search (default 0.05, per spec §4.3.2).
	FilterWidenThreshold float64
}

// DefaultConfig returns the recommended defaults from spec §4.3: M=16,
// M0=32, ef_construction=200.
func DefaultConfig() Config {
	m := 16
	return Config{
		M:                    m,
		M0:                   2 * m,
		EfConstruction:       200,
		EfSearch:             100,
		LevelMultiplier:      1.0 / math.Log(float64(m)),
		MaxLevel:             32,
		CompactionRatio:      0.30,
		FilterWidenThreshold: 0.05,
	}
}

// RecallLevel is caller-visible search-quality sugar over ef_search
// (spec §4.3.2's recall knobs table).
type RecallLevel int

const (
	Fast RecallLevel = iota
	Balanced
	Accurate
	HighRecall
	Perfect
)

// EfSearch returns the ef_search value a recall level maps to; Perfect
// has no ef (it bypasses the graph for brute force) and returns 0.
func (r RecallLevel) EfSearch() int {
	switch r {
	case Fast:
		return 64
	case Balanced:
		return 128
	case Accurate:
		return 256
	case HighRecall:
		return 1024
	default:
		return 0
	}
}

// Matcher is the filter-admission predicate consulted during search
// (spec §4.2/§4.3.2: "the neighbor-admission step consults
// C3.matches(id)"). The Collection layer adapts a compiled payload filter
// into this id-keyed shape so this package stays independent of
// pkg/payload/pkg/filter.
type Matcher interface {
	Matches(id uint64) bool
}

type matchAll struct{}

func (matchAll) Matches(uint64) bool { return true }

// Result is one ranked hit from Search, in the HNSW package's internal
// distance convention (lower Dist is better); the root package's Collection
// converts Dist to the caller-facing similarity via pkg/vectorstore.
type Result struct {
	ID   uint64
	Dist float64
}

// Index is the HNSW graph for one collection. It holds back-references
// to point ids only; vectors live in the vectorstore.Store passed to
// every operation (Design Notes §9: "ownership lives in the collection's
// node arena keyed by id").
type Index struct {
	config Config
	dim    int
	store  vectorstore.Store

	mapMu sync.RWMutex
	nodes map[uint64]*node

	entry atomic.Value // holds *entryPointState

	invalidCount atomic.Int64
	totalCount   atomic.Int64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs an empty index over dim-dimensional vectors backed by
// store, which must already be configured for the same dimension.
func New(dim int, store vectorstore.Store, cfg Config) *Index {
	if cfg.M == 0 {
		cfg = DefaultConfig()
	}
	idx := &Index{
		config: cfg,
		dim:    dim,
		store:  store,
		nodes:  make(map[uint64]*node),
		rng:    rand.New(rand.NewSource(1)),
	}
	return idx
}

func (idx *Index) randomLevel() int {
	idx.rngMu.Lock()
	u := idx.rng.Float64()
	idx.rngMu.Unlock()
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	level := int(math.Floor(-math.Log(u) * idx.config.LevelMultiplier))
	if idx.config.MaxLevel > 0 && level > idx.config.MaxLevel {
		level = idx.config.MaxLevel
	}
	return level
}

func (idx *Index) getNode(id uint64) *node {
	idx.mapMu.RLock()
	n := idx.nodes[id]
	idx.mapMu.RUnlock()
	return n
}

func (idx *Index) currentEntry() *entryPointState {
	v := idx.entry.Load()
	if v == nil {
		return nil
	}
	return v.(*entryPointState)
}

// Add inserts vec under id, following spec §4.3.1's insert protocol. If
// id already exists, the existing node is invalidated in place and a
// fresh node replaces it (spec §4.3.3: "duplicate insert... the latter
// wins, with the old node marked invalid in-place").
func (idx *Index) Add(id uint64, vec []float32) error {
	if len(vec) != idx.dim {
		return ErrDimensionMismatch
	}

	if old := idx.getNode(id); old != nil {
		old.invalidate()
		idx.invalidCount.Add(1)
	}

	level := idx.randomLevel()
	n := newNode(id, level)

	ep := idx.currentEntry()
	if ep == nil {
		for i := range n.neighbors {
			n.neighbors[i] = make([]uint64, 0, idx.config.M)
		}
		idx.publish(id, n)
		idx.entry.Store(&entryPointState{id: id, level: level})
		idx.totalCount.Add(1)
		return nil
	}

	cur := ep.id
	for l := ep.level; l > level; l-- {
		cur = idx.greedyDescend(vec, cur, l)
	}

	for l := min(level, ep.level); l >= 0; l-- {
		candidates := idx.searchLayer(vec, cur, idx.config.EfConstruction, l, matchAll{}, nil)
		capAt := idx.config.M
		if l == 0 {
			capAt = idx.config.M0
		}
		selected := idx.heuristicSelect(vec, candidates, capAt)
		if l < len(n.neighbors) {
			n.neighbors[l] = selected
		}
		if len(candidates) > 0 {
			cur = candidates[0].id
		}
	}

	// Publish the new node before wiring reciprocal edges, so it
	// becomes search-visible only once its own ℓ=0 neighbor list
	// exists (spec §4.3.3).
	idx.publish(id, n)

	for l := 0; l <= level && l < len(n.neighbors); l++ {
		capAt := idx.config.M
		if l == 0 {
			capAt = idx.config.M0
		}
		for _, nbrID := range n.neighbors[l] {
			nbr := idx.getNode(nbrID)
			if nbr == nil {
				continue
			}
			nbr.addReciprocal(l, id, capAt, func(existing []uint64) []uint64 {
				nbrVec, err := idx.store.Get(nbrID)
				if err != nil {
					if len(existing) > capAt {
						return existing[:capAt]
					}
					return existing
				}
				return idx.heuristicSelectIDs(nbrVec, existing, capAt)
			})
		}
	}

	if level > ep.level {
		idx.entry.CompareAndSwap(ep, &entryPointState{id: id, level: level})
	}
	idx.totalCount.Add(1)
	return nil
}

func (idx *Index) publish(id uint64, n *node) {
	idx.mapMu.Lock()
	idx.nodes[id] = n
	idx.mapMu.Unlock()
}

// greedyDescend performs the single-best-neighbor chase used above
// layer 0 (spec §4.3.1 step 3 / §4.3.2 step 1).
func (idx *Index) greedyDescend(query []float32, entryID uint64, level int) uint64 {
	current := entryID
	currentDist, err := idx.store.Distance(current, query)
	if err != nil {
		return current
	}
	for {
		n := idx.getNode(current)
		if n == nil {
			return current
		}
		changed := false
		for _, nbrID := range n.snapshotNeighbors(level) {
			d, err := idx.store.Distance(nbrID, query)
			if err != nil {
				continue
			}
			if d < currentDist {
				current = nbrID
				currentDist = d
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return current
}

// searchLayer runs the two-heap best-first beam search of spec §4.3.2
// step 2 at a single layer, consulting match for neighbor admission.
// Non-matching neighbors are still marked visited (so they bound work)
// but never enter the results heap, per spec §4.3.2 "Filter
// integration". visited, if non-nil, is reused/populated by the caller
// for cross-call dedup; nil means a fresh visited set. Every caller in
// this package passes nil.
func (idx *Index) searchLayer(query []float32, entryID uint64, ef int, level int, match Matcher, visited map[uint64]bool) []distItem {
	if visited == nil {
		visited = make(map[uint64]bool)
	}
	visited[entryID] = true

	candidates := newMinHeap()
	results := newMaxHeap()

	entryDist, err := idx.store.Distance(entryID, query)
	if err == nil {
		*candidates = append(*candidates, distItem{id: entryID, dist: entryDist})
		if match.Matches(entryID) {
			*results = append(*results, distItem{id: entryID, dist: entryDist, isMax: true})
		}
	}

	for candidates.Len() > 0 {
		closest := popHeap(candidates)

		if results.Len() >= ef && closest.dist > (*results)[0].dist {
			break
		}

		n := idx.getNode(closest.id)
		if n == nil {
			continue
		}
		for _, nbrID := range n.snapshotNeighbors(level) {
			if visited[nbrID] {
				continue
			}
			visited[nbrID] = true

			nbr := idx.getNode(nbrID)
			if nbr == nil || !nbr.isValid() {
				// Traverse through invalid nodes for connectivity
				// (spec §4.3.4) but they were never admitted to
				// candidates/results in the first place here because
				// we only expand reachable neighbor ids; an invalid
				// node simply contributes no result but its own
				// neighbors remain reachable via its still-present
				// adjacency list.
				if nbr != nil {
					for _, through := range nbr.snapshotNeighbors(level) {
						if !visited[through] {
							d, err := idx.store.Distance(through, query)
							if err != nil {
								continue
							}
							pushHeap(candidates, distItem{id: through, dist: d})
						}
					}
				}
				continue
			}

			d, err := idx.store.Distance(nbrID, query)
			if err != nil {
				continue
			}

			if results.Len() < ef || d < (*results)[0].dist {
				pushHeap(candidates, distItem{id: nbrID, dist: d})
				if match.Matches(nbrID) {
					pushHeap(results, distItem{id: nbrID, dist: d, isMax: true})
					if results.Len() > ef {
						popHeap(results)
					}
				}
			}
		}
	}

	out := make([]distItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = popHeap(results)
	}
	return out
}

// heuristicSelect implements spec §4.3.1 step 4: iterate candidates by
// ascending distance, accept only if it is not closer to an
// already-accepted neighbor than to the new node, diversifying
// long-range links instead of clustering on "closest M". If fewer than
// maxM candidates pass the diversification test, the remainder is
// filled with the closest still-unselected candidates so a node is
// never starved of neighbors purely by the heuristic.
func (idx *Index) heuristicSelect(newVec []float32, candidates []distItem, maxM int) []uint64 {
	if len(candidates) <= maxM {
		out := make([]uint64, len(candidates))
		for i, c := range candidates {
			out[i] = c.id
		}
		return out
	}
	sorted := make([]distItem, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].dist < sorted[j].dist })

	selected := make([]uint64, 0, maxM)
	var rest []distItem
	for _, cand := range sorted {
		if len(selected) >= maxM {
			rest = append(rest, cand)
			continue
		}
		if idx.isDiverse(cand, newVec, selected) {
			selected = append(selected, cand.id)
		} else {
			rest = append(rest, cand)
		}
	}
	for i := 0; len(selected) < maxM && i < len(rest); i++ {
		selected = append(selected, rest[i].id)
	}
	return selected
}

// isDiverse reports whether candidate is not closer to any
// already-selected neighbor than it is to the new node.
func (idx *Index) isDiverse(cand distItem, newVec []float32, selected []uint64) bool {
	for _, selID := range selected {
		selVec, err := idx.store.Get(selID)
		if err != nil {
			continue
		}
		distToSel, err := idx.store.Distance(cand.id, selVec)
		if err != nil {
			continue
		}
		if distToSel < cand.dist {
			return false
		}
	}
	return true
}

// heuristicSelectIDs is heuristicSelect's entry point for pruning an
// existing neighbor list (spec §4.3.1 step 5): it recomputes distances
// from ownerVec to each existing neighbor id, then re-runs the same
// diversifying selector.
func (idx *Index) heuristicSelectIDs(ownerVec []float32, ids []uint64, maxM int) []uint64 {
	cands := make([]distItem, 0, len(ids))
	for _, id := range ids {
		d, err := idx.store.Distance(id, ownerVec)
		if err != nil {
			continue
		}
		cands = append(cands, distItem{id: id, dist: d})
	}
	return idx.heuristicSelect(ownerVec, cands, maxM)
}

// Search implements spec §4.3.2: greedy descent from the entry point,
// then best-first beam search at layer 0, returning the top-k ascending
// by distance. ef defaults to max(efSearch, k). A nil match admits every
// candidate. If the estimated selectivity of match is below
// config.FilterWidenThreshold, ef is widened 4x (spec's filter
// integration rule); pass selectivity < 0 to skip the estimate (e.g. an
// unfiltered search).
func (idx *Index) Search(ctx context.Context, query []float32, k int, ef int, match Matcher, selectivity float64) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, ErrDimensionMismatch
	}
	if match == nil {
		match = matchAll{}
	}
	if ef <= 0 {
		ef = idx.config.EfSearch
	}
	if ef < k {
		ef = k
	}
	if ef <= 0 {
		return nil, nil
	}
	if selectivity >= 0 && selectivity < idx.config.FilterWidenThreshold {
		ef *= 4
	}

	ep := idx.currentEntry()
	if ep == nil {
		return nil, nil
	}

	cur := ep.id
	for l := ep.level; l > 0; l-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur = idx.greedyDescend(query, cur, l)
	}

	items := idx.searchLayer(query, cur, ef, 0, match, nil)
	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{ID: it.id, Dist: it.dist}
	}
	return out, nil
}

// SearchBruteForce implements the Perfect recall level: an exact scan
// over every valid node via the vector store's distance op, bypassing
// the graph entirely (spec §4.3.2 recall table).
func (idx *Index) SearchBruteForce(ctx context.Context, query []float32, k int, match Matcher) ([]Result, error) {
	if len(query) != idx.dim {
		return nil, ErrDimensionMismatch
	}
	if match == nil {
		match = matchAll{}
	}
	idx.mapMu.RLock()
	ids := pool.GetIDSlice()
	for id, n := range idx.nodes {
		if n.isValid() {
			ids = append(ids, id)
		}
	}
	idx.mapMu.RUnlock()

	items := make([]distItem, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			pool.PutIDSlice(ids)
			return nil, err
		}
		if !match.Matches(id) {
			continue
		}
		d, err := idx.store.Distance(id, query)
		if err != nil {
			continue
		}
		items = append(items, distItem{id: id, dist: d})
	}
	pool.PutIDSlice(ids)
	sort.Slice(items, func(i, j int) bool { return items[i].dist < items[j].dist })
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{ID: it.id, Dist: it.dist}
	}
	return out, nil
}

// Delete soft-deletes id (spec §4.3.4): the node's validity flag is
// cleared, but its neighbor lists are left intact so searches can still
// traverse through it to reach its neighbors.
func (idx *Index) Delete(id uint64) {
	n := idx.getNode(id)
	if n == nil || !n.isValid() {
		return
	}
	n.invalidate()
	idx.invalidCount.Add(1)

	if ep := idx.currentEntry(); ep != nil && ep.id == id {
		idx.promoteNewEntry()
	}
}

func (idx *Index) promoteNewEntry() {
	idx.mapMu.RLock()
	defer idx.mapMu.RUnlock()
	var best *entryPointState
	for id, n := range idx.nodes {
		if !n.isValid() {
			continue
		}
		if best == nil || n.level > best.level {
			best = &entryPointState{id: id, level: n.level}
		}
	}
	idx.entry.Store(best)
}

// Len returns the number of live (valid) nodes.
func (idx *Index) Len() int {
	return int(idx.totalCount.Load() - idx.invalidCount.Load())
}

// invalidRatio returns the fraction of nodes currently soft-deleted.
func (idx *Index) invalidRatio() float64 {
	total := idx.totalCount.Load()
	if total == 0 {
		return 0
	}
	return float64(idx.invalidCount.Load()) / float64(total)
}

// ShouldCompact reports whether the invalid-node ratio has crossed the
// configured threshold (spec §4.3.4, default 30%).
func (idx *Index) ShouldCompact() bool {
	return idx.invalidRatio() > idx.config.CompactionRatio
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
