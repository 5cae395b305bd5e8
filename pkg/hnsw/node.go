package hnsw

import "sync"

// node is one HNSW graph node per live (or soft-deleted) point. Neighbor
// lists are stored as arrays of point ids, never owning pointers, per
// Design Notes §9 ("store neighbors as arrays of point ids... ownership
// lives in the collection's node arena keyed by id") — ownership of the
// vector itself lives in pkg/vectorstore, not here.
type node struct {
	id    uint64
	level int

	mu        sync.RWMutex
	neighbors [][]uint64 // neighbors[l] is this node's neighbor list at layer l
	valid     bool       // cleared by soft delete; compaction reclaims slots
}

func newNode(id uint64, level int) *node {
	n := &node{id: id, level: level, valid: true}
	n.neighbors = make([][]uint64, level+1)
	return n
}

// snapshotNeighbors returns a copy of the neighbor list at level l. The
// mutex ensures a reader never observes a torn slice header/backing
// array pair (spec §4.3.3: "a reader always sees either the pre-update
// or post-update list, never a torn state").
func (n *node) snapshotNeighbors(l int) []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if l >= len(n.neighbors) {
		return nil
	}
	out := make([]uint64, len(n.neighbors[l]))
	copy(out, n.neighbors[l])
	return out
}

// setNeighbors atomically (with respect to other lockers of this node)
// replaces the neighbor list at level l.
func (n *node) setNeighbors(l int, ids []uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l < len(n.neighbors) {
		n.neighbors[l] = ids
	}
}

// addReciprocal appends id to this node's neighbor list at level l,
// pruning back to maxCap via the supplied selector if the cap is
// exceeded.
func (n *node) addReciprocal(l int, id uint64, maxCap int, prune func(existing []uint64) []uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if l >= len(n.neighbors) {
		return
	}
	n.neighbors[l] = append(n.neighbors[l], id)
	if len(n.neighbors[l]) > maxCap {
		n.neighbors[l] = prune(n.neighbors[l])
	}
}

func (n *node) isValid() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.valid
}

func (n *node) invalidate() {
	n.mu.Lock()
	n.valid = false
	n.mu.Unlock()
}

// entryPointState is the immutable snapshot swapped in by compare-and-set
// promotion (spec §4.3.3: "updated by single-word compare-and-set").
type entryPointState struct {
	id    uint64
	level int
}
