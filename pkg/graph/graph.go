// Package graph implements the graph edge store (spec component C7):
// labeled directed edges between point ids, with forward/reverse
// adjacency and bounded BFS/DFS traversal.
//
// Grounded on the teacher's pkg/storage/types.go Edge shape
// (ID/StartNode/EndNode/Type/Properties), narrowed to this engine's
// edge-only model: points are already the graph's nodes (no separate
// node-label/property surface — that lives in pkg/payload), so only the
// edge side survives.
package graph

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/velesdb/velesdb/pkg/payload"
)

// Edge is one directed, labeled relationship between two point ids.
type Edge struct {
	ID     uint64
	Source uint64
	Target uint64
	Label  string
	Props  payload.Payload
}

// Store holds the forward (source -> edges) and reverse (target ->
// edges) adjacency for one collection's edge set. Safe for concurrent
// use.
type Store struct {
	mu      sync.RWMutex
	edges   map[uint64]*Edge
	forward map[uint64][]uint64 // source -> edge ids
	reverse map[uint64][]uint64 // target -> edge ids
	nextID  atomic.Uint64
}

func NewStore() *Store {
	return &Store{
		edges:   make(map[uint64]*Edge),
		forward: make(map[uint64][]uint64),
		reverse: make(map[uint64][]uint64),
	}
}

// AddEdge appends a new edge and returns its id (spec.md §4.6:
// "Edges are appended through add_edge(id, source, target, label,
// props)" — id is assigned here since the wire-level API accepts the
// source/target/label/props and treats edge identity as storage-owned).
func (s *Store) AddEdge(source, target uint64, label string, props payload.Payload) uint64 {
	id := s.nextID.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[id] = &Edge{ID: id, Source: source, Target: target, Label: label, Props: props}
	s.forward[source] = append(s.forward[source], id)
	s.reverse[target] = append(s.reverse[target], id)
	return id
}

// RestoreEdge inserts an edge under an already-assigned id and raises
// the id counter past it if needed, so replaying a persisted edge set
// after a restart reproduces the same edge ids rather than minting new
// ones.
func (s *Store) RestoreEdge(id, source, target uint64, label string, props payload.Payload) {
	s.mu.Lock()
	s.edges[id] = &Edge{ID: id, Source: source, Target: target, Label: label, Props: props}
	s.forward[source] = append(s.forward[source], id)
	s.reverse[target] = append(s.reverse[target], id)
	s.mu.Unlock()
	for {
		cur := s.nextID.Load()
		if id <= cur {
			return
		}
		if s.nextID.CompareAndSwap(cur, id) {
			return
		}
	}
}

func (s *Store) Edge(id uint64) (*Edge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.edges[id]
	return e, ok
}

// OutgoingEdges returns every edge whose source is id.
func (s *Store) OutgoingEdges(id uint64) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.forward[id])
}

// IncomingEdges returns every edge whose target is id.
func (s *Store) IncomingEdges(id uint64) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.reverse[id])
}

func (s *Store) resolveLocked(ids []uint64) []*Edge {
	out := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.edges[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// EdgesByLabel returns every live edge with the given label, source
// ascending then target ascending, backing spec.md §6's
// get_edges_by_label operation.
func (s *Store) EdgesByLabel(label string) []*Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Edge
	for _, e := range s.edges {
		if e.Label == label {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// NodeDegree returns (outDegree, inDegree) for id.
func (s *Store) NodeDegree(id uint64) (out, in int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.forward[id]), len(s.reverse[id])
}

// Count returns the total number of live edges.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}
