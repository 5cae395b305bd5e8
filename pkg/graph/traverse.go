package graph

// Reached is one node visited during a traversal, with its BFS/DFS
// distance from the source.
type Reached struct {
	ID    uint64
	Depth int
}

// allowed reports whether label passes the traversal's label filter; a
// nil/empty set allows every label (spec.md §4.6: "an optional set of
// allowed labels").
func allowed(labels map[string]struct{}, label string) bool {
	if len(labels) == 0 {
		return true
	}
	_, ok := labels[label]
	return ok
}

// TraverseBFS implements spec.md §4.6's traverse_bfs: breadth-first from
// source, bounded by maxDepth and limit, terminating on cycles via a
// visited set. Output preserves visit order.
func (s *Store) TraverseBFS(source uint64, maxDepth, limit int, labels map[string]struct{}) []Reached {
	visited := map[uint64]struct{}{source: {}}
	queue := []Reached{{ID: source, Depth: 0}}
	var out []Reached

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		if limit > 0 && len(out) >= limit {
			break
		}
		if maxDepth > 0 && cur.Depth >= maxDepth {
			continue
		}
		for _, e := range s.OutgoingEdges(cur.ID) {
			if !allowed(labels, e.Label) {
				continue
			}
			if _, seen := visited[e.Target]; seen {
				continue
			}
			visited[e.Target] = struct{}{}
			queue = append(queue, Reached{ID: e.Target, Depth: cur.Depth + 1})
		}
	}
	return out
}

// TraverseDFS implements spec.md §4.6's traverse_dfs: depth-first from
// source, same caps and cycle termination as TraverseBFS, using an
// explicit stack to avoid unbounded recursion depth on deep graphs.
func (s *Store) TraverseDFS(source uint64, maxDepth, limit int, labels map[string]struct{}) []Reached {
	visited := map[uint64]struct{}{source: {}}
	stack := []Reached{{ID: source, Depth: 0}}
	var out []Reached

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur)
		if limit > 0 && len(out) >= limit {
			break
		}
		if maxDepth > 0 && cur.Depth >= maxDepth {
			continue
		}
		edges := s.OutgoingEdges(cur.ID)
		for i := len(edges) - 1; i >= 0; i-- {
			e := edges[i]
			if !allowed(labels, e.Label) {
				continue
			}
			if _, seen := visited[e.Target]; seen {
				continue
			}
			visited[e.Target] = struct{}{}
			stack = append(stack, Reached{ID: e.Target, Depth: cur.Depth + 1})
		}
	}
	return out
}
