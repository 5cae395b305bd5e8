package graph

import "testing"

func buildChain(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.AddEdge(1, 2, "knows", nil)
	s.AddEdge(2, 3, "knows", nil)
	s.AddEdge(3, 1, "knows", nil) // cycle back to 1
	s.AddEdge(2, 4, "likes", nil)
	return s
}

func TestAddEdgeUpdatesAdjacency(t *testing.T) {
	s := NewStore()
	id := s.AddEdge(1, 2, "knows", nil)
	if _, ok := s.Edge(id); !ok {
		t.Fatal("expected edge to be retrievable by id")
	}
	if out := s.OutgoingEdges(1); len(out) != 1 || out[0].Target != 2 {
		t.Fatalf("expected one outgoing edge to 2, got %+v", out)
	}
	if in := s.IncomingEdges(2); len(in) != 1 || in[0].Source != 1 {
		t.Fatalf("expected one incoming edge from 1, got %+v", in)
	}
}

func TestNodeDegree(t *testing.T) {
	s := buildChain(t)
	out, in := s.NodeDegree(2)
	if out != 2 || in != 1 {
		t.Fatalf("expected out=2 in=1 for node 2, got out=%d in=%d", out, in)
	}
}

func TestBFSTerminatesOnCycle(t *testing.T) {
	s := buildChain(t)
	reached := s.TraverseBFS(1, 10, 100, nil)
	if len(reached) != 4 {
		t.Fatalf("expected 4 reached nodes (1,2,3,4), got %+v", reached)
	}
	byID := map[uint64]int{}
	for _, r := range reached {
		byID[r.ID] = r.Depth
	}
	if byID[1] != 0 || byID[2] != 1 || byID[3] != 2 || byID[4] != 2 {
		t.Fatalf("unexpected depths: %+v", byID)
	}
}

func TestDFSTerminatesOnCycle(t *testing.T) {
	s := buildChain(t)
	reached := s.TraverseDFS(1, 10, 100, nil)
	if len(reached) != 4 {
		t.Fatalf("expected 4 reached nodes, got %+v", reached)
	}
}

func TestTraverseRespectsMaxDepth(t *testing.T) {
	s := buildChain(t)
	reached := s.TraverseBFS(1, 1, 100, nil)
	for _, r := range reached {
		if r.Depth > 1 {
			t.Fatalf("expected no node beyond depth 1, got %+v", r)
		}
	}
}

func TestTraverseRespectsLimit(t *testing.T) {
	s := buildChain(t)
	reached := s.TraverseBFS(1, 10, 2, nil)
	if len(reached) != 2 {
		t.Fatalf("expected exactly 2 reached nodes under the limit, got %+v", reached)
	}
}

func TestTraverseFiltersByLabel(t *testing.T) {
	s := buildChain(t)
	reached := s.TraverseBFS(2, 10, 100, map[string]struct{}{"likes": {}})
	if len(reached) != 2 {
		t.Fatalf("expected only node 2 and its 'likes' neighbor 4, got %+v", reached)
	}
	found4 := false
	for _, r := range reached {
		if r.ID == 4 {
			found4 = true
		}
	}
	if !found4 {
		t.Fatalf("expected node 4 reached via 'likes', got %+v", reached)
	}
}

func TestEdgesByLabel(t *testing.T) {
	s := buildChain(t)
	likes := s.EdgesByLabel("likes")
	if len(likes) != 1 || likes[0].Target != 4 {
		t.Fatalf("expected one 'likes' edge to 4, got %+v", likes)
	}
}

func TestEdgesByLabelOrdersBySourceThenTarget(t *testing.T) {
	s := NewStore()
	s.AddEdge(9, 1, "knows", nil)
	s.AddEdge(3, 9, "knows", nil)
	s.AddEdge(3, 2, "knows", nil)
	s.AddEdge(9, 0, "knows", nil)

	got := s.EdgesByLabel("knows")
	if len(got) != 4 {
		t.Fatalf("expected 4 'knows' edges, got %d", len(got))
	}
	want := [][2]uint64{{3, 2}, {3, 9}, {9, 0}, {9, 1}}
	for i, e := range got {
		if e.Source != want[i][0] || e.Target != want[i][1] {
			t.Fatalf("edge %d: want source/target %v, got {%d %d}", i, want[i], e.Source, e.Target)
		}
	}
}
