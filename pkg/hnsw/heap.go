package hnsw

import "container/heap"

// distItem is a (point id, distance) pair placed on either the
// candidates min-heap or the results max-heap during beam search,
// following the teacher's single-struct-two-heaps trick
// (pkg/search/hnsw_index.go's hnswDistItem/hnswDistHeap): the isMax flag
// flips Less so the same type serves both roles.
type distItem struct {
	id    uint64
	dist  float64
	isMax bool
}

type distHeap []distItem

func (dh distHeap) Len() int { return len(dh) }
func (dh distHeap) Less(i, j int) bool {
	if dh[i].isMax {
		return dh[i].dist > dh[j].dist
	}
	return dh[i].dist < dh[j].dist
}
func (dh distHeap) Swap(i, j int) { dh[i], dh[j] = dh[j], dh[i] }

func (dh *distHeap) Push(x any) { *dh = append(*dh, x.(distItem)) }

func (dh *distHeap) Pop() any {
	old := *dh
	n := len(old)
	x := old[n-1]
	*dh = old[:n-1]
	return x
}

func newMinHeap() *distHeap {
	h := &distHeap{}
	heap.Init(h)
	return h
}

func newMaxHeap() *distHeap {
	h := &distHeap{}
	heap.Init(h)
	return h
}

func pushHeap(h *distHeap, item distItem) { heap.Push(h, item) }

func popHeap(h *distHeap) distItem { return heap.Pop(h).(distItem) }
