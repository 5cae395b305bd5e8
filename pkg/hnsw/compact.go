package hnsw

// shardSize bounds how many nodes a single compaction shard touches
// before the caller gets control back, per spec §4.3.4: "compaction
// runs cooperatively: it processes one shard at a time and never blocks
// searches for more than one shard."
const shardSize = 256

// Compact rebuilds layer-0 (and higher-layer) adjacency by removing
// dead neighbors and re-running the heuristic selector, reclaiming the
// slots soft deletes left behind (spec §4.3.4). It processes the node
// map in shards, releasing and reacquiring the map lock between shards
// so a long-running compaction never holds off search for more than one
// shard's worth of work.
func (idx *Index) Compact() {
	ids := idx.liveIDSnapshot()
	for start := 0; start < len(ids); start += shardSize {
		end := start + shardSize
		if end > len(ids) {
			end = len(ids)
		}
		idx.compactShard(ids[start:end])
	}
	idx.reapInvalid()
}

func (idx *Index) liveIDSnapshot() []uint64 {
	idx.mapMu.RLock()
	defer idx.mapMu.RUnlock()
	ids := make([]uint64, 0, len(idx.nodes))
	for id := range idx.nodes {
		ids = append(ids, id)
	}
	return ids
}

func (idx *Index) compactShard(ids []uint64) {
	for _, id := range ids {
		n := idx.getNode(id)
		if n == nil || !n.isValid() {
			continue
		}
		vec, err := idx.store.Get(id)
		if err != nil {
			continue
		}
		for l := 0; l <= n.level; l++ {
			capAt := idx.config.M
			if l == 0 {
				capAt = idx.config.M0
			}
			live := make([]uint64, 0, len(n.snapshotNeighbors(l)))
			for _, nbrID := range n.snapshotNeighbors(l) {
				if nbr := idx.getNode(nbrID); nbr != nil && nbr.isValid() {
					live = append(live, nbrID)
				}
			}
			rebuilt := idx.heuristicSelectIDs(vec, live, capAt)
			n.setNeighbors(l, rebuilt)
		}
	}
}

// reapInvalid drops invalidated nodes from the map entirely once their
// neighbors have been rebuilt around them, and resets the invalid
// counters used by ShouldCompact.
func (idx *Index) reapInvalid() {
	idx.mapMu.Lock()
	defer idx.mapMu.Unlock()
	reclaimed := int64(0)
	for id, n := range idx.nodes {
		if !n.isValid() {
			delete(idx.nodes, id)
			reclaimed++
		}
	}
	if reclaimed > 0 {
		idx.invalidCount.Add(-reclaimed)
		idx.totalCount.Add(-reclaimed)
	}
}
