package textindex

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/velesdb/velesdb/pkg/pool"
)

type scoredHeap []Result

func (h scoredHeap) Len() int            { return len(h) }
func (h scoredHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)         { *h = append(*h, x.(Result)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// termInfo is one query token's posting-list view and precomputed IDF,
// shared by the exact-token lookups and the synthetic substring entries
// mergeTrigramCandidates adds.
type termInfo struct {
	docs map[uint64]posting
	idf  float64
}

// shortQueryTrigramThreshold is the rune length at or below which a
// single-surviving-token query also gets trigram-narrowed substring
// candidates merged in (spec.md §4.4's "candidate generation on very
// short BM25 queries"): an exact-token posting lookup alone cannot
// surface a document where the token appears only inside a longer word
// (query "cat" should also find a document containing "category").
const shortQueryTrigramThreshold = 4

// mergeTrigramCandidates adds a synthetic term entry covering every live
// document whose normalized text contains token as a substring, so they
// flow through Search's existing per-candidate BM25 scoring loop without
// a separate code path. Must be called with idx.mu held for reading.
func (idx *Index) mergeTrigramCandidates(token string, terms map[string]termInfo, seen map[uint64]struct{}, n float64) {
	if len([]rune(token)) > shortQueryTrigramThreshold {
		return
	}
	bm := idx.trigrams.candidates(token)
	if bm == nil || bm.IsEmpty() {
		return
	}
	docs := make(map[uint64]posting)
	it := bm.Iterator()
	for it.HasNext() {
		id := it.Next()
		if idx.dead[id] {
			continue
		}
		text, ok := idx.normalized[id]
		if !ok {
			continue
		}
		count := strings.Count(text, token)
		if count == 0 {
			continue
		}
		docs[id] = posting{termFreq: count}
		seen[id] = struct{}{}
	}
	if len(docs) == 0 {
		return
	}
	key := "~substr~" + token
	if _, exists := terms[key]; exists {
		return
	}
	terms[key] = termInfo{docs: docs, idf: idf(n, float64(len(docs)))}
}

// Search implements spec.md §4.4's text_search operation: merges posting
// lists for the query's tokens over the candidate documents in ascending
// id order (a document-at-a-time walk), accumulates each document's
// BM25 score, and maintains the top-k via a bounded min-heap. A single
// short surviving token additionally pulls in trigram-narrowed substring
// candidates (mergeTrigramCandidates), so a query like "cat" also
// surfaces a document containing only "category". An empty query (no
// tokens survive tokenization) returns no results. Filter evaluation is
// interleaved per candidate via match, exactly as spec.md requires,
// rather than applied as a post-filter over an unfiltered top-k.
func (idx *Index) Search(query string, k int, match Matcher) []Result {
	if k <= 0 {
		return nil
	}
	if match == nil {
		match = matchAll{}
	}

	idx.mu.RLock()
	tokens := idx.tok.Tokenize(query)
	if len(tokens) == 0 {
		idx.mu.RUnlock()
		return nil
	}
	avgdl := idx.avgDocLength()
	if avgdl == 0 {
		idx.mu.RUnlock()
		return nil
	}
	n := float64(idx.liveCount)

	terms := make(map[string]termInfo, len(tokens))
	seen := make(map[uint64]struct{})
	for _, t := range tokens {
		if _, ok := terms[t]; ok {
			continue
		}
		docs, ok := idx.postings[t]
		if !ok {
			continue
		}
		df := float64(len(docs))
		terms[t] = termInfo{docs: docs, idf: idf(n, df)}
		for id := range docs {
			if idx.dead[id] {
				continue
			}
			seen[id] = struct{}{}
		}
	}
	if len(tokens) == 1 {
		idx.mergeTrigramCandidates(tokens[0], terms, seen, n)
	}
	candidates := pool.GetIDSlice()
	for id := range seen {
		candidates = append(candidates, id)
	}
	docLengths := idx.docLengths
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	h := &scoredHeap{}
	heap.Init(h)
	for _, id := range candidates {
		if !match.Matches(id) {
			continue
		}
		docLen := float64(docLengths[id])
		var score float64
		for _, info := range terms {
			p, ok := info.docs[id]
			if !ok {
				continue
			}
			score += termScore(info.idf, float64(p.termFreq), docLen, avgdl)
		}
		if score <= 0 {
			continue
		}
		heap.Push(h, Result{ID: id, Score: score})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	pool.PutIDSlice(candidates)

	out := make([]Result, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Result)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// normalizeForTrigrams lowercases text for trigram/substring matching;
// kept separate from the tokenizer's NFKC fold since substring queries
// need the raw character stream, not discrete tokens.
func normalizeForTrigrams(text string) string {
	return strings.ToLower(text)
}

// TrigramCandidates exposes this index's trigram accelerator to
// pkg/filter, letting a like/ilike filter on the collection's indexed
// text narrow a full payload scan down to the ids whose text contains
// literal's trigrams (spec.md §4.4's "trigram acceleration ... as used
// by like/ilike"). ok is false when literal is too short to have
// trigrams (fewer than 3 runes), telling the caller to fall back to a
// full scan. The returned bitmap is necessary but not sufficient —
// callers must still confirm each candidate against the real pattern.
func (idx *Index) TrigramCandidates(literal string) (candidates *roaring64.Bitmap, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	bm := idx.trigrams.candidates(normalizeForTrigrams(literal))
	if bm == nil {
		return nil, false
	}
	return bm, true
}
