package textindex

import "github.com/RoaringBitmap/roaring/v2/roaring64"

// trigrams returns the set of distinct lowercase 3-character sliding
// windows in s (spec.md §4.4's trigram index key shape). Strings shorter
// than 3 runes yield no trigrams.
func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	seen := make(map[string]struct{}, len(runes))
	out := make([]string, 0, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		tg := string(runes[i : i+3])
		if _, ok := seen[tg]; ok {
			continue
		}
		seen[tg] = struct{}{}
		out = append(out, tg)
	}
	return out
}

// trigramIndex maps a trigram to the ids of every live document whose
// normalized text contains it, used as a pre-filter candidate generator
// for substring (like/ilike) queries and for very short BM25 queries
// (spec.md §4.4 "Trigram acceleration").
type trigramIndex struct {
	postings map[string]*roaring64.Bitmap
}

func newTrigramIndex() *trigramIndex {
	return &trigramIndex{postings: make(map[string]*roaring64.Bitmap)}
}

func (ti *trigramIndex) add(id uint64, normalized string) {
	for _, tg := range trigrams(normalized) {
		bm, ok := ti.postings[tg]
		if !ok {
			bm = roaring64.New()
			ti.postings[tg] = bm
		}
		bm.Add(id)
	}
}

func (ti *trigramIndex) remove(id uint64, normalized string) {
	for _, tg := range trigrams(normalized) {
		if bm, ok := ti.postings[tg]; ok {
			bm.Remove(id)
			if bm.IsEmpty() {
				delete(ti.postings, tg)
			}
		}
	}
}

// Candidates returns the ids whose text contains every trigram of
// substr, i.e. the AND of each trigram's posting bitmap. A substr with
// no trigrams (shorter than 3 runes) returns nil, meaning "no filter";
// callers fall back to a full scan in that case.
func (ti *trigramIndex) candidates(substr string) *roaring64.Bitmap {
	tgs := trigrams(substr)
	if len(tgs) == 0 {
		return nil
	}
	var result *roaring64.Bitmap
	for _, tg := range tgs {
		bm, ok := ti.postings[tg]
		if !ok {
			return roaring64.New()
		}
		if result == nil {
			result = bm.Clone()
			continue
		}
		result.And(bm)
		if result.IsEmpty() {
			break
		}
	}
	return result
}
