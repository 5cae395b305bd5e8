package filter

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/velesdb/velesdb/pkg/payload"
)

// PayloadSource lets the oracle builder walk every live id/payload pair
// in a collection without the filter package depending on pkg/storage.
type PayloadSource interface {
	ForEachPayload(fn func(id uint64, p payload.Payload) bool)
}

// TrigramSource lets a like/ilike-only filter skip Oracle's full payload
// scan by asking the collection's text index for trigram-narrowed
// candidates instead (spec.md §4.4's trigram acceleration, "as used by
// like/ilike"). TrigramCandidates returns ok=false when field isn't
// something the implementation can narrow (e.g. not an indexed text
// field, or the pattern's literal run is too short to have trigrams),
// telling Oracle to fall back to the full scan. PayloadByID backs the
// narrowed path's per-candidate confirmation, since trigram membership
// is necessary but not sufficient for an actual pattern match.
type TrigramSource interface {
	TrigramCandidates(field, literal string) (candidates *roaring64.Bitmap, ok bool)
	PayloadByID(id uint64) (payload.Payload, bool)
}

// Oracle eagerly materializes the set of matching ids as a 64-bit
// roaring bitmap by scanning source once (point ids are spec'd as
// 64-bit unsigned, so the 64-bit variant of the pack's roaring
// dependency is used rather than the 32-bit one). Spec §4.2 calls this
// optional and appropriate only for deeply selective filters; the root
// Collection calls it on each filtered vector search to estimate the
// filter's selectivity, which decides whether the HNSW search widens
// ef. When source also implements TrigramSource and the filter
// is a single like/ilike node, the trigram-narrowed path below runs
// instead of the full scan.
func (cf *CompiledFilter) Oracle(source PayloadSource) *roaring64.Bitmap {
	if cf == nil || cf.root == nil {
		return nil
	}
	if ts, ok := source.(TrigramSource); ok {
		if bm, handled := cf.trigramOracle(ts); handled {
			return bm
		}
	}
	bm := roaring64.New()
	source.ForEachPayload(func(id uint64, p payload.Payload) bool {
		if cf.root.Matches(p) {
			bm.Add(id)
		}
		return true
	})
	return bm
}

// trigramOracle handles the narrow case of a filter whose root is a
// single like/ilike node: it asks ts for trigram candidates over the
// pattern's longest literal run, then confirms each one against the
// real compiled pattern (trigram membership alone can both miss
// wildcard structure and false-positive across word boundaries). Any
// other filter shape returns handled=false so Oracle's full scan runs
// instead.
func (cf *CompiledFilter) trigramOracle(ts TrigramSource) (bm *roaring64.Bitmap, handled bool) {
	n := cf.source
	if n.Type != TypeLike && n.Type != TypeILike {
		return nil, false
	}
	literal := literalRun(n.Pattern)
	if len([]rune(literal)) < 3 {
		return nil, false
	}
	candidates, ok := ts.TrigramCandidates(n.Field, literal)
	if !ok {
		return nil, false
	}
	out := roaring64.New()
	it := candidates.Iterator()
	for it.HasNext() {
		id := it.Next()
		p, ok := ts.PayloadByID(id)
		if !ok {
			continue
		}
		if cf.root.Matches(p) {
			out.Add(id)
		}
	}
	return out, true
}
