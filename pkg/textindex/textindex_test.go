package textindex

import "testing"

func TestSearchRanksByBM25(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "the quick brown fox jumps over the lazy dog")
	idx.Upsert(2, "a fox in the henhouse")
	idx.Upsert(3, "completely unrelated text about databases")

	res := idx.Search("fox", 10, nil)
	if len(res) != 2 {
		t.Fatalf("expected 2 matches, got %d: %+v", len(res), res)
	}
	ids := map[uint64]bool{res[0].ID: true, res[1].ID: true}
	if !ids[1] || !ids[2] {
		t.Fatalf("expected docs 1 and 2 to match, got %+v", res)
	}
}

func TestSearchEmptyQueryReturnsEmpty(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "some text")
	if res := idx.Search("   ", 10, nil); res != nil {
		t.Fatalf("expected nil for an empty query, got %+v", res)
	}
}

func TestDeleteTombstonesUntilCompact(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "searchable content here")
	idx.Delete(1)

	if res := idx.Search("searchable", 10, nil); len(res) != 0 {
		t.Fatalf("expected no results for a deleted doc, got %+v", res)
	}
	if idx.Count() != 0 {
		t.Fatalf("expected live count 0 after delete, got %d", idx.Count())
	}
	idx.Compact()
	if _, ok := idx.postings["searchable"]; ok {
		t.Fatal("expected compaction to drop the tombstoned posting entry")
	}
}

func TestUpsertReplacesPriorContent(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "original content about cats")
	idx.Upsert(1, "replaced content about dogs")

	if res := idx.Search("cats", 10, nil); len(res) != 0 {
		t.Fatalf("expected stale term to no longer match, got %+v", res)
	}
	if res := idx.Search("dogs", 10, nil); len(res) != 1 {
		t.Fatalf("expected the replaced term to match, got %+v", res)
	}
}

func TestFilterInterleavedDuringScan(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "apple banana cherry")
	idx.Upsert(2, "apple banana durian")

	blockTwo := matchFunc(func(id uint64) bool { return id != 2 })
	res := idx.Search("apple banana", 10, blockTwo)
	if len(res) != 1 || res[0].ID != 1 {
		t.Fatalf("expected only id 1 to survive the filter, got %+v", res)
	}
}

type matchFunc func(uint64) bool

func (f matchFunc) Matches(id uint64) bool { return f(id) }

func TestTrigramCandidatesRequireAllTrigrams(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "strawberry")
	idx.Upsert(2, "strangler")

	bm, ok := idx.TrigramCandidates("straw")
	if !ok {
		t.Fatal("expected a 5-rune literal to produce trigram candidates")
	}
	if bm.GetCardinality() != 1 || !bm.Contains(1) {
		t.Fatalf("expected only id 1 to carry every trigram of 'straw', got %v", bm.ToArray())
	}
}

func TestTrigramCandidatesShortLiteralFallsBack(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "ok")
	if _, ok := idx.TrigramCandidates("ok"); ok {
		t.Fatal("expected a literal under 3 runes to report no trigram narrowing")
	}
}

func TestSearchMergesTrigramCandidatesForShortTokens(t *testing.T) {
	idx := New(nil)
	idx.Upsert(1, "a category of items")
	idx.Upsert(2, "a slow turtle")

	res := idx.Search("cat", 10, nil)
	if len(res) != 1 || res[0].ID != 1 {
		t.Fatalf("expected 'cat' to also surface doc 1 via 'category', got %+v", res)
	}
}

func TestOrderIndependentScoring(t *testing.T) {
	a := New(nil)
	a.Upsert(1, "alpha beta gamma")
	a.Upsert(2, "beta gamma delta")

	b := New(nil)
	b.Upsert(2, "beta gamma delta")
	b.Upsert(1, "alpha beta gamma")

	resA := a.Search("beta gamma", 10, nil)
	resB := b.Search("beta gamma", 10, nil)
	if len(resA) != len(resB) {
		t.Fatalf("result count differs by insertion order: %d vs %d", len(resA), len(resB))
	}
	for i := range resA {
		if resA[i].ID != resB[i].ID {
			t.Fatalf("result order differs by insertion order at %d: %+v vs %+v", i, resA, resB)
		}
		if diff := resA[i].Score - resB[i].Score; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("score differs by insertion order at %d: %v vs %v", i, resA[i].Score, resB[i].Score)
		}
	}
}
