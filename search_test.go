package velesdb

import (
	"context"
	"testing"

	"github.com/velesdb/velesdb/pkg/filter"
	"github.com/velesdb/velesdb/pkg/payload"
	"github.com/velesdb/velesdb/pkg/vectorstore"
)

// badFilterNode builds a structurally invalid filter node (an "eq" with
// no field), so a filter-compile error can be exercised deterministically.
func badFilterNode() filter.Node {
	return filter.Node{Type: filter.TypeEq}
}

func newTextCollection(t *testing.T, db *Database) *Collection {
	t.Helper()
	coll, err := db.CreateCollection("docs", CollectionOptions{
		Dimension:   2,
		Metric:      vectorstore.Cosine,
		StorageMode: vectorstore.Full,
		TextFields:  []string{"body"},
	})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	return coll
}

func TestTextSearchRanksByBM25(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTextCollection(t, db)
	ctx := context.Background()

	docs := []Point{
		{ID: 1, Vector: []float32{1, 0}, Payload: payload.Payload{"body": payload.Text("the quick brown fox")}},
		{ID: 2, Vector: []float32{0, 1}, Payload: payload.Payload{"body": payload.Text("a slow turtle")}},
	}
	for _, d := range docs {
		if err := coll.Upsert(ctx, d); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	results, err := coll.TextSearch(ctx, "fox", SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("TextSearch: %v", err)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Fatalf("expected only doc 1 to match 'fox', got %+v", results)
	}
}

func TestHybridSearchRejectsInvalidWeight(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTextCollection(t, db)

	_, err := coll.HybridSearch(context.Background(), []float32{1, 0}, "fox", 1.5, SearchOptions{TopK: 5})
	if !Is(err, KindInvalidArgument) {
		t.Fatalf("expected KindInvalidArgument for out-of-range weight, got %v", err)
	}
}

func TestHybridSearchCombinesBothSignals(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTextCollection(t, db)
	ctx := context.Background()

	if err := coll.Upsert(ctx, Point{ID: 1, Vector: []float32{1, 0}, Payload: payload.Payload{"body": payload.Text("fox")}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := coll.Upsert(ctx, Point{ID: 2, Vector: []float32{0, 1}, Payload: payload.Payload{"body": payload.Text("turtle")}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := coll.HybridSearch(ctx, []float32{1, 0}, "fox", 0.5, SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("HybridSearch: %v", err)
	}
	if len(results) == 0 || results[0].ID != 1 {
		t.Fatalf("expected doc 1 to rank first on both signals, got %+v", results)
	}
}

func TestMultiQuerySearchFusesRankings(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTestCollection(t, db, CollectionOptions{Dimension: 2, Metric: vectorstore.Cosine, StorageMode: vectorstore.Full})
	ctx := context.Background()

	for _, p := range []Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{0, 1}},
		{ID: 3, Vector: []float32{-1, 0}},
	} {
		if err := coll.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	results, err := coll.MultiQuerySearch(ctx, [][]float32{{1, 0}, {0, 1}}, FusionRRF, SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("MultiQuerySearch: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected fused results")
	}
}

func TestBatchSearchIsolatesPerRequestFailures(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTestCollection(t, db, CollectionOptions{Dimension: 2, Metric: vectorstore.Cosine, StorageMode: vectorstore.Full})
	ctx := context.Background()
	if err := coll.Upsert(ctx, Point{ID: 1, Vector: []float32{1, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	requests := []BatchRequest{
		{Vector: []float32{1, 0}, Opts: SearchOptions{TopK: 1}},
		{Vector: []float32{1, 0}, Opts: SearchOptions{TopK: 1, Filter: badFilterNode()}},
	}
	results := coll.BatchSearch(ctx, requests)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Err != nil {
		t.Fatalf("expected first request to succeed, got %v", results[0].Err)
	}
	if results[1].Err == nil {
		t.Fatalf("expected second request's filter-compile failure to be isolated to its own slot")
	}
}

func TestRecommendDerivesCentroidFromPositivesAndNegatives(t *testing.T) {
	db := newTestDatabase(t)
	coll := newTestCollection(t, db, CollectionOptions{Dimension: 2, Metric: vectorstore.Cosine, StorageMode: vectorstore.Full})
	ctx := context.Background()

	for _, p := range []Point{
		{ID: 1, Vector: []float32{1, 0}},
		{ID: 2, Vector: []float32{-1, 0}},
		{ID: 3, Vector: []float32{0.9, 0.1}},
	} {
		if err := coll.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	results, err := coll.Recommend(ctx, []uint64{1}, []uint64{2}, SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// centroid = mean({1,0}) - mean({-1,0}) = {2,0}, pointing the same
	// direction as point 1's own vector, so it ranks first.
	if len(results) == 0 || results[0].ID != 1 {
		t.Fatalf("expected point 1 to rank closest to the positive/negative centroid, got %+v", results)
	}
}
