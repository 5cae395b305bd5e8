package query

import (
	"context"
	"errors"
	"testing"
)

func TestPipelineSearchDelegates(t *testing.T) {
	want := []Ranked{{ID: 1, Score: 0.9}}
	p := NewPipeline(func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
		return want, nil
	}, nil)

	got, err := p.Search(context.Background(), []float32{1}, 5, 64, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("expected delegated result, got %+v", got)
	}
}

func TestPipelineHybridCombinesBothRankings(t *testing.T) {
	vectorRanking := []Ranked{{ID: 1}, {ID: 2}}
	textRanking := []Ranked{{ID: 2}, {ID: 3}}

	p := NewPipeline(
		func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) { return vectorRanking, nil },
		func(ctx context.Context, q string, k int, filter Matcher) ([]Ranked, error) { return textRanking, nil },
	)

	fused, err := p.Hybrid(context.Background(), []float32{1}, "query", 10, 64, 0.6, nil)
	if err != nil {
		t.Fatal(err)
	}
	// id 2 appears in both rankings, so it should score highest.
	if fused[0].ID != 2 {
		t.Fatalf("expected id 2 (present in both rankings) to rank first, got %+v", fused)
	}
}

func TestPipelineMultiQueryFusesAcrossQueries(t *testing.T) {
	rankingA := []Ranked{{ID: 1}, {ID: 2}}
	rankingB := []Ranked{{ID: 2}, {ID: 3}}
	calls := 0
	p := NewPipeline(func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
		calls++
		if calls == 1 {
			return rankingA, nil
		}
		return rankingB, nil
	}, nil)

	fused, err := p.MultiQuery(context.Background(), [][]float32{{1}, {2}}, 10, 64, RRF, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(fused) != 3 {
		t.Fatalf("expected 3 distinct ids across both rankings, got %+v", fused)
	}
}

func TestPipelineBatchIsolatesFailures(t *testing.T) {
	p := NewPipeline(func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
		if len(vec) > 0 && vec[0] == 999 {
			return nil, errors.New("boom")
		}
		return []Ranked{{ID: 1}}, nil
	}, nil)

	results := p.Batch(context.Background(), []BatchRequest{
		{Vector: []float32{1}, K: 5},
		{Vector: []float32{999}, K: 5},
		{Vector: []float32{2}, K: 5},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results preserving order, got %d", len(results))
	}
	if results[1].Err == nil {
		t.Fatal("expected the second request to carry its own error")
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatal("expected the other requests to succeed independently")
	}
}

func TestRecommendDerivesCentroid(t *testing.T) {
	var capturedQuery []float32
	p := NewPipeline(func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
		capturedQuery = vec
		return nil, nil
	}, nil)

	positives := [][]float32{{2, 4}, {4, 6}}
	negatives := [][]float32{{1, 1}}
	_, err := p.Recommend(context.Background(), positives, negatives, 5, 64, nil)
	if err != nil {
		t.Fatal(err)
	}
	// mean(positives) = (3,5), minus negatives mean (1,1) = (2,4)
	if capturedQuery[0] != 2 || capturedQuery[1] != 4 {
		t.Fatalf("expected centroid [2,4], got %v", capturedQuery)
	}
}

func TestRecommendNoPositivesReturnsNil(t *testing.T) {
	p := NewPipeline(func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
		t.Fatal("should not search with no positives")
		return nil, nil
	}, nil)
	res, err := p.Recommend(context.Background(), nil, nil, 5, 64, nil)
	if err != nil || res != nil {
		t.Fatalf("expected nil, nil for no positives, got %v, %v", res, err)
	}
}
