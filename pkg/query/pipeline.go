package query

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Matcher is the id-admission predicate threaded through a search
// (structurally identical to pkg/hnsw.Matcher and pkg/textindex.Matcher,
// so any value that satisfies one of them satisfies the others without
// this package importing either).
type Matcher interface {
	Matches(id uint64) bool
}

// VectorSearchFunc performs one vector query and returns it as a
// caller-facing ranking (similarity descending); the Collection layer
// adapts pkg/hnsw.Index.Search + pkg/vectorstore.Store.Similarity into
// this shape.
type VectorSearchFunc func(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error)

// TextSearchFunc performs one BM25 query and returns it as a ranking;
// the Collection layer adapts pkg/textindex.Index.Search into this
// shape.
type TextSearchFunc func(ctx context.Context, text string, k int, filter Matcher) ([]Ranked, error)

// Pipeline implements spec.md §4.5's six outward query operations over
// an injected vector index and text index, so this package stays
// independent of pkg/hnsw/pkg/textindex's concrete types.
type Pipeline struct {
	VectorSearch VectorSearchFunc
	TextSearch   TextSearchFunc
	RRFK         float64
	MaxWorkers   int
}

// NewPipeline builds a Pipeline with spec.md §4.5's default RRF
// constant (60) and a concurrency cap of 8, grounded on the teacher's
// default worker-pool sizing for fan-out search.
func NewPipeline(vec VectorSearchFunc, text TextSearchFunc) *Pipeline {
	return &Pipeline{VectorSearch: vec, TextSearch: text, RRFK: 60, MaxWorkers: 8}
}

// Search implements the plain `search` operation: a single vector query.
func (p *Pipeline) Search(ctx context.Context, vec []float32, k, ef int, filter Matcher) ([]Ranked, error) {
	return p.VectorSearch(ctx, vec, k, ef, filter)
}

// Text implements the `text_search` operation.
func (p *Pipeline) Text(ctx context.Context, query string, k int, filter Matcher) ([]Ranked, error) {
	return p.TextSearch(ctx, query, k, filter)
}

// Hybrid implements spec.md §4.5's `hybrid_search`: the vector and BM25
// rankings are combined by RRF with per-query weights summing to 1
// (vectorWeight, 1-vectorWeight), then the top-k is taken by fused
// score descending with ascending-id tie-break. This is the
// vector_weight-aware variant the spec calls out specifically for
// hybrid_search, distinct from the unweighted RRF Strategy used by
// multi_query_search.
func (p *Pipeline) Hybrid(ctx context.Context, vec []float32, text string, k, ef int, vectorWeight float64, filter Matcher) ([]Fused, error) {
	g, gctx := errgroup.WithContext(ctx)
	var vectorRanking, textRanking []Ranked
	g.Go(func() error {
		r, err := p.VectorSearch(gctx, vec, k, ef, filter)
		if err != nil {
			return err
		}
		vectorRanking = r
		return nil
	})
	g.Go(func() error {
		r, err := p.TextSearch(gctx, text, k, filter)
		if err != nil {
			return err
		}
		textRanking = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseWeightedRRF(vectorRanking, textRanking, vectorWeight, p.rrfK())
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// fuseWeightedRRF implements the per-term-weighted RRF formula spec.md
// §4.5 describes for hybrid_search: score(id) = vectorWeight/(k+rank_v)
// + (1-vectorWeight)/(k+rank_t), a missing rank contributing 0.
// Grounded on the teacher's fuseRRF, which computes exactly this
// two-component sum (there named vectorComponent/bm25Component).
func fuseWeightedRRF(vectorRanking, textRanking []Ranked, vectorWeight, k float64) []Fused {
	textWeight := 1 - vectorWeight
	scores := make(map[uint64]float64)
	for i, r := range vectorRanking {
		scores[r.ID] += vectorWeight / (k + float64(i+1))
	}
	for i, r := range textRanking {
		scores[r.ID] += textWeight / (k + float64(i+1))
	}
	out := make([]Fused, 0, len(scores))
	for id, s := range scores {
		out = append(out, Fused{ID: id, Score: s})
	}
	return sortFused(out)
}

func (p *Pipeline) rrfK() float64 {
	if p.RRFK == 0 {
		return 60
	}
	return p.RRFK
}

// MultiQuery implements spec.md §4.5's `multi_query_search`: each query
// vector is searched independently and concurrently (bounded by
// MaxWorkers via errgroup), then the per-query rankings are fused by
// the given strategy.
func (p *Pipeline) MultiQuery(ctx context.Context, vectors [][]float32, k, ef int, strategy Strategy, filter Matcher) ([]Fused, error) {
	rankings := make([][]Ranked, len(vectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, vec := range vectors {
		i, vec := i, vec
		g.Go(func() error {
			r, err := p.VectorSearch(gctx, vec, k, ef, filter)
			if err != nil {
				return err
			}
			rankings[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	fused := Fuse(strategy, rankings, Options{RRFK: p.rrfK()})
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

func (p *Pipeline) limit() int {
	if p.MaxWorkers <= 0 {
		return 8
	}
	return p.MaxWorkers
}

// BatchRequest is one independent query within a batch_search call.
type BatchRequest struct {
	Vector []float32
	K      int
	EF     int
	Filter Matcher
}

// BatchResult is one request's outcome; Err is non-nil only for that
// request, per spec.md §4.5's "a failure on one does not affect
// others (failed requests return an error marker in the result list)".
type BatchResult struct {
	Results []Ranked
	Err     error
}

// Batch implements spec.md §4.5's `batch_search`: requests run in
// parallel (bounded by MaxWorkers), results preserve request order, and
// one request's failure is isolated to its own slot.
func (p *Pipeline) Batch(ctx context.Context, requests []BatchRequest) []BatchResult {
	out := make([]BatchResult, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			r, err := p.VectorSearch(gctx, req.Vector, req.K, req.EF, req.Filter)
			out[i] = BatchResult{Results: r, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Recommend implements spec.md §4.5's `recommend`: a derived centroid
// query built from the mean of the positive vectors minus the mean of
// the negative vectors, then a single vector search against that
// centroid. Points named as positives/negatives are not looked up by id
// here; the caller resolves ids to vectors (the Collection layer, which
// already owns the vector store) and passes the resolved slices in.
func (p *Pipeline) Recommend(ctx context.Context, positives, negatives [][]float32, k, ef int, filter Matcher) ([]Ranked, error) {
	centroid := deriveCentroid(positives, negatives)
	if centroid == nil {
		return nil, nil
	}
	return p.VectorSearch(ctx, centroid, k, ef, filter)
}

// deriveCentroid computes mean(positives) - mean(negatives) component
// wise. Returns nil if there are no positives to anchor the query on.
func deriveCentroid(positives, negatives [][]float32) []float32 {
	if len(positives) == 0 {
		return nil
	}
	dim := len(positives[0])
	centroid := make([]float32, dim)
	for _, v := range positives {
		for i := 0; i < dim && i < len(v); i++ {
			centroid[i] += v[i]
		}
	}
	for i := range centroid {
		centroid[i] /= float32(len(positives))
	}
	if len(negatives) > 0 {
		negMean := make([]float32, dim)
		for _, v := range negatives {
			for i := 0; i < dim && i < len(v); i++ {
				negMean[i] += v[i]
			}
		}
		for i := range negMean {
			negMean[i] /= float32(len(negatives))
		}
		for i := range centroid {
			centroid[i] -= negMean[i]
		}
	}
	return centroid
}
