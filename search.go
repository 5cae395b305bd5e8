package velesdb

import (
	"context"

	"github.com/velesdb/velesdb/pkg/graph"
	"github.com/velesdb/velesdb/pkg/payload"
	"github.com/velesdb/velesdb/pkg/query"
	"github.com/velesdb/velesdb/pkg/storage"
)

// toScored converts the query package's fused/ranked results into the
// caller-facing ScoredPoint shape, attaching payloads when asked.
func (c *Collection) toScoredRanked(r []query.Ranked, withPayload bool) []ScoredPoint {
	out := make([]ScoredPoint, len(r))
	for i, x := range r {
		out[i] = ScoredPoint{ID: x.ID, Score: x.Score}
	}
	return c.withPayload(out, withPayload)
}

func (c *Collection) toScoredFused(r []query.Fused, withPayload bool) []ScoredPoint {
	out := make([]ScoredPoint, len(r))
	for i, x := range r {
		out[i] = ScoredPoint{ID: x.ID, Score: x.Score}
	}
	return c.withPayload(out, withPayload)
}

func (c *Collection) resolveSearch(opts SearchOptions) (query.Matcher, int, error) {
	m, err := c.compileFilter(opts.Filter)
	if err != nil {
		return nil, 0, err
	}
	ef := opts.EfSearch
	if ef <= 0 {
		ef = c.opts.EfSearch
	}
	return m, ef, nil
}

// Search implements spec.md §6's plain vector search.
func (c *Collection) Search(ctx context.Context, vec []float32, opts SearchOptions) ([]ScoredPoint, error) {
	m, ef, err := c.resolveSearch(opts)
	if err != nil {
		return nil, err
	}
	r, err := c.pipeline.Search(ctx, vec, opts.TopK, ef, m)
	if err != nil {
		return nil, newErr("Collection.Search", KindStorageFailure, err)
	}
	return c.toScoredRanked(r, opts.WithPayload), nil
}

// TextSearch implements spec.md §6's text_search.
func (c *Collection) TextSearch(ctx context.Context, text string, opts SearchOptions) ([]ScoredPoint, error) {
	m, err := c.compileFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	r, err := c.pipeline.Text(ctx, text, opts.TopK, m)
	if err != nil {
		return nil, newErr("Collection.TextSearch", KindStorageFailure, err)
	}
	return c.toScoredRanked(r, opts.WithPayload), nil
}

// HybridSearch implements spec.md §6/§4.5's hybrid_search: a vector
// query and a text query fused by weighted RRF, vectorWeight in [0,1]
// controlling each side's contribution.
func (c *Collection) HybridSearch(ctx context.Context, vec []float32, text string, vectorWeight float64, opts SearchOptions) ([]ScoredPoint, error) {
	if vectorWeight < 0 || vectorWeight > 1 {
		return nil, newErr("Collection.HybridSearch", KindInvalidArgument, nil)
	}
	m, ef, err := c.resolveSearch(opts)
	if err != nil {
		return nil, err
	}
	r, err := c.pipeline.Hybrid(ctx, vec, text, opts.TopK, ef, vectorWeight, m)
	if err != nil {
		return nil, newErr("Collection.HybridSearch", KindStorageFailure, err)
	}
	return c.toScoredFused(r, opts.WithPayload), nil
}

// FusionStrategy selects how multi_query_search combines its per-query
// rankings (spec.md §4.5's fusion strategy table).
type FusionStrategy = query.Strategy

const (
	FusionRRF      = query.RRF
	FusionAverage  = query.Average
	FusionMaximum  = query.Maximum
	FusionWeighted = query.Weighted
)

// MultiQuerySearch implements spec.md §4.5's multi_query_search.
func (c *Collection) MultiQuerySearch(ctx context.Context, vectors [][]float32, strategy FusionStrategy, opts SearchOptions) ([]ScoredPoint, error) {
	m, ef, err := c.resolveSearch(opts)
	if err != nil {
		return nil, err
	}
	r, err := c.pipeline.MultiQuery(ctx, vectors, opts.TopK, ef, strategy, m)
	if err != nil {
		return nil, newErr("Collection.MultiQuerySearch", KindStorageFailure, err)
	}
	return c.toScoredFused(r, opts.WithPayload), nil
}

// BatchRequest is one independent search within a BatchSearch call.
type BatchRequest struct {
	Vector []float32
	Opts   SearchOptions
}

// BatchResult is one request's outcome, isolated from the others'
// failures per spec.md §4.5's batch_search contract.
type BatchResult struct {
	Results []ScoredPoint
	Err     error
}

// BatchSearch implements spec.md §4.5's batch_search.
func (c *Collection) BatchSearch(ctx context.Context, requests []BatchRequest) []BatchResult {
	inner := make([]query.BatchRequest, len(requests))
	withPayload := make([]bool, len(requests))
	preErr := make([]error, len(requests))
	for i, req := range requests {
		m, ef, err := c.resolveSearch(req.Opts)
		if err != nil {
			preErr[i] = err
			continue
		}
		inner[i] = query.BatchRequest{Vector: req.Vector, K: req.Opts.TopK, EF: ef, Filter: m}
		withPayload[i] = req.Opts.WithPayload
	}
	results := c.pipeline.Batch(ctx, inner)
	out := make([]BatchResult, len(results))
	for i, r := range results {
		if preErr[i] != nil {
			out[i] = BatchResult{Err: preErr[i]}
			continue
		}
		if r.Err != nil {
			out[i] = BatchResult{Err: newErr("Collection.BatchSearch", KindStorageFailure, r.Err)}
			continue
		}
		out[i] = BatchResult{Results: c.toScoredRanked(r.Results, withPayload[i])}
	}
	return out
}

// Recommend implements spec.md §4.5's recommend: positives/negatives are
// point ids already present in the collection, resolved to vectors here
// before deriving the query centroid.
func (c *Collection) Recommend(ctx context.Context, positives, negatives []uint64, opts SearchOptions) ([]ScoredPoint, error) {
	if c.store == nil {
		return nil, newErr("Collection.Recommend", KindUnsupported, ErrUnsupported)
	}
	posVecs, err := c.resolveVectors(positives)
	if err != nil {
		return nil, err
	}
	negVecs, err := c.resolveVectors(negatives)
	if err != nil {
		return nil, err
	}
	m, ef, err := c.resolveSearch(opts)
	if err != nil {
		return nil, err
	}
	r, err := c.pipeline.Recommend(ctx, posVecs, negVecs, opts.TopK, ef, m)
	if err != nil {
		return nil, newErr("Collection.Recommend", KindStorageFailure, err)
	}
	return c.toScoredRanked(r, opts.WithPayload), nil
}

func (c *Collection) resolveVectors(ids []uint64) ([][]float32, error) {
	out := make([][]float32, 0, len(ids))
	for _, id := range ids {
		vec, err := c.store.Get(id)
		if err != nil {
			return nil, newErr("Collection.Recommend", KindNotFound, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// AddEdge implements spec.md §4.6/§6's add_edge: a labeled directed
// edge between two existing point ids, durable via the same WAL stream
// as point mutations.
func (c *Collection) AddEdge(ctx context.Context, source, target uint64, label string, props payload.Payload) (uint64, error) {
	edgeID := c.edgeSeq.Add(1)
	rec := edgeRecord{EdgeID: edgeID, Source: source, Target: target, Label: label, Props: props}
	if _, err := c.cs.Append(storage.OpAddEdge, rec); err != nil {
		return 0, newErr("Collection.AddEdge", KindStorageFailure, err)
	}
	body, err := props.ToJSON()
	if err != nil {
		return 0, newErr("Collection.AddEdge", KindInvalidArgument, err)
	}
	if err := c.cs.Segments.PutEdge(c.name, edgeID, body); err != nil {
		return 0, newErr("Collection.AddEdge", KindStorageFailure, err)
	}
	c.edges.RestoreEdge(edgeID, source, target, label, props)
	return edgeID, nil
}

// TraverseBFS implements spec.md §4.6/§6's traverse_bfs. The result
// lists the nodes reached from source in visit order with their depth;
// source itself is not included and does not count toward limit.
func (c *Collection) TraverseBFS(source uint64, maxDepth, limit int, labels []string) []graph.Reached {
	if limit > 0 {
		limit++
	}
	return c.edges.TraverseBFS(source, maxDepth, limit, labelSet(labels))[1:]
}

// TraverseDFS implements spec.md §4.6/§6's traverse_dfs, with the same
// result shape as TraverseBFS (source excluded).
func (c *Collection) TraverseDFS(source uint64, maxDepth, limit int, labels []string) []graph.Reached {
	if limit > 0 {
		limit++
	}
	return c.edges.TraverseDFS(source, maxDepth, limit, labelSet(labels))[1:]
}

// EdgesByLabel implements spec.md §6's get_edges_by_label.
func (c *Collection) EdgesByLabel(label string) []*graph.Edge {
	return c.edges.EdgesByLabel(label)
}

// NodeDegree implements spec.md §6's node_degree.
func (c *Collection) NodeDegree(id uint64) (out, in int) {
	return c.edges.NodeDegree(id)
}

func labelSet(labels []string) map[string]struct{} {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		out[l] = struct{}{}
	}
	return out
}
