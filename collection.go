package velesdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/velesdb/velesdb/pkg/filter"
	"github.com/velesdb/velesdb/pkg/graph"
	"github.com/velesdb/velesdb/pkg/hnsw"
	"github.com/velesdb/velesdb/pkg/obslog"
	"github.com/velesdb/velesdb/pkg/payload"
	"github.com/velesdb/velesdb/pkg/query"
	"github.com/velesdb/velesdb/pkg/storage"
	"github.com/velesdb/velesdb/pkg/textindex"
	"github.com/velesdb/velesdb/pkg/vectorstore"
)

// Point is one vector-bearing record (spec.md §6's {id, vector, payload?}
// shape).
type Point struct {
	ID      uint64
	Vector  []float32
	Payload payload.Payload
}

// ScoredPoint is one search hit: an id, its fused/ranked score
// (similarity in [0,1], descending), and its payload when requested.
type ScoredPoint struct {
	ID      uint64
	Score   float64
	Payload payload.Payload
}

// SearchOptions configures a single-vector search call.
type SearchOptions struct {
	TopK         int
	EfSearch     int
	Filter       filter.Node
	WithPayload  bool
}

// Collection is one named, independently-configured vector+text+graph
// index set (spec.md §3's collection model), durable via its own WAL
// stream and segment namespace.
//
// Grounded on the teacher's internal per-database registry pattern
// (collections kept in a map guarded by one RWMutex, looked up by
// name) but composed from this engine's own index packages rather than
// the teacher's single Badger graph engine.
type Collection struct {
	mu   sync.RWMutex
	name string
	opts CollectionOptions
	log  *obslog.Logger

	store    vectorstore.Store // nil for a metadata-only collection
	index    *hnsw.Index       // nil for a metadata-only collection
	text     *textindex.Index  // nil if opts.TextFields is empty
	edges    *graph.Store
	filters  *filter.Cache
	pipeline *query.Pipeline

	payloads map[uint64]payload.Payload
	cs       *storage.CollectionStore
	edgeSeq  atomic.Uint64
}

func newCollection(name string, opts CollectionOptions, cs *storage.CollectionStore, filterCache *filter.Cache, log *obslog.Logger) (*Collection, error) {
	opts = opts.withDefaults()
	c := &Collection{
		name:     name,
		opts:     opts,
		log:      log.WithCollection(name),
		edges:    graph.NewStore(),
		filters:  filterCache,
		payloads: make(map[uint64]payload.Payload),
		cs:       cs,
	}

	if !opts.IsMetadataOnly() {
		store, err := vectorstore.New(opts.Dimension, opts.Metric, opts.StorageMode)
		if err != nil {
			return nil, newErr("CreateCollection", KindInvalidArgument, err)
		}
		c.store = store
		c.index = hnsw.New(opts.Dimension, store, opts.hnswConfig())
	}
	if len(opts.TextFields) > 0 {
		c.text = textindex.New(nil)
	}

	c.pipeline = query.NewPipeline(c.vectorSearchFunc(), c.textSearchFunc())
	return c, nil
}

// applyWAL replays one previously-durable mutation into the in-memory
// indexes, without re-appending it to the log (storage.ApplyFunc's
// contract during storage.OpenCollection's replay pass).
func (c *Collection) applyWAL(entry storage.WALEntry) error {
	switch entry.Op {
	case storage.OpUpsert:
		var rec upsertRecord
		if err := json.Unmarshal(entry.Data, &rec); err != nil {
			return err
		}
		return c.applyUpsert(rec)
	case storage.OpDelete:
		var rec deleteRecord
		if err := json.Unmarshal(entry.Data, &rec); err != nil {
			return err
		}
		c.applyDelete(rec.ID)
		return nil
	case storage.OpAddEdge:
		var rec edgeRecord
		if err := json.Unmarshal(entry.Data, &rec); err != nil {
			return err
		}
		c.edges.RestoreEdge(rec.EdgeID, rec.Source, rec.Target, rec.Label, rec.Props)
		c.bumpEdgeSeq(rec.EdgeID)
		return nil
	default:
		return nil
	}
}

type upsertRecord struct {
	ID      uint64          `json:"id"`
	Vector  []float32       `json:"vector,omitempty"`
	Payload payload.Payload `json:"payload,omitempty"`
}

type deleteRecord struct {
	ID uint64 `json:"id"`
}

func (c *Collection) bumpEdgeSeq(id uint64) {
	for {
		cur := c.edgeSeq.Load()
		if id <= cur {
			return
		}
		if c.edgeSeq.CompareAndSwap(cur, id) {
			return
		}
	}
}

type edgeRecord struct {
	EdgeID uint64          `json:"edge_id"`
	Source uint64          `json:"source"`
	Target uint64          `json:"target"`
	Label  string          `json:"label"`
	Props  payload.Payload `json:"props,omitempty"`
}

func (c *Collection) applyUpsert(rec upsertRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil && rec.Vector != nil {
		if err := c.store.Put(rec.ID, rec.Vector); err != nil {
			return newErr("Collection.Upsert", KindDimensionMismatch, err)
		}
		if err := c.index.Add(rec.ID, rec.Vector); err != nil {
			return newErr("Collection.Upsert", KindStorageFailure, err)
		}
	}
	c.payloads[rec.ID] = rec.Payload
	if c.text != nil {
		c.text.Upsert(rec.ID, c.textOf(rec.Payload))
	}
	return nil
}

func (c *Collection) applyDelete(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store != nil {
		c.store.Delete(id)
		c.index.Delete(id)
		if c.index.ShouldCompact() {
			c.index.Compact()
		}
	}
	delete(c.payloads, id)
	if c.text != nil {
		c.text.Delete(id)
	}
}

// textOf concatenates the configured text fields of a payload into one
// document, the unit pkg/textindex tokenizes and scores.
func (c *Collection) textOf(p payload.Payload) string {
	if len(c.opts.TextFields) == 0 || p == nil {
		return ""
	}
	var b strings.Builder
	for _, field := range c.opts.TextFields {
		v, ok := p.Field(field)
		if !ok {
			continue
		}
		if s, ok := v.Text(); ok {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(s)
		}
	}
	return b.String()
}

// Upsert inserts or replaces a point (spec.md §6's point upsert
// operation). A vector length mismatching the collection's dimension is
// rejected before anything is appended to the log.
func (c *Collection) Upsert(ctx context.Context, p Point) error {
	if c.store != nil && len(p.Vector) != c.opts.Dimension {
		return newErr("Collection.Upsert", KindDimensionMismatch,
			fmt.Errorf("want %d, got %d", c.opts.Dimension, len(p.Vector)))
	}
	rec := upsertRecord{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	if _, err := c.cs.Append(storage.OpUpsert, rec); err != nil {
		return newErr("Collection.Upsert", KindStorageFailure, err)
	}
	if err := c.persistUpsert(p); err != nil {
		return newErr("Collection.Upsert", KindStorageFailure, err)
	}
	return c.applyUpsert(rec)
}

func (c *Collection) persistUpsert(p Point) error {
	seg := c.cs.Segments
	if c.store != nil {
		if err := seg.PutVector(c.name, p.ID, encodeVector(p.Vector)); err != nil {
			return err
		}
	}
	body, err := p.Payload.ToJSON()
	if err != nil {
		return err
	}
	return seg.PutPayload(c.name, p.ID, body)
}

// Delete removes a point. Deleting an absent id is a no-op, matching
// pkg/hnsw and pkg/textindex's own idempotent delete semantics.
func (c *Collection) Delete(ctx context.Context, id uint64) error {
	if _, err := c.cs.Append(storage.OpDelete, deleteRecord{ID: id}); err != nil {
		return newErr("Collection.Delete", KindStorageFailure, err)
	}
	seg := c.cs.Segments
	if c.store != nil {
		if err := seg.DeleteVector(c.name, id); err != nil {
			return newErr("Collection.Delete", KindStorageFailure, err)
		}
	}
	if err := seg.DeletePayload(c.name, id); err != nil {
		return newErr("Collection.Delete", KindStorageFailure, err)
	}
	c.applyDelete(id)
	return nil
}

// Get returns a point's payload (and, if it carries one, its vector).
func (c *Collection) Get(ctx context.Context, id uint64) (Point, error) {
	c.mu.RLock()
	p, ok := c.payloads[id]
	c.mu.RUnlock()
	if !ok {
		return Point{}, newErr("Collection.Get", KindNotFound, ErrNotFound)
	}
	pt := Point{ID: id, Payload: p}
	if c.store != nil {
		if vec, err := c.store.Get(id); err == nil {
			pt.Vector = vec
		}
	}
	return pt, nil
}

// Count returns the number of live points.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.payloads)
}

// Flush checkpoints the collection's WAL tail, advancing
// LastCheckpointSeq so a future restart need only replay entries after
// this point (spec.md §4.7's "flush" operation).
func (c *Collection) Flush(upToSeq uint64) error {
	if err := c.cs.Checkpoint(upToSeq); err != nil {
		return newErr("Collection.Flush", KindStorageFailure, err)
	}
	return nil
}

// Info reports the collection's static configuration and live size,
// backing spec.md §6's get_collection.
type Info struct {
	Name        string
	Dimension   int
	Metric      vectorstore.Metric
	StorageMode vectorstore.Mode
	PointCount  int
	EdgeCount   int
}

func (c *Collection) Info() Info {
	info := Info{
		Name:       c.name,
		PointCount: c.Count(),
		EdgeCount:  c.edges.Count(),
	}
	if c.store != nil {
		info.Dimension = c.store.Dim()
		info.Metric = c.store.Metric()
		info.StorageMode = c.store.Mode()
	}
	return info
}

// ForEachPayload implements pkg/filter.PayloadSource, letting a
// compiled filter materialize an oracle bitmap over this collection's
// live ids without pkg/filter depending on this package.
func (c *Collection) ForEachPayload(fn func(id uint64, p payload.Payload) bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for id, p := range c.payloads {
		if !fn(id, p) {
			return
		}
	}
}

// PayloadByID implements pkg/filter.TrigramSource's per-candidate
// confirmation lookup.
func (c *Collection) PayloadByID(id uint64) (payload.Payload, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.payloads[id]
	return p, ok
}

// TrigramCandidates implements pkg/filter.TrigramSource, letting a
// like/ilike filter on the collection's single configured text field
// narrow Oracle's candidate set via the BM25 index's trigram
// accelerator instead of a full payload scan. Any field other than that
// one text field returns ok=false, since the trigram index only covers
// the concatenated content of opts.TextFields and can't be trusted to
// speak for an arbitrary payload field.
func (c *Collection) TrigramCandidates(field, literal string) (*roaring64.Bitmap, bool) {
	if c.text == nil || len(c.opts.TextFields) != 1 || c.opts.TextFields[0] != field {
		return nil, false
	}
	return c.text.TrigramCandidates(literal)
}

// idFilterMatcher bridges a payload-keyed filter.CompiledFilter into
// the id-keyed Matcher shape pkg/hnsw, pkg/textindex, and pkg/query all
// require: each candidate id is resolved back to its payload, then
// delegated to the compiled filter (spec §4.2's per-candidate filter
// evaluation, re-expressed at the id layer the search indexes work in).
type idFilterMatcher struct {
	coll *Collection
	cf   *filter.CompiledFilter
}

func (m idFilterMatcher) Matches(id uint64) bool {
	m.coll.mu.RLock()
	p, ok := m.coll.payloads[id]
	m.coll.mu.RUnlock()
	if !ok {
		return false
	}
	return m.cf.Matches(p)
}

// compileFilter compiles n (empty matches everything) through the
// collection's shared cache.
func (c *Collection) compileFilter(n filter.Node) (query.Matcher, error) {
	if n.Type == "" {
		return nil, nil
	}
	cf, err := c.filters.GetOrCompile(n)
	if err != nil {
		return nil, newErr("Collection.compileFilter", KindInvalidArgument, err)
	}
	return idFilterMatcher{coll: c, cf: cf}, nil
}

// selectivity estimates the fraction of live points a compiled filter
// admits, consulted by Search to decide whether to widen ef (spec
// §4.3.2's filter-integration rule). It returns -1 (no estimate) for a
// nil filter or an empty collection.
func (c *Collection) selectivity(cf *filter.CompiledFilter) float64 {
	if cf == nil {
		return -1
	}
	total := c.Count()
	if total == 0 {
		return -1
	}
	bm := cf.Oracle(c)
	return float64(bm.GetCardinality()) / float64(total)
}

func (c *Collection) vectorSearchFunc() query.VectorSearchFunc {
	return func(ctx context.Context, vec []float32, k, ef int, filter query.Matcher) ([]query.Ranked, error) {
		if c.index == nil {
			return nil, newErr("Collection.Search", KindUnsupported, ErrUnsupported)
		}
		var hnswMatch hnsw.Matcher
		if filter != nil {
			hnswMatch = hnswMatcherAdapter{filter}
		}
		sel := -1.0
		if fm, ok := filter.(idFilterMatcher); ok {
			sel = c.selectivity(fm.cf)
		}
		results, err := c.index.Search(ctx, vec, k, ef, hnswMatch, sel)
		if err != nil {
			return nil, err
		}
		out := make([]query.Ranked, len(results))
		for i, r := range results {
			sim, err := c.store.Similarity(r.ID, vec)
			if err != nil {
				sim = 0
			}
			out[i] = query.Ranked{ID: r.ID, Score: sim}
		}
		return out, nil
	}
}

func (c *Collection) textSearchFunc() query.TextSearchFunc {
	return func(ctx context.Context, text string, k int, filter query.Matcher) ([]query.Ranked, error) {
		if c.text == nil {
			return nil, newErr("Collection.TextSearch", KindUnsupported, ErrUnsupported)
		}
		var textMatch textindex.Matcher
		if filter != nil {
			textMatch = textMatcherAdapter{filter}
		}
		results := c.text.Search(text, k, textMatch)
		out := make([]query.Ranked, len(results))
		for i, r := range results {
			out[i] = query.Ranked{ID: r.ID, Score: r.Score}
		}
		return out, nil
	}
}

// hnswMatcherAdapter/textMatcherAdapter wrap a query.Matcher as the
// hnsw.Matcher/textindex.Matcher the two indexes take; all three
// interfaces declare the same single Matches method.
type hnswMatcherAdapter struct{ m query.Matcher }

func (a hnswMatcherAdapter) Matches(id uint64) bool { return a.m.Matches(id) }

type textMatcherAdapter struct{ m query.Matcher }

func (a textMatcherAdapter) Matches(id uint64) bool { return a.m.Matches(id) }

func (c *Collection) withPayload(results []ScoredPoint, withPayload bool) []ScoredPoint {
	if !withPayload {
		return results
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range results {
		results[i].Payload = c.payloads[results[i].ID]
	}
	return results
}
