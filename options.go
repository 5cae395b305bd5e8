package velesdb

import (
	"github.com/velesdb/velesdb/pkg/hnsw"
	"github.com/velesdb/velesdb/pkg/storage"
	"github.com/velesdb/velesdb/pkg/vectorstore"
)

// CollectionOptions configures a new collection at create_collection
// time (spec.md §6). Zero values are replaced by spec.md §4.3's
// recommended HNSW defaults.
type CollectionOptions struct {
	Dimension   int
	Metric      vectorstore.Metric
	StorageMode vectorstore.Mode
	// TextFields names the payload fields that are BM25-indexed; a
	// point's indexed text is read from those text-valued payload
	// fields at Upsert time, joined with single spaces.
	TextFields []string

	M              int
	EfConstruction int
	EfSearch       int
}

// withDefaults fills unset numeric fields with spec.md §4.3's
// recommended defaults (M=16, M0=2M, ef_construction=200, ef_search=100).
func (o CollectionOptions) withDefaults() CollectionOptions {
	if o.M == 0 {
		o.M = 16
	}
	if o.EfConstruction == 0 {
		o.EfConstruction = 200
	}
	if o.EfSearch == 0 {
		o.EfSearch = 100
	}
	return o
}

func (o CollectionOptions) hnswConfig() hnsw.Config {
	cfg := hnsw.DefaultConfig()
	cfg.M = o.M
	cfg.M0 = 2 * o.M
	cfg.EfConstruction = o.EfConstruction
	cfg.EfSearch = o.EfSearch
	return cfg
}

func (o CollectionOptions) manifest(name string) storage.Manifest {
	return storage.Manifest{
		Name:        name,
		Dimension:   o.Dimension,
		Metric:      storage.Metric(o.Metric.String()),
		StorageMode: storage.StorageMode(o.StorageMode.String()),
		HNSW: storage.HNSWParams{
			M:               o.M,
			M0:              2 * o.M,
			EfConstruction:  o.EfConstruction,
			EfSearch:        o.EfSearch,
			MaxLevel:        32,
			CompactionRatio: 0.30,
		},
		Text: storage.TextFieldConfig{Fields: o.TextFields},
	}
}

// IsMetadataOnly reports whether the collection carries no vectors
// (spec.md §3: "A collection is either vector-bearing or
// metadata-only; the latter disables C1 and C4").
func (o CollectionOptions) IsMetadataOnly() bool {
	return o.Dimension == 0
}
