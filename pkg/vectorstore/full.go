package vectorstore

import (
	"fmt"
	"sync"

	"github.com/velesdb/velesdb/pkg/math/vector"
)

// fullStore holds raw D×f32 vectors, one slice per point. Spec §4.3.5
// asks for 32-byte-aligned contiguous storage to enable 8-lane SIMD;
// Go's allocator does not expose alignment control, so this
// implementation keeps each vector as its own contiguous []float32
// (naturally aligned to 4 bytes, the practical ceiling without cgo or
// unsafe tricks) and relies on the scalar fallback kernels in
// pkg/math/vector, matching spec §4.3.5's "implementations SHOULD
// provide fallback scalar kernels" allowance.
type fullStore struct {
	mu     sync.RWMutex
	dim    int
	metric Metric
	vecs   map[uint64][]float32
}

func newFullStore(dim int, metric Metric) *fullStore {
	return &fullStore{dim: dim, metric: metric, vecs: make(map[uint64][]float32)}
}

func (s *fullStore) Dim() int       { return s.dim }
func (s *fullStore) Metric() Metric { return s.metric }
func (s *fullStore) Mode() Mode     { return Full }

func (s *fullStore) Put(id uint64, vec []float32) error {
	if err := validateVector(vec, s.dim); err != nil {
		return err
	}
	cp := make([]float32, len(vec))
	copy(cp, vec)
	s.mu.Lock()
	s.vecs[id] = cp
	s.mu.Unlock()
	return nil
}

func (s *fullStore) Get(id uint64) ([]float32, error) {
	s.mu.RLock()
	v, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]float32, len(v))
	copy(cp, v)
	return cp, nil
}

func (s *fullStore) Delete(id uint64) {
	s.mu.Lock()
	delete(s.vecs, id)
	s.mu.Unlock()
}

func (s *fullStore) Count() int {
	s.mu.RLock()
	n := len(s.vecs)
	s.mu.RUnlock()
	return n
}

func (s *fullStore) Distance(id uint64, query []float32) (float64, error) {
	s.mu.RLock()
	v, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	return rawDistance(s.metric, v, query)
}

func (s *fullStore) Similarity(id uint64, query []float32) (float64, error) {
	s.mu.RLock()
	v, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	return callerSimilarity(s.metric, v, query)
}

// rawDistance returns the metric-native, lower-is-better quantity the
// HNSW walker minimizes during beam search.
func rawDistance(m Metric, a, b []float32) (float64, error) {
	switch m {
	case Cosine:
		return 1 - vector.CosineSimilarity(a, b), nil
	case Euclidean:
		var sum float64
		for i := range a {
			d := float64(a[i] - b[i])
			sum += d * d
		}
		return sum, nil
	case Dot:
		return -vector.DotProduct(a, b), nil
	case Hamming, Jaccard:
		return 0, fmt.Errorf("vectorstore: metric %v requires binary encoding", m)
	default:
		return 0, fmt.Errorf("vectorstore: unknown metric %v", m)
	}
}

// callerSimilarity returns the caller-facing similarity in [0,1] per
// spec §4.1's distance-semantics table.
func callerSimilarity(m Metric, a, b []float32) (float64, error) {
	switch m {
	case Cosine:
		return vector.CallerCosine(a, b), nil
	case Euclidean:
		return vector.CallerEuclidean(a, b), nil
	case Dot:
		return vector.CallerDot(a, b), nil
	case Hamming, Jaccard:
		return 0, fmt.Errorf("vectorstore: metric %v requires binary encoding", m)
	default:
		return 0, fmt.Errorf("vectorstore: unknown metric %v", m)
	}
}
