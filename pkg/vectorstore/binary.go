package vectorstore

import (
	"sync"

	"github.com/velesdb/velesdb/pkg/math/vector"
)

// binaryStore holds 1-bit-per-coordinate sign-encoded vectors, packed 64
// coordinates per 64-bit word (spec §3 Vector Encoding / binary). The
// last word is padded with zero bits when dim is not a multiple of 64.
type binaryStore struct {
	mu     sync.RWMutex
	dim    int
	words  int
	metric Metric
	vecs   map[uint64][]uint64
}

func newBinaryStore(dim int, metric Metric) *binaryStore {
	return &binaryStore{
		dim:    dim,
		words:  (dim + 63) / 64,
		metric: metric,
		vecs:   make(map[uint64][]uint64),
	}
}

func (s *binaryStore) Dim() int       { return s.dim }
func (s *binaryStore) Metric() Metric { return s.metric }
func (s *binaryStore) Mode() Mode     { return Binary }

// packBinary sign-encodes v into s.words 64-bit words; zero maps to 0,
// per spec §4.1's quantization policy.
func packBinary(v []float32, words int) []uint64 {
	out := make([]uint64, words)
	for i, x := range v {
		if x > 0 {
			out[i/64] |= 1 << uint(i%64)
		}
	}
	return out
}

func (s *binaryStore) Put(id uint64, vec []float32) error {
	if err := validateVector(vec, s.dim); err != nil {
		return err
	}
	packed := packBinary(vec, s.words)
	s.mu.Lock()
	s.vecs[id] = packed
	s.mu.Unlock()
	return nil
}

// unpack reconstructs a ±1 float32 approximation from packed sign bits,
// used only by Get for callers that want a decoded view; the distance
// kernels below operate directly on the packed words instead.
func (s *binaryStore) unpack(packed []uint64) []float32 {
	out := make([]float32, s.dim)
	for i := range out {
		if packed[i/64]&(1<<uint(i%64)) != 0 {
			out[i] = 1
		} else {
			out[i] = -1
		}
	}
	return out
}

func (s *binaryStore) Get(id uint64) ([]float32, error) {
	s.mu.RLock()
	packed, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.unpack(packed), nil
}

func (s *binaryStore) Delete(id uint64) {
	s.mu.Lock()
	delete(s.vecs, id)
	s.mu.Unlock()
}

func (s *binaryStore) Count() int {
	s.mu.RLock()
	n := len(s.vecs)
	s.mu.RUnlock()
	return n
}

func (s *binaryStore) Distance(id uint64, query []float32) (float64, error) {
	s.mu.RLock()
	packed, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	qp := packBinary(query, s.words)
	switch s.metric {
	case Hamming:
		return 1 - vector.HammingSimilarity(packed, qp, s.dim), nil
	case Jaccard:
		return 1 - vector.JaccardSimilarity(packed, qp), nil
	default:
		// Non-binary-native metrics still work by comparing the
		// reconstructed ±1 vectors, for collections that pick a
		// binary storage mode with e.g. cosine as the query metric.
		a := s.unpack(packed)
		return rawDistance(s.metric, a, query)
	}
}

func (s *binaryStore) Similarity(id uint64, query []float32) (float64, error) {
	s.mu.RLock()
	packed, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return 0, ErrNotFound
	}
	qp := packBinary(query, s.words)
	switch s.metric {
	case Hamming:
		return vector.HammingSimilarity(packed, qp, s.dim), nil
	case Jaccard:
		return vector.JaccardSimilarity(packed, qp), nil
	default:
		a := s.unpack(packed)
		return callerSimilarity(s.metric, a, query)
	}
}
