package vectorstore

import (
	"math"
	"sync"

	"github.com/velesdb/velesdb/pkg/pool"
)

// sq8Vector is a per-vector 8-bit scalar quantization with a per-vector
// (min, scale) reconstruction pair: reconstructed[i] = min + q[i]*scale/255.
// Per-vector (not per-dimension or per-collection) quantization preserves
// each vector's own dynamic range, grounded on the bit-packing structure
// of liliang-cn-sqvect's scalar quantizer, adapted from per-dimension
// training to this spec's per-vector min/scale contract.
type sq8Vector struct {
	min, scale float32
	codes      []uint8
}

type sq8Store struct {
	mu         sync.RWMutex
	dim        int
	metric     Metric
	vecs       map[uint64]sq8Vector
	corruption *corruptionTracker
}

func newSQ8Store(dim int, metric Metric) *sq8Store {
	return &sq8Store{
		dim:        dim,
		metric:     metric,
		vecs:       make(map[uint64]sq8Vector),
		corruption: newCorruptionTracker(),
	}
}

func (s *sq8Store) Dim() int       { return s.dim }
func (s *sq8Store) Metric() Metric { return s.metric }
func (s *sq8Store) Mode() Mode     { return SQ8 }

// encodeSQ8 computes the per-vector min/scale pair and quantizes each
// coordinate to the nearest uint8 code.
func encodeSQ8(v []float32) sq8Vector {
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	scale := hi - lo
	codes := make([]uint8, len(v))
	if scale == 0 {
		// Constant vector: every code maps back to lo via min+0*scale/255.
		return sq8Vector{min: lo, scale: 0, codes: codes}
	}
	for i, x := range v {
		q := (x - lo) / scale * 255
		if q < 0 {
			q = 0
		} else if q > 255 {
			q = 255
		}
		codes[i] = uint8(q + 0.5)
	}
	return sq8Vector{min: lo, scale: scale, codes: codes}
}

func decodeSQ8Into(sv sq8Vector, out []float32) {
	for i, c := range sv.codes {
		out[i] = sv.min + float32(c)*sv.scale/255
	}
}

// isCorrupt reports whether sv's header violates spec §4.1's corruption
// rule: a scale of NaN or (for a non-degenerate vector) invalid.
func (sv sq8Vector) isCorrupt() bool {
	return math.IsNaN(float64(sv.scale)) || math.IsNaN(float64(sv.min))
}

func (s *sq8Store) Put(id uint64, vec []float32) error {
	if err := validateVector(vec, s.dim); err != nil {
		return err
	}
	enc := encodeSQ8(vec)
	s.mu.Lock()
	s.vecs[id] = enc
	s.mu.Unlock()
	return nil
}

func (s *sq8Store) Get(id uint64) ([]float32, error) {
	s.mu.RLock()
	sv, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if sv.isCorrupt() {
		return nil, ErrCorrupted
	}
	out := make([]float32, s.dim)
	decodeSQ8Into(sv, out)
	return out, nil
}

func (s *sq8Store) Delete(id uint64) {
	s.mu.Lock()
	delete(s.vecs, id)
	s.mu.Unlock()
}

func (s *sq8Store) Count() int {
	s.mu.RLock()
	n := len(s.vecs)
	s.mu.RUnlock()
	return n
}

func (s *sq8Store) decode(id uint64) ([]float32, error) {
	s.mu.RLock()
	sv, ok := s.vecs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if sv.isCorrupt() {
		return nil, ErrCorrupted
	}
	out := pool.GetFloat32Slice(s.dim)[:s.dim]
	decodeSQ8Into(sv, out)
	return out, nil
}

// LogOnceCorrupt reports whether id's corrupted encoding has not yet
// been logged by the caller, marking it logged as a side effect.
func (s *sq8Store) LogOnceCorrupt(id uint64) bool {
	return s.corruption.ShouldLog(id)
}

func (s *sq8Store) Distance(id uint64, query []float32) (float64, error) {
	v, err := s.decode(id)
	if err != nil {
		return 0, err
	}
	defer pool.PutFloat32Slice(v)
	return rawDistance(s.metric, v, query)
}

func (s *sq8Store) Similarity(id uint64, query []float32) (float64, error) {
	v, err := s.decode(id)
	if err != nil {
		return 0, err
	}
	defer pool.PutFloat32Slice(v)
	return callerSimilarity(s.metric, v, query)
}

// DecodeBatch decodes a contiguous run of ids into a reused scratch
// buffer, one dim-length segment per id, for the SIMD-width batch
// dispatch path named in spec §4.3.5. The returned slice is owned by the
// caller; release it with pool.PutFloat32Slice when done.
func (s *sq8Store) DecodeBatch(ids []uint64) ([]float32, error) {
	out := pool.GetFloat32Slice(len(ids) * s.dim)
	out = out[:len(ids)*s.dim]
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, id := range ids {
		sv, ok := s.vecs[id]
		if !ok {
			return nil, ErrNotFound
		}
		if sv.isCorrupt() {
			return nil, ErrCorrupted
		}
		decodeSQ8Into(sv, out[i*s.dim:(i+1)*s.dim])
	}
	return out, nil
}
