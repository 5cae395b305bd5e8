package vectorstore

import (
	"math"
	"testing"
)

func TestFullStorePutGetDistance(t *testing.T) {
	s, err := New(4, Cosine, Full)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(1, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 {
		t.Fatalf("unexpected decode: %v", got)
	}
	sim, err := s.Similarity(1, []float32{1, 0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Fatalf("expected similarity ~1.0, got %v", sim)
	}
}

func TestFullStoreDimensionMismatch(t *testing.T) {
	s, _ := New(4, Cosine, Full)
	if err := s.Put(1, []float32{1, 2}); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestFullStoreRejectsNaN(t *testing.T) {
	s, _ := New(3, Euclidean, Full)
	err := s.Put(1, []float32{1, float32(math.NaN()), 2})
	if err != ErrInvalidVector {
		t.Fatalf("expected ErrInvalidVector, got %v", err)
	}
}

func TestSQ8RoundTripTolerance(t *testing.T) {
	s, _ := New(4, Euclidean, SQ8)
	v := []float32{0.1, 0.5, -0.3, 0.9}
	if err := s.Put(1, v); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	rng := float32(0.9 - (-0.3))
	tol := rng / 255
	for i := range v {
		if math.Abs(float64(got[i]-v[i])) > float64(tol)+1e-6 {
			t.Fatalf("coord %d: got %v want ~%v (tol %v)", i, got[i], v[i], tol)
		}
	}
}

func TestBinaryPreservesSign(t *testing.T) {
	s, _ := New(4, Hamming, Binary)
	v := []float32{1, -1, 0.5, -0.5}
	if err := s.Put(1, v); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range v {
		wantPos := v[i] > 0
		gotPos := got[i] > 0
		if wantPos != gotPos {
			t.Fatalf("coord %d sign flipped: got %v want sign-of %v", i, got[i], v[i])
		}
	}
}

func TestBinaryHammingIdentical(t *testing.T) {
	s, _ := New(128, Hamming, Binary)
	v := make([]float32, 128)
	for i := range v {
		if i%2 == 0 {
			v[i] = 1
		} else {
			v[i] = -1
		}
	}
	s.Put(1, v)
	sim, err := s.Similarity(1, v)
	if err != nil {
		t.Fatal(err)
	}
	if sim != 1.0 {
		t.Fatalf("expected identical vectors to have hamming similarity 1.0, got %v", sim)
	}
}

func TestJaccardAllZeroIsZero(t *testing.T) {
	s, _ := New(8, Jaccard, Binary)
	zero := make([]float32, 8)
	s.Put(1, zero)
	sim, err := s.Similarity(1, zero)
	if err != nil {
		t.Fatal(err)
	}
	if sim != 0 {
		t.Fatalf("expected jaccard similarity of all-zero pair to be 0, got %v", sim)
	}
}
