package velesdb

import "testing"

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	vec := []float32{1.5, -2.25, 0, 3.125, -0.0001}
	encoded := encodeVector(vec)
	if len(encoded) != len(vec)*4 {
		t.Fatalf("expected %d bytes, got %d", len(vec)*4, len(encoded))
	}
	decoded := decodeVector(encoded)
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d floats back, got %d", len(vec), len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("component %d: want %v, got %v", i, vec[i], decoded[i])
		}
	}
}

func TestEncodeVectorEmpty(t *testing.T) {
	if len(encodeVector(nil)) != 0 {
		t.Fatalf("expected empty encoding for nil vector")
	}
	if len(decodeVector(nil)) != 0 {
		t.Fatalf("expected empty decode for nil bytes")
	}
}
