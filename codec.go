package velesdb

import (
	"encoding/binary"
	"math"
)

// encodeVector renders a vector as a flat little-endian float32 blob for
// segment storage. Quantization (sq8/binary) lives entirely inside
// pkg/vectorstore and is re-applied on Store.Put at replay time, so the
// segment always carries the original full-precision coordinates
// regardless of the collection's storage mode.
func encodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
