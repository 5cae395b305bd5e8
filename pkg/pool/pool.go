// Package pool provides object pooling for velesdb to reduce allocations
// on the hot paths: batch vector decode, search-candidate id
// accumulation, WAL record encoding, and filter cache-key construction.
//
// Pooled objects:
// - Float32 scratch slices (quantization decode, pkg/vectorstore/sq8.go)
// - uint64 id slices (candidate accumulation in pkg/hnsw and
//   pkg/textindex's brute-force and BM25 scans)
// - Byte scratch for WAL record encoding (pkg/storage)
// - String builders (canonical filter-key construction, pkg/filter)
//
// Usage:
//
//	buf := pool.GetFloat32Slice(dim)
//	defer pool.PutFloat32Slice(buf)
package pool

import (
	"sync"
)

// Config configures object pooling behavior.
type Config struct {
	// Enabled controls whether pooling is active.
	Enabled bool

	// MaxSize limits the maximum capacity of a float32 or id slice kept
	// in its pool; larger ones are dropped rather than retained. The
	// byte-buffer pool uses a fixed 1 MiB cap and the string-builder
	// pool a fixed 64 KiB cap instead.
	MaxSize int
}

var globalConfig = Config{
	Enabled: true,
	MaxSize: 8192,
}

// Configure sets global pool configuration. Should be called early
// during Database initialization, before any collection starts issuing
// searches or decodes.
func Configure(cfg Config) {
	globalConfig = cfg
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// Float32 Slice Pool (quantization decode scratch, §4.1 DecodeBatch)
// =============================================================================

var float32SlicePool = sync.Pool{
	New: func() any {
		return make([]float32, 0, 256)
	},
}

// GetFloat32Slice returns a scratch []float32 with at least capacity n
// and length 0.
func GetFloat32Slice(n int) []float32 {
	if !globalConfig.Enabled {
		return make([]float32, 0, n)
	}
	s := float32SlicePool.Get().([]float32)[:0]
	if cap(s) < n {
		return make([]float32, 0, n)
	}
	return s
}

// PutFloat32Slice returns a scratch buffer to the pool.
func PutFloat32Slice(s []float32) {
	if !globalConfig.Enabled || cap(s) > globalConfig.MaxSize {
		return
	}
	float32SlicePool.Put(s[:0])
}

// =============================================================================
// ID Slice Pool (search-result id accumulation)
// =============================================================================

var idSlicePool = sync.Pool{
	New: func() any {
		return make([]uint64, 0, 64)
	},
}

func GetIDSlice() []uint64 {
	if !globalConfig.Enabled {
		return make([]uint64, 0, 64)
	}
	return idSlicePool.Get().([]uint64)[:0]
}

func PutIDSlice(s []uint64) {
	if !globalConfig.Enabled || cap(s) > globalConfig.MaxSize {
		return
	}
	idSlicePool.Put(s[:0])
}

// =============================================================================
// Byte Buffer Pool (WAL record encoding)
// =============================================================================

var byteBufferPool = sync.Pool{
	New: func() any {
		return make([]byte, 0, 1024)
	},
}

// GetByteBuffer returns a byte buffer from the pool.
func GetByteBuffer() []byte {
	if !globalConfig.Enabled {
		return make([]byte, 0, 1024)
	}
	return byteBufferPool.Get().([]byte)[:0]
}

// PutByteBuffer returns a byte buffer to the pool.
func PutByteBuffer(buf []byte) {
	if !globalConfig.Enabled {
		return
	}
	if cap(buf) > 1024*1024 { // Don't pool huge buffers (>1MB)
		return
	}
	byteBufferPool.Put(buf[:0])
}

// =============================================================================
// String Builder Pool (canonical filter-key construction)
// =============================================================================

// PooledStringBuilder is a poolable string builder.
type PooledStringBuilder struct {
	buf []byte
}

var stringBuilderPool = sync.Pool{
	New: func() any {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	},
}

func (b *PooledStringBuilder) WriteString(s string) { b.buf = append(b.buf, s...) }
func (b *PooledStringBuilder) WriteByte(c byte)     { b.buf = append(b.buf, c) }
func (b *PooledStringBuilder) WriteRune(r rune) {
	b.buf = append(b.buf[:len(b.buf)], string(r)...)
}

// Write implements io.Writer, so a *PooledStringBuilder can stand in
// anywhere fmt.Fprintf or similar expects a writer (pkg/filter's
// canonical-key builder feeds it filter values via Fprintf).
func (b *PooledStringBuilder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
func (b *PooledStringBuilder) String() string { return string(b.buf) }
func (b *PooledStringBuilder) Len() int       { return len(b.buf) }
func (b *PooledStringBuilder) Reset()         { b.buf = b.buf[:0] }

// GetStringBuilder returns a string builder from the pool.
func GetStringBuilder() *PooledStringBuilder {
	if !globalConfig.Enabled {
		return &PooledStringBuilder{buf: make([]byte, 0, 256)}
	}
	b := stringBuilderPool.Get().(*PooledStringBuilder)
	b.Reset()
	return b
}

// PutStringBuilder returns a string builder to the pool.
func PutStringBuilder(b *PooledStringBuilder) {
	if !globalConfig.Enabled || b == nil {
		return
	}
	if cap(b.buf) > 64*1024 {
		return
	}
	b.Reset()
	stringBuilderPool.Put(b)
}
