// manifest.go implements the per-collection manifest spec.md §4.7
// names: name, dimension, metric, storage mode, HNSW params, text-field
// config, and a schema version, checksummed and written atomically so a
// crash mid-write never leaves a collection with a manifest that
// silently disagrees with its segments.
//
// Grounded on the teacher's pkg/storage/wal.go durability pattern
// (write to a temp path, fsync, rename into place) generalized from a
// single WAL file to the collection manifest; the checksum algorithm
// moves from the teacher's CRC32 to blake2b-256 since the manifest is
// small, infrequent, and benefits from a stronger hash than the WAL's
// per-entry integrity check needs.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"
)

const manifestSchemaVersion = 1

// Metric names the distance/similarity function a collection searches
// with, per spec.md §4.2.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
	MetricDot       Metric = "dot"
	MetricHamming   Metric = "hamming"
	MetricJaccard   Metric = "jaccard"
)

// StorageMode names a collection's vector quantization mode, per
// spec.md §4.1.
type StorageMode string

const (
	StorageFull   StorageMode = "full"
	StorageSQ8    StorageMode = "sq8"
	StorageBinary StorageMode = "binary"
)

// HNSWParams mirrors the fields of hnsw.Config that must survive a
// restart; kept as a plain struct here (rather than importing
// pkg/hnsw) to keep this package free of a dependency on the index
// implementation it merely persists parameters for.
type HNSWParams struct {
	M               int     `json:"m"`
	M0              int     `json:"m0"`
	EfConstruction  int     `json:"ef_construction"`
	EfSearch        int     `json:"ef_search"`
	MaxLevel        int     `json:"max_level"`
	CompactionRatio float64 `json:"compaction_ratio"`
}

// TextFieldConfig names which payload fields are BM25-indexed and with
// what tokenizer stop-word set, per spec.md §4.4.
type TextFieldConfig struct {
	Fields    []string `json:"fields"`
	StopWords []string `json:"stop_words,omitempty"`
}

// Manifest is the durable description of one collection's shape. It is
// read once on collection open (before segments or the WAL) and
// rewritten whenever the collection's schema-affecting settings change.
type Manifest struct {
	SchemaVersion int             `json:"schema_version"`
	Name          string          `json:"name"`
	Dimension     int             `json:"dimension"`
	Metric        Metric          `json:"metric"`
	StorageMode   StorageMode     `json:"storage_mode"`
	HNSW          HNSWParams      `json:"hnsw"`
	Text          TextFieldConfig `json:"text"`
	// LastCheckpointSeq is the WAL sequence number up to which this
	// manifest's segments already reflect every mutation; Replay uses
	// it as the afterSeq boundary so recovery only reapplies entries
	// written after the last checkpoint.
	LastCheckpointSeq uint64 `json:"last_checkpoint_seq"`
}

func manifestPath(dir string) string { return filepath.Join(dir, "manifest.json") }

// canonicalBytes marshals m with sorted map keys and no checksum field
// so the checksum is computed over a stable representation.
func (m Manifest) canonicalBytes() ([]byte, error) {
	return json.Marshal(m)
}

func checksum(data []byte) [blake2b.Size256]byte {
	return blake2b.Sum256(data)
}

// envelope is the on-disk wrapper: the manifest bytes plus a checksum
// over them, so a torn or bit-flipped write is detectable without
// having to trust the manifest's own fields.
type envelope struct {
	Checksum string          `json:"checksum"`
	Manifest json.RawMessage `json:"manifest"`
}

// WriteManifest serializes m to dir/manifest.json atomically: write to
// a temp file in the same directory, fsync it, then rename over any
// existing manifest. The rename is atomic on POSIX filesystems, so a
// reader never observes a partially written manifest.
func WriteManifest(dir string, m Manifest) error {
	m.SchemaVersion = manifestSchemaVersion
	body, err := m.canonicalBytes()
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	sum := checksum(body)
	env := envelope{
		Checksum: fmt.Sprintf("%x", sum),
		Manifest: body,
	}
	out, err := json.MarshalIndent(&env, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal envelope: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("manifest: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("manifest: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("manifest: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("manifest: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("manifest: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, manifestPath(dir)); err != nil {
		return fmt.Errorf("manifest: rename into place: %w", err)
	}
	return nil
}

// ReadManifest loads dir/manifest.json and verifies its checksum. A
// mismatch returns ErrCorrupted rather than the parsed manifest, since
// a corrupted manifest's fields (dimension, metric) cannot be trusted
// to drive recovery.
func ReadManifest(dir string) (Manifest, error) {
	raw, err := os.ReadFile(manifestPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("manifest: read: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	sum := checksum(env.Manifest)
	if fmt.Sprintf("%x", sum) != env.Checksum {
		return Manifest{}, ErrCorrupted
	}
	var m Manifest
	if err := json.Unmarshal(env.Manifest, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return m, nil
}
