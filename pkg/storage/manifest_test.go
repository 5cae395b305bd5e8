package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleManifest() Manifest {
	return Manifest{
		Name:        "products",
		Dimension:   128,
		Metric:      MetricCosine,
		StorageMode: StorageFull,
		HNSW: HNSWParams{
			M:               16,
			M0:              32,
			EfConstruction:  200,
			EfSearch:        100,
			MaxLevel:        32,
			CompactionRatio: 0.30,
		},
		Text: TextFieldConfig{Fields: []string{"description"}},
	}
}

func TestWriteReadManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := sampleManifest()
	if err := WriteManifest(dir, in); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	out, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if out.Name != in.Name || out.Dimension != in.Dimension || out.Metric != in.Metric {
		t.Fatalf("round trip mismatch: got %+v", out)
	}
	if out.SchemaVersion != manifestSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", manifestSchemaVersion, out.SchemaVersion)
	}
}

func TestReadManifestMissingReturnsErrNotFound(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadManifest(dir)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadManifestDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	if err := WriteManifest(dir, sampleManifest()); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	path := filepath.Join(dir, "manifest.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	raw[len(raw)-10] ^= 0xFF
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err = ReadManifest(dir)
	if err != ErrCorrupted {
		t.Fatalf("expected ErrCorrupted, got %v", err)
	}
}

func TestWriteManifestOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	first := sampleManifest()
	if err := WriteManifest(dir, first); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	second := first
	second.LastCheckpointSeq = 42
	if err := WriteManifest(dir, second); err != nil {
		t.Fatalf("WriteManifest (second): %v", err)
	}

	out, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if out.LastCheckpointSeq != 42 {
		t.Fatalf("expected checkpoint seq 42, got %d", out.LastCheckpointSeq)
	}
}

func TestWriteManifestLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteManifest(dir, sampleManifest()); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("expected no leftover temp files, found %s", e.Name())
		}
	}
}
