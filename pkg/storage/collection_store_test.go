package storage

import (
	"path/filepath"
	"testing"
)

func TestCreateCollectionThenReopenReplaysEntries(t *testing.T) {
	root := t.TempDir()
	walDir := filepath.Join(root, "wal")
	colDir := filepath.Join(root, "col")

	wal, err := OpenWAL(WALConfig{Dir: walDir, SyncMode: SyncImmediate})
	if err != nil {
		t.Fatalf("OpenWAL: %v", err)
	}
	defer wal.Close()

	manifest := Manifest{Name: "products", Dimension: 4, Metric: MetricCosine, StorageMode: StorageFull}
	cs, err := CreateCollection(colDir, manifest, wal)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	var lastSeq uint64
	for i := 0; i < 3; i++ {
		seq, err := cs.Append(OpUpsert, map[string]int{"id": i})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lastSeq = seq
	}
	if err := cs.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var applied int
	reopened, err := OpenCollection(colDir, wal, false, func(e WALEntry) error {
		applied++
		return nil
	})
	if err != nil {
		t.Fatalf("OpenCollection: %v", err)
	}
	defer reopened.Close()
	if applied != 3 {
		t.Fatalf("expected 3 entries replayed, got %d", applied)
	}

	if err := reopened.Checkpoint(lastSeq); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	var appliedAfterCheckpoint int
	reopenedAgain, err := OpenCollection(colDir, wal, false, func(e WALEntry) error {
		appliedAfterCheckpoint++
		return nil
	})
	if err != nil {
		t.Fatalf("OpenCollection after checkpoint: %v", err)
	}
	defer reopenedAgain.Close()
	if appliedAfterCheckpoint != 0 {
		t.Fatalf("expected no entries replayed after checkpoint, got %d", appliedAfterCheckpoint)
	}
}

func TestOpenCollectionIgnoresOtherCollectionsEntries(t *testing.T) {
	root := t.TempDir()
	walDir := filepath.Join(root, "wal")

	wal, err := OpenWAL(WALConfig{Dir: walDir, SyncMode: SyncImmediate})
	if err != nil {
		t.Fatalf("OpenWAL: %v", err)
	}
	defer wal.Close()

	manifestA := Manifest{Name: "a", Dimension: 4, Metric: MetricCosine, StorageMode: StorageFull}
	manifestB := Manifest{Name: "b", Dimension: 4, Metric: MetricCosine, StorageMode: StorageFull}

	csA, err := CreateCollection(filepath.Join(root, "a"), manifestA, wal)
	if err != nil {
		t.Fatalf("CreateCollection a: %v", err)
	}
	csB, err := CreateCollection(filepath.Join(root, "b"), manifestB, wal)
	if err != nil {
		t.Fatalf("CreateCollection b: %v", err)
	}

	if _, err := csA.Append(OpUpsert, map[string]int{"id": 1}); err != nil {
		t.Fatalf("Append a: %v", err)
	}
	if _, err := csB.Append(OpUpsert, map[string]int{"id": 2}); err != nil {
		t.Fatalf("Append b: %v", err)
	}
	csA.Close()
	csB.Close()

	var seenA int
	reopenedA, err := OpenCollection(filepath.Join(root, "a"), wal, false, func(e WALEntry) error {
		seenA++
		return nil
	})
	if err != nil {
		t.Fatalf("OpenCollection a: %v", err)
	}
	defer reopenedA.Close()
	if seenA != 1 {
		t.Fatalf("expected collection a to replay only its own entry, got %d", seenA)
	}
}
