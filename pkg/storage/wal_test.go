package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestWAL(t *testing.T, mode SyncMode) *WAL {
	t.Helper()
	cfg := WALConfig{Dir: t.TempDir(), SyncMode: mode}
	w, err := OpenWAL(cfg)
	if err != nil {
		t.Fatalf("OpenWAL: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestAppendAssignsMonotonicSequence(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	seq1, err := w.Append("c1", OpUpsert, map[string]int{"id": 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	seq2, err := w.Append("c1", OpUpsert, map[string]int{"id": 2})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if seq2 != seq1+1 {
		t.Fatalf("expected monotonic sequence, got %d then %d", seq1, seq2)
	}
}

func TestReplayDeliversEntriesInOrder(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	for i := 0; i < 5; i++ {
		if _, err := w.Append("c1", OpUpsert, map[string]int{"id": i}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var seen []int
	err := w.Replay(0, false, func(e WALEntry) error {
		var payload map[string]int
		if err := json.Unmarshal(e.Data, &payload); err != nil {
			return err
		}
		seen = append(seen, payload["id"])
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	for i, v := range seen {
		if v != i {
			t.Fatalf("expected ordered replay, got %+v", seen)
		}
	}
}

func TestReplaySkipsEntriesAtOrBelowCheckpoint(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	var lastSeq uint64
	for i := 0; i < 5; i++ {
		seq, err := w.Append("c1", OpUpsert, map[string]int{"id": i})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lastSeq = seq
	}

	checkpointAt := lastSeq - 2
	var seen int
	err := w.Replay(checkpointAt, false, func(e WALEntry) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected 2 entries after checkpoint, got %d", seen)
	}
}

func TestReplayIsIdempotentAcrossRuns(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	var lastSeq uint64
	for i := 0; i < 3; i++ {
		seq, err := w.Append("c1", OpUpsert, map[string]int{"id": i})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		lastSeq = seq
	}

	var firstRun, secondRun int
	_ = w.Replay(0, false, func(WALEntry) error { firstRun++; return nil })
	_ = w.Replay(lastSeq, false, func(WALEntry) error { secondRun++; return nil })

	if firstRun != 3 {
		t.Fatalf("expected first replay to see 3 entries, got %d", firstRun)
	}
	if secondRun != 0 {
		t.Fatalf("expected replay after checkpoint at lastSeq to be a no-op, got %d", secondRun)
	}
}

func TestCheckpointEntryReplaysLikeAnyOther(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	if _, err := w.Append("c1", OpUpsert, map[string]int{"id": 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Checkpoint("c1", 1); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	var ops []Op
	err := w.Replay(0, false, func(e WALEntry) error {
		ops = append(ops, e.Op)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(ops) != 2 || ops[1] != OpCheckpoint {
		t.Fatalf("expected upsert then checkpoint, got %+v", ops)
	}
}

// corruptSecondEntry flips a byte inside the second newline-delimited JSON
// entry's data field so its checksum no longer verifies, leaving the first
// entry untouched.
func corruptSecondEntry(t *testing.T, raw []byte) []byte {
	t.Helper()
	lines := bytes.Split(bytes.TrimRight(raw, "\n"), []byte("\n"))
	if len(lines) < 2 {
		t.Fatalf("expected at least 2 entries, got %d", len(lines))
	}
	var entry WALEntry
	if err := json.Unmarshal(lines[1], &entry); err != nil {
		t.Fatalf("unmarshal second entry: %v", err)
	}
	entry.Data = append(entry.Data, 0xFF)
	reencoded, err := json.Marshal(&entry)
	if err != nil {
		t.Fatalf("remarshal second entry: %v", err)
	}
	lines[1] = reencoded
	return append(bytes.Join(lines, []byte("\n")), '\n')
}

func TestCorruptEntryStopsRepairReplayWithoutError(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	if _, err := w.Append("c1", OpUpsert, map[string]int{"id": 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Append("c1", OpUpsert, map[string]int{"id": 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	dir := w.cfg.Dir
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "wal.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, corruptSecondEntry(t, data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w2 := &WAL{cfg: WALConfig{Dir: dir}}
	var seen int
	err = w2.Replay(0, true, func(WALEntry) error { seen++; return nil })
	if err != nil {
		t.Fatalf("Replay in repair mode should not error, got %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected replay to stop after the first good entry, got %d delivered", seen)
	}
}

func TestCorruptEntryErrorsWithoutRepair(t *testing.T) {
	w := newTestWAL(t, SyncImmediate)
	if _, err := w.Append("c1", OpUpsert, map[string]int{"id": 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := w.Append("c1", OpUpsert, map[string]int{"id": 2}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	dir := w.cfg.Dir
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	path := filepath.Join(dir, "wal.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if err := os.WriteFile(path, corruptSecondEntry(t, data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w2 := &WAL{cfg: WALConfig{Dir: dir}}
	err = w2.Replay(0, false, func(WALEntry) error { return nil })
	if err == nil {
		t.Fatal("expected replay without repair to surface a corruption error")
	}
}

func TestSequenceRestoredAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWAL(WALConfig{Dir: dir, SyncMode: SyncImmediate})
	if err != nil {
		t.Fatalf("OpenWAL: %v", err)
	}
	seq, err := w.Append("c1", OpUpsert, map[string]int{"id": 1})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w2, err := OpenWAL(WALConfig{Dir: dir, SyncMode: SyncImmediate})
	if err != nil {
		t.Fatalf("reopen OpenWAL: %v", err)
	}
	t.Cleanup(func() { _ = w2.Close() })
	nextSeq, err := w2.Append("c1", OpUpsert, map[string]int{"id": 2})
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if nextSeq != seq+1 {
		t.Fatalf("expected sequence to continue from %d, got %d", seq, nextSeq)
	}
}
