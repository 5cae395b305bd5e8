// collection_store.go ties Segments, the WAL, and the Manifest into the
// open/recover/checkpoint lifecycle spec.md §4.7 describes: "On open,
// segments are loaded, then the WAL tail is replayed" and, in repair
// mode, "the corrupt segment is skipped and its WAL range is
// replayed".
package storage

import (
	"os"
	"path/filepath"
)

// CollectionStore bundles one collection's durable state: its
// manifest, its Badger-backed segments, and the shared WAL it
// participates in. Multiple CollectionStores in the same database
// share one WAL instance (spec.md §5: single writer queue, multiple
// producers).
type CollectionStore struct {
	Name     string
	Dir      string
	Manifest Manifest
	Segments *Segments
	wal      *WAL
}

// Apply replays one decoded WAL entry against fn, the caller-supplied
// handler that knows how to turn upsert/delete/add_edge payloads into
// in-memory index mutations (HNSW insert, text index upsert, graph edge
// add, and so on). Checkpoint entries are not forwarded to fn; they
// exist purely as a sequence marker.
type ApplyFunc func(entry WALEntry) error

// OpenCollection loads dir's manifest and segment store, wires in the
// shared wal, and replays every WAL entry for this collection newer
// than the manifest's last checkpoint through apply. It returns before
// any new mutation is accepted, matching the "segments first, then WAL
// tail" open order.
func OpenCollection(dir string, wal *WAL, repair bool, apply ApplyFunc) (*CollectionStore, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}

	segDir := filepath.Join(dir, "segments")
	segments, err := OpenSegments(segDir)
	if err != nil {
		return nil, err
	}

	cs := &CollectionStore{
		Name:     manifest.Name,
		Dir:      dir,
		Manifest: manifest,
		Segments: segments,
		wal:      wal,
	}

	replayErr := wal.Replay(manifest.LastCheckpointSeq, repair, func(e WALEntry) error {
		if e.CollectionID != manifest.Name {
			return nil
		}
		if e.Op == OpCheckpoint {
			return nil
		}
		return apply(e)
	})
	if replayErr != nil {
		segments.Close()
		return nil, replayErr
	}
	return cs, nil
}

// Append records op in the shared WAL under this collection's name
// before the caller is permitted to apply it to any in-memory index,
// preserving spec.md §4.7's ordering contract.
func (cs *CollectionStore) Append(op Op, data any) (uint64, error) {
	return cs.wal.Append(cs.Name, op, data)
}

// Checkpoint advances this collection's manifest to record that every
// WAL entry up to and including upToSeq has already been folded into
// segments, then persists the manifest atomically and marks the
// boundary in the WAL itself.
func (cs *CollectionStore) Checkpoint(upToSeq uint64) error {
	cs.Manifest.LastCheckpointSeq = upToSeq
	if err := WriteManifest(cs.Dir, cs.Manifest); err != nil {
		return err
	}
	return cs.wal.Checkpoint(cs.Name, upToSeq)
}

// Close releases the collection's segment store. The shared WAL
// outlives any single collection and is closed by its owner.
func (cs *CollectionStore) Close() error {
	return cs.Segments.Close()
}

// CreateCollection initializes a brand-new collection directory: the
// manifest is written first (schema is load-bearing before any data
// exists), then its segment store is opened empty.
func CreateCollection(dir string, manifest Manifest, wal *WAL) (*CollectionStore, error) {
	if err := WriteManifest(dir, manifest); err != nil {
		return nil, err
	}
	segDir := filepath.Join(dir, "segments")
	segments, err := OpenSegments(segDir)
	if err != nil {
		return nil, err
	}
	return &CollectionStore{
		Name:     manifest.Name,
		Dir:      dir,
		Manifest: manifest,
		Segments: segments,
		wal:      wal,
	}, nil
}

// DropCollection removes a collection's segment data and its manifest
// directory, used by the delete_collection operation.
func DropCollection(dir string, cs *CollectionStore) error {
	if err := cs.Segments.DropCollection(cs.Name); err != nil {
		return err
	}
	if err := cs.Close(); err != nil {
		return err
	}
	return os.RemoveAll(dir)
}
