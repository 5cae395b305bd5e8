// wal.go implements the write-ahead log spec.md §4.7 requires: every
// mutating operation is recorded before it becomes visible to readers,
// entries are totally ordered per collection, and replay after a crash
// is idempotent against the last checkpointed sequence.
//
// Grounded on the teacher's pkg/storage/wal.go: kept the JSON
// WALEntry + CRC32 checksum shape, the buffered-writer-plus-encoder
// plumbing, and the batch/immediate/none sync modes, generalized
// Operation from the graph-only create_node/create_edge set to
// upsert/delete/add_edge/checkpoint and added a CollectionID field so
// one WAL file can serve every collection in a database.
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/velesdb/velesdb/pkg/pool"
)

type Op string

const (
	OpUpsert     Op = "upsert"
	OpDelete     Op = "delete"
	OpAddEdge    Op = "add_edge"
	OpCheckpoint Op = "checkpoint"
)

var (
	ErrWALClosed    = errors.New("wal: closed")
	ErrWALCorrupted = errors.New("wal: corrupted entry")
)

// WALEntry is one totally-ordered record. Data is the JSON-serialized
// operation payload (point upsert, delete set, edge, or a checkpoint
// marker).
type WALEntry struct {
	Sequence     uint64    `json:"seq"`
	CollectionID string    `json:"collection"`
	Timestamp    time.Time `json:"ts"`
	Op           Op        `json:"op"`
	Data         []byte    `json:"data"`
	Checksum     uint32    `json:"checksum"`
	// Session identifies the process incarnation that wrote this entry
	// (a fresh uuid per OpenWAL call). It carries no ordering meaning —
	// Sequence alone totally orders the log — but a run of entries
	// sharing a session id marks one continuous writer lifetime, useful
	// when diagnosing where a crash interrupted the log.
	Session string `json:"session,omitempty"`
}

func (e *WALEntry) verify() bool {
	return crc32.ChecksumIEEE(e.Data) == e.Checksum
}

// SyncMode controls when writes are durably flushed to disk.
type SyncMode string

const (
	SyncImmediate SyncMode = "immediate"
	SyncBatch     SyncMode = "batch"
	SyncNone      SyncMode = "none"
)

type WALConfig struct {
	Dir               string
	SyncMode          SyncMode
	BatchSyncInterval time.Duration
}

func DefaultWALConfig() WALConfig {
	return WALConfig{
		Dir:               "data/wal",
		SyncMode:          SyncBatch,
		BatchSyncInterval: 100 * time.Millisecond,
	}
}

// WAL is a single-writer, multi-producer append-only log shared by
// every collection in a database (spec.md §5: "The WAL uses a single
// writer queue; multiple producers serialize through it").
type WAL struct {
	mu      sync.Mutex
	cfg     WALConfig
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder

	sequence  atomic.Uint64
	closed    atomic.Bool
	sessionID string

	syncTicker *time.Ticker
	stop       chan struct{}
}

func walPath(dir string) string { return filepath.Join(dir, "wal.log") }

// OpenWAL opens or creates the log at cfg.Dir/wal.log, restoring the
// last written sequence number so new entries continue numbering
// correctly across restarts.
func OpenWAL(cfg WALConfig) (*WAL, error) {
	if cfg.Dir == "" {
		cfg = DefaultWALConfig()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}
	file, err := os.OpenFile(walPath(cfg.Dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open file: %w", err)
	}
	w := &WAL{
		cfg:       cfg,
		file:      file,
		writer:    bufio.NewWriterSize(file, 64*1024),
		stop:      make(chan struct{}),
		sessionID: uuid.NewString(),
	}
	w.encoder = json.NewEncoder(w.writer)

	if lastSeq, err := lastSequence(cfg.Dir); err == nil {
		w.sequence.Store(lastSeq)
	}

	if cfg.SyncMode == SyncBatch && cfg.BatchSyncInterval > 0 {
		w.syncTicker = time.NewTicker(cfg.BatchSyncInterval)
		go w.batchSyncLoop()
	}
	return w, nil
}

func lastSequence(dir string) (uint64, error) {
	file, err := os.Open(walPath(dir))
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var last uint64
	dec := json.NewDecoder(file)
	for {
		var e WALEntry
		if err := dec.Decode(&e); err != nil {
			break
		}
		last = e.Sequence
	}
	return last, nil
}

func (w *WAL) batchSyncLoop() {
	for {
		select {
		case <-w.syncTicker.C:
			_ = w.Sync()
		case <-w.stop:
			return
		}
	}
}

// Append writes entry before the caller is permitted to make op's
// mutation visible to readers (spec.md §4.7's core ordering contract).
// It returns the assigned sequence number.
func (w *WAL) Append(collectionID string, op Op, data any) (uint64, error) {
	if w.closed.Load() {
		return 0, ErrWALClosed
	}
	scratch := bytes.NewBuffer(pool.GetByteBuffer())
	if err := json.NewEncoder(scratch).Encode(data); err != nil {
		return 0, fmt.Errorf("wal: marshal data: %w", err)
	}
	raw := append([]byte(nil), bytes.TrimRight(scratch.Bytes(), "\n")...)
	pool.PutByteBuffer(scratch.Bytes()[:0])
	w.mu.Lock()
	defer w.mu.Unlock()
	seq := w.sequence.Add(1)
	entry := WALEntry{
		Sequence:     seq,
		CollectionID: collectionID,
		Timestamp:    time.Now(),
		Op:           op,
		Data:         raw,
		Checksum:     crc32.ChecksumIEEE(raw),
		Session:      w.sessionID,
	}

	if err := w.encoder.Encode(&entry); err != nil {
		return 0, fmt.Errorf("wal: write entry: %w", err)
	}
	if w.cfg.SyncMode == SyncImmediate {
		if err := w.syncLocked(); err != nil {
			return seq, err
		}
	}
	return seq, nil
}

// Checkpoint appends a checkpoint marker, recording the sequence number
// up to which in-memory state has just been flushed to segments — the
// boundary Replay uses to skip already-applied entries.
func (w *WAL) Checkpoint(collectionID string, upToSeq uint64) error {
	_, err := w.Append(collectionID, OpCheckpoint, map[string]uint64{"up_to_seq": upToSeq})
	return err
}

// SessionID returns the uuid generated when this WAL was opened, letting
// repair tooling correlate a run of entries to the process incarnation
// that wrote them.
func (w *WAL) SessionID() string { return w.sessionID }

func (w *WAL) Sync() error {
	if w.closed.Load() {
		return ErrWALClosed
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncLocked()
}

func (w *WAL) syncLocked() error {
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if w.cfg.SyncMode != SyncNone {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: fsync: %w", err)
		}
	}
	return nil
}

func (w *WAL) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if w.syncTicker != nil {
		w.syncTicker.Stop()
		close(w.stop)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.syncLocked(); err != nil {
		return err
	}
	return w.file.Close()
}

// Replay reads every entry from the beginning of the log and invokes fn
// for each one whose sequence exceeds afterSeq (the last checkpointed
// sequence, per collection), giving idempotent-by-construction recovery:
// re-running Replay with an unchanged afterSeq is a no-op since no entry
// qualifies twice. In repair mode, an entry that fails its checksum is
// skipped (along with the rest of the file, since a torn write
// invalidates ordering guarantees past that point) instead of returning
// an error.
func (w *WAL) Replay(afterSeq uint64, repair bool, fn func(WALEntry) error) error {
	file, err := os.Open(walPath(w.cfg.Dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	dec := json.NewDecoder(file)
	for {
		var e WALEntry
		if err := dec.Decode(&e); err != nil {
			break
		}
		if !e.verify() {
			if repair {
				break
			}
			return fmt.Errorf("%w: sequence %d", ErrWALCorrupted, e.Sequence)
		}
		if e.Sequence <= afterSeq {
			continue
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
