// Package storage implements persistence & WAL (spec component C8): a
// Badger-backed segment store keyed by collection and segment kind, an
// append-only write-ahead log recorded before every mutation becomes
// visible, and a checksummed manifest.
//
// Grounded on the teacher's pkg/storage/badger.go: kept the single-byte
// key-prefix convention over one shared Badger instance
// (prefixNode/prefixEdge/prefixLabelIndex/... there), generalized from
// the five graph-record prefixes to the five segment kinds spec.md §4.7
// names (vectors/payload/hnsw level-0/hnsw higher levels/text), each
// additionally namespaced by collection name; each collection opens its
// own Badger instance under <collection dir>/segments.
package storage

import (
	"encoding/binary"
	"errors"

	badger "github.com/dgraph-io/badger/v4"
)

// Segment kind prefixes, one byte each, per the teacher's
// single-byte-prefix convention.
const (
	prefixVector     = byte(0x01)
	prefixPayload    = byte(0x02)
	prefixHNSWLevel0 = byte(0x03)
	prefixHNSWHigher = byte(0x04)
	prefixText       = byte(0x05)
	prefixGraph      = byte(0x06)
)

var (
	ErrNotFound  = errors.New("storage: not found")
	ErrCorrupted = errors.New("storage: corrupted segment")
)

// Segments is the Badger-backed segment store of one collection. Keys are
// [kind byte][collection][0x00][big-endian id or raw subkey].
type Segments struct {
	db *badger.DB
}

// OpenSegments opens (creating if absent) the Badger instance backing
// dir.
func OpenSegments(dir string) (*Segments, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Segments{db: db}, nil
}

func (s *Segments) Close() error { return s.db.Close() }

func vectorKey(collection string, id uint64) []byte  { return idKey(prefixVector, collection, id) }
func payloadKey(collection string, id uint64) []byte { return idKey(prefixPayload, collection, id) }
func graphKey(collection string, id uint64) []byte   { return idKey(prefixGraph, collection, id) }

func hnswKey(collection string, level int, id uint64) []byte {
	prefix := prefixHNSWHigher
	if level == 0 {
		prefix = prefixHNSWLevel0
	}
	key := idKey(prefix, collection, id)
	if level > 0 {
		lb := make([]byte, 2)
		binary.BigEndian.PutUint16(lb, uint16(level))
		key = append(key, lb...)
	}
	return key
}

func textKey(collection, subkey string) []byte {
	key := []byte{prefixText}
	key = append(key, []byte(collection)...)
	key = append(key, 0x00)
	key = append(key, []byte(subkey)...)
	return key
}

func idKey(prefix byte, collection string, id uint64) []byte {
	key := []byte{prefix}
	key = append(key, []byte(collection)...)
	key = append(key, 0x00)
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, id)
	return append(key, b...)
}

func collectionPrefix(prefix byte, collection string) []byte {
	key := []byte{prefix}
	key = append(key, []byte(collection)...)
	return append(key, 0x00)
}

func (s *Segments) put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (s *Segments) get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	return out, err
}

func (s *Segments) delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (s *Segments) PutVector(collection string, id uint64, data []byte) error {
	return s.put(vectorKey(collection, id), data)
}
func (s *Segments) GetVector(collection string, id uint64) ([]byte, error) {
	return s.get(vectorKey(collection, id))
}
func (s *Segments) DeleteVector(collection string, id uint64) error {
	return s.delete(vectorKey(collection, id))
}

func (s *Segments) PutPayload(collection string, id uint64, data []byte) error {
	return s.put(payloadKey(collection, id), data)
}
func (s *Segments) GetPayload(collection string, id uint64) ([]byte, error) {
	return s.get(payloadKey(collection, id))
}
func (s *Segments) DeletePayload(collection string, id uint64) error {
	return s.delete(payloadKey(collection, id))
}

// ForEachPayload walks every payload segment entry for collection,
// lowest id first, stopping early if fn returns false. This is the
// backing implementation for pkg/filter.PayloadSource, letting the
// filter package materialize an id-oracle bitmap without depending on
// this package.
func (s *Segments) ForEachPayload(collection string, fn func(id uint64, data []byte) bool) error {
	prefix := collectionPrefix(prefixPayload, collection)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			id := binary.BigEndian.Uint64(key[len(prefix):])
			var data []byte
			if err := item.Value(func(val []byte) error {
				data = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			if !fn(id, data) {
				break
			}
		}
		return nil
	})
}

func (s *Segments) PutHNSWNode(collection string, level int, id uint64, data []byte) error {
	return s.put(hnswKey(collection, level, id), data)
}
func (s *Segments) GetHNSWNode(collection string, level int, id uint64) ([]byte, error) {
	return s.get(hnswKey(collection, level, id))
}
func (s *Segments) DeleteHNSWNode(collection string, level int, id uint64) error {
	return s.delete(hnswKey(collection, level, id))
}

func (s *Segments) PutText(collection, subkey string, data []byte) error {
	return s.put(textKey(collection, subkey), data)
}
func (s *Segments) GetText(collection, subkey string) ([]byte, error) {
	return s.get(textKey(collection, subkey))
}

func (s *Segments) PutEdge(collection string, edgeID uint64, data []byte) error {
	return s.put(graphKey(collection, edgeID), data)
}
func (s *Segments) GetEdge(collection string, edgeID uint64) ([]byte, error) {
	return s.get(graphKey(collection, edgeID))
}

// ForEachEdge walks every edge segment entry for collection, lowest id
// first.
func (s *Segments) ForEachEdge(collection string, fn func(edgeID uint64, data []byte) bool) error {
	prefix := collectionPrefix(prefixGraph, collection)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			id := binary.BigEndian.Uint64(key[len(prefix):])
			var data []byte
			if err := item.Value(func(val []byte) error {
				data = append([]byte(nil), val...)
				return nil
			}); err != nil {
				return err
			}
			if !fn(id, data) {
				break
			}
		}
		return nil
	})
}

// DropCollection removes every segment entry under every prefix for
// collection, used by delete_collection.
func (s *Segments) DropCollection(collection string) error {
	prefixes := []byte{prefixVector, prefixPayload, prefixHNSWLevel0, prefixHNSWHigher, prefixText, prefixGraph}
	for _, p := range prefixes {
		prefix := collectionPrefix(p, collection)
		if err := s.db.DropPrefix(prefix); err != nil {
			return err
		}
	}
	return nil
}
