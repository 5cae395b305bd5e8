package velesdb

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/velesdb/velesdb/pkg/config"
	"github.com/velesdb/velesdb/pkg/filter"
	"github.com/velesdb/velesdb/pkg/obslog"
	"github.com/velesdb/velesdb/pkg/storage"
	"github.com/velesdb/velesdb/pkg/vectorstore"
)

// Database is the top-level handle spec.md §6's open_database returns:
// a directory of independently-configured collections sharing one WAL
// stream and one compiled-filter cache.
//
// Grounded on the teacher's top-level engine type (one shared storage
// engine, a registry of named graphs/collections guarded by one mutex),
// generalized from the teacher's single Badger graph engine to this
// engine's collection-store-per-collection model.
type Database struct {
	mu          sync.RWMutex
	dir         string
	cfg         *config.Config
	wal         *storage.WAL
	filters     *filter.Cache
	log         *obslog.Logger
	collections map[string]*Collection
}

func collectionDir(dataDir, name string) string {
	return filepath.Join(dataDir, "collections", name)
}

func collectionsRoot(dataDir string) string {
	return filepath.Join(dataDir, "collections")
}

// OpenDatabase opens (creating if absent) the database rooted at dir,
// reopening every previously-created collection found under
// dir/collections and replaying its WAL tail (spec.md §4.7).
func OpenDatabase(dir string) (*Database, error) {
	cfg := config.LoadFromEnv()
	cfg.Storage.DataDir = dir
	if err := cfg.Validate(); err != nil {
		return nil, newErr("OpenDatabase", KindInvalidArgument, err)
	}
	return OpenDatabaseWithConfig(cfg)
}

// OpenDatabaseWithConfig opens a database using an already-built,
// already-validated Config, letting a caller override WAL sync mode,
// HNSW defaults, logging, and runtime tuning before anything is opened.
func OpenDatabaseWithConfig(cfg *config.Config) (*Database, error) {
	cfg.Runtime.ApplyRuntime()

	dir := cfg.Storage.DataDir
	if err := os.MkdirAll(collectionsRoot(dir), 0o755); err != nil {
		return nil, newErr("OpenDatabase", KindStorageFailure, err)
	}

	walCfg := storage.WALConfig{
		Dir:               filepath.Join(dir, "wal"),
		SyncMode:          storage.SyncMode(cfg.WAL.SyncMode),
		BatchSyncInterval: cfg.WAL.BatchSyncInterval,
	}
	wal, err := storage.OpenWAL(walCfg)
	if err != nil {
		return nil, newErr("OpenDatabase", KindStorageFailure, err)
	}

	filters, err := filter.NewCache(cfg.Filter.CacheSize)
	if err != nil {
		wal.Close()
		return nil, newErr("OpenDatabase", KindInvalidArgument, err)
	}

	var format obslog.Format
	if cfg.Logging.Format == "json" {
		format = obslog.FormatJSON
	} else {
		format = obslog.FormatText
	}
	var out *os.File = os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	log := obslog.New(out, cfg.Logging.Level, format)

	db := &Database{
		dir:         dir,
		cfg:         cfg,
		wal:         wal,
		filters:     filters,
		log:         log,
		collections: make(map[string]*Collection),
	}

	if err := db.reopenExisting(); err != nil {
		wal.Close()
		return nil, err
	}
	return db, nil
}

// reopenExisting reopens every collection directory already present
// under dir/collections, in no particular order, replaying each one's
// WAL tail past its own last checkpoint.
func (db *Database) reopenExisting() error {
	root := collectionsRoot(db.dir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return newErr("OpenDatabase", KindStorageFailure, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		manifest, err := storage.ReadManifest(collectionDir(db.dir, name))
		if err != nil {
			return newErr("OpenDatabase", KindCorruptionDetected, err)
		}
		opts := CollectionOptions{
			Dimension:      manifest.Dimension,
			TextFields:     manifest.Text.Fields,
			M:              manifest.HNSW.M,
			EfConstruction: manifest.HNSW.EfConstruction,
			EfSearch:       manifest.HNSW.EfSearch,
		}
		opts.Metric, err = vectorstore.ParseMetric(string(manifest.Metric))
		if err != nil {
			return newErr("OpenDatabase", KindCorruptionDetected, err)
		}
		opts.StorageMode, err = vectorstore.ParseMode(string(manifest.StorageMode))
		if err != nil {
			return newErr("OpenDatabase", KindCorruptionDetected, err)
		}

		coll, err := newCollection(name, opts, nil, db.filters, db.log)
		if err != nil {
			return err
		}
		cs, err := storage.OpenCollection(collectionDir(db.dir, name), db.wal, false, coll.applyWAL)
		if err != nil {
			return newErr("OpenDatabase", KindCorruptionDetected, err)
		}
		coll.cs = cs
		db.collections[name] = coll
	}
	return nil
}

// CreateCollection implements spec.md §6's create_collection.
func (db *Database) CreateCollection(name string, opts CollectionOptions) (*Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.collections[name]; exists {
		return nil, newErr("Database.CreateCollection", KindAlreadyExists, ErrAlreadyExists)
	}
	opts = opts.withDefaults()

	coll, err := newCollection(name, opts, nil, db.filters, db.log)
	if err != nil {
		return nil, err
	}
	dir := collectionDir(db.dir, name)
	cs, err := storage.CreateCollection(dir, opts.manifest(name), db.wal)
	if err != nil {
		return nil, newErr("Database.CreateCollection", KindStorageFailure, err)
	}
	coll.cs = cs
	db.collections[name] = coll
	return coll, nil
}

// GetCollection implements spec.md §6's get_collection.
func (db *Database) GetCollection(name string) (*Collection, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	coll, ok := db.collections[name]
	if !ok {
		return nil, newErr("Database.GetCollection", KindNotFound, ErrNotFound)
	}
	return coll, nil
}

// ListCollections implements spec.md §6's list_collections.
func (db *Database) ListCollections() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]string, 0, len(db.collections))
	for name := range db.collections {
		out = append(out, name)
	}
	return out
}

// DeleteCollection implements spec.md §6's delete_collection: the
// collection's segments and manifest are removed from disk and it is
// dropped from the registry. Its WAL entries remain in the shared log
// until the log itself is eventually compacted; replay on a future
// open skips them because CollectionID no longer has a manifest.
func (db *Database) DeleteCollection(name string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	coll, ok := db.collections[name]
	if !ok {
		return newErr("Database.DeleteCollection", KindNotFound, ErrNotFound)
	}
	if err := storage.DropCollection(collectionDir(db.dir, name), coll.cs); err != nil {
		return newErr("Database.DeleteCollection", KindStorageFailure, err)
	}
	delete(db.collections, name)
	return nil
}

// Close flushes and releases every collection's segment store and the
// shared WAL.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	var firstErr error
	for _, coll := range db.collections {
		if err := coll.cs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := db.wal.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		return newErr("Database.Close", KindStorageFailure, firstErr)
	}
	return nil
}
