// Package config handles engine configuration via environment variables,
// with an optional velesdb.yaml file as a base layer underneath them.
//
// Configuration is loaded with LoadFromEnv() (env only) or Load(path)
// (an optional YAML file, overridden by env) and should be validated
// with Validate() before use.
//
// Example:
//
//	cfg, err := config.Load("velesdb.yaml")
//	if err != nil {
//		log.Fatalf("loading config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment variables (all prefixed VELESDB_):
//   - VELESDB_DATA_DIR
//   - VELESDB_WAL_SYNC_MODE ("immediate", "batch", "none")
//   - VELESDB_WAL_BATCH_INTERVAL
//   - VELESDB_HNSW_M, VELESDB_HNSW_EF_CONSTRUCTION, VELESDB_HNSW_EF_SEARCH
//   - VELESDB_QUERY_WORKERS
//   - VELESDB_FILTER_CACHE_SIZE, VELESDB_FILTER_CACHE_TTL
//   - VELESDB_LOG_LEVEL, VELESDB_LOG_FORMAT, VELESDB_LOG_OUTPUT
//
// Grounded on the teacher's pkg/config/config.go: kept the section-struct
// layout and the getEnv*/parseMemorySize helper family, dropped the
// Neo4j-environment-variable compatibility shim (NEO4J_*, NORNICDB_AUTH_*,
// compliance/feature-flags sections) since nothing in this engine's scope
// talks to Neo4j tooling or needs GDPR/HIPAA controls.
package config

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting this engine reads from the environment,
// grouped by the subsystem that consumes it.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	WAL     WALConfig     `yaml:"wal"`
	HNSW    HNSWConfig    `yaml:"hnsw"`
	Query   QueryConfig   `yaml:"query"`
	Filter  FilterConfig  `yaml:"filter"`
	Logging LoggingConfig `yaml:"logging"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// StorageConfig controls where collection data lives on disk.
type StorageConfig struct {
	// DataDir is the root directory under which every collection's
	// manifest, segments, and shared WAL are stored.
	DataDir string `yaml:"data_dir"`
}

// WALConfig controls write-ahead log durability behavior.
type WALConfig struct {
	// SyncMode is "immediate", "batch", or "none".
	SyncMode string `yaml:"sync_mode"`
	// BatchSyncInterval is used only when SyncMode is "batch".
	BatchSyncInterval time.Duration `yaml:"batch_sync_interval"`
}

// HNSWConfig holds the default ANN index parameters new collections are
// created with (spec.md §4.3), overridable per collection at create time.
type HNSWConfig struct {
	M              int `yaml:"m"`
	EfConstruction int `yaml:"ef_construction"`
	EfSearch       int `yaml:"ef_search"`
}

// QueryConfig controls the query pipeline's concurrency.
type QueryConfig struct {
	// MaxWorkers is loaded and validated here; the query pipeline does
	// not read it and caps its errgroup concurrency at 8 on its own.
	MaxWorkers int `yaml:"max_workers"`
}

// FilterConfig controls the compiled-filter LRU cache.
type FilterConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RuntimeConfig applies process-wide Go runtime tuning.
type RuntimeConfig struct {
	// MemoryLimitStr is the raw human-readable string ("0", "2GB", ...);
	// MemoryLimit is its parsed byte count.
	MemoryLimitStr string `yaml:"memory_limit"`
	MemoryLimit    int64  `yaml:"-"`
	GCPercent      int    `yaml:"gc_percent"`
}

// LoadFromEnv builds a Config from the process environment, falling back
// to the defaults spec.md §4.3/§9 recommends wherever a variable is
// unset.
func LoadFromEnv() *Config {
	cfg := &Config{}

	cfg.Storage.DataDir = getEnv("VELESDB_DATA_DIR", "./data")

	cfg.WAL.SyncMode = getEnv("VELESDB_WAL_SYNC_MODE", "batch")
	cfg.WAL.BatchSyncInterval = getEnvDuration("VELESDB_WAL_BATCH_INTERVAL", 100*time.Millisecond)

	cfg.HNSW.M = getEnvInt("VELESDB_HNSW_M", 16)
	cfg.HNSW.EfConstruction = getEnvInt("VELESDB_HNSW_EF_CONSTRUCTION", 200)
	cfg.HNSW.EfSearch = getEnvInt("VELESDB_HNSW_EF_SEARCH", 100)

	cfg.Query.MaxWorkers = getEnvInt("VELESDB_QUERY_WORKERS", 8)

	cfg.Filter.CacheSize = getEnvInt("VELESDB_FILTER_CACHE_SIZE", 1000)
	cfg.Filter.CacheTTL = getEnvDuration("VELESDB_FILTER_CACHE_TTL", 5*time.Minute)

	cfg.Logging.Level = getEnv("VELESDB_LOG_LEVEL", "info")
	cfg.Logging.Format = getEnv("VELESDB_LOG_FORMAT", "json")
	cfg.Logging.Output = getEnv("VELESDB_LOG_OUTPUT", "stdout")

	cfg.Runtime.MemoryLimitStr = getEnv("VELESDB_MEMORY_LIMIT", "0")
	cfg.Runtime.MemoryLimit = parseMemorySize(cfg.Runtime.MemoryLimitStr)
	cfg.Runtime.GCPercent = getEnvInt("VELESDB_GC_PERCENT", 100)

	return cfg
}

// LoadFromFile reads a velesdb.yaml overlay from path. A missing file
// is not an error: it simply yields the zero Config, since Load treats
// the file as optional and env vars as the ultimate authority.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds a Config by starting from built-in defaults, layering
// path's YAML overlay (if present) on top, and finally re-applying
// LoadFromEnv's explicitly-set VELESDB_* variables, so the precedence
// is env > file > defaults.
func Load(path string) (*Config, error) {
	file, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	cfg := LoadFromEnv()
	base := &Config{}
	overlayNonZero(base, cfg) // seed with env-or-default values
	overlayNonZero(base, file)
	reapplyEnv(base)
	return base, nil
}

// reapplyEnv re-overlays only the VELESDB_* variables that are actually
// present in the environment, so a variable the caller did set wins
// even after the file overlay above may have just overwritten it with
// a value that happened to match an env-or-default placeholder.
func reapplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("VELESDB_DATA_DIR"); ok {
		cfg.Storage.DataDir = v
	}
	if v, ok := os.LookupEnv("VELESDB_WAL_SYNC_MODE"); ok {
		cfg.WAL.SyncMode = v
	}
	if _, ok := os.LookupEnv("VELESDB_WAL_BATCH_INTERVAL"); ok {
		cfg.WAL.BatchSyncInterval = getEnvDuration("VELESDB_WAL_BATCH_INTERVAL", cfg.WAL.BatchSyncInterval)
	}
	if _, ok := os.LookupEnv("VELESDB_HNSW_M"); ok {
		cfg.HNSW.M = getEnvInt("VELESDB_HNSW_M", cfg.HNSW.M)
	}
	if _, ok := os.LookupEnv("VELESDB_HNSW_EF_CONSTRUCTION"); ok {
		cfg.HNSW.EfConstruction = getEnvInt("VELESDB_HNSW_EF_CONSTRUCTION", cfg.HNSW.EfConstruction)
	}
	if _, ok := os.LookupEnv("VELESDB_HNSW_EF_SEARCH"); ok {
		cfg.HNSW.EfSearch = getEnvInt("VELESDB_HNSW_EF_SEARCH", cfg.HNSW.EfSearch)
	}
	if _, ok := os.LookupEnv("VELESDB_QUERY_WORKERS"); ok {
		cfg.Query.MaxWorkers = getEnvInt("VELESDB_QUERY_WORKERS", cfg.Query.MaxWorkers)
	}
	if _, ok := os.LookupEnv("VELESDB_FILTER_CACHE_SIZE"); ok {
		cfg.Filter.CacheSize = getEnvInt("VELESDB_FILTER_CACHE_SIZE", cfg.Filter.CacheSize)
	}
	if _, ok := os.LookupEnv("VELESDB_FILTER_CACHE_TTL"); ok {
		cfg.Filter.CacheTTL = getEnvDuration("VELESDB_FILTER_CACHE_TTL", cfg.Filter.CacheTTL)
	}
	if v, ok := os.LookupEnv("VELESDB_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
	if v, ok := os.LookupEnv("VELESDB_LOG_FORMAT"); ok {
		cfg.Logging.Format = v
	}
	if v, ok := os.LookupEnv("VELESDB_LOG_OUTPUT"); ok {
		cfg.Logging.Output = v
	}
	if v, ok := os.LookupEnv("VELESDB_MEMORY_LIMIT"); ok {
		cfg.Runtime.MemoryLimitStr = v
		cfg.Runtime.MemoryLimit = parseMemorySize(v)
	}
	if _, ok := os.LookupEnv("VELESDB_GC_PERCENT"); ok {
		cfg.Runtime.GCPercent = getEnvInt("VELESDB_GC_PERCENT", cfg.Runtime.GCPercent)
	}
}

// overlayNonZero copies each non-zero field of file onto cfg, letting a
// partial velesdb.yaml override only the settings it actually mentions
// without disturbing env-derived or default values for the rest.
func overlayNonZero(cfg, file *Config) {
	if file.Storage.DataDir != "" {
		cfg.Storage.DataDir = file.Storage.DataDir
	}
	if file.WAL.SyncMode != "" {
		cfg.WAL.SyncMode = file.WAL.SyncMode
	}
	if file.WAL.BatchSyncInterval != 0 {
		cfg.WAL.BatchSyncInterval = file.WAL.BatchSyncInterval
	}
	if file.HNSW.M != 0 {
		cfg.HNSW.M = file.HNSW.M
	}
	if file.HNSW.EfConstruction != 0 {
		cfg.HNSW.EfConstruction = file.HNSW.EfConstruction
	}
	if file.HNSW.EfSearch != 0 {
		cfg.HNSW.EfSearch = file.HNSW.EfSearch
	}
	if file.Query.MaxWorkers != 0 {
		cfg.Query.MaxWorkers = file.Query.MaxWorkers
	}
	if file.Filter.CacheSize != 0 {
		cfg.Filter.CacheSize = file.Filter.CacheSize
	}
	if file.Filter.CacheTTL != 0 {
		cfg.Filter.CacheTTL = file.Filter.CacheTTL
	}
	if file.Logging.Level != "" {
		cfg.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		cfg.Logging.Format = file.Logging.Format
	}
	if file.Logging.Output != "" {
		cfg.Logging.Output = file.Logging.Output
	}
	if file.Runtime.MemoryLimitStr != "" {
		cfg.Runtime.MemoryLimitStr = file.Runtime.MemoryLimitStr
		cfg.Runtime.MemoryLimit = parseMemorySize(file.Runtime.MemoryLimitStr)
	}
	if file.Runtime.GCPercent != 0 {
		cfg.Runtime.GCPercent = file.Runtime.GCPercent
	}
}

// Validate checks the configuration for values that would make the
// engine fail in confusing ways later rather than at startup.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("config: data dir must not be empty")
	}
	switch c.WAL.SyncMode {
	case "immediate", "batch", "none":
	default:
		return fmt.Errorf("config: invalid wal sync mode %q", c.WAL.SyncMode)
	}
	if c.HNSW.M <= 0 {
		return fmt.Errorf("config: invalid hnsw M: %d", c.HNSW.M)
	}
	if c.HNSW.EfConstruction < c.HNSW.M {
		return fmt.Errorf("config: ef_construction (%d) must be >= M (%d)", c.HNSW.EfConstruction, c.HNSW.M)
	}
	if c.Query.MaxWorkers <= 0 {
		return fmt.Errorf("config: invalid query worker count: %d", c.Query.MaxWorkers)
	}
	return nil
}

// String returns a representation safe for logging; nothing in this
// config is a secret, unlike the teacher's auth/JWT section.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{DataDir: %s, WALSync: %s, HNSW.M: %d, Workers: %d}",
		c.Storage.DataDir, c.WAL.SyncMode, c.HNSW.M, c.Query.MaxWorkers,
	)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string: "1024",
// "2KB", "2MB", "2GB", "2TB", "0", or "unlimited".
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// ApplyRuntime applies the runtime memory settings to the Go runtime.
// Call this early in main(), before heavy allocations.
func (c *RuntimeConfig) ApplyRuntime() {
	if c.MemoryLimit > 0 {
		debug.SetMemoryLimit(c.MemoryLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}
