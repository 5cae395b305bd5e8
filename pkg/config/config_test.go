package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withEnv(t *testing.T, key, val string) {
	t.Helper()
	old, had := os.LookupEnv(key)
	os.Setenv(key, val)
	t.Cleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestLoadFromEnvUsesDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	if cfg.Storage.DataDir != "./data" {
		t.Fatalf("expected default data dir, got %q", cfg.Storage.DataDir)
	}
	if cfg.HNSW.M != 16 || cfg.HNSW.EfConstruction != 200 || cfg.HNSW.EfSearch != 100 {
		t.Fatalf("unexpected hnsw defaults: %+v", cfg.HNSW)
	}
	if cfg.WAL.SyncMode != "batch" {
		t.Fatalf("expected default batch sync mode, got %q", cfg.WAL.SyncMode)
	}
}

func TestLoadFromEnvReadsOverrides(t *testing.T) {
	withEnv(t, "VELESDB_HNSW_M", "32")
	withEnv(t, "VELESDB_WAL_SYNC_MODE", "immediate")
	cfg := LoadFromEnv()
	if cfg.HNSW.M != 32 {
		t.Fatalf("expected overridden M=32, got %d", cfg.HNSW.M)
	}
	if cfg.WAL.SyncMode != "immediate" {
		t.Fatalf("expected overridden sync mode, got %q", cfg.WAL.SyncMode)
	}
}

func TestValidateRejectsBadSyncMode(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.WAL.SyncMode = "nonsense"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid sync mode")
	}
}

func TestValidateRejectsEfConstructionBelowM(t *testing.T) {
	cfg := LoadFromEnv()
	cfg.HNSW.M = 16
	cfg.HNSW.EfConstruction = 8
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when ef_construction < M")
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestParseMemorySize(t *testing.T) {
	cases := map[string]int64{
		"0":         0,
		"unlimited": 0,
		"1024":      1024,
		"2KB":       2 * 1024,
		"2MB":       2 * 1024 * 1024,
		"1GB":       1024 * 1024 * 1024,
	}
	for in, want := range cases {
		if got := parseMemorySize(in); got != want {
			t.Errorf("parseMemorySize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatMemorySize(t *testing.T) {
	if got := FormatMemorySize(2048); got != "2.00 KB" {
		t.Fatalf("expected 2.00 KB, got %q", got)
	}
}

func TestGetEnvDurationFallsBackToSeconds(t *testing.T) {
	withEnv(t, "VELESDB_TEST_DURATION", "30")
	got := getEnvDuration("VELESDB_TEST_DURATION", time.Minute)
	if got != 30*time.Second {
		t.Fatalf("expected 30s from bare integer, got %v", got)
	}
}

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "velesdb.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}
	return path
}

func TestLoadMissingFileFallsBackToEnvDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HNSW.M != 16 {
		t.Fatalf("expected default M=16 with no file, got %d", cfg.HNSW.M)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeYAML(t, "hnsw:\n  m: 48\n  ef_construction: 500\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HNSW.M != 48 || cfg.HNSW.EfConstruction != 500 {
		t.Fatalf("expected file values to override defaults, got %+v", cfg.HNSW)
	}
	// Fields the file left unset still fall back to the default.
	if cfg.HNSW.EfSearch != 100 {
		t.Fatalf("expected untouched field to keep its default, got %d", cfg.HNSW.EfSearch)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeYAML(t, "hnsw:\n  m: 48\n")
	withEnv(t, "VELESDB_HNSW_M", "64")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HNSW.M != 64 {
		t.Fatalf("expected an explicit env var to win over the file value, got %d", cfg.HNSW.M)
	}
}
