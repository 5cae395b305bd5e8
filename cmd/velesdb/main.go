// Package main provides the velesdb CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/velesdb/velesdb"
	"github.com/velesdb/velesdb/pkg/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "velesdb",
		Short: "velesdb - embeddable vector database engine",
		Long: `velesdb is an embeddable vector database engine written in Go:
HNSW approximate nearest-neighbor search, BM25 text search, hybrid
fusion, payload filtering, and a small directed-edge graph layer, all
backed by a single write-ahead log per database directory.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("velesdb v%s (%s)\n", version, commit)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new velesdb data directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(initCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "List collections in a data directory and their sizes",
		RunE:  runInfo,
	}
	infoCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(infoCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	fmt.Printf("Initializing velesdb data directory in %s\n", dataDir)

	dirs := []string{
		dataDir,
		filepath.Join(dataDir, "collections"),
		filepath.Join(dataDir, "wal"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dataDir, "velesdb.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configPath, err)
		}
	}

	fmt.Println("Done. Edit", configPath, "to tune storage, WAL, and HNSW defaults.")
	return nil
}

const defaultConfigYAML = `# velesdb configuration
storage:
  data_dir: ./data

wal:
  sync_mode: batch
  batch_sync_interval: 100ms

hnsw:
  m: 16
  ef_construction: 200
  ef_search: 100

query:
  max_workers: 8

filter:
  cache_size: 1024
  cache_ttl: 5m

logging:
  level: info
  format: text
  output: stdout

runtime:
  memory_limit: "0"
  gc_percent: 100
`

func runInfo(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")

	cfgPath := filepath.Join(dataDir, "velesdb.yaml")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg.Storage.DataDir = dataDir
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	db, err := velesdb.OpenDatabaseWithConfig(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	names := db.ListCollections()
	if len(names) == 0 {
		fmt.Println("No collections.")
		return nil
	}
	for _, name := range names {
		coll, err := db.GetCollection(name)
		if err != nil {
			return err
		}
		info := coll.Info()
		fmt.Printf("%-24s dim=%-6d metric=%-10s mode=%-8s points=%-8d edges=%d\n",
			info.Name, info.Dimension, info.Metric, info.StorageMode, info.PointCount, info.EdgeCount)
	}
	return nil
}
