// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the annotation-engine CLI. The CLI
// is the administrative surface over the annotation core: it exports the
// record set, reports progress, and pre-assigns records. The interactive
// editing surface is a separate UI layer that drives the same internal
// packages.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/internal/store"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the annotation-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "annotation-engine",
	Short: "Coordination layer for multi-user annotation of 3D-object records",
	Long: `annotation-engine coordinates many annotators over a shared pool of
records: who may see which records, browse-to-own claiming, dirty-state
detection before navigation, and a cached view kept consistent with the
backing store.

The CLI covers the administrative operations: export, stats, and claim.
Interactive editing is driven by a UI layer on top of the same core.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./annotation-engine.yaml or ~/.config/annotation-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("annotation-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "annotation-engine"))
		}
	}

	viper.SetEnvPrefix("ANNOTATION_ENGINE")
	viper.AutomaticEnv()

	viper.SetDefault("store.backend", string(types.BackendSQLite))
	viper.SetDefault("store.db_path", "databases/annotation.db")
	viper.SetDefault("store.jsonl_path", "data/annotation.jsonl")
	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("export.output_dir", "exports")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the typed configuration from viper state.
func engineConfig() types.EngineConfig {
	return types.EngineConfig{
		Store: types.StoreConfig{
			Backend:   types.StoreBackend(viper.GetString("store.backend")),
			DBPath:    viper.GetString("store.db_path"),
			JSONLPath: viper.GetString("store.jsonl_path"),
			BackupDir: viper.GetString("store.backup_dir"),
		},
		Cache: types.CacheConfig{
			TTL: viper.GetDuration("cache.ttl"),
		},
		Export: types.ExportConfig{
			OutputDir: viper.GetString("export.output_dir"),
		},
		Task: types.TaskConfig{
			Name:       viper.GetString("task.name"),
			SchemaPath: viper.GetString("task.schema_path"),
		},
	}
}

// openStore opens the configured backend with the task schema applied.
// An unset schema path yields an empty schema: fields then round-trip
// without display transforms.
func openStore(cfg types.EngineConfig) (store.Store, schema.Schema, error) {
	var sch schema.Schema
	if cfg.Task.SchemaPath != "" {
		var err error
		sch, err = schema.LoadFile(cfg.Task.SchemaPath)
		if err != nil {
			return nil, nil, err
		}
	}
	s, err := store.Open(cfg.Store, sch)
	if err != nil {
		return nil, nil, err
	}
	return s, sch, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
