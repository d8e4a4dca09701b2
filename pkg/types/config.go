// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StoreBackend identifies which RecordStore implementation to open.
// The backend is selected once at startup from configuration, never probed
// per call.
type StoreBackend string

const (
	BackendSQLite StoreBackend = "sqlite"
	BackendJSONL  StoreBackend = "jsonl"
)

// StoreConfig holds settings for the record store.
type StoreConfig struct {
	// Backend selects the store implementation: sqlite or jsonl.
	Backend StoreBackend `json:"backend" yaml:"backend"`

	// DBPath is the SQLite database file (e.g. "databases/annotation.db").
	DBPath string `json:"db_path" yaml:"db_path"`

	// JSONLPath is the interchange file backing the jsonl store
	// (e.g. "data/annotation.jsonl").
	JSONLPath string `json:"jsonl_path" yaml:"jsonl_path"`

	// BackupDir is where the jsonl store writes timestamped backups before
	// each rewrite. Defaults to a backups/ directory beside JSONLPath.
	BackupDir string `json:"backup_dir" yaml:"backup_dir"`
}

// CacheConfig holds settings for the in-process record cache that feeds
// visibility computation.
type CacheConfig struct {
	// TTL bounds how stale the cached record set may grow before the next
	// read reloads from the store (default 5m). Local mutations always
	// invalidate immediately, independent of the TTL.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// ExportConfig holds settings for interchange exports.
type ExportConfig struct {
	// OutputDir is the directory export files are written to
	// (default "exports").
	OutputDir string `json:"output_dir" yaml:"output_dir"`
}

// TaskConfig holds settings for the active annotation task.
type TaskConfig struct {
	// Name identifies the task (e.g. "part_annotation").
	Name string `json:"name" yaml:"name"`

	// SchemaPath is the YAML file declaring the task's field descriptors.
	SchemaPath string `json:"schema_path" yaml:"schema_path"`
}

// EngineConfig groups all configuration for the annotation engine.
type EngineConfig struct {
	Store  StoreConfig  `json:"store" yaml:"store"`
	Cache  CacheConfig  `json:"cache" yaml:"cache"`
	Export ExportConfig `json:"export" yaml:"export"`
	Task   TaskConfig   `json:"task" yaml:"task"`
}
