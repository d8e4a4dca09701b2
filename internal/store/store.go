// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists annotation records behind a single contract with
// two backends: a durable SQLite table and a flat JSONL interchange file.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// Error taxonomy surfaced by store operations. Callers dispatch with
// errors.Is; wrapped variants carry the failing id or path.
var (
	// ErrNotFound means the record id is absent from the store.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means the backing medium rejected a write, e.g. a
	// constraint violation. Retriable after a reload.
	ErrConflict = errors.New("store rejected write")

	// ErrStoreUnavailable means the backing medium cannot be read.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPermission means an export target is not writable.
	ErrPermission = errors.New("permission denied")
)

// Store is the persistence contract shared by both backends.
//
// Claim and Save on the same record id are mutually exclusive: the SQLite
// backend runs both inside an immediate (write-locking) transaction, the
// JSONL backend serializes them through a per-store mutex. The JSONL
// backend assumes no concurrent external writers; the SQLite backend does
// not.
type Store interface {
	// LoadAll returns the full record set in stable store order:
	// insertion order for SQLite, line order for JSONL.
	LoadAll(ctx context.Context) ([]types.Record, error)

	// Get returns one record, or ErrNotFound.
	Get(ctx context.Context, id string) (types.Record, error)

	// Save persists new field, flag, and score state, stamps UpdatedAt,
	// and marks the record completed. A save always marks completion,
	// even when nothing changed.
	Save(ctx context.Context, id string, fields map[string]any, flags map[string]bool, score int, owner string) error

	// Claim atomically sets Owner to user if the record is unclaimed or
	// already held by user. It returns false, without mutating anything,
	// when another user holds the record.
	Claim(ctx context.Context, id, user string) (bool, error)

	// Export writes the record set to a timestamped interchange file in
	// dir and returns the file path. Best effort: errors surface, nothing
	// is retried.
	Export(ctx context.Context, dir string, filter ExportFilter) (string, error)

	// Stats returns completion counts over the full record set.
	Stats(ctx context.Context) (Stats, error)

	// Close releases the backing medium.
	Close() error
}

// ExportFilter narrows an export to a subset of records.
type ExportFilter struct {
	// Owner, when non-empty, keeps only records held by that annotator.
	Owner string

	// CompletedOnly keeps only records that have been saved at least once.
	CompletedOnly bool
}

// Match reports whether the record passes the filter.
func (f ExportFilter) Match(r types.Record) bool {
	if f.Owner != "" && r.Owner != f.Owner {
		return false
	}
	if f.CompletedOnly && !r.Completed {
		return false
	}
	return true
}

// Stats summarizes annotation progress.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// Open constructs the configured backend. The choice is explicit
// configuration, made once at startup.
func Open(cfg types.StoreConfig, sch schema.Schema) (Store, error) {
	switch cfg.Backend {
	case types.BackendSQLite:
		return OpenSQLite(cfg.DBPath, sch)
	case types.BackendJSONL:
		return OpenJSONL(cfg.JSONLPath, cfg.BackupDir, sch)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
