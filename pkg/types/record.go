// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the data structures shared across annotation-engine
// packages: records, configuration, and the authentication contract.
package types

import (
	"time"
)

// Record is one unit of annotatable data: a 3D-object (or object part)
// whose structured fields are edited by at most one annotator at a time.
type Record struct {
	// ID is the externally supplied primary key (e.g. a model identifier).
	// Immutable for the lifetime of the record.
	ID string `json:"id" yaml:"id"`

	// Owner is the annotator holding the record. Empty means unclaimed.
	// Once set it is only ever rewritten by the same owner; release is an
	// administrative operation outside this module.
	Owner string `json:"owner" yaml:"owner"`

	// Completed reports whether at least one save has occurred. A save
	// always marks completion, regardless of field content.
	Completed bool `json:"completed" yaml:"completed"`

	// Score is the quality score set on every save: 0 when any review
	// flag is raised, 1 otherwise.
	Score int `json:"score" yaml:"score"`

	// Fields holds the task-defined business attributes. The key set is
	// stable for the lifetime of a task; value shapes are described by the
	// task schema, not by this package.
	Fields map[string]any `json:"fields" yaml:"fields"`

	// Flags marks fields that need review, keyed by field name.
	Flags map[string]bool `json:"flags" yaml:"flags"`

	// CreatedAt is when the record was imported.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt refreshes on every mutation (claim or save).
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the record. Fields values are copied at the
// map level only; stored values are treated as immutable once loaded.
func (r Record) Clone() Record {
	out := r
	out.Fields = make(map[string]any, len(r.Fields))
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	out.Flags = make(map[string]bool, len(r.Flags))
	for k, v := range r.Flags {
		out.Flags[k] = v
	}
	return out
}

// Flagged reports whether any review flag is raised.
func (r Record) Flagged() bool {
	for _, v := range r.Flags {
		if v {
			return true
		}
	}
	return false
}

// ScoreFor returns the quality score implied by a flag set: 0 when any
// flag is raised, 1 otherwise.
func ScoreFor(flags map[string]bool) int {
	for _, v := range flags {
		if v {
			return 0
		}
	}
	return 1
}
