// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session tracks one user's in-progress edits against the last
// persisted snapshot of a record. A session belongs to exactly one
// interaction and is never shared, so it carries no locking.
package session

import (
	"github.com/google/uuid"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// Session holds the pristine (persisted) snapshot of a record's display
// values alongside the working copy being edited.
type Session struct {
	// ID identifies the interaction, for logging and diagnostics.
	ID string

	// RecordID is the record under edit.
	RecordID string

	schema schema.Schema

	pristineFields map[string]string
	pristineFlags  map[string]bool

	workingFields map[string]string
	workingFlags  map[string]bool
}

// New snapshots the record for editing. Each field value passes through
// its declared display transform before being stored as pristine; working
// starts equal to pristine, so a fresh session is never dirty.
func New(r types.Record, sch schema.Schema) *Session {
	s := &Session{
		ID:             uuid.NewString(),
		RecordID:       r.ID,
		schema:         sch,
		pristineFields: make(map[string]string, len(sch)),
		pristineFlags:  make(map[string]bool),
		workingFields:  make(map[string]string, len(sch)),
		workingFlags:   make(map[string]bool),
	}
	for _, f := range sch {
		display := schema.LoadValue(f, r.Fields[f.Name])
		s.pristineFields[f.Name] = display
		s.workingFields[f.Name] = display
		if f.HasFlag {
			s.pristineFlags[f.Name] = r.Flags[f.Name]
			s.workingFlags[f.Name] = r.Flags[f.Name]
		}
	}
	return s
}

// Field returns the working display value for name.
func (s *Session) Field(name string) string {
	return s.workingFields[name]
}

// Flag returns the working review flag for name.
func (s *Session) Flag(name string) bool {
	return s.workingFlags[name]
}

// SetField updates the working value for name. Unknown names are ignored;
// the field set is fixed by the task schema.
func (s *Session) SetField(name, value string) {
	if _, ok := s.schema.Lookup(name); ok {
		s.workingFields[name] = value
	}
}

// SetFlag updates the working review flag for name.
func (s *Session) SetFlag(name string, set bool) {
	if f, ok := s.schema.Lookup(name); ok && f.HasFlag {
		s.workingFlags[name] = set
	}
}

// SaveValues converts the working state back into persisted form: fields
// through their save transforms, flags as-is, and the quality score (0
// when any flag is raised, 1 otherwise). Computed fields never save.
func (s *Session) SaveValues() (fields map[string]any, flags map[string]bool, score int) {
	fields = make(map[string]any, len(s.schema))
	flags = make(map[string]bool, len(s.workingFlags))
	for _, f := range s.schema {
		if f.Computed {
			continue
		}
		fields[f.Name] = schema.SaveValue(f, s.workingFields[f.Name])
		if f.HasFlag {
			flags[f.Name] = s.workingFlags[f.Name]
		}
	}
	return fields, flags, types.ScoreFor(flags)
}
