// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema describes the per-task field list consumed by the edit
// session and the interchange codec. A task declares its fields in a YAML
// file; the engine consumes the resolved descriptors and nothing else.
package schema

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// Transform identifies how a field value converts between its persisted
// shape and the string displayed for editing. The set is closed: tasks pick
// a kind, they do not supply code.
type Transform string

const (
	// Identity displays the persisted value as-is.
	Identity Transform = "identity"

	// JoinComma displays a list as a comma-separated string and persists
	// the string split back into a list.
	JoinComma Transform = "join_comma"

	// JoinNewline is JoinComma with newline as the separator.
	JoinNewline Transform = "join_newline"

	// JSON displays structured values as indented JSON text.
	JSON Transform = "json"
)

// Field describes one annotatable attribute of a record.
type Field struct {
	// Name keys the value in Record.Fields and the interchange format.
	Name string `yaml:"name"`

	// Label is the human-readable caption. Display-layer concern; carried
	// so the schema file fully describes the task.
	Label string `yaml:"label,omitempty"`

	// Transform converts between persisted and display shape.
	Transform Transform `yaml:"transform,omitempty"`

	// HasFlag attaches a per-field "needs review" marker.
	HasFlag bool `yaml:"has_flag,omitempty"`

	// Computed marks values derived by the task, never edited directly.
	// Computed fields are excluded from dirty comparison and from saves.
	Computed bool `yaml:"computed,omitempty"`

	// Scale marks a numeric multiplier field. Dirty comparison treats an
	// empty value as 1.0 and compares numerically.
	Scale bool `yaml:"scale,omitempty"`

	// ScaleTarget marks a field whose displayed value is recomputed from
	// a Scale field. Its display never enters dirty comparison: a real
	// change surfaces through the multiplier, while redisplay of the
	// product would only introduce floating-point noise.
	ScaleTarget bool `yaml:"scale_target,omitempty"`
}

// FlagKey returns the interchange key carrying the field's review flag.
func (f Field) FlagKey() string {
	return "chk_" + f.Name
}

// Schema is the ordered field list for one task.
type Schema []Field

// Validate checks the declarations for internal consistency.
func (s Schema) Validate() error {
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("field with empty name")
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = true

		switch f.Transform {
		case "", Identity, JoinComma, JoinNewline, JSON:
		default:
			return fmt.Errorf("field %q: unknown transform %q", f.Name, f.Transform)
		}
		if f.Scale && f.ScaleTarget {
			return fmt.Errorf("field %q: scale and scale_target are exclusive", f.Name)
		}
	}
	return nil
}

// Lookup returns the descriptor for name.
func (s Schema) Lookup(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// taskFile is the on-disk shape of a task declaration.
type taskFile struct {
	Task   string `yaml:"task"`
	Fields Schema `yaml:"fields"`
}

// LoadFile reads and validates a task schema from a YAML file.
func LoadFile(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task schema: %w", err)
	}
	var tf taskFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing task schema %s: %w", path, err)
	}
	if err := tf.Fields.Validate(); err != nil {
		return nil, fmt.Errorf("task schema %s: %w", path, err)
	}
	return tf.Fields, nil
}
