// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"testing"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

func partSchema() schema.Schema {
	return schema.Schema{
		{Name: "material", HasFlag: true},
		{Name: "placement", Transform: schema.JoinComma, HasFlag: true},
		{Name: "dimensions", ScaleTarget: true},
		{Name: "scale", Scale: true},
		{Name: "preview_path", Computed: true},
	}
}

func partRecord() types.Record {
	return types.Record{
		ID: "model_001",
		Fields: map[string]any{
			"material":     "wood",
			"placement":    []any{"floor", "desk"},
			"dimensions":   "1*2*3",
			"scale":        "1.0",
			"preview_path": "previews/model_001.gif",
		},
		Flags: map[string]bool{"material": false, "placement": false},
	}
}

func TestFreshSessionIsClean(t *testing.T) {
	s := New(partRecord(), partSchema())
	if s.Dirty() {
		t.Error("fresh session reports dirty")
	}
	if s.RecordID != "model_001" {
		t.Errorf("RecordID = %q", s.RecordID)
	}
	if s.ID == "" {
		t.Error("session has no interaction id")
	}
}

func TestSnapshotAppliesDisplayTransform(t *testing.T) {
	s := New(partRecord(), partSchema())
	if got := s.Field("placement"); got != "floor, desk" {
		t.Errorf("placement display = %q, want %q", got, "floor, desk")
	}
}

func TestDirtyOnValueChange(t *testing.T) {
	s := New(partRecord(), partSchema())
	s.SetField("material", "metal")
	if !s.Dirty() {
		t.Error("changed value not reported dirty")
	}
	s.SetField("material", "wood")
	if s.Dirty() {
		t.Error("restored value still reported dirty")
	}
}

func TestDirtyOnFlagChange(t *testing.T) {
	s := New(partRecord(), partSchema())
	s.SetFlag("material", true)
	if !s.Dirty() {
		t.Error("raised flag not reported dirty")
	}
}

func TestDirtyNormalization(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value string
		dirty bool
	}{
		{"whitespace around value", "material", "  wood  ", false},
		{"star spacing ignored", "dimensions", "1 * 2 * 3", false},
		{"star value change", "dimensions", "1*2*4", true},
		{"scale neutral empty", "scale", "", false},
		{"scale same number", "scale", "1.00", false},
		{"scale changed", "scale", "2.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sch := partSchema()
			// Compare dimensions directly here; the scale-target skip is
			// covered separately.
			for i := range sch {
				if sch[i].Name == "dimensions" {
					sch[i].ScaleTarget = false
				}
			}
			s := New(partRecord(), sch)
			s.SetField(tt.field, tt.value)
			if got := s.Dirty(); got != tt.dirty {
				t.Errorf("Dirty() = %v, want %v", got, tt.dirty)
			}
		})
	}
}

func TestScaleTargetRedisplayNotDirty(t *testing.T) {
	s := New(partRecord(), partSchema())
	// The UI rewrites the derived field when redisplaying the product of
	// base and multiplier. That alone must not read as an edit.
	s.SetField("dimensions", "1.00 * 2.00 * 3.00")
	if s.Dirty() {
		t.Error("scale-target redisplay reported dirty")
	}
	// A real change arrives through the multiplier.
	s.SetField("scale", "2.0")
	if !s.Dirty() {
		t.Error("multiplier change not reported dirty")
	}
}

func TestComputedFieldIgnored(t *testing.T) {
	s := New(partRecord(), partSchema())
	s.SetField("preview_path", "previews/other.gif")
	if s.Dirty() {
		t.Error("computed field change reported dirty")
	}
	fields, _, _ := s.SaveValues()
	if _, ok := fields["preview_path"]; ok {
		t.Error("computed field leaked into save values")
	}
}

func TestSetFieldUnknownNameIgnored(t *testing.T) {
	s := New(partRecord(), partSchema())
	s.SetField("no_such_field", "x")
	if s.Dirty() {
		t.Error("unknown field mutated session state")
	}
}

func TestSaveValues(t *testing.T) {
	s := New(partRecord(), partSchema())
	s.SetField("placement", "floor, shelf")
	s.SetFlag("placement", true)

	fields, flags, score := s.SaveValues()

	list, ok := fields["placement"].([]string)
	if !ok {
		t.Fatalf("placement saved as %T, want []string", fields["placement"])
	}
	if len(list) != 2 || list[1] != "shelf" {
		t.Errorf("placement saved as %v", list)
	}
	if !flags["placement"] {
		t.Error("placement flag lost on save")
	}
	if score != 0 {
		t.Errorf("score = %d, want 0 with a raised flag", score)
	}

	s.SetFlag("placement", false)
	if _, _, score := s.SaveValues(); score != 1 {
		t.Errorf("score = %d, want 1 with no flags", score)
	}
}
