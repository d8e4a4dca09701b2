// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValue(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		value any
		want  string
	}{
		{"identity string", Field{Name: "material"}, "wood", "wood"},
		{"identity nil", Field{Name: "material"}, nil, ""},
		{"identity number", Field{Name: "count"}, 3.0, "3"},
		{"comma list", Field{Name: "placement", Transform: JoinComma}, []any{"floor", "desk"}, "floor, desk"},
		{"comma string passthrough", Field{Name: "placement", Transform: JoinComma}, "floor, desk", "floor, desk"},
		{"comma nil", Field{Name: "placement", Transform: JoinComma}, nil, ""},
		{"newline list", Field{Name: "notes", Transform: JoinNewline}, []string{"a", "b"}, "a\nb"},
		{"json object", Field{Name: "extra", Transform: JSON}, map[string]any{"k": "v"}, "{\n  \"k\": \"v\"\n}"},
		{"json nil", Field{Name: "extra", Transform: JSON}, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LoadValue(tt.field, tt.value); got != tt.want {
				t.Errorf("LoadValue() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSaveValueSplitsLists(t *testing.T) {
	f := Field{Name: "placement", Transform: JoinComma}
	got := SaveValue(f, "floor , desk,, shelf ")
	list, ok := got.([]string)
	if !ok {
		t.Fatalf("SaveValue() = %T, want []string", got)
	}
	want := []string{"floor", "desk", "shelf"}
	if len(list) != len(want) {
		t.Fatalf("SaveValue() = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("SaveValue()[%d] = %q, want %q", i, list[i], want[i])
		}
	}
}

func TestSaveValueJSON(t *testing.T) {
	f := Field{Name: "extra", Transform: JSON}

	got := SaveValue(f, `{"k": "v"}`)
	obj, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("SaveValue() = %T, want map", got)
	}
	if obj["k"] != "v" {
		t.Errorf("SaveValue()[k] = %v, want v", obj["k"])
	}

	// Invalid JSON keeps the raw text rather than losing the edit.
	if got := SaveValue(f, "{broken"); got != "{broken" {
		t.Errorf("SaveValue(invalid) = %v, want raw text", got)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	f := Field{Name: "placement", Transform: JoinComma}
	persisted := []any{"floor", "desk"}

	display := LoadValue(f, persisted)
	back := SaveValue(f, display).([]string)
	again := LoadValue(f, back)

	if display != again {
		t.Errorf("round trip changed display: %q vs %q", display, again)
	}
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{"valid", Schema{{Name: "a"}, {Name: "b", Transform: JoinComma, HasFlag: true}}, false},
		{"empty name", Schema{{Name: ""}}, true},
		{"duplicate", Schema{{Name: "a"}, {Name: "a"}}, true},
		{"bad transform", Schema{{Name: "a", Transform: "csv"}}, true},
		{"scale conflict", Schema{{Name: "a", Scale: true, ScaleTarget: true}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	content := `task: part_annotation
fields:
  - name: material
    label: Material
    has_flag: true
  - name: placement
    transform: join_comma
  - name: dimensions
    scale_target: true
  - name: scale
    scale: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sch, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if len(sch) != 4 {
		t.Fatalf("LoadFile() returned %d fields, want 4", len(sch))
	}
	if f, _ := sch.Lookup("placement"); f.Transform != JoinComma {
		t.Errorf("placement transform = %q, want join_comma", f.Transform)
	}
	if f, _ := sch.Lookup("material"); !f.HasFlag {
		t.Error("material should carry a flag")
	}
	if f, _ := sch.Lookup("material"); f.FlagKey() != "chk_material" {
		t.Errorf("FlagKey() = %q, want chk_material", f.FlagKey())
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "task.yaml")
	if err := os.WriteFile(path, []byte("fields:\n  - name: a\n  - name: a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() accepted duplicate field names")
	}
}
