// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/annotation-engine/internal/schema"
	"github.com/pdiddy/annotation-engine/pkg/types"
)

// Interchange format: one JSON object per line, keyed by record id:
//
//	{"<id>": {"annotated": bool, "uid": "<owner>", "score": 0|1,
//	          "<field>": <value>, ..., "chk_<field>": bool, ...}}
//
// Review flags travel under chk_-prefixed keys beside the business fields.

const (
	metaAnnotated = "annotated"
	metaUID       = "uid"
	metaScore     = "score"
	flagPrefix    = "chk_"
)

// encodeLine renders one record as an interchange line (without trailing
// newline). List-typed fields leave as JSON arrays: a value still in its
// joined display form is split back through the field's declared transform.
func encodeLine(r types.Record, sch schema.Schema) ([]byte, error) {
	attrs := make(map[string]any, len(r.Fields)+len(r.Flags)+3)
	attrs[metaAnnotated] = r.Completed
	attrs[metaUID] = r.Owner
	attrs[metaScore] = r.Score

	for name, value := range r.Fields {
		if f, ok := sch.Lookup(name); ok {
			if s, isStr := value.(string); isStr && listTransform(f.Transform) {
				value = schema.SaveValue(f, s)
			}
		}
		attrs[name] = value
	}
	for name, set := range r.Flags {
		attrs[flagPrefix+name] = set
	}

	line, err := json.Marshal(map[string]any{r.ID: attrs})
	if err != nil {
		return nil, fmt.Errorf("encoding record %s: %w", r.ID, err)
	}
	return line, nil
}

// decodeLine parses one interchange line. Both array and pre-joined string
// forms of list fields are accepted; values are stored as read and only
// converted for display by the edit session.
func decodeLine(line []byte) (types.Record, error) {
	var obj map[string]map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		return types.Record{}, fmt.Errorf("parsing interchange line: %w", err)
	}
	if len(obj) != 1 {
		return types.Record{}, fmt.Errorf("interchange line must hold exactly one record, got %d", len(obj))
	}

	var r types.Record
	for id, attrs := range obj {
		r = recordFromAttrs(id, attrs)
	}
	return r, nil
}

// recordFromAttrs builds a record from the per-id attribute map.
func recordFromAttrs(id string, attrs map[string]any) types.Record {
	r := types.Record{
		ID:     id,
		Score:  1,
		Fields: make(map[string]any),
		Flags:  make(map[string]bool),
	}
	for key, value := range attrs {
		switch {
		case key == metaAnnotated:
			r.Completed, _ = value.(bool)
		case key == metaUID:
			r.Owner, _ = value.(string)
		case key == metaScore:
			if n, ok := value.(float64); ok {
				r.Score = int(n)
			}
		case strings.HasPrefix(key, flagPrefix):
			set, _ := value.(bool)
			r.Flags[strings.TrimPrefix(key, flagPrefix)] = set
		default:
			r.Fields[key] = value
		}
	}
	return r
}

func listTransform(t schema.Transform) bool {
	return t == schema.JoinComma || t == schema.JoinNewline
}
