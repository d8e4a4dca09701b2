// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LoadValue converts a persisted value into the string shown for editing.
func LoadValue(f Field, value any) string {
	switch f.Transform {
	case JoinComma:
		return joinList(value, ", ")
	case JoinNewline:
		return joinList(value, "\n")
	case JSON:
		switch value.(type) {
		case nil:
			return ""
		case string:
			return value.(string)
		default:
			data, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return fmt.Sprint(value)
			}
			return string(data)
		}
	default:
		if value == nil {
			return ""
		}
		return fmt.Sprint(value)
	}
}

// SaveValue converts an edited display string back into the persisted
// shape declared by the field.
func SaveValue(f Field, display string) any {
	switch f.Transform {
	case JoinComma:
		return splitList(display, ",")
	case JoinNewline:
		return splitList(display, "\n")
	case JSON:
		trimmed := strings.TrimSpace(display)
		if trimmed == "" {
			return map[string]any{}
		}
		var out any
		if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
			// Not valid JSON: keep the raw text rather than lose an edit.
			return display
		}
		return out
	default:
		return display
	}
}

func joinList(value any, sep string) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, sep)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	default:
		return fmt.Sprint(v)
	}
}

func splitList(display, sep string) []string {
	var out []string
	for _, part := range strings.Split(display, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}
