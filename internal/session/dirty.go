// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"strconv"
	"strings"
)

// Dirty reports whether the working values diverge from the pristine
// snapshot. This comparison, not a generic deep-equal, is what stands
// between losing edits and blocking navigation for nothing:
//
//   - values are trimmed, and a missing value equals the empty string;
//   - *-delimited numeric strings compare with internal whitespace
//     removed, so "1*2*3" and "1 * 2 * 3" are the same value;
//   - scale multipliers compare numerically with empty meaning 1.0;
//   - scale-target fields are skipped entirely: their display is a
//     product recomputed from the multiplier, and comparing the redisplay
//     would flag floating-point noise as an edit;
//   - computed fields are skipped; they are never edited directly;
//   - any review-flag mismatch is a real change.
func (s *Session) Dirty() bool {
	for _, f := range s.schema {
		if !f.Computed && !f.ScaleTarget {
			pristine := s.pristineFields[f.Name]
			working := s.workingFields[f.Name]
			if f.Scale {
				if scaleValue(pristine) != scaleValue(working) {
					return true
				}
			} else if !equalDisplay(pristine, working) {
				return true
			}
		}
		if f.HasFlag && s.pristineFlags[f.Name] != s.workingFlags[f.Name] {
			return true
		}
	}
	return false
}

// equalDisplay compares two display strings under the normalization rules.
func equalDisplay(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if strings.Contains(a, "*") || strings.Contains(b, "*") {
		return stripSpaces(a) == stripSpaces(b)
	}
	return a == b
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

// scaleValue parses a multiplier, treating empty or unparseable input as
// the neutral 1.0.
func scaleValue(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1.0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return v
}
