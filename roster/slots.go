package roster

import (
	"encoding/json"
	"strings"
)

// ParseSlots reads a serialized set of availability slots. It accepts a
// set literal ({'Mon AM', 'Tue PM'}), a JSON array, or a plain list
// separated by ';', '|' or ','.
func ParseSlots(raw string) []string {
	s := strings.TrimSpace(raw)
	switch {
	case s == "", s == "set()", s == "{}", s == "[]":
		return nil
	case strings.HasPrefix(s, "["):
		var out []string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return clean(out)
		}
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		s = s[1 : len(s)-1]
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ';' || r == '|' || r == ','
	})
	return clean(parts)
}

func clean(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
