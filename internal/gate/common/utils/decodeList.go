package utils

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// DecodeList reads a stored list value. Accepted shapes:
// - a JSON array of strings
// - a JSON object keyed by index, as lists with removed entries export
// - one newline or comma separated string
// Entries are trimmed and empties dropped. An empty or null value is an
// empty list. Any other shape reports false.
func DecodeList(raw []byte) ([]string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, true
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var obj map[string]string
		var s string
		switch {
		case json.Unmarshal(raw, &obj) == nil:
			keys := make([]int, 0, len(obj))
			byIndex := make(map[int]string, len(obj))
			for k, v := range obj {
				i, err := strconv.Atoi(k)
				if err != nil {
					return nil, false
				}
				keys = append(keys, i)
				byIndex[i] = v
			}
			slices.Sort(keys)
			for _, i := range keys {
				list = append(list, byIndex[i])
			}
		case json.Unmarshal(raw, &s) == nil:
			list = strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' || r == ',' })
		default:
			return nil, false
		}
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, true
}
