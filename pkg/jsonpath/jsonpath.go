package jsonpath

import (
	"strconv"
	"strings"
)

// Lookup walks a dot-path ("data.items.0.status") through a parsed
// JSON document. Numeric segments index arrays. The boolean is false
// when any segment is missing; a present-but-null value returns
// (nil, true) so callers can tell the two cases apart.
func Lookup(doc any, path string) (any, bool) {
	current := doc

	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}
