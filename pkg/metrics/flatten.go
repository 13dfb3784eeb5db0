// Package metrics flattens nested analyzer metrics for serialization.
package metrics

import (
	"fmt"
	"sort"
	"strconv"
)

// Metric is one flattened leaf: a dotted/indexed path and its scalar value.
type Metric struct {
	Path  string
	Value string
}

// Flatten reduces an arbitrarily nested tree of maps, slices, and scalars to
// an ordered list of (path, value) pairs. Map children use "parent.key"
// paths, sequence elements use "parent[i]", and a bare scalar root yields a
// single entry with an empty path.
//
// Map keys are visited in sorted order so the output is deterministic; Go
// maps do not preserve insertion order.
func Flatten(tree any) []Metric {
	var out []Metric
	walk("", tree, &out)
	return out
}

func walk(path string, value any, out *[]Metric) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			child := key
			if path != "" {
				child = path + "." + key
			}
			walk(child, v[key], out)
		}
	case []any:
		for i, elem := range v {
			walk(fmt.Sprintf("%s[%d]", path, i), elem, out)
		}
	default:
		*out = append(*out, Metric{Path: path, Value: formatScalar(value)})
	}
}

func formatScalar(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
