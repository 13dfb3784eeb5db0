package analysis

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Normalize converts an arbitrarily nested metrics tree into JSON-native
// values. Timestamps become RFC 3339 strings and any other non-native scalar
// is replaced with its string representation. Normalize never fails: the
// analyzer's metric vocabulary is not under our control, so unknown values
// degrade to strings rather than aborting a study.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Normalize(val)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			out[key] = Normalize(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return Normalize(rv.Elem().Interface())
	}

	return fmt.Sprint(value)
}
