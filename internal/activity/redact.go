package activity

import "reflect"

type absentValue struct{}

// Absent marks a field that was never given a value. The destination store
// rejects documents containing such fields, so RemoveAbsent strips them
// before transmission. An explicit null (untyped nil) is a different thing
// and survives redaction.
var Absent any = absentValue{}

// RemoveAbsent returns an equivalent structure with every absent-valued
// entry removed, recursively, including inside slices and nested maps. A
// map emptied by filtering stays an empty map; it is not removed itself.
func RemoveAbsent(v any) any {
	switch t := v.(type) {
	case Fields:
		return Fields(cleanMap(t))
	case map[string]any:
		return cleanMap(t)
	case []any:
		out := make([]any, 0, len(t))
		for _, item := range t {
			if isAbsent(item) {
				continue
			}
			out = append(out, RemoveAbsent(item))
		}
		return out
	default:
		return v
	}
}

func cleanMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		if isAbsent(val) {
			continue
		}
		out[k] = RemoveAbsent(val)
	}
	return out
}

// isAbsent reports whether v is the Absent sentinel or a nil typed pointer.
// An untyped nil is an explicit null, not an absence.
func isAbsent(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.(absentValue); ok {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
