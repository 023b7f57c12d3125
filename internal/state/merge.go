package state

// DeepMerge applies src over dst, recursing only where both sides are JSON
// objects. Everything else, lists included, is assigned wholesale: a list
// overwrites an object, null overwrites a value. Returns dst.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = DeepMerge(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
	return dst
}

// Clone deep-copies a JSON tree. Scalars are immutable and shared.
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, vv := range x {
			out[k] = Clone(vv)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, vv := range x {
			out[i] = Clone(vv)
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies an object tree, mapping nil to an empty map so
// callers can merge into the result.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return Clone(m).(map[string]any)
}
