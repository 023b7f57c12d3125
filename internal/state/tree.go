package state

import (
	"sort"
	"strconv"

	"github.com/spf13/cast"
)

// Read helpers for dynamic JSON trees. Field names inside feed slots are
// upstream-defined; handlers go through these instead of scattering type
// assertions. Missing keys and wrong shapes read as zero values.

func walk(v any, keys []string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// Map walks keys and returns the object found there, nil otherwise.
func Map(v any, keys ...string) map[string]any {
	m, _ := walk(v, keys).(map[string]any)
	return m
}

// List walks keys and returns the list found there, nil otherwise.
func List(v any, keys ...string) []any {
	l, _ := walk(v, keys).([]any)
	return l
}

// Str walks keys and coerces the value to a string.
func Str(v any, keys ...string) string {
	x := walk(v, keys)
	if x == nil {
		return ""
	}
	s, err := cast.ToStringE(x)
	if err != nil {
		return ""
	}
	return s
}

// Int walks keys and coerces the value to an int.
func Int(v any, keys ...string) int {
	n, err := cast.ToIntE(walk(v, keys))
	if err != nil {
		return 0
	}
	return n
}

// Bool walks keys and returns the boolean found there.
func Bool(v any, keys ...string) bool {
	b, _ := walk(v, keys).(bool)
	return b
}

// Item returns element i of a positional collection in either of the
// shapes the feed uses: a JSON list, or an object keyed "0", "1", ...
func Item(v any, i int) any {
	switch x := v.(type) {
	case []any:
		if i >= 0 && i < len(x) {
			return x[i]
		}
	case map[string]any:
		return x[strconv.Itoa(i)]
	}
	return nil
}

// Items returns all elements of a positional collection in index order,
// tolerating the sparse numerically-keyed object shape.
func Items(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case map[string]any:
		idx := make([]int, 0, len(x))
		for k := range x {
			if n, err := strconv.Atoi(k); err == nil {
				idx = append(idx, n)
			}
		}
		sort.Ints(idx)
		out := make([]any, 0, len(idx))
		for _, n := range idx {
			out = append(out, x[strconv.Itoa(n)])
		}
		return out
	}
	return nil
}
