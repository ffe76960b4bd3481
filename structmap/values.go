package structmap

import (
	"maps"
	"slices"
	"strings"
)

// Values maps dotted field names to decoded field values.
type Values map[string]any

// Int32 returns the named value if it is an int32.
func (v Values) Int32(name string) (int32, bool) {
	x, ok := v[name].(int32)
	return x, ok
}

// UInt32 returns the named value if it is a uint32.
func (v Values) UInt32(name string) (uint32, bool) {
	x, ok := v[name].(uint32)
	return x, ok
}

// Float64 returns the named value if it is a fixed-point float64.
func (v Values) Float64(name string) (float64, bool) {
	x, ok := v[name].(float64)
	return x, ok
}

// String returns the named value if it is a string.
func (v Values) String(name string) (string, bool) {
	x, ok := v[name].(string)
	return x, ok
}

// Sub returns a copy of the values under prefix with the prefix stripped.
// An empty prefix returns a copy of v.
func (v Values) Sub(prefix string) Values {
	if prefix == "" {
		return v.Clone()
	}
	p := prefix + "."
	out := make(Values)
	for name, val := range v {
		if rest, ok := strings.CutPrefix(name, p); ok {
			out[rest] = CopyValue(val)
		}
	}
	return out
}

// Clone returns a copy of v. Array values are copied too, so the clone
// never shares a backing slice with v.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for name, val := range v {
		out[name] = CopyValue(val)
	}
	return out
}

// CopyValue returns val with decoded array slices copied. Scalars and
// strings are returned as is.
func CopyValue(val any) any {
	switch x := val.(type) {
	case []int32:
		return slices.Clone(x)
	case []uint32:
		return slices.Clone(x)
	case []byte:
		return slices.Clone(x)
	default:
		return val
	}
}

// Names returns the field names in sorted order.
func (v Values) Names() []string {
	return slices.Sorted(maps.Keys(v))
}
