package debugreq

import (
	"net/http"
	"net/url"

	orderedmap "github.com/pb33f/ordered-map/v2"
)

// Value holds one key's values. It is a scalar until a second value for the same
// key arrives.
type Value struct {
	values []string
}

func (v Value) IsMulti() bool { return len(v.values) > 1 }

func (v Value) Scalar() string {
	if len(v.values) == 0 {
		return ""
	}
	return v.values[0]
}

func (v Value) Values() []string {
	return append([]string(nil), v.values...)
}

// Interface returns string or []string, mirroring the wire shape of the row map.
func (v Value) Interface() any {
	if v.IsMulti() {
		return v.Values()
	}
	return v.Scalar()
}

// Values is an insertion-ordered multi-map keyed by first occurrence.
type Values struct {
	m *orderedmap.OrderedMap[string, *Value]
}

func newValues() Values {
	return Values{m: orderedmap.New[string, *Value]()}
}

func (vs Values) Len() int {
	if vs.m == nil {
		return 0
	}
	return vs.m.Len()
}

func (vs Values) Get(key string) (Value, bool) {
	if vs.m == nil {
		return Value{}, false
	}
	v, ok := vs.m.Get(key)
	if !ok || v == nil {
		return Value{}, false
	}
	return *v, true
}

func (vs Values) Keys() []string {
	keys := make([]string, 0, vs.Len())
	vs.each(func(k string, _ *Value) { keys = append(keys, k) })
	return keys
}

func (vs Values) each(fn func(string, *Value)) {
	if vs.m == nil {
		return
	}
	for pair := vs.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// URLValues flattens multi-valued keys into repeated query keys.
func (vs Values) URLValues() url.Values {
	out := url.Values{}
	vs.each(func(k string, v *Value) {
		for _, s := range v.values {
			out.Add(k, s)
		}
	})
	return out
}

// ApplyHeaders adds every value without canonicalizing the key.
func (vs Values) ApplyHeaders(h http.Header) {
	vs.each(func(k string, v *Value) {
		for _, s := range v.values {
			h[k] = append(h[k], s)
		}
	})
}

// Map returns the string|[]string shape.
func (vs Values) Map() map[string]any {
	out := make(map[string]any, vs.Len())
	vs.each(func(k string, v *Value) { out[k] = v.Interface() })
	return out
}

// BuildParams coalesces selected rows into an ordered multi-map. The input is not modified.
func BuildParams(items []RequestItem) Values {
	return coalesce(items)
}

// BuildHeaders uses the same algorithm as BuildParams.
func BuildHeaders(items []RequestItem) Values {
	return coalesce(items)
}

func coalesce(items []RequestItem) Values {
	out := newValues()
	for _, item := range items {
		if !item.Selected {
			continue
		}
		if existing, ok := out.m.Get(item.Key); ok {
			existing.values = append(existing.values, item.Value)
			continue
		}
		out.m.Set(item.Key, &Value{values: []string{item.Value}})
	}
	return out
}
