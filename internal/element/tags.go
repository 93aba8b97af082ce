package element

import (
	"encoding/json"
	"maps"
)

// Tags is a set of key/value pairs
type Tags map[string]string

// Get returns the value of key, or "" if it is not set
func (t Tags) Get(key string) string {
	return t[key]
}

// Without returns a copy of t with the given keys removed
func (t Tags) Without(keys ...string) Tags {
	out := maps.Clone(t)
	if out == nil {
		out = make(Tags)
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Meaningful reports whether t carries any key not listed in ignored
func (t Tags) Meaningful(ignored ...string) bool {
	for k := range t {
		skip := false
		for _, i := range ignored {
			if k == i {
				skip = true
				break
			}
		}
		if !skip {
			return true
		}
	}
	return false
}

// EqualIgnoring compares two tag sets, skipping the given keys on both sides
func (t Tags) EqualIgnoring(other Tags, ignored ...string) bool {
	return maps.Equal(t.Without(ignored...), other.Without(ignored...))
}

// JSON renders tags as a JSON object. Empty tags become "{}".
func (t Tags) JSON() string {
	if len(t) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(map[string]string(t))
	return string(b)
}
