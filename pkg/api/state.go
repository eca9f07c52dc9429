package api

// State is the key/value record threaded through a traversal.
//
// A State handed to a task belongs to that task for the duration of the
// call. Engines and combinators never mutate a State in place; every step
// produces a new State via Merge.
type State map[string]any

// Merge returns a new State holding base overlaid with delta.
//
// The merge is shallow and last-write-wins: keys present in delta replace
// the value in base, keys absent from delta are preserved. Nested maps are
// not merged. Either argument may be nil.
func Merge(base, delta State) State {
	out := make(State, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy of s. Clone of a nil State is an empty,
// non-nil State.
func (s State) Clone() State {
	return Merge(s, nil)
}

// Get returns the value stored under key and whether it was present.
func (s State) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

// Int returns the value under key as an int. Missing keys and values of
// other types yield 0.
func (s State) Int(key string) int {
	switch v := s[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// String returns the value under key as a string, or "" if it is missing or
// not a string.
func (s State) String(key string) string {
	v, _ := s[key].(string)
	return v
}

// Bool returns the value under key as a bool, or false if it is missing or
// not a bool.
func (s State) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}
