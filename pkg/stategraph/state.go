package stategraph

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// State is the key/value mapping that flows through a graph.
// Values must be JSON-serializable: snapshots, checkpoints, and branch
// isolation all rely on JSON round-trips.
type State map[string]any

// PartialState is a state-shaped update containing only the keys a node
// chose to set. Keys absent from the update leave the state untouched.
type PartialState map[string]any

// Reducer combines the existing value of one state key with an incoming
// value from a partial update. The default behavior (no reducer declared)
// is overwrite.
//
// Reducers must be deterministic: the engine guarantees a fixed application
// order during fan-in, and that guarantee is only as good as the reducer.
type Reducer func(current, incoming any) (any, error)

// Clone returns a deep copy of the state via a JSON round-trip.
// A nil state clones to an empty, non-nil state.
func (s State) Clone() (State, error) {
	if len(s) == 0 {
		return State{}, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("clone state: %w", err)
	}
	return out, nil
}

// AppendReducer concatenates sequences. Both sides are normalized to a
// sequence first: nil becomes empty, a slice contributes its elements, and
// any other value is treated as a one-element sequence. The result is
// always a fresh []any.
func AppendReducer(current, incoming any) (any, error) {
	cur := toSequence(current)
	inc := toSequence(incoming)
	out := make([]any, 0, len(cur)+len(inc))
	out = append(out, cur...)
	out = append(out, inc...)
	return out, nil
}

// AccumulateReducer adds numeric values. Integer inputs stay integral
// (int64); mixing in a float produces a float64. Non-numeric values fail
// the merge.
func AccumulateReducer(current, incoming any) (any, error) {
	ci, cOK := toInt64(current)
	ii, iOK := toInt64(incoming)
	if cOK && iOK {
		return ci + ii, nil
	}
	cf, cOK := toFloat64(current)
	if !cOK {
		return nil, fmt.Errorf("accumulate: non-numeric current value %T", current)
	}
	incf, iOK := toFloat64(incoming)
	if !iOK {
		return nil, fmt.Errorf("accumulate: non-numeric incoming value %T", incoming)
	}
	return cf + incf, nil
}

// toSequence normalizes a value to a []any for append merging.
func toSequence(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		// JSON decoding turns every number into float64; keep integral
		// values integral so counters survive checkpoint round-trips.
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case float32:
		if float64(n) == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Schema declares the keys a graph's state may contain and, per key, how
// incoming values merge with existing ones. Keys without an explicit
// reducer are overwritten on update.
//
// Schema is NOT thread-safe during declaration. Declare it fully, hand it
// to New(), and Compile() takes an immutable copy.
//
// Example:
//
//	schema := stategraph.NewSchema().
//	    Key("status", "input").
//	    Append("log").
//	    Accumulate("step_count")
type Schema struct {
	reducers map[string]Reducer
}

// NewSchema creates an empty schema.
func NewSchema() *Schema {
	return &Schema{reducers: make(map[string]Reducer)}
}

// Key declares one or more keys with overwrite-on-update semantics.
// Panics on an empty name or a redeclared key.
func (s *Schema) Key(names ...string) *Schema {
	for _, name := range names {
		s.declare(name, nil)
	}
	return s
}

// Append declares a key whose updates concatenate as a sequence.
func (s *Schema) Append(name string) *Schema {
	s.declare(name, AppendReducer)
	return s
}

// Accumulate declares a key whose numeric updates add together.
func (s *Schema) Accumulate(name string) *Schema {
	s.declare(name, AccumulateReducer)
	return s
}

// Reduce declares a key with a custom reducer.
// Panics if the reducer is nil.
func (s *Schema) Reduce(name string, r Reducer) *Schema {
	if r == nil {
		panic("stategraph: reducer cannot be nil")
	}
	s.declare(name, r)
	return s
}

func (s *Schema) declare(name string, r Reducer) {
	if name == "" {
		panic("stategraph: state key cannot be empty")
	}
	if _, exists := s.reducers[name]; exists {
		panic(fmt.Sprintf("stategraph: duplicate state key: %s", name))
	}
	s.reducers[name] = r
}

// Has reports whether the key is declared.
func (s *Schema) Has(name string) bool {
	_, ok := s.reducers[name]
	return ok
}

// Keys returns the declared keys in sorted order.
func (s *Schema) Keys() []string {
	keys := make([]string, 0, len(s.reducers))
	for k := range s.reducers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Merge applies a partial update to a state and returns the merged result
// as a new state; neither input is modified. The update is atomic: if any
// key is undeclared or any reducer fails, the merge returns an error and
// nothing is applied.
func (s *Schema) Merge(current State, update PartialState) (State, error) {
	if len(update) == 0 {
		if current == nil {
			return State{}, nil
		}
		return current, nil
	}

	keys := make([]string, 0, len(update))
	for k := range update {
		if !s.Has(k) {
			return nil, &StateError{Key: k, Err: ErrUnknownStateKey}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := make(State, len(current)+len(update))
	for k, v := range current {
		next[k] = v
	}
	for _, k := range keys {
		if r := s.reducers[k]; r != nil {
			merged, err := r(next[k], update[k])
			if err != nil {
				return nil, &StateError{Key: k, Err: err}
			}
			next[k] = merged
			continue
		}
		next[k] = update[k]
	}
	return next, nil
}

// Validate checks that every key of a full state is declared in the schema.
// Used on initial and resumed states before a run enters the step loop.
func (s *Schema) Validate(state State) error {
	for k := range state {
		if !s.Has(k) {
			return &StateError{Key: k, Err: ErrUnknownStateKey}
		}
	}
	return nil
}

// clone returns an independent copy of the schema for compilation.
func (s *Schema) clone() *Schema {
	out := &Schema{reducers: make(map[string]Reducer, len(s.reducers))}
	for k, v := range s.reducers {
		out.reducers[k] = v
	}
	return out
}
