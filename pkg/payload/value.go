// Package payload implements the per-point structured-attribute store
// (spec component C2): a tagged Value variant and the Payload map built
// from it, plus the typed, reflection-free accessors the filter engine
// and query pipeline read on their hot paths.
package payload

import "fmt"

// Kind tags the concrete type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindText
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged union over the payload field types named in spec §3:
// null, bool, int64, float64, string, list, nested map. It is
// deliberately not an `any` with runtime type switches — Design Notes §9
// calls for resolving field shapes once, not re-discovering them on
// every filter evaluation.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    Payload
}

func Null() Value                 { return Value{kind: KindNull} }
func Bool(v bool) Value           { return Value{kind: KindBool, b: v} }
func Int64(v int64) Value         { return Value{kind: KindInt64, i: v} }
func Float64(v float64) Value     { return Value{kind: KindFloat64, f: v} }
func Text(v string) Value         { return Value{kind: KindText, s: v} }
func List(v []Value) Value        { return Value{kind: KindList, list: v} }
func Map(v Payload) Value         { return Value{kind: KindMap, m: v} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt64:
		return v.i, true
	case KindFloat64:
		return int64(v.f), true
	default:
		return 0, false
	}
}

func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindFloat64:
		return v.f, true
	case KindInt64:
		return float64(v.i), true
	default:
		return 0, false
	}
}

func (v Value) Text() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.s, true
}

func (v Value) List() ([]Value, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

func (v Value) Map() (Payload, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// FromAny lifts a decoded JSON-ish value (as produced by encoding/json
// into an any, or built up by a caller directly) into a Value. Unknown
// concrete types are rejected rather than silently coerced, since a
// filter comparing against a malformed payload field must fail
// predictably (see compareValues in pkg/filter/filter.go).
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int64(int64(t)), nil
	case int64:
		return Int64(t), nil
	case float64:
		return Float64(t), nil
	case float32:
		return Float64(float64(t)), nil
	case string:
		return Text(t), nil
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = ev
		}
		return List(out), nil
	case map[string]any:
		p := make(Payload, len(t))
		for k, e := range t {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, err
			}
			p[k] = ev
		}
		return Map(p), nil
	case Payload:
		return Map(t), nil
	default:
		return Value{}, fmt.Errorf("payload: unsupported value type %T", v)
	}
}

// Interface converts a Value back to a plain any, for callers that need
// to hand a payload to an external JSON encoder.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt64:
		return v.i
	case KindFloat64:
		return v.f
	case KindText:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, e := range v.m {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}
