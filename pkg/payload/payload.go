package payload

import "strings"

// Payload is the per-point structured attribute map (spec §3). Payloads
// are copy-on-write: a Clone is cheap (shallow copy of top-level keys)
// because every Value held underneath is itself immutable once
// constructed, so sharing sub-trees across clones is always safe.
type Payload map[string]Value

// Clone returns a shallow copy safe to hand to a new point version
// without aliasing the caller's map.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Field resolves a dotted field path ("address.city") against the
// payload, descending through nested maps. It returns (_, false) if any
// segment is missing or not a map, matching the filter engine's
// "missing" predicate rather than raising.
func (p Payload) Field(path string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	segs := strings.Split(path, ".")
	cur := p
	for i, seg := range segs {
		v, ok := cur[seg]
		if !ok {
			return Value{}, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		m, ok := v.Map()
		if !ok {
			return Value{}, false
		}
		cur = m
	}
	return Value{}, false
}
