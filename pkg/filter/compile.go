package filter

import "github.com/velesdb/velesdb/pkg/payload"

// CompiledFilter is the evaluator produced once per distinct filter tree
// and reused across every candidate considered during a search (spec
// §4.2: "resolve field paths once at filter compile time").
type CompiledFilter struct {
	root   *compiledNode
	source Node
}

// Compile validates and compiles a Node tree. The returned
// CompiledFilter's Matches method is the lazy per-id hot path described
// by spec §4.2.
func Compile(n Node) (*CompiledFilter, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	root, err := compileNode(n)
	if err != nil {
		return nil, err
	}
	return &CompiledFilter{root: root, source: n}, nil
}

func compileNode(n Node) (*compiledNode, error) {
	c := &compiledNode{typ: n.Type, field: n.Field}
	switch n.Type {
	case TypeEq, TypeNeq, TypeGt, TypeGte, TypeLt, TypeLte:
		v, err := payload.FromAny(n.Value)
		if err != nil {
			return nil, err
		}
		c.value = v
	case TypeIn, TypeNotIn:
		vals := make([]payload.Value, len(n.Values))
		for i, raw := range n.Values {
			v, err := payload.FromAny(raw)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		c.values = vals
	case TypeLike:
		c.matcher = compilePattern(n.Pattern, false)
	case TypeILike:
		c.matcher = compilePattern(n.Pattern, true)
	case TypeAnd, TypeOr:
		children := make([]*compiledNode, len(n.Conditions))
		for i, cond := range n.Conditions {
			cc, err := compileNode(cond)
			if err != nil {
				return nil, err
			}
			children[i] = cc
		}
		c.children = children
	case TypeNot:
		cc, err := compileNode(*n.Condition)
		if err != nil {
			return nil, err
		}
		c.children = []*compiledNode{cc}
	}
	return c, nil
}

// Matches is the lazy per-id evaluation entry point.
func (cf *CompiledFilter) Matches(p payload.Payload) bool {
	if cf == nil || cf.root == nil {
		return true
	}
	return cf.root.Matches(p)
}

// Key returns the canonical cache key for this filter's source tree.
func (cf *CompiledFilter) Key() string {
	return canonicalJSON(cf.source)
}
