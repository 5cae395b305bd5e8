// Package filter implements the predicate-tree filter engine (spec
// component C3): parsing, compiling, and lazily evaluating filter trees
// against payloads, plus an optional eager id-oracle for selective
// filters.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/velesdb/velesdb/pkg/payload"
	"github.com/velesdb/velesdb/pkg/pool"
)

// NodeType names a predicate node kind, matching the `type` discriminator
// of the filter JSON described by spec §6.
type NodeType string

const (
	TypeEq      NodeType = "eq"
	TypeNeq     NodeType = "neq"
	TypeGt      NodeType = "gt"
	TypeGte     NodeType = "gte"
	TypeLt      NodeType = "lt"
	TypeLte     NodeType = "lte"
	TypeIn      NodeType = "in"
	TypeNotIn   NodeType = "not_in"
	TypeExists  NodeType = "exists"
	TypeMissing NodeType = "missing"
	TypeLike    NodeType = "like"
	TypeILike   NodeType = "ilike"
	TypeAnd     NodeType = "and"
	TypeOr      NodeType = "or"
	TypeNot     NodeType = "not"
)

// Node is the uncompiled, JSON-decodable predicate-tree representation.
// A caller builds or unmarshals a Node tree, then calls Compile once.
type Node struct {
	Type       NodeType `json:"type"`
	Field      string   `json:"field,omitempty"`
	Value      any      `json:"value,omitempty"`
	Values     []any    `json:"values,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	Conditions []Node   `json:"conditions,omitempty"`
	Condition  *Node    `json:"condition,omitempty"` // unary "not"
}

// Validate checks structural well-formedness (but not field existence,
// which is payload-dependent and evaluated per-id).
func (n Node) Validate() error {
	switch n.Type {
	case TypeEq, TypeNeq, TypeGt, TypeGte, TypeLt, TypeLte:
		if n.Field == "" {
			return fmt.Errorf("filter: %s requires a field", n.Type)
		}
	case TypeIn, TypeNotIn:
		if n.Field == "" {
			return fmt.Errorf("filter: %s requires a field", n.Type)
		}
	case TypeExists, TypeMissing:
		if n.Field == "" {
			return fmt.Errorf("filter: %s requires a field", n.Type)
		}
	case TypeLike, TypeILike:
		if n.Field == "" || n.Pattern == "" {
			return fmt.Errorf("filter: %s requires a field and pattern", n.Type)
		}
	case TypeAnd, TypeOr:
		if len(n.Conditions) == 0 {
			return fmt.Errorf("filter: %s requires at least one condition", n.Type)
		}
		for _, c := range n.Conditions {
			if err := c.Validate(); err != nil {
				return err
			}
		}
	case TypeNot:
		if n.Condition == nil {
			return fmt.Errorf("filter: not requires a condition")
		}
		return n.Condition.Validate()
	default:
		return fmt.Errorf("filter: unknown node type %q", n.Type)
	}
	return nil
}

// canonicalJSON produces a deterministic string for a Node tree, used as
// the LRU cache key — field order from the struct tags plus sorted
// Values/Conditions makes semantically-identical trees hash the same
// even if constructed via different call sites. Built on a pooled
// string builder since Cache.GetOrCompile runs it on every lookup, hit
// or miss (spec §4.2's "resolve field paths once at filter compile time").
func canonicalJSON(n Node) string {
	b := pool.GetStringBuilder()
	defer pool.PutStringBuilder(b)
	writeCanonical(b, n)
	return b.String()
}

func writeCanonical(b *pool.PooledStringBuilder, n Node) {
	b.WriteByte('{')
	b.WriteString(string(n.Type))
	if n.Field != "" {
		b.WriteByte('|')
		b.WriteString(n.Field)
	}
	if n.Value != nil {
		fmt.Fprintf(b, "|v=%v", n.Value)
	}
	if len(n.Values) > 0 {
		strs := make([]string, len(n.Values))
		for i, v := range n.Values {
			strs[i] = fmt.Sprintf("%v", v)
		}
		sort.Strings(strs)
		b.WriteString("|vs=")
		b.WriteString(strings.Join(strs, ","))
	}
	if n.Pattern != "" {
		b.WriteString("|p=")
		b.WriteString(n.Pattern)
	}
	if n.Condition != nil {
		b.WriteByte('(')
		writeCanonical(b, *n.Condition)
		b.WriteByte(')')
	}
	if len(n.Conditions) > 0 {
		strs := make([]string, len(n.Conditions))
		for i, c := range n.Conditions {
			strs[i] = canonicalJSON(c)
		}
		sort.Strings(strs)
		b.WriteByte('[')
		b.WriteString(strings.Join(strs, ","))
		b.WriteByte(']')
	}
	b.WriteByte('}')
}

// compiledNode is the evaluator form of Node: field-path resolution and
// pattern compilation have already happened, so Matches never allocates
// or re-parses on the hot path.
type compiledNode struct {
	typ      NodeType
	field    string
	value    payload.Value
	values   []payload.Value
	matcher  *patternMatcher
	children []*compiledNode
}

// Matches evaluates this node against p. It is total and deterministic
// (spec §8 invariant 4): every branch returns a definite bool, and
// type-mismatched comparisons evaluate to false rather than erroring.
func (c *compiledNode) Matches(p payload.Payload) bool {
	switch c.typ {
	case TypeEq:
		v, ok := p.Field(c.field)
		if !ok {
			return c.value.IsNull()
		}
		return valuesEqual(v, c.value)
	case TypeNeq:
		v, ok := p.Field(c.field)
		if !ok {
			return !c.value.IsNull()
		}
		return !valuesEqual(v, c.value)
	case TypeGt, TypeGte, TypeLt, TypeLte:
		v, ok := p.Field(c.field)
		if !ok {
			return false
		}
		cmp, ok := compareValues(v, c.value)
		if !ok {
			return false
		}
		switch c.typ {
		case TypeGt:
			return cmp > 0
		case TypeGte:
			return cmp >= 0
		case TypeLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case TypeIn, TypeNotIn:
		v, ok := p.Field(c.field)
		found := false
		if ok {
			for _, cand := range c.values {
				if valuesEqual(v, cand) {
					found = true
					break
				}
			}
		}
		if c.typ == TypeIn {
			return found
		}
		return !found
	case TypeExists:
		_, ok := p.Field(c.field)
		return ok
	case TypeMissing:
		_, ok := p.Field(c.field)
		return !ok
	case TypeLike, TypeILike:
		v, ok := p.Field(c.field)
		if !ok {
			return false
		}
		s, ok := v.Text()
		if !ok {
			return false
		}
		return c.matcher.Match(s)
	case TypeAnd:
		for _, ch := range c.children {
			if !ch.Matches(p) {
				return false
			}
		}
		return true
	case TypeOr:
		for _, ch := range c.children {
			if ch.Matches(p) {
				return true
			}
		}
		return false
	case TypeNot:
		return !c.children[0].Matches(p)
	default:
		return false
	}
}

// valuesEqual compares two payload.Values. Numeric-vs-string mismatches
// are not equal (spec §4.2: "do not raise; they evaluate to false").
// null equals only null.
func valuesEqual(a, b payload.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if af, ok := a.Float64(); ok {
		if bf, ok := b.Float64(); ok {
			return af == bf
		}
		return false
	}
	if as, ok := a.Text(); ok {
		if bs, ok := b.Text(); ok {
			return as == bs
		}
		return false
	}
	if ab, ok := a.Bool(); ok {
		if bb, ok := b.Bool(); ok {
			return ab == bb
		}
		return false
	}
	return false
}

// compareValues returns (-1,0,1, true) for a numeric or lexicographic
// comparison, or (_, false) on an incomparable type mismatch.
func compareValues(a, b payload.Value) (int, bool) {
	if af, ok := a.Float64(); ok {
		if bf, ok := b.Float64(); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if as, ok := a.Text(); ok {
		if bs, ok := b.Text(); ok {
			return strings.Compare(as, bs), true
		}
		return 0, false
	}
	return 0, false
}
