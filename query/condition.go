// query/condition.go
package query

import (
	"cmp"
	"regexp"
	"time"
)

/*
 * Condition expression trees.
 *
 * A Condition[R] is a typed handle over a closed tagged-union tree of
 * CondNode values. The typed constructors are the only public way to build
 * nodes, so path/value compatibility is checked by the compiler (value
 * literals share the path's type parameter; ordering operators require
 * cmp.Ordered; bitwise operators require an integer type). The erased
 * node tree is what the evaluator, codec, and backend translators consume,
 * each with an exhaustive switch over CondKind.
 *
 * Nodes are immutable after construction and safe for concurrent use.
 */

// CondKind discriminates condition node variants.
type CondKind int

const (
	CondAlways CondKind = iota
	CondNever
	CondAnd
	CondOr
	CondNot
	CondEq
	CondNeq
	CondGt
	CondGte
	CondLt
	CondLte
	CondIn
	CondNotIn
	CondContains
	CondMatches
	CondSearch
	CondAll
	CondAny
	CondWithinDistance
	CondBitsAllSet
	CondBitsAnySet
	CondBitsAllClear
	CondIsNil
	CondNotNil
)

var condKindNames = map[CondKind]string{
	CondAlways:         "always",
	CondNever:          "never",
	CondAnd:            "and",
	CondOr:             "or",
	CondNot:            "not",
	CondEq:             "eq",
	CondNeq:            "neq",
	CondGt:             "gt",
	CondGte:            "gte",
	CondLt:             "lt",
	CondLte:            "lte",
	CondIn:             "in",
	CondNotIn:          "notIn",
	CondContains:       "contains",
	CondMatches:        "matches",
	CondSearch:         "search",
	CondAll:            "all",
	CondAny:            "any",
	CondWithinDistance: "within",
	CondBitsAllSet:     "bitsAllSet",
	CondBitsAnySet:     "bitsAnySet",
	CondBitsAllClear:   "bitsAllClear",
	CondIsNil:          "isNull",
	CondNotNil:         "notNull",
}

// String returns the wire discriminator for the kind.
func (k CondKind) String() string {
	if n, ok := condKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// CondNode is one node of a condition tree. Which fields are meaningful
// depends on Kind; backend translators switch on Kind and read the fields
// for that variant. Nodes must be treated as read-only.
type CondNode struct {
	Kind CondKind

	Path []Step // leaf predicates: path to the tested value

	Value  any   // Eq/Neq/Gt/Gte/Lt/Lte comparison literal
	Values []any // In/NotIn literal set

	Needle    string // Contains
	MatchCase bool   // Contains: true = case-sensitive (default insensitive)

	Pattern string // Matches (serialized form)

	Query      string // Search
	MaxDist    int    // Search: per-token edit distance budget
	RequireAll bool   // Search: every query token must match

	Center Point   // WithinDistance
	Min    float64 // WithinDistance lower bound (0 = unbounded)
	Max    float64 // WithinDistance upper bound (+Inf = unbounded)

	Mask uint64 // bitwise predicates

	Inner *CondNode   // Not/All/Any
	Nodes []*CondNode // And/Or children

	re   *regexp.Regexp  // Matches, compiled
	iter func(any) []any // All/Any element view
}

// Condition is a composable boolean predicate over records of type R.
type Condition[R any] struct {
	n *CondNode
}

// Node exposes the erased tree for evaluators, codecs and translators.
func (c Condition[R]) Node() *CondNode {
	if c.n == nil {
		return &CondNode{Kind: CondAlways}
	}
	return c.n
}

func cond[R any](n *CondNode) Condition[R] {
	return Condition[R]{n: n}
}

// FromNode re-wraps an erased node as a typed condition. The node must
// originate from a Condition over the same record type; used by callers
// that restructure trees, e.g. the pushdown partitioner in store.
func FromNode[R any](n *CondNode) Condition[R] {
	return cond[R](n)
}

// Always matches every record.
func Always[R any]() Condition[R] {
	return cond[R](&CondNode{Kind: CondAlways})
}

// Never matches no record.
func Never[R any]() Condition[R] {
	return cond[R](&CondNode{Kind: CondNever})
}

// And matches when every child matches. And() is Always.
func And[R any](cs ...Condition[R]) Condition[R] {
	nodes := make([]*CondNode, len(cs))
	for i, c := range cs {
		nodes[i] = c.Node()
	}
	return cond[R](&CondNode{Kind: CondAnd, Nodes: nodes})
}

// Or matches when at least one child matches. Or() is Never.
func Or[R any](cs ...Condition[R]) Condition[R] {
	nodes := make([]*CondNode, len(cs))
	for i, c := range cs {
		nodes[i] = c.Node()
	}
	return cond[R](&CondNode{Kind: CondOr, Nodes: nodes})
}

// Not negates a condition.
func Not[R any](c Condition[R]) Condition[R] {
	return cond[R](&CondNode{Kind: CondNot, Inner: c.Node()})
}

// And combines the receiver with another condition.
func (c Condition[R]) And(o Condition[R]) Condition[R] { return And(c, o) }

// Or combines the receiver with another condition.
func (c Condition[R]) Or(o Condition[R]) Condition[R] { return Or(c, o) }

// Not negates the receiver.
func (c Condition[R]) Not() Condition[R] { return Not(c) }

// Eq matches when the value at the path equals the literal.
func Eq[R, V any](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondEq, Path: p.steps, Value: v})
}

// Neq matches when the value at the path differs from the literal.
// Absent values never match (leaf predicates are false on "no value").
func Neq[R, V any](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondNeq, Path: p.steps, Value: v})
}

// Gt matches when the value at the path orders strictly after the literal.
func Gt[R any, V cmp.Ordered](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondGt, Path: p.steps, Value: v})
}

// Gte matches when the value orders at or after the literal.
func Gte[R any, V cmp.Ordered](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondGte, Path: p.steps, Value: v})
}

// Lt matches when the value orders strictly before the literal.
func Lt[R any, V cmp.Ordered](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondLt, Path: p.steps, Value: v})
}

// Lte matches when the value orders at or before the literal.
func Lte[R any, V cmp.Ordered](p Path[R, V], v V) Condition[R] {
	return cond[R](&CondNode{Kind: CondLte, Path: p.steps, Value: v})
}

// After matches when the instant at the path is strictly after t.
func After[R any](p Path[R, time.Time], t time.Time) Condition[R] {
	return cond[R](&CondNode{Kind: CondGt, Path: p.steps, Value: t})
}

// Before matches when the instant at the path is strictly before t.
func Before[R any](p Path[R, time.Time], t time.Time) Condition[R] {
	return cond[R](&CondNode{Kind: CondLt, Path: p.steps, Value: t})
}

// In matches when the value at the path equals any of the literals.
func In[R, V any](p Path[R, V], vs ...V) Condition[R] {
	return cond[R](&CondNode{Kind: CondIn, Path: p.steps, Values: erase(vs)})
}

// NotIn matches when the value equals none of the literals. Absent values
// never match.
func NotIn[R, V any](p Path[R, V], vs ...V) Condition[R] {
	return cond[R](&CondNode{Kind: CondNotIn, Path: p.steps, Values: erase(vs)})
}

// Contains matches when the string at the path contains the needle,
// ignoring case. ContainsMatchCase is the case-sensitive variant.
func Contains[R any](p Path[R, string], needle string) Condition[R] {
	return cond[R](&CondNode{Kind: CondContains, Path: p.steps, Needle: needle})
}

// ContainsMatchCase matches when the string contains the needle with exact
// case.
func ContainsMatchCase[R any](p Path[R, string], needle string) Condition[R] {
	return cond[R](&CondNode{Kind: CondContains, Path: p.steps, Needle: needle, MatchCase: true})
}

// Matches matches when the string at the path matches the regular
// expression. The caller compiles the pattern, so malformed patterns fail
// before a condition exists.
func Matches[R any](p Path[R, string], re *regexp.Regexp) Condition[R] {
	return cond[R](&CondNode{Kind: CondMatches, Path: p.steps, Pattern: re.String(), re: re})
}

// Search matches when the string at the path fuzzy-matches the query:
// both sides are tokenized on whitespace/punctuation and a query token
// matches when some value token is within maxDist edits. requireAll
// demands every query token match; otherwise one suffices.
func Search[R any](p Path[R, string], q string, maxDist int, requireAll bool) Condition[R] {
	return cond[R](&CondNode{Kind: CondSearch, Path: p.steps, Query: q, MaxDist: maxDist, RequireAll: requireAll})
}

// All matches when every element of the collection satisfies the inner
// condition. An empty collection matches vacuously.
func All[R, E any](p Path[R, []E], inner Condition[E]) Condition[R] {
	return cond[R](&CondNode{Kind: CondAll, Path: p.steps, Inner: inner.Node(), iter: sliceIter[E]})
}

// Any matches when at least one element satisfies the inner condition.
// An empty or absent collection never matches.
func Any[R, E any](p Path[R, []E], inner Condition[E]) Condition[R] {
	return cond[R](&CondNode{Kind: CondAny, Path: p.steps, Inner: inner.Node(), iter: sliceIter[E]})
}

// WithinDistance matches when the great-circle distance from the point at
// the path to center is at most max meters.
func WithinDistance[R any](p Path[R, Point], center Point, max float64) Condition[R] {
	return cond[R](&CondNode{Kind: CondWithinDistance, Path: p.steps, Center: center, Min: 0, Max: max})
}

// DistanceInRange matches when the great-circle distance lies in
// [min, max] meters. math.Inf(1) leaves the upper side unbounded.
func DistanceInRange[R any](p Path[R, Point], center Point, min, max float64) Condition[R] {
	return cond[R](&CondNode{Kind: CondWithinDistance, Path: p.steps, Center: center, Min: min, Max: max})
}

// Integer constrains bitwise predicates and masks to integer field types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// BitsAllSet matches when every bit of the mask is set in the value.
func BitsAllSet[R any, V Integer](p Path[R, V], mask V) Condition[R] {
	return cond[R](&CondNode{Kind: CondBitsAllSet, Path: p.steps, Mask: uint64(mask)})
}

// BitsAnySet matches when at least one bit of the mask is set.
func BitsAnySet[R any, V Integer](p Path[R, V], mask V) Condition[R] {
	return cond[R](&CondNode{Kind: CondBitsAnySet, Path: p.steps, Mask: uint64(mask)})
}

// BitsAllClear matches when no bit of the mask is set.
func BitsAllClear[R any, V Integer](p Path[R, V], mask V) Condition[R] {
	return cond[R](&CondNode{Kind: CondBitsAllClear, Path: p.steps, Mask: uint64(mask)})
}

// IsNil matches when the optional at the path is absent, or when the path
// itself is severed by an earlier absent optional.
func IsNil[R, V any](p Path[R, *V]) Condition[R] {
	return cond[R](&CondNode{Kind: CondIsNil, Path: p.steps})
}

// NotNil matches when the optional at the path holds a value.
func NotNil[R, V any](p Path[R, *V]) Condition[R] {
	return cond[R](&CondNode{Kind: CondNotNil, Path: p.steps})
}

func erase[V any](vs []V) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
