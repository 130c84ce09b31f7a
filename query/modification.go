// query/modification.go
package query

/*
 * Modification expression trees.
 *
 * A Modification[R] describes a pure transformation of a record: applying
 * one returns a new record and never mutates the input. The typed
 * constructors pin path/value compatibility at compile time (numeric
 * operators require Number, string append requires a string path, and so
 * on); the erased ModNode tree is what the applier, codec and backend
 * translators consume.
 *
 * Backends are free to run the equivalent native operation (an atomic
 * increment, a server-side array push) instead of materializing copies;
 * the applier defines the semantics they must preserve.
 */

// ModKind discriminates modification node variants.
type ModKind int

const (
	ModSet ModKind = iota
	ModInc
	ModMul
	ModAtMost
	ModAtLeast
	ModAppendStr
	ModPush
	ModPullWhere
	ModDropFirst
	ModDropLast
	ModForEach
	ModForEachIf
	ModMergeMap
	ModDropKeys
	ModModifyKey
	ModChain
)

var modKindNames = map[ModKind]string{
	ModSet:       "set",
	ModInc:       "inc",
	ModMul:       "mul",
	ModAtMost:    "atMost",
	ModAtLeast:   "atLeast",
	ModAppendStr: "appendStr",
	ModPush:      "push",
	ModPullWhere: "pullWhere",
	ModDropFirst: "dropFirst",
	ModDropLast:  "dropLast",
	ModForEach:   "forEach",
	ModForEachIf: "forEachIf",
	ModMergeMap:  "mergeMap",
	ModDropKeys:  "dropKeys",
	ModModifyKey: "modifyKey",
	ModChain:     "chain",
}

// String returns the wire discriminator for the kind.
func (k ModKind) String() string {
	if n, ok := modKindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ModNode is one node of a modification tree. Which fields are meaningful
// depends on Kind. Nodes must be treated as read-only.
type ModNode struct {
	Kind ModKind

	Path []Step // target of the leaf operation

	Value   any            // Set/Inc/Mul/AtMost/AtLeast literal; AppendStr suffix (string)
	Items   []any          // Push
	Entries map[string]any // MergeMap
	Keys    []string       // DropKeys

	When  *CondNode  // PullWhere/ForEachIf element condition
	Inner *ModNode   // ForEach/ForEachIf/ModifyKey
	Mods  []*ModNode // Chain, applied left to right

	iter  func(any) []any
	mk    func([]any) any
	merge func(any, map[string]any) any
	drop  func(any, []string) any
	num   func(ModKind, any, any) any // numeric ops, type-preserving
}

// Modification is a composable transformation of records of type R.
type Modification[R any] struct {
	n *ModNode
}

// Node exposes the erased tree for appliers, codecs and translators.
func (m Modification[R]) Node() *ModNode {
	if m.n == nil {
		return &ModNode{Kind: ModChain}
	}
	return m.n
}

func mod[R any](n *ModNode) Modification[R] {
	return Modification[R]{n: n}
}

// Set assigns the literal to the addressed leaf. Idempotent.
func Set[R, V any](p Path[R, V], v V) Modification[R] {
	return mod[R](&ModNode{Kind: ModSet, Path: p.steps, Value: v})
}

// Number constrains arithmetic modifications to numeric field types.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Inc adds delta to the addressed numeric leaf. Absent optionals stay
// absent. Deliberately not idempotent, unlike Set.
func Inc[R any, V Number](p Path[R, V], delta V) Modification[R] {
	return mod[R](&ModNode{Kind: ModInc, Path: p.steps, Value: delta, num: numOp[V]})
}

// Mul multiplies the addressed numeric leaf by factor.
func Mul[R any, V Number](p Path[R, V], factor V) Modification[R] {
	return mod[R](&ModNode{Kind: ModMul, Path: p.steps, Value: factor, num: numOp[V]})
}

// AtMost caps the addressed numeric leaf at bound.
func AtMost[R any, V Number](p Path[R, V], bound V) Modification[R] {
	return mod[R](&ModNode{Kind: ModAtMost, Path: p.steps, Value: bound, num: numOp[V]})
}

// AtLeast raises the addressed numeric leaf to at least bound.
func AtLeast[R any, V Number](p Path[R, V], bound V) Modification[R] {
	return mod[R](&ModNode{Kind: ModAtLeast, Path: p.steps, Value: bound, num: numOp[V]})
}

// AppendStr appends a suffix to the addressed string leaf.
func AppendStr[R any](p Path[R, string], suffix string) Modification[R] {
	return mod[R](&ModNode{Kind: ModAppendStr, Path: p.steps, Value: suffix})
}

// Push appends items to the addressed collection, preserving order.
func Push[R, E any](p Path[R, []E], items ...E) Modification[R] {
	return mod[R](&ModNode{
		Kind: ModPush, Path: p.steps, Items: erase(items),
		iter: sliceIter[E], mk: sliceMake[E],
	})
}

// PullWhere removes every element matching the condition.
func PullWhere[R, E any](p Path[R, []E], matching Condition[E]) Modification[R] {
	return mod[R](&ModNode{
		Kind: ModPullWhere, Path: p.steps, When: matching.Node(),
		iter: sliceIter[E], mk: sliceMake[E],
	})
}

// DropFirst removes the first element. Empty collections are untouched.
func DropFirst[R, E any](p Path[R, []E]) Modification[R] {
	return mod[R](&ModNode{Kind: ModDropFirst, Path: p.steps, iter: sliceIter[E], mk: sliceMake[E]})
}

// DropLast removes the last element. Empty collections are untouched.
func DropLast[R, E any](p Path[R, []E]) Modification[R] {
	return mod[R](&ModNode{Kind: ModDropLast, Path: p.steps, iter: sliceIter[E], mk: sliceMake[E]})
}

// ForEach applies the inner modification to every element independently.
func ForEach[R, E any](p Path[R, []E], inner Modification[E]) Modification[R] {
	return mod[R](&ModNode{
		Kind: ModForEach, Path: p.steps, Inner: inner.Node(),
		iter: sliceIter[E], mk: sliceMake[E],
	})
}

// ForEachIf applies the inner modification to every element matching the
// condition, leaving the others untouched.
func ForEachIf[R, E any](p Path[R, []E], when Condition[E], inner Modification[E]) Modification[R] {
	return mod[R](&ModNode{
		Kind: ModForEachIf, Path: p.steps, When: when.Node(), Inner: inner.Node(),
		iter: sliceIter[E], mk: sliceMake[E],
	})
}

// MergeMap sets every entry into the addressed map, creating keys as
// needed.
func MergeMap[R, V any](p Path[R, map[string]V], entries map[string]V) Modification[R] {
	ents := make(map[string]any, len(entries))
	for k, v := range entries {
		ents[k] = v
	}
	return mod[R](&ModNode{
		Kind: ModMergeMap, Path: p.steps, Entries: ents,
		merge: mapMerge[V], drop: mapDrop[V],
	})
}

// DropKeys removes the listed keys from the addressed map.
func DropKeys[R, V any](p Path[R, map[string]V], keys ...string) Modification[R] {
	ks := make([]string, len(keys))
	copy(ks, keys)
	return mod[R](&ModNode{
		Kind: ModDropKeys, Path: p.steps, Keys: ks,
		merge: mapMerge[V], drop: mapDrop[V],
	})
}

// ModifyKey applies the inner modification to the value at the key.
// A missing key is a no-op; the entry is never created. The key travels
// as the trailing step of the node's path.
func ModifyKey[R, V any](p Path[R, map[string]V], key string, inner Modification[V]) Modification[R] {
	kp := Key(p, key)
	return mod[R](&ModNode{Kind: ModModifyKey, Path: kp.steps, Inner: inner.Node()})
}

// Chain threads the record through each modification left to right.
// Chain() is the identity modification.
func Chain[R any](ms ...Modification[R]) Modification[R] {
	nodes := make([]*ModNode, len(ms))
	for i, m := range ms {
		nodes[i] = m.Node()
	}
	return mod[R](&ModNode{Kind: ModChain, Mods: nodes})
}

// Then appends another modification after the receiver.
func (m Modification[R]) Then(o Modification[R]) Modification[R] { return Chain(m, o) }

// numOp performs a type-preserving arithmetic step. Both operands carry
// the path's static type V, so the assertions cannot fail for trees built
// through the typed constructors or the validating decoder.
func numOp[V Number](kind ModKind, old, operand any) any {
	a := old.(V)
	b := operand.(V)
	switch kind {
	case ModInc:
		return a + b
	case ModMul:
		return a * b
	case ModAtMost:
		if a > b {
			return b
		}
		return a
	case ModAtLeast:
		if a < b {
			return b
		}
		return a
	default:
		return a
	}
}
