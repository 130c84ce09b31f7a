// query/evaluate.go
package query

import (
	"reflect"
	"strings"
	"time"
)

/*
 * Condition evaluation.
 *
 * Eval checks a condition against a concrete record with short-circuit
 * semantics: And stops at the first false child, Or at the first true one.
 * Leaf predicates resolve their path; "no value" (a severed optional, a
 * missing map key) makes the predicate false, with three deliberate
 * exceptions: All over an empty collection is vacuously true, the null
 * checks (IsNil) are true exactly when resolution yields no value, and
 * equality against a nil literal treats a severed path the same as an
 * explicit nil.
 *
 * Comparison is type-aware with numeric mixing: int/uint/float values
 * compare by magnitude regardless of width, strings lexicographically,
 * instants chronologically. Evaluation is total for well-formed trees;
 * nothing here returns an error or panics on structurally compatible
 * records.
 */

// Eval reports whether the record satisfies the condition.
func Eval[R any](c Condition[R], r R) bool {
	return evalNode(c.Node(), r)
}

func evalNode(n *CondNode, rec any) bool {
	switch n.Kind {
	case CondAlways:
		return true
	case CondNever:
		return false
	case CondAnd:
		for _, child := range n.Nodes {
			if !evalNode(child, rec) {
				return false
			}
		}
		return true
	case CondOr:
		for _, child := range n.Nodes {
			if evalNode(child, rec) {
				return true
			}
		}
		return false
	case CondNot:
		return !evalNode(n.Inner, rec)
	case CondIsNil:
		v, ok := resolveSteps(n.Path, rec)
		return !ok || isNilValue(v)
	case CondNotNil:
		v, ok := resolveSteps(n.Path, rec)
		return ok && !isNilValue(v)
	}

	v, ok := resolveSteps(n.Path, rec)
	if !ok {
		// Absent value: equality against an explicit nil treats a
		// severed path as null; every other leaf is false, including
		// the vacuous-truth case, which needs a present (empty)
		// collection.
		if n.Kind == CondEq && isNilValue(n.Value) {
			return true
		}
		return false
	}

	switch n.Kind {
	case CondEq:
		return compareEqual(v, n.Value)
	case CondNeq:
		return !compareEqual(v, n.Value)
	case CondGt:
		c, ok := compareOrdered(v, n.Value)
		return ok && c > 0
	case CondGte:
		c, ok := compareOrdered(v, n.Value)
		return ok && c >= 0
	case CondLt:
		c, ok := compareOrdered(v, n.Value)
		return ok && c < 0
	case CondLte:
		c, ok := compareOrdered(v, n.Value)
		return ok && c <= 0
	case CondIn:
		return containsEqual(n.Values, v)
	case CondNotIn:
		return !containsEqual(n.Values, v)
	case CondContains:
		s, ok := v.(string)
		if !ok {
			return false
		}
		if n.MatchCase {
			return strings.Contains(s, n.Needle)
		}
		return strings.Contains(strings.ToLower(s), strings.ToLower(n.Needle))
	case CondMatches:
		s, ok := v.(string)
		if !ok || n.re == nil {
			return false
		}
		return n.re.MatchString(s)
	case CondSearch:
		s, ok := v.(string)
		if !ok {
			return false
		}
		return searchMatch(s, n.Query, n.MaxDist, n.RequireAll)
	case CondAll:
		if n.iter == nil {
			return false
		}
		for _, e := range n.iter(v) {
			if !evalNode(n.Inner, e) {
				return false
			}
		}
		// Vacuous truth: an empty collection satisfies "all".
		return true
	case CondAny:
		if n.iter == nil {
			return false
		}
		for _, e := range n.iter(v) {
			if evalNode(n.Inner, e) {
				return true
			}
		}
		return false
	case CondWithinDistance:
		p, ok := v.(Point)
		if !ok {
			return false
		}
		d := Distance(p, n.Center)
		return d >= n.Min && d <= n.Max
	case CondBitsAllSet:
		u, ok := toUint64(v)
		return ok && u&n.Mask == n.Mask
	case CondBitsAnySet:
		u, ok := toUint64(v)
		return ok && u&n.Mask != 0
	case CondBitsAllClear:
		u, ok := toUint64(v)
		return ok && u&n.Mask == 0
	default:
		return false
	}
}

// compareEqual performs equality comparison with numeric width mixing so
// that an int64 decoded from the wire equals the int it was built from.
// Composite values fall back to deep equality.
func compareEqual(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	if isNilValue(a) && isNilValue(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compareOrdered performs three-way comparison. The boolean reports
// whether the operands were comparable at all.
func compareOrdered(a, b any) (int, bool) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, true
		case na > nb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb), true
		}
		return 0, false
	}
	return 0, false
}

func containsEqual(set []any, v any) bool {
	for _, e := range set {
		if compareEqual(v, e) {
			return true
		}
	}
	return false
}

// asNumbers attempts to convert both values to float64 for numeric
// comparison across integer widths and float types.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
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

func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int8:
		return uint64(n), true
	case int16:
		return uint64(n), true
	case int32:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint:
		return uint64(n), true
	case uint8:
		return uint64(n), true
	case uint16:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case uint64:
		return n, true
	default:
		return 0, false
	}
}

// isNilValue reports whether an erased value is nil, including typed nil
// pointers, maps and slices boxed in an interface.
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
