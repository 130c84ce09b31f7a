// query/codec.go
package query

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
)

/*
 * Serialization codec.
 *
 * Conditions, modifications and paths encode to a self-describing JSON
 * tagged union: every node carries an "op" discriminator, every literal a
 * value-kind tag validated against the path's declared type on decode.
 * Encoding is deterministic (fixed wire-struct field order, sorted map
 * keys from encoding/json), so identical trees produce identical bytes
 * and encoded queries can be cached or deduplicated by content.
 *
 * Evolution rule: new operators add new "op" values and new wire fields;
 * the encoding of existing variants never changes, so persisted
 * expressions stay decodable across versions.
 *
 * Decoding is schema-driven: property steps are resolved against the
 * accessor registry, which restores the typed closures and lets every
 * literal be materialized as the path's static Go type. Unknown
 * discriminators, unregistered fields and tag mismatches surface as
 * *DecodeError, never as a panic or a silently defaulted node.
 */

type stepWire struct {
	F   string  `json:"f,omitempty"`   // property name
	Opt bool    `json:"opt,omitempty"` // optional unwrap
	K   *string `json:"k,omitempty"`   // map key
}

type litWire struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

type condWire struct {
	Op         string      `json:"op"`
	Path       []stepWire  `json:"path,omitempty"`
	Value      *litWire    `json:"value,omitempty"`
	Values     []*litWire  `json:"values,omitempty"`
	Needle     string      `json:"needle,omitempty"`
	MatchCase  bool        `json:"matchCase,omitempty"`
	Pattern    string      `json:"pattern,omitempty"`
	Query      string      `json:"query,omitempty"`
	MaxDist    int         `json:"maxDist,omitempty"`
	RequireAll bool        `json:"requireAll,omitempty"`
	Center     *Point      `json:"center,omitempty"`
	Min        *float64    `json:"min,omitempty"`
	Max        *float64    `json:"max,omitempty"`
	Mask       uint64      `json:"mask,omitempty"`
	Cond       *condWire   `json:"cond,omitempty"`
	Conds      []*condWire `json:"conds,omitempty"`
}

type modWire struct {
	Op      string              `json:"op"`
	Path    []stepWire          `json:"path,omitempty"`
	Value   *litWire            `json:"value,omitempty"`
	Items   []*litWire          `json:"items,omitempty"`
	Entries map[string]*litWire `json:"entries,omitempty"`
	Keys    []string            `json:"keys,omitempty"`
	When    *condWire           `json:"when,omitempty"`
	Mod     *modWire            `json:"mod,omitempty"`
	Mods    []*modWire          `json:"mods,omitempty"`
}

var (
	condKindByName = map[string]CondKind{}
	modKindByName  = map[string]ModKind{}
)

func init() {
	for k, n := range condKindNames {
		condKindByName[n] = k
	}
	for k, n := range modKindNames {
		modKindByName[n] = k
	}
}

// EncodeCondition serializes a condition tree to its canonical JSON form.
func EncodeCondition[R any](c Condition[R]) ([]byte, error) {
	w, err := encodeCondNode(c.Node())
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// DecodeCondition reconstructs a condition over R from its serialized
// form, validating every path and literal against R's registered fields.
func DecodeCondition[R any](data []byte) (Condition[R], error) {
	var w condWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Condition[R]{}, decodeErr("", fmt.Errorf("%w: %v", ErrBadLiteral, err))
	}
	n, err := decodeCondNode(reflect.TypeOf((*(R))(nil)).Elem(), &w, "")
	if err != nil {
		return Condition[R]{}, err
	}
	return cond[R](n), nil
}

// EncodeModification serializes a modification tree to its canonical JSON
// form.
func EncodeModification[R any](m Modification[R]) ([]byte, error) {
	w, err := encodeModNode(m.Node())
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// DecodeModification reconstructs a modification over R from its
// serialized form.
func DecodeModification[R any](data []byte) (Modification[R], error) {
	var w modWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Modification[R]{}, decodeErr("", fmt.Errorf("%w: %v", ErrBadLiteral, err))
	}
	n, err := decodeModNode(reflect.TypeOf((*(R))(nil)).Elem(), &w, "")
	if err != nil {
		return Modification[R]{}, err
	}
	return mod[R](n), nil
}

// EncodePath serializes a field path.
func EncodePath[R, V any](p Path[R, V]) ([]byte, error) {
	return json.Marshal(encodeSteps(p.steps))
}

// DecodePath reconstructs a typed field path, failing when the serialized
// steps do not lead to a V inside R.
func DecodePath[R, V any](data []byte) (Path[R, V], error) {
	var ws []stepWire
	if err := json.Unmarshal(data, &ws); err != nil {
		return Path[R, V]{}, decodeErr("", fmt.Errorf("%w: %v", ErrBadLiteral, err))
	}
	steps, leaf, err := decodeSteps(reflect.TypeOf((*(R))(nil)).Elem(), ws, "")
	if err != nil {
		return Path[R, V]{}, err
	}
	if leaf != reflect.TypeOf((*(V))(nil)).Elem() {
		return Path[R, V]{}, decodeErrf("", ErrTypeMismatch, "path resolves to %v, want %v", leaf, reflect.TypeOf((*(V))(nil)).Elem())
	}
	return Path[R, V]{steps: steps}, nil
}

func encodeSteps(steps []Step) []stepWire {
	out := make([]stepWire, len(steps))
	for i, st := range steps {
		switch st.Kind {
		case StepProperty:
			out[i] = stepWire{F: st.Name}
		case StepOptional:
			out[i] = stepWire{Opt: true}
		case StepKey:
			k := st.Key
			out[i] = stepWire{K: &k}
		}
	}
	return out
}

// decodeSteps rebuilds a step sequence against the accessor registry.
// Returns the steps, the leaf value type, and the leaf's field definition
// (nil when the path ends in an unwrap or key step).
func decodeSteps(root reflect.Type, ws []stepWire, pos string) ([]Step, reflect.Type, error) {
	cur := root
	steps := make([]Step, 0, len(ws))

	for i, sw := range ws {
		spos := fmt.Sprintf("%s.path[%d]", pos, i)
		switch {
		case sw.F != "":
			d, ok := lookupField(cur, sw.F)
			if !ok {
				return nil, nil, decodeErrf(spos, ErrUnknownField, "%q on %v", sw.F, cur)
			}
			steps = append(steps, d.step)
			cur = d.typ
		case sw.Opt:
			vw := viewFor(cur)
			if vw == nil || vw.optStep == nil {
				return nil, nil, decodeErrf(spos, ErrTypeMismatch, "unwrap of non-optional %v", cur)
			}
			steps = append(steps, *vw.optStep)
			cur = vw.elem
		case sw.K != nil:
			vw := viewFor(cur)
			if vw == nil || vw.keyStep == nil {
				return nil, nil, decodeErrf(spos, ErrTypeMismatch, "key access on non-map %v", cur)
			}
			steps = append(steps, vw.keyStep(*sw.K))
			cur = vw.elem
		default:
			return nil, nil, decodeErrf(spos, ErrUnknownKind, "empty path step")
		}
	}
	return steps, cur, nil
}

func encodeLiteral(v any) (*litWire, error) {
	if isNilValue(v) && v == nil {
		return &litWire{T: "null"}, nil
	}
	kind := KindOf(reflect.TypeOf(v))
	if kind == KindInvalid {
		return nil, fmt.Errorf("%w: unsupported literal type %T", ErrBadLiteral, v)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLiteral, err)
	}
	return &litWire{T: kind.Tag(), V: raw}, nil
}

func decodeLiteral(typ reflect.Type, lw *litWire, pos string) (any, error) {
	if lw == nil || lw.T == "null" {
		return reflect.Zero(typ).Interface(), nil
	}
	if want := KindOf(typ).Tag(); lw.T != want {
		return nil, decodeErrf(pos, ErrTypeMismatch, "literal tagged %q, path declares %q", lw.T, want)
	}
	ptr := reflect.New(typ)
	if err := json.Unmarshal(lw.V, ptr.Interface()); err != nil {
		return nil, decodeErrf(pos, ErrBadLiteral, "%v", err)
	}
	return ptr.Elem().Interface(), nil
}

func encodeCondNode(n *CondNode) (*condWire, error) {
	w := &condWire{Op: n.Kind.String()}
	if _, ok := condKindByName[w.Op]; !ok {
		return nil, fmt.Errorf("%w: condition kind %d", ErrUnknownKind, n.Kind)
	}

	switch n.Kind {
	case CondAlways, CondNever:
	case CondAnd, CondOr:
		w.Conds = make([]*condWire, len(n.Nodes))
		for i, child := range n.Nodes {
			cw, err := encodeCondNode(child)
			if err != nil {
				return nil, err
			}
			w.Conds[i] = cw
		}
	case CondNot:
		cw, err := encodeCondNode(n.Inner)
		if err != nil {
			return nil, err
		}
		w.Cond = cw
	case CondEq, CondNeq, CondGt, CondGte, CondLt, CondLte:
		w.Path = encodeSteps(n.Path)
		lw, err := encodeLiteral(n.Value)
		if err != nil {
			return nil, err
		}
		w.Value = lw
	case CondIn, CondNotIn:
		w.Path = encodeSteps(n.Path)
		w.Values = make([]*litWire, len(n.Values))
		for i, v := range n.Values {
			lw, err := encodeLiteral(v)
			if err != nil {
				return nil, err
			}
			w.Values[i] = lw
		}
	case CondContains:
		w.Path = encodeSteps(n.Path)
		w.Needle = n.Needle
		w.MatchCase = n.MatchCase
	case CondMatches:
		w.Path = encodeSteps(n.Path)
		w.Pattern = n.Pattern
	case CondSearch:
		w.Path = encodeSteps(n.Path)
		w.Query = n.Query
		w.MaxDist = n.MaxDist
		w.RequireAll = n.RequireAll
	case CondAll, CondAny:
		w.Path = encodeSteps(n.Path)
		cw, err := encodeCondNode(n.Inner)
		if err != nil {
			return nil, err
		}
		w.Cond = cw
	case CondWithinDistance:
		w.Path = encodeSteps(n.Path)
		c := n.Center
		w.Center = &c
		if n.Min != 0 {
			m := n.Min
			w.Min = &m
		}
		if !math.IsInf(n.Max, 1) {
			m := n.Max
			w.Max = &m
		}
	case CondBitsAllSet, CondBitsAnySet, CondBitsAllClear:
		w.Path = encodeSteps(n.Path)
		w.Mask = n.Mask
	case CondIsNil, CondNotNil:
		w.Path = encodeSteps(n.Path)
	}
	return w, nil
}

func decodeCondNode(root reflect.Type, w *condWire, pos string) (*CondNode, error) {
	kind, ok := condKindByName[w.Op]
	if !ok {
		return nil, decodeErrf(pos, ErrUnknownKind, "%q", w.Op)
	}
	n := &CondNode{Kind: kind}

	switch kind {
	case CondAlways, CondNever:
		return n, nil
	case CondAnd, CondOr:
		n.Nodes = make([]*CondNode, len(w.Conds))
		for i, cw := range w.Conds {
			child, err := decodeCondNode(root, cw, fmt.Sprintf("%s.%s[%d]", pos, w.Op, i))
			if err != nil {
				return nil, err
			}
			n.Nodes[i] = child
		}
		return n, nil
	case CondNot:
		if w.Cond == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "not without operand")
		}
		inner, err := decodeCondNode(root, w.Cond, pos+".not")
		if err != nil {
			return nil, err
		}
		n.Inner = inner
		return n, nil
	}

	steps, leaf, err := decodeSteps(root, w.Path, pos)
	if err != nil {
		return nil, err
	}
	n.Path = steps
	leafKind := KindOf(leaf)

	switch kind {
	case CondEq, CondNeq:
		v, err := decodeLiteral(leaf, w.Value, pos+".value")
		if err != nil {
			return nil, err
		}
		n.Value = v
	case CondGt, CondGte, CondLt, CondLte:
		switch leafKind {
		case KindInt, KindUint, KindFloat, KindString, KindTime:
		default:
			return nil, decodeErrf(pos, ErrTypeMismatch, "%s on %v", w.Op, leaf)
		}
		v, err := decodeLiteral(leaf, w.Value, pos+".value")
		if err != nil {
			return nil, err
		}
		n.Value = v
	case CondIn, CondNotIn:
		n.Values = make([]any, len(w.Values))
		for i, lw := range w.Values {
			v, err := decodeLiteral(leaf, lw, fmt.Sprintf("%s.values[%d]", pos, i))
			if err != nil {
				return nil, err
			}
			n.Values[i] = v
		}
	case CondContains:
		if leafKind != KindString {
			return nil, decodeErrf(pos, ErrTypeMismatch, "contains on %v", leaf)
		}
		n.Needle = w.Needle
		n.MatchCase = w.MatchCase
	case CondMatches:
		if leafKind != KindString {
			return nil, decodeErrf(pos, ErrTypeMismatch, "matches on %v", leaf)
		}
		re, err := regexp.Compile(w.Pattern)
		if err != nil {
			return nil, decodeErrf(pos, ErrBadPattern, "%v", err)
		}
		n.Pattern = w.Pattern
		n.re = re
	case CondSearch:
		if leafKind != KindString {
			return nil, decodeErrf(pos, ErrTypeMismatch, "search on %v", leaf)
		}
		n.Query = w.Query
		n.MaxDist = w.MaxDist
		n.RequireAll = w.RequireAll
	case CondAll, CondAny:
		vw := viewFor(leaf)
		if vw == nil || vw.iter == nil {
			return nil, decodeErrf(pos, ErrTypeMismatch, "%s on non-collection %v", w.Op, leaf)
		}
		if w.Cond == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "%s without inner condition", w.Op)
		}
		inner, err := decodeCondNode(vw.elem, w.Cond, pos+"."+w.Op)
		if err != nil {
			return nil, err
		}
		n.Inner = inner
		n.iter = vw.iter
	case CondWithinDistance:
		if leafKind != KindPoint {
			return nil, decodeErrf(pos, ErrTypeMismatch, "within on %v", leaf)
		}
		if w.Center != nil {
			n.Center = *w.Center
		}
		if w.Min != nil {
			n.Min = *w.Min
		}
		n.Max = math.Inf(1)
		if w.Max != nil {
			n.Max = *w.Max
		}
	case CondBitsAllSet, CondBitsAnySet, CondBitsAllClear:
		if leafKind != KindInt && leafKind != KindUint {
			return nil, decodeErrf(pos, ErrTypeMismatch, "%s on %v", w.Op, leaf)
		}
		n.Mask = w.Mask
	case CondIsNil, CondNotNil:
		// Path-only variants.
	}
	return n, nil
}

func encodeModNode(n *ModNode) (*modWire, error) {
	w := &modWire{Op: n.Kind.String()}
	if _, ok := modKindByName[w.Op]; !ok {
		return nil, fmt.Errorf("%w: modification kind %d", ErrUnknownKind, n.Kind)
	}

	switch n.Kind {
	case ModChain:
		w.Mods = make([]*modWire, len(n.Mods))
		for i, m := range n.Mods {
			mw, err := encodeModNode(m)
			if err != nil {
				return nil, err
			}
			w.Mods[i] = mw
		}
		return w, nil
	}

	w.Path = encodeSteps(n.Path)

	switch n.Kind {
	case ModSet, ModInc, ModMul, ModAtMost, ModAtLeast, ModAppendStr:
		lw, err := encodeLiteral(n.Value)
		if err != nil {
			return nil, err
		}
		w.Value = lw
	case ModPush:
		w.Items = make([]*litWire, len(n.Items))
		for i, it := range n.Items {
			lw, err := encodeLiteral(it)
			if err != nil {
				return nil, err
			}
			w.Items[i] = lw
		}
	case ModPullWhere:
		cw, err := encodeCondNode(n.When)
		if err != nil {
			return nil, err
		}
		w.When = cw
	case ModDropFirst, ModDropLast:
	case ModForEach:
		mw, err := encodeModNode(n.Inner)
		if err != nil {
			return nil, err
		}
		w.Mod = mw
	case ModForEachIf:
		cw, err := encodeCondNode(n.When)
		if err != nil {
			return nil, err
		}
		mw, err := encodeModNode(n.Inner)
		if err != nil {
			return nil, err
		}
		w.When = cw
		w.Mod = mw
	case ModMergeMap:
		w.Entries = make(map[string]*litWire, len(n.Entries))
		for k, v := range n.Entries {
			lw, err := encodeLiteral(v)
			if err != nil {
				return nil, err
			}
			w.Entries[k] = lw
		}
	case ModDropKeys:
		w.Keys = n.Keys
	case ModModifyKey:
		mw, err := encodeModNode(n.Inner)
		if err != nil {
			return nil, err
		}
		w.Mod = mw
	}
	return w, nil
}

func decodeModNode(root reflect.Type, w *modWire, pos string) (*ModNode, error) {
	kind, ok := modKindByName[w.Op]
	if !ok {
		return nil, decodeErrf(pos, ErrUnknownKind, "%q", w.Op)
	}
	n := &ModNode{Kind: kind}

	if kind == ModChain {
		n.Mods = make([]*ModNode, len(w.Mods))
		for i, mw := range w.Mods {
			m, err := decodeModNode(root, mw, fmt.Sprintf("%s.chain[%d]", pos, i))
			if err != nil {
				return nil, err
			}
			n.Mods[i] = m
		}
		return n, nil
	}

	steps, leaf, err := decodeSteps(root, w.Path, pos)
	if err != nil {
		return nil, err
	}
	n.Path = steps
	leafKind := KindOf(leaf)

	vw := viewFor(leaf)
	needCollection := func() error {
		if vw == nil || vw.iter == nil {
			return decodeErrf(pos, ErrTypeMismatch, "%s on non-collection %v", w.Op, leaf)
		}
		n.iter = vw.iter
		n.mk = vw.mk
		return nil
	}

	switch kind {
	case ModSet:
		v, err := decodeLiteral(leaf, w.Value, pos+".value")
		if err != nil {
			return nil, err
		}
		n.Value = v
	case ModInc, ModMul, ModAtMost, ModAtLeast:
		switch leafKind {
		case KindInt, KindUint, KindFloat:
		default:
			return nil, decodeErrf(pos, ErrTypeMismatch, "%s on non-numeric %v", w.Op, leaf)
		}
		v, err := decodeLiteral(leaf, w.Value, pos+".value")
		if err != nil {
			return nil, err
		}
		n.Value = v
		n.num = numOpAny
	case ModAppendStr:
		if leafKind != KindString {
			return nil, decodeErrf(pos, ErrTypeMismatch, "appendStr on %v", leaf)
		}
		v, err := decodeLiteral(leaf, w.Value, pos+".value")
		if err != nil {
			return nil, err
		}
		n.Value = v
	case ModPush:
		if err := needCollection(); err != nil {
			return nil, err
		}
		n.Items = make([]any, len(w.Items))
		for i, lw := range w.Items {
			v, err := decodeLiteral(vw.elem, lw, fmt.Sprintf("%s.items[%d]", pos, i))
			if err != nil {
				return nil, err
			}
			n.Items[i] = v
		}
	case ModPullWhere:
		if err := needCollection(); err != nil {
			return nil, err
		}
		if w.When == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "pullWhere without condition")
		}
		when, err := decodeCondNode(vw.elem, w.When, pos+".when")
		if err != nil {
			return nil, err
		}
		n.When = when
	case ModDropFirst, ModDropLast:
		if err := needCollection(); err != nil {
			return nil, err
		}
	case ModForEach:
		if err := needCollection(); err != nil {
			return nil, err
		}
		if w.Mod == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "forEach without inner modification")
		}
		inner, err := decodeModNode(vw.elem, w.Mod, pos+".forEach")
		if err != nil {
			return nil, err
		}
		n.Inner = inner
	case ModForEachIf:
		if err := needCollection(); err != nil {
			return nil, err
		}
		if w.When == nil || w.Mod == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "forEachIf needs condition and modification")
		}
		when, err := decodeCondNode(vw.elem, w.When, pos+".when")
		if err != nil {
			return nil, err
		}
		inner, err := decodeModNode(vw.elem, w.Mod, pos+".forEachIf")
		if err != nil {
			return nil, err
		}
		n.When = when
		n.Inner = inner
	case ModMergeMap, ModDropKeys:
		if vw == nil || vw.merge == nil {
			return nil, decodeErrf(pos, ErrTypeMismatch, "%s on non-map %v", w.Op, leaf)
		}
		n.merge = vw.merge
		n.drop = vw.drop
		if kind == ModMergeMap {
			n.Entries = make(map[string]any, len(w.Entries))
			for k, lw := range w.Entries {
				v, err := decodeLiteral(vw.elem, lw, fmt.Sprintf("%s.entries[%s]", pos, k))
				if err != nil {
					return nil, err
				}
				n.Entries[k] = v
			}
		} else {
			n.Keys = w.Keys
		}
	case ModModifyKey:
		if len(steps) == 0 || steps[len(steps)-1].Kind != StepKey {
			return nil, decodeErrf(pos, ErrTypeMismatch, "modifyKey path must end in a key step")
		}
		if w.Mod == nil {
			return nil, decodeErrf(pos, ErrBadLiteral, "modifyKey without inner modification")
		}
		inner, err := decodeModNode(leaf, w.Mod, pos+".modifyKey")
		if err != nil {
			return nil, err
		}
		n.Inner = inner
	}
	return n, nil
}

// numOpAny is the decode-side arithmetic: type-preserving like numOp but
// dispatched on the runtime kind, since decoded trees carry no type
// parameters. Operands share the path's materialized type.
func numOpAny(kind ModKind, old, operand any) any {
	ov := reflect.ValueOf(old)
	pv := reflect.ValueOf(operand)
	switch ov.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		r := intArith(kind, ov.Int(), pv.Int())
		return reflect.ValueOf(r).Convert(ov.Type()).Interface()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		r := uintArith(kind, ov.Uint(), pv.Uint())
		return reflect.ValueOf(r).Convert(ov.Type()).Interface()
	case reflect.Float32, reflect.Float64:
		r := floatArith(kind, ov.Float(), pv.Float())
		return reflect.ValueOf(r).Convert(ov.Type()).Interface()
	default:
		return old
	}
}

func intArith(kind ModKind, a, b int64) int64 {
	switch kind {
	case ModInc:
		return a + b
	case ModMul:
		return a * b
	case ModAtMost:
		return min(a, b)
	case ModAtLeast:
		return max(a, b)
	}
	return a
}

func uintArith(kind ModKind, a, b uint64) uint64 {
	switch kind {
	case ModInc:
		return a + b
	case ModMul:
		return a * b
	case ModAtMost:
		return min(a, b)
	case ModAtLeast:
		return max(a, b)
	}
	return a
}

func floatArith(kind ModKind, a, b float64) float64 {
	switch kind {
	case ModInc:
		return a + b
	case ModMul:
		return a * b
	case ModAtMost:
		return math.Min(a, b)
	case ModAtLeast:
		return math.Max(a, b)
	}
	return a
}
