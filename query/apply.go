// query/apply.go
package query

/*
 * Modification application.
 *
 * Apply threads a record through a modification tree and returns the
 * transformed copy. Every leaf is a structural update: resolve the path,
 * compute the new leaf from the old one, rebuild the spine with WithValue
 * semantics. A path severed by an absent optional makes the leaf a no-op
 * rather than an error, mirroring the evaluator's no-value rule.
 */

// Apply returns a new record with the modification applied. The input is
// never mutated.
func Apply[R any](m Modification[R], r R) R {
	return applyNode(m.Node(), r).(R)
}

func applyNode(n *ModNode, rec any) any {
	switch n.Kind {
	case ModChain:
		cur := rec
		for _, m := range n.Mods {
			cur = applyNode(m, cur)
		}
		return cur
	case ModSet:
		out, _ := setSteps(n.Path, rec, n.Value)
		return out
	}

	old, ok := resolveSteps(n.Path, rec)
	if !ok {
		return rec
	}

	var nv any
	switch n.Kind {
	case ModInc, ModMul, ModAtMost, ModAtLeast:
		if n.num == nil {
			return rec
		}
		nv = n.num(n.Kind, old, n.Value)
	case ModAppendStr:
		s, ok := old.(string)
		if !ok {
			return rec
		}
		nv = s + n.Value.(string)
	case ModPush:
		elems := n.iter(old)
		nv = n.mk(append(elems, n.Items...))
	case ModPullWhere:
		elems := n.iter(old)
		kept := make([]any, 0, len(elems))
		for _, e := range elems {
			if !evalNode(n.When, e) {
				kept = append(kept, e)
			}
		}
		nv = n.mk(kept)
	case ModDropFirst:
		elems := n.iter(old)
		if len(elems) == 0 {
			return rec
		}
		nv = n.mk(elems[1:])
	case ModDropLast:
		elems := n.iter(old)
		if len(elems) == 0 {
			return rec
		}
		nv = n.mk(elems[:len(elems)-1])
	case ModForEach:
		elems := n.iter(old)
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = applyNode(n.Inner, e)
		}
		nv = n.mk(out)
	case ModForEachIf:
		elems := n.iter(old)
		out := make([]any, len(elems))
		for i, e := range elems {
			if evalNode(n.When, e) {
				out[i] = applyNode(n.Inner, e)
			} else {
				out[i] = e
			}
		}
		nv = n.mk(out)
	case ModMergeMap:
		nv = n.merge(old, n.Entries)
	case ModDropKeys:
		nv = n.drop(old, n.Keys)
	case ModModifyKey:
		// Path already resolved through the key step; a missing key
		// returned above as a no-op.
		nv = applyNode(n.Inner, old)
	default:
		return rec
	}

	out, _ := setSteps(n.Path, rec, nv)
	return out
}
