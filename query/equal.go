// query/equal.go
package query

import "reflect"

// Structural equality over expression trees. Accessor closures never
// participate; two independently built or decoded trees with the same
// shape, paths and literals compare equal.

// Equal reports structural equality of two conditions.
func (c Condition[R]) Equal(o Condition[R]) bool {
	return equalCondNode(c.Node(), o.Node())
}

// Equal reports structural equality of two modifications.
func (m Modification[R]) Equal(o Modification[R]) bool {
	return equalModNode(m.Node(), o.Node())
}

func equalCondNode(a, b *CondNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || !EqualSteps(a.Path, b.Path) {
		return false
	}
	if !reflect.DeepEqual(a.Value, b.Value) || !reflect.DeepEqual(a.Values, b.Values) {
		return false
	}
	if a.Needle != b.Needle || a.MatchCase != b.MatchCase || a.Pattern != b.Pattern {
		return false
	}
	if a.Query != b.Query || a.MaxDist != b.MaxDist || a.RequireAll != b.RequireAll {
		return false
	}
	if a.Center != b.Center || a.Min != b.Min || a.Max != b.Max || a.Mask != b.Mask {
		return false
	}
	if !equalCondNode(a.Inner, b.Inner) {
		return false
	}
	if len(a.Nodes) != len(b.Nodes) {
		return false
	}
	for i := range a.Nodes {
		if !equalCondNode(a.Nodes[i], b.Nodes[i]) {
			return false
		}
	}
	return true
}

func equalModNode(a, b *ModNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || !EqualSteps(a.Path, b.Path) {
		return false
	}
	if !reflect.DeepEqual(a.Value, b.Value) || !reflect.DeepEqual(a.Items, b.Items) {
		return false
	}
	if !reflect.DeepEqual(a.Entries, b.Entries) || !reflect.DeepEqual(a.Keys, b.Keys) {
		return false
	}
	if !equalCondNode(a.When, b.When) || !equalModNode(a.Inner, b.Inner) {
		return false
	}
	if len(a.Mods) != len(b.Mods) {
		return false
	}
	for i := range a.Mods {
		if !equalModNode(a.Mods[i], b.Mods[i]) {
			return false
		}
	}
	return true
}
