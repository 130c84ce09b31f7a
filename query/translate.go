// query/translate.go
package query

import "fmt"

/*
 * Backend translation contract.
 *
 * A storage backend translates condition/modification trees into its
 * native query and update forms. Each backend publishes a static
 * SupportMatrix; asking it to translate a tree containing an operator
 * outside the matrix must yield an *UnsupportedError carrying the
 * offending node, never a silently dropped clause.
 *
 * Falling back to client-side evaluation (fetch a broader result set,
 * filter with Eval) is deliberately the caller's policy; translators
 * signal, they do not work around. The in-memory reference backend
 * supports every operator by deferring to the evaluator and serves as the
 * correctness oracle for conformance tests: for every supported tree c
 * and record r, a backend's native execution must agree with Eval(c, r).
 *
 * Translated operators must keep their semantics: a pushed-down Contains
 * stays case-insensitive by default, a pushed-down All keeps vacuous
 * truth. A full-text backend may return a superset of the reference
 * Search matches but never a subset under requireAll.
 */

// SupportMatrix declares which operators a backend can translate
// natively. Missing entries mean unsupported.
type SupportMatrix struct {
	Conditions    map[CondKind]bool
	Modifications map[ModKind]bool
}

// FullSupport returns a matrix covering every operator. Used by the
// reference in-memory backend.
func FullSupport() SupportMatrix {
	conds := make(map[CondKind]bool, len(condKindNames))
	for k := range condKindNames {
		conds[k] = true
	}
	mods := make(map[ModKind]bool, len(modKindNames))
	for k := range modKindNames {
		mods[k] = true
	}
	return SupportMatrix{Conditions: conds, Modifications: mods}
}

// CondKinds lists every condition operator in stable order.
func CondKinds() []CondKind {
	out := make([]CondKind, 0, len(condKindNames))
	for k := CondAlways; k <= CondNotNil; k++ {
		out = append(out, k)
	}
	return out
}

// ModKinds lists every modification operator in stable order.
func ModKinds() []ModKind {
	out := make([]ModKind, 0, len(modKindNames))
	for k := ModSet; k <= ModChain; k++ {
		out = append(out, k)
	}
	return out
}

// UnsupportedError reports a node a backend cannot translate natively.
// Exactly one of Cond/Mod is set.
type UnsupportedError struct {
	Cond *CondNode
	Mod  *ModNode
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	if e.Cond != nil {
		return fmt.Sprintf("operator %q not supported by backend", e.Cond.Kind)
	}
	if e.Mod != nil {
		return fmt.Sprintf("operator %q not supported by backend", e.Mod.Kind)
	}
	return "operator not supported by backend"
}

// CheckCondition walks a condition tree against the matrix and returns an
// *UnsupportedError for the first node outside it.
func (m SupportMatrix) CheckCondition(n *CondNode) error {
	if !m.Conditions[n.Kind] {
		return &UnsupportedError{Cond: n}
	}
	if n.Inner != nil {
		if err := m.CheckCondition(n.Inner); err != nil {
			return err
		}
	}
	for _, child := range n.Nodes {
		if err := m.CheckCondition(child); err != nil {
			return err
		}
	}
	return nil
}

// CheckModification walks a modification tree against the matrix and
// returns an *UnsupportedError for the first node outside it. Element
// conditions (PullWhere, ForEachIf) are checked against the condition
// half of the matrix.
func (m SupportMatrix) CheckModification(n *ModNode) error {
	if !m.Modifications[n.Kind] {
		return &UnsupportedError{Mod: n}
	}
	if n.When != nil {
		if err := m.CheckCondition(n.When); err != nil {
			return err
		}
	}
	if n.Inner != nil {
		if err := m.CheckModification(n.Inner); err != nil {
			return err
		}
	}
	for _, child := range n.Mods {
		if err := m.CheckModification(child); err != nil {
			return err
		}
	}
	return nil
}
