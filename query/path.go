// query/path.go
package query

/*
 * Typed field paths.
 *
 * A Path[R, V] describes how to reach a value of type V starting from a
 * root record of type R. Paths are ordered sequences of steps: property
 * access, optional-unwrap, and map-value-by-key. Element-wise access over
 * collections is expressed through the element-wise condition/modification
 * combinators (Any, All, ForEach, ...), which carry the collection path
 * plus an inner expression over the element type; an element position is
 * therefore never an assignable target.
 *
 * Key functions:
 *   - Resolve: walks steps, short-circuiting to "no value" on absent
 *     optionals and missing map keys
 *   - WithValue: structural (copy-on-write) replacement of the addressed
 *     leaf; the untouched siblings are shared with the input record
 *
 * Steps carry accessor closures captured at construction time from the
 * typed field registrations in schema.go. Equality and hashing are
 * structural: two independently built paths with the same step sequence
 * are interchangeable and serialize identically. Closures never
 * participate in comparison.
 */

// StepKind discriminates path step variants.
type StepKind int

const (
	// StepProperty accesses a named field of a record.
	StepProperty StepKind = iota
	// StepOptional narrows an optional (pointer) value to its element,
	// short-circuiting to "no value" when absent.
	StepOptional
	// StepKey addresses a single value in a keyed map by a concrete key.
	StepKey
)

// Step is one component of a field path. Comparison and serialization use
// only Kind, Name and Key; the accessor closures operate on erased values
// and are excluded from equality.
type Step struct {
	Kind StepKind
	Name string // property name (StepProperty only)
	Key  string // map key (StepKey only)

	get func(any) (any, bool)
	set func(any, any) any
}

// Path identifies a (possibly nested, possibly optional) value of type V
// inside a record of type R. The zero Path addresses the record itself.
// Paths are immutable value objects; composing never mutates the receiver.
type Path[R, V any] struct {
	steps []Step
}

// Steps returns a copy of the path's step sequence.
func (p Path[R, V]) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// Self returns the identity path: the record itself is the addressed value.
// Used for conditions over scalar collection elements (e.g. "any tag equals").
func Self[V any]() Path[V, V] {
	return Path[V, V]{}
}

// Join composes two paths by concatenation: outer reaches M from R, inner
// reaches V from M.
func Join[R, M, V any](outer Path[R, M], inner Path[M, V]) Path[R, V] {
	steps := make([]Step, 0, len(outer.steps)+len(inner.steps))
	steps = append(steps, outer.steps...)
	steps = append(steps, inner.steps...)
	return Path[R, V]{steps: steps}
}

// NotNull narrows an optional-valued path to its element. Resolution
// short-circuits to "no value" when the optional is absent; modifications
// through an absent optional are no-ops.
func NotNull[R, V any](p Path[R, *V]) Path[R, V] {
	st := optionalStep[V]()
	return Path[R, V]{steps: append(p.Steps(), st)}
}

// Key addresses the value stored at a concrete key of a map-valued path.
// Resolution yields "no value" when the key is absent; assignment through
// the key creates or replaces the entry.
func Key[R, V any](p Path[R, map[string]V], key string) Path[R, V] {
	st := keyStep[V](key)
	return Path[R, V]{steps: append(p.Steps(), st)}
}

// Resolve walks the path against a concrete record. The boolean reports
// whether the path reached a value; an absent optional or missing map key
// anywhere along the path yields false rather than an error.
func Resolve[R, V any](p Path[R, V], root R) (V, bool) {
	cur, ok := resolveSteps(p.steps, root)
	if !ok {
		var zero V
		return zero, false
	}
	v, ok := cur.(V)
	return v, ok
}

// WithValue returns a new root with exactly the addressed leaf replaced.
// When the path traverses an absent optional the input record is returned
// unchanged (structural no-op, matching modification semantics).
func WithValue[R, V any](p Path[R, V], root R, v V) R {
	out, changed := setSteps(p.steps, root, v)
	if !changed {
		return root
	}
	return out.(R)
}

// EqualSteps reports structural equality of two step sequences.
func EqualSteps(a, b []Step) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Name != b[i].Name || a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}

// Equal reports whether two paths address the same location.
func (p Path[R, V]) Equal(o Path[R, V]) bool {
	return EqualSteps(p.steps, o.steps)
}

// String renders the path in dotted form for diagnostics, e.g.
// "profile?.tags" or "translations[en]".
func (p Path[R, V]) String() string {
	return stepsString(p.steps)
}

func stepsString(steps []Step) string {
	s := ""
	for _, st := range steps {
		switch st.Kind {
		case StepProperty:
			if s != "" {
				s += "."
			}
			s += st.Name
		case StepOptional:
			s += "?"
		case StepKey:
			s += "[" + st.Key + "]"
		}
	}
	if s == "" {
		return "."
	}
	return s
}

func resolveSteps(steps []Step, root any) (any, bool) {
	cur := root
	for _, st := range steps {
		next, ok := st.get(cur)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// setSteps rebuilds the spine of records from the leaf outward. Each level
// receives a fresh copy with the modified child swapped in; siblings are
// carried over untouched by the property setters.
func setSteps(steps []Step, cur any, v any) (any, bool) {
	if len(steps) == 0 {
		return v, true
	}
	st := steps[0]
	child, ok := st.get(cur)
	if !ok {
		// Assigning at a map key creates the entry; everything else
		// treats a severed path as a structural no-op.
		if st.Kind == StepKey && len(steps) == 1 {
			return st.set(cur, v), true
		}
		return cur, false
	}
	nv, changed := setSteps(steps[1:], child, v)
	if !changed {
		return cur, false
	}
	return st.set(cur, nv), true
}

func propertyStep[R, V any](name string, get func(R) V, set func(R, V) R) Step {
	return Step{
		Kind: StepProperty,
		Name: name,
		get: func(cur any) (any, bool) {
			r, ok := cur.(R)
			if !ok {
				return nil, false
			}
			return get(r), true
		},
		set: func(cur, nv any) any {
			return set(cur.(R), nv.(V))
		},
	}
}

func optionalStep[V any]() Step {
	return Step{
		Kind: StepOptional,
		get: func(cur any) (any, bool) {
			p, ok := cur.(*V)
			if !ok || p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(_, nv any) any {
			v := nv.(V)
			return &v
		},
	}
}

func keyStep[V any](key string) Step {
	return Step{
		Kind: StepKey,
		Key:  key,
		get: func(cur any) (any, bool) {
			m, ok := cur.(map[string]V)
			if !ok || m == nil {
				return nil, false
			}
			v, ok := m[key]
			return v, ok
		},
		set: func(cur, nv any) any {
			m, _ := cur.(map[string]V)
			out := make(map[string]V, len(m)+1)
			for k, v := range m {
				out[k] = v
			}
			out[key] = nv.(V)
			return out
		},
	}
}
