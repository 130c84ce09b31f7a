// query/schema.go
package query

import (
	"reflect"
	"sync"
	"time"
)

/*
 * Per-record accessor registry.
 *
 * Replaces reflection-generated field access with an explicit accessor
 * table per record type: field name -> (getter, structural-copy setter).
 * Registrations are made once per field, typically from package-level
 * variable initializers alongside the record type:
 *
 *   var UserAge = query.NewField("age",
 *       func(u User) int { return u.Age },
 *       func(u User, v int) User { u.Age = v; return u })
 *
 * Field names must match the record's JSON keys so that serialized paths
 * line up with encoded documents in document-oriented backends.
 *
 * The registry exists for the codec: decoding a serialized path needs the
 * accessor closures and value types back. reflect is used only as the
 * registry key and for value-kind tagging at registration time; data
 * access always goes through the registered closures.
 */

// ValueKind tags the semantic type of a path's addressed value. The codec
// embeds these tags with every literal so decode can validate the wire
// value against the path's declared type.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTime
	KindPoint
	KindOptional
	KindSlice
	KindMap
	KindStruct
)

var kindTags = map[ValueKind]string{
	KindBool:     "bool",
	KindInt:      "int",
	KindUint:     "uint",
	KindFloat:    "float",
	KindString:   "string",
	KindBytes:    "bytes",
	KindTime:     "time",
	KindPoint:    "point",
	KindOptional: "optional",
	KindSlice:    "list",
	KindMap:      "map",
	KindStruct:   "struct",
}

// Tag returns the wire discriminator for the kind.
func (k ValueKind) Tag() string {
	if t, ok := kindTags[k]; ok {
		return t
	}
	return "invalid"
}

// KindOf classifies a Go type into its ValueKind.
func KindOf(t reflect.Type) ValueKind {
	if t == reflect.TypeOf((*(time.Time))(nil)).Elem() {
		return KindTime
	}
	if t == reflect.TypeOf((*(Point))(nil)).Elem() {
		return KindPoint
	}
	switch t.Kind() {
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return KindInt
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindUint
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.String:
		return KindString
	case reflect.Pointer:
		return KindOptional
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindBytes
		}
		return KindSlice
	case reflect.Map:
		return KindMap
	case reflect.Struct:
		return KindStruct
	default:
		return KindInvalid
	}
}

// fieldDef is one row of a record type's accessor table. Collection
// behavior lives in the view table, keyed by value type.
type fieldDef struct {
	step Step         // property step with accessor closures
	typ  reflect.Type // field value type
}

var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type]map[string]fieldDef{}
)

// viewDef captures the erased collection behavior of a value type:
// optional unwrap, element view, map access. Field registrations store
// their typed closures here; types reached only through unwrap or key
// steps get reflect-built equivalents on demand, so decoded paths keep
// working however deep the collection sits.
type viewDef struct {
	elem    reflect.Type
	optStep *Step
	iter    func(any) []any
	mk      func([]any) any
	keyStep func(string) Step
	merge   func(any, map[string]any) any
	drop    func(any, []string) any
}

var (
	viewMu sync.Mutex
	views  = map[reflect.Type]*viewDef{}
)

func registerView(t reflect.Type, v *viewDef) {
	viewMu.Lock()
	defer viewMu.Unlock()
	views[t] = v
}

// viewFor returns the collection view of a type, or nil for scalars.
func viewFor(t reflect.Type) *viewDef {
	viewMu.Lock()
	defer viewMu.Unlock()
	if v, ok := views[t]; ok {
		return v
	}
	v := buildView(t)
	if v != nil {
		views[t] = v
	}
	return v
}

func buildView(t reflect.Type) *viewDef {
	switch t.Kind() {
	case reflect.Pointer:
		st := reflectOptionalStep(t)
		return &viewDef{elem: t.Elem(), optStep: &st}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil // bytes are a scalar leaf
		}
		return &viewDef{elem: t.Elem(), iter: reflectIter(t), mk: reflectMake(t)}
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil
		}
		return &viewDef{
			elem:    t.Elem(),
			keyStep: reflectKeyStep(t),
			merge:   reflectMerge(t),
			drop:    reflectDrop(t),
		}
	default:
		return nil
	}
}

func reflectOptionalStep(t reflect.Type) Step {
	return Step{
		Kind: StepOptional,
		get: func(cur any) (any, bool) {
			rv := reflect.ValueOf(cur)
			if !rv.IsValid() || rv.Type() != t || rv.IsNil() {
				return nil, false
			}
			return rv.Elem().Interface(), true
		},
		set: func(_, nv any) any {
			p := reflect.New(t.Elem())
			p.Elem().Set(reflect.ValueOf(nv))
			return p.Interface()
		},
	}
}

func reflectIter(t reflect.Type) func(any) []any {
	return func(v any) []any {
		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Type() != t {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
}

func reflectMake(t reflect.Type) func([]any) any {
	return func(elems []any) any {
		out := reflect.MakeSlice(t, len(elems), len(elems))
		for i, e := range elems {
			out.Index(i).Set(reflect.ValueOf(e))
		}
		return out.Interface()
	}
}

func reflectKeyStep(t reflect.Type) func(string) Step {
	return func(key string) Step {
		kv := reflect.ValueOf(key)
		return Step{
			Kind: StepKey,
			Key:  key,
			get: func(cur any) (any, bool) {
				rv := reflect.ValueOf(cur)
				if !rv.IsValid() || rv.Type() != t || rv.IsNil() {
					return nil, false
				}
				v := rv.MapIndex(kv)
				if !v.IsValid() {
					return nil, false
				}
				return v.Interface(), true
			},
			set: func(cur, nv any) any {
				out := reflect.MakeMapWithSize(t, 1)
				if rv := reflect.ValueOf(cur); rv.IsValid() && rv.Type() == t {
					for it := rv.MapRange(); it.Next(); {
						out.SetMapIndex(it.Key(), it.Value())
					}
				}
				out.SetMapIndex(kv, reflect.ValueOf(nv))
				return out.Interface()
			},
		}
	}
}

func reflectMerge(t reflect.Type) func(any, map[string]any) any {
	return func(cur any, entries map[string]any) any {
		out := reflect.MakeMapWithSize(t, len(entries))
		if rv := reflect.ValueOf(cur); rv.IsValid() && rv.Type() == t {
			for it := rv.MapRange(); it.Next(); {
				out.SetMapIndex(it.Key(), it.Value())
			}
		}
		for k, v := range entries {
			out.SetMapIndex(reflect.ValueOf(k), reflect.ValueOf(v))
		}
		return out.Interface()
	}
}

func reflectDrop(t reflect.Type) func(any, []string) any {
	return func(cur any, keys []string) any {
		rv := reflect.ValueOf(cur)
		if !rv.IsValid() || rv.Type() != t || rv.IsNil() {
			return cur
		}
		out := reflect.MakeMapWithSize(t, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), it.Value())
		}
		for _, k := range keys {
			out.SetMapIndex(reflect.ValueOf(k), reflect.Value{})
		}
		return out.Interface()
	}
}

func registerField(root reflect.Type, name string, def fieldDef) {
	registryMu.Lock()
	defer registryMu.Unlock()
	fields, ok := registry[root]
	if !ok {
		fields = map[string]fieldDef{}
		registry[root] = fields
	}
	fields[name] = def
}

func lookupField(root reflect.Type, name string) (fieldDef, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := registry[root][name]
	return def, ok
}

// NewField registers a scalar or struct field of R and returns its path.
func NewField[R, V any](name string, get func(R) V, set func(R, V) R) Path[R, V] {
	st := propertyStep(name, get, set)
	typ := reflect.TypeOf((*(V))(nil)).Elem()
	registerField(reflect.TypeOf((*(R))(nil)).Elem(), name, fieldDef{step: st, typ: typ})
	return Path[R, V]{steps: []Step{st}}
}

// NewOptField registers an optional (pointer-valued) field of R. The
// returned path addresses the pointer; NotNull narrows it to the element.
func NewOptField[R, V any](name string, get func(R) *V, set func(R, *V) R) Path[R, *V] {
	st := propertyStep(name, get, set)
	opt := optionalStep[V]()
	registerField(reflect.TypeOf((*(R))(nil)).Elem(), name, fieldDef{step: st, typ: reflect.TypeOf((*(*V))(nil)).Elem()})
	registerView(reflect.TypeOf((*(*V))(nil)).Elem(), &viewDef{
		elem:    reflect.TypeOf((*(V))(nil)).Elem(),
		optStep: &opt,
	})
	return Path[R, *V]{steps: []Step{st}}
}

// NewSliceField registers an ordered-collection field of R. The element
// view closures feed the element-wise combinators after decode.
func NewSliceField[R, E any](name string, get func(R) []E, set func(R, []E) R) Path[R, []E] {
	st := propertyStep(name, get, set)
	typ := reflect.TypeOf((*([]E))(nil)).Elem()
	registerField(reflect.TypeOf((*(R))(nil)).Elem(), name, fieldDef{step: st, typ: typ})
	registerView(typ, &viewDef{
		elem: reflect.TypeOf((*(E))(nil)).Elem(),
		iter: sliceIter[E],
		mk:   sliceMake[E],
	})
	return Path[R, []E]{steps: []Step{st}}
}

// NewMapField registers a string-keyed map field of R.
func NewMapField[R, V any](name string, get func(R) map[string]V, set func(R, map[string]V) R) Path[R, map[string]V] {
	st := propertyStep(name, get, set)
	registerField(reflect.TypeOf((*(R))(nil)).Elem(), name, fieldDef{step: st, typ: reflect.TypeOf((*(map[string]V))(nil)).Elem()})
	registerView(reflect.TypeOf((*(map[string]V))(nil)).Elem(), &viewDef{
		elem:    reflect.TypeOf((*(V))(nil)).Elem(),
		keyStep: keyStep[V],
		merge:   mapMerge[V],
		drop:    mapDrop[V],
	})
	return Path[R, map[string]V]{steps: []Step{st}}
}

func sliceIter[E any](v any) []any {
	s, ok := v.([]E)
	if !ok {
		return nil
	}
	out := make([]any, len(s))
	for i, e := range s {
		out[i] = e
	}
	return out
}

func sliceMake[E any](elems []any) any {
	out := make([]E, len(elems))
	for i, e := range elems {
		out[i] = e.(E)
	}
	return out
}

func mapMerge[V any](cur any, entries map[string]any) any {
	m, _ := cur.(map[string]V)
	out := make(map[string]V, len(m)+len(entries))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range entries {
		out[k] = v.(V)
	}
	return out
}

func mapDrop[V any](cur any, keys []string) any {
	m, ok := cur.(map[string]V)
	if !ok || m == nil {
		return cur
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
