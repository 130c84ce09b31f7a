// Package query implements a typed, serializable query and modification
// algebra over plain Go record types.
//
// Conditions are composable boolean predicates, modifications composable
// transformations, both anchored on typed field paths built from explicit
// per-record accessor registrations. Trees are immutable, evaluate purely
// in memory, round-trip deterministically through a tagged JSON encoding,
// and translate to native backend queries through the SupportMatrix
// contract in translate.go.
//
// Construction is type-checked: a literal shares its path's type
// parameter, ordering operators require ordered value types, arithmetic
// requires numeric ones. Evaluation is total; absence ("no value") makes
// leaf predicates false and leaf modifications no-ops rather than errors.
package query
