// store/store.go

// Package store defines the generic collection API that storage backends
// implement and application code consumes.
//
// A Collection stores records of one type under string document IDs and
// executes query.Condition / query.Modification trees. Backends declare
// what they translate natively through their SupportMatrix; WithFallback
// layers the client-side fallback policy on top, so callers get full
// operator coverage over any backend while the backend itself only ever
// sees trees it declared support for.
package store

import (
	"context"
	"errors"

	"github.com/solatis/quarry/query"
)

// Sentinel errors shared by every backend.
var (
	// ErrNotFound indicates no document matched the id or condition.
	ErrNotFound = errors.New("document not found")
)

// Document pairs a stored record with its identifier.
type Document[R any] struct {
	ID  string
	Rec R
}

// Collection is the backend contract for a single record type.
//
// Find, UpdateMany, UpdateOne, DeleteMany and Count must return a
// *query.UnsupportedError when the tree contains an operator outside the
// backend's SupportMatrix; they never silently drop clauses. Callers
// wanting automatic client-side fallback wrap the collection with
// WithFallback.
type Collection[R any] interface {
	// Insert stores a new record and returns its generated id.
	Insert(ctx context.Context, rec R) (string, error)
	// Get returns the record stored under id, or ErrNotFound.
	Get(ctx context.Context, id string) (R, error)
	// Replace overwrites the record stored under id, or ErrNotFound.
	Replace(ctx context.Context, id string, rec R) error
	// Delete removes the record stored under id, or ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Find returns every document matching the condition, ordered by id.
	Find(ctx context.Context, c query.Condition[R]) ([]Document[R], error)
	// FindOne returns the first matching document, or ErrNotFound.
	FindOne(ctx context.Context, c query.Condition[R]) (Document[R], error)
	// UpdateMany applies the modification to every matching document and
	// returns how many were updated.
	UpdateMany(ctx context.Context, c query.Condition[R], m query.Modification[R]) (int, error)
	// UpdateOne applies the modification to the first matching document.
	// The boolean reports whether a document matched.
	UpdateOne(ctx context.Context, c query.Condition[R], m query.Modification[R]) (bool, error)
	// DeleteMany removes every matching document and returns the count.
	DeleteMany(ctx context.Context, c query.Condition[R]) (int, error)
	// Count returns the number of matching documents.
	Count(ctx context.Context, c query.Condition[R]) (int, error)

	// Matrix declares which operators the backend translates natively.
	Matrix() query.SupportMatrix

	// Close releases backend resources.
	Close() error
}
