// store/memstore/memstore.go

// Package memstore provides the reference in-memory backend.
//
// It translates nothing: every operation defers to the query package's
// evaluator and applier, so its support matrix covers 100% of operators.
// Conformance tests for other backends use it as the correctness oracle:
// a backend's native execution of a supported tree must agree with this
// one document for document.
package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/solatis/quarry/query"
	"github.com/solatis/quarry/store"
)

// Store is an in-memory collection backed by a concurrent map. Records
// are stored by value; reads and writes of the map are safe from any
// goroutine, and the algebra's pure apply semantics mean no record is
// ever mutated in place.
type Store[R any] struct {
	name string
	docs *xsync.MapOf[string, R]

	inserts *metrics.Counter
	finds   *metrics.Counter
	updates *metrics.Counter
	deletes *metrics.Counter
}

// New creates an empty in-memory collection.
func New[R any](name string) *Store[R] {
	counter := func(op string) *metrics.Counter {
		return metrics.GetOrCreateCounter(
			fmt.Sprintf(`quarry_memstore_ops_total{collection=%q,op=%q}`, name, op))
	}
	return &Store[R]{
		name:    name,
		docs:    xsync.NewMapOf[string, R](),
		inserts: counter("insert"),
		finds:   counter("find"),
		updates: counter("update"),
		deletes: counter("delete"),
	}
}

// Matrix reports full support: the evaluator handles every operator.
func (s *Store[R]) Matrix() query.SupportMatrix {
	return query.FullSupport()
}

// Insert stores a new record under a generated UUIDv7 id. Time-ordered
// ids keep Find's id ordering aligned with insertion order.
func (s *Store[R]) Insert(_ context.Context, rec R) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	s.docs.Store(id, rec)
	s.inserts.Inc()
	return id, nil
}

// Get returns the record stored under id.
func (s *Store[R]) Get(_ context.Context, id string) (R, error) {
	rec, ok := s.docs.Load(id)
	if !ok {
		var zero R
		return zero, store.ErrNotFound
	}
	return rec, nil
}

// Replace overwrites an existing record.
func (s *Store[R]) Replace(_ context.Context, id string, rec R) error {
	if _, ok := s.docs.Load(id); !ok {
		return store.ErrNotFound
	}
	s.docs.Store(id, rec)
	s.updates.Inc()
	return nil
}

// Delete removes the record stored under id.
func (s *Store[R]) Delete(_ context.Context, id string) error {
	if _, ok := s.docs.LoadAndDelete(id); !ok {
		return store.ErrNotFound
	}
	s.deletes.Inc()
	return nil
}

// Find returns every matching document ordered by id.
func (s *Store[R]) Find(_ context.Context, c query.Condition[R]) ([]store.Document[R], error) {
	s.finds.Inc()
	var out []store.Document[R]
	s.docs.Range(func(id string, rec R) bool {
		if query.Eval(c, rec) {
			out = append(out, store.Document[R]{ID: id, Rec: rec})
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FindOne returns the first matching document by id order.
func (s *Store[R]) FindOne(ctx context.Context, c query.Condition[R]) (store.Document[R], error) {
	docs, err := s.Find(ctx, c)
	if err != nil {
		return store.Document[R]{}, err
	}
	if len(docs) == 0 {
		return store.Document[R]{}, store.ErrNotFound
	}
	return docs[0], nil
}

// UpdateMany applies the modification to every matching document.
func (s *Store[R]) UpdateMany(ctx context.Context, c query.Condition[R], m query.Modification[R]) (int, error) {
	docs, err := s.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.docs.Store(d.ID, query.Apply(m, d.Rec))
		s.updates.Inc()
	}
	return len(docs), nil
}

// UpdateOne applies the modification to the first matching document.
func (s *Store[R]) UpdateOne(ctx context.Context, c query.Condition[R], m query.Modification[R]) (bool, error) {
	doc, err := s.FindOne(ctx, c)
	if err == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.docs.Store(doc.ID, query.Apply(m, doc.Rec))
	s.updates.Inc()
	return true, nil
}

// DeleteMany removes every matching document.
func (s *Store[R]) DeleteMany(ctx context.Context, c query.Condition[R]) (int, error) {
	docs, err := s.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		s.docs.Delete(d.ID)
		s.deletes.Inc()
	}
	return len(docs), nil
}

// Count returns the number of matching documents.
func (s *Store[R]) Count(ctx context.Context, c query.Condition[R]) (int, error) {
	docs, err := s.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Close is a no-op; in-memory collections hold no external resources.
func (s *Store[R]) Close() error {
	return nil
}
