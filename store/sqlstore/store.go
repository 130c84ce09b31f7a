// store/sqlstore/store.go
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/solatis/quarry/query"
	"github.com/solatis/quarry/store"
)

// Store is a document collection persisted in a relational database.
// Records serialize to JSON; condition and modification trees within the
// support matrix execute natively in SQL. Wrap with store.WithFallback
// to evaluate the rest client-side.
type Store[R any] struct {
	db         *sqlx.DB
	q          *Queries
	d          dialect
	collection string

	queries *metrics.Counter
	writes  *metrics.Counter
}

// docRow mirrors the columns the find queries select.
type docRow struct {
	ID  string `db:"id"`
	Doc []byte `db:"doc"`
}

// Collection binds a named collection in an open database. Run Migrate
// first on fresh databases.
func Collection[R any](db *sqlx.DB, name string) (*Store[R], error) {
	d, err := dialectFor(db)
	if err != nil {
		return nil, err
	}
	q, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	counter := func(op string) *metrics.Counter {
		return metrics.GetOrCreateCounter(
			fmt.Sprintf(`quarry_sqlstore_ops_total{collection=%q,op=%q}`, name, op))
	}
	return &Store[R]{
		db: db, q: q, d: d, collection: name,
		queries: counter("query"),
		writes:  counter("write"),
	}, nil
}

// Matrix reports what the SQL dialects translate natively.
func (s *Store[R]) Matrix() query.SupportMatrix {
	return supportMatrix()
}

// Insert stores a new record under a generated UUIDv7 id.
func (s *Store[R]) Insert(_ context.Context, rec R) (string, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("cannot encode record: %w", err)
	}
	s.writes.Inc()
	id := uuid.Must(uuid.NewV7()).String()
	now := time.Now().UTC()
	if _, err := s.q.Exec("insert-document", s.collection, id, string(doc), now, now); err != nil {
		return "", fmt.Errorf("insert failed: %w", err)
	}
	return id, nil
}

// Get returns the record stored under id.
func (s *Store[R]) Get(_ context.Context, id string) (R, error) {
	s.queries.Inc()
	var zero R
	var doc []byte
	err := s.q.Get("get-document", &doc, s.collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, store.ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("get failed: %w", err)
	}
	var rec R
	if err := json.Unmarshal(doc, &rec); err != nil {
		return zero, fmt.Errorf("cannot decode record %s: %w", id, err)
	}
	return rec, nil
}

// Replace overwrites an existing record.
func (s *Store[R]) Replace(_ context.Context, id string, rec R) error {
	s.writes.Inc()
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cannot encode record: %w", err)
	}
	res, err := s.q.Exec("replace-document", string(doc), time.Now().UTC(), s.collection, id)
	if err != nil {
		return fmt.Errorf("replace failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes the record stored under id.
func (s *Store[R]) Delete(_ context.Context, id string) error {
	s.writes.Inc()
	res, err := s.q.Exec("delete-document", s.collection, id)
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// whereClause translates a condition into a WHERE fragment for this
// store's dialect.
func (s *Store[R]) whereClause(c query.Condition[R]) (string, []any, error) {
	return condToSQL(s.d, c.Node())
}

// Find returns every matching document ordered by id.
func (s *Store[R]) Find(_ context.Context, c query.Condition[R]) ([]store.Document[R], error) {
	s.queries.Inc()
	where, whereArgs, err := s.whereClause(c)
	if err != nil {
		return nil, err
	}
	base, err := s.q.Raw("find-documents")
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("%s AND (%s) ORDER BY id", base, where)
	args := append([]any{s.collection}, whereArgs...)

	var rows []docRow
	if err := s.db.Select(&rows, s.db.Rebind(text), args...); err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}

	out := make([]store.Document[R], 0, len(rows))
	for _, row := range rows {
		var rec R
		if err := json.Unmarshal(row.Doc, &rec); err != nil {
			return nil, fmt.Errorf("cannot decode record %s: %w", row.ID, err)
		}
		out = append(out, store.Document[R]{ID: row.ID, Rec: rec})
	}
	return out, nil
}

// FindOne returns the first matching document by id order.
func (s *Store[R]) FindOne(_ context.Context, c query.Condition[R]) (store.Document[R], error) {
	s.queries.Inc()
	where, whereArgs, err := s.whereClause(c)
	if err != nil {
		return store.Document[R]{}, err
	}
	base, err := s.q.Raw("find-documents")
	if err != nil {
		return store.Document[R]{}, err
	}
	text := fmt.Sprintf("%s AND (%s) ORDER BY id LIMIT 1", base, where)
	args := append([]any{s.collection}, whereArgs...)

	var row docRow
	err = s.db.Get(&row, s.db.Rebind(text), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document[R]{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document[R]{}, fmt.Errorf("find failed: %w", err)
	}
	var rec R
	if err := json.Unmarshal(row.Doc, &rec); err != nil {
		return store.Document[R]{}, fmt.Errorf("cannot decode record %s: %w", row.ID, err)
	}
	return store.Document[R]{ID: row.ID, Rec: rec}, nil
}

// UpdateMany applies the modification to every matching document in a
// single UPDATE.
func (s *Store[R]) UpdateMany(_ context.Context, c query.Condition[R], m query.Modification[R]) (int, error) {
	s.writes.Inc()
	where, whereArgs, err := s.whereClause(c)
	if err != nil {
		return 0, err
	}
	modExpr, modArgs, err := modToSQL(s.d, "doc", m.Node())
	if err != nil {
		return 0, err
	}

	text := fmt.Sprintf(
		"UPDATE documents SET doc = %s, updated_at = ? WHERE collection = ? AND (%s)",
		modExpr, where)
	args := append(append(modArgs, time.Now().UTC(), s.collection), whereArgs...)

	res, err := s.db.Exec(s.db.Rebind(text), args...)
	if err != nil {
		return 0, fmt.Errorf("update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// UpdateOne applies the modification to the first matching document by
// id order. Reports whether a document matched.
func (s *Store[R]) UpdateOne(ctx context.Context, c query.Condition[R], m query.Modification[R]) (bool, error) {
	s.writes.Inc()
	// translate the modification first so unsupported trees fail before
	// touching the database
	modExpr, modArgs, err := modToSQL(s.d, "doc", m.Node())
	if err != nil {
		return false, err
	}

	doc, err := s.FindOne(ctx, c)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	text := fmt.Sprintf(
		"UPDATE documents SET doc = %s, updated_at = ? WHERE collection = ? AND id = ?",
		modExpr)
	args := append(modArgs, time.Now().UTC(), s.collection, doc.ID)
	if _, err := s.db.Exec(s.db.Rebind(text), args...); err != nil {
		return false, fmt.Errorf("update failed: %w", err)
	}
	return true, nil
}

// DeleteMany removes every matching document.
func (s *Store[R]) DeleteMany(_ context.Context, c query.Condition[R]) (int, error) {
	s.writes.Inc()
	where, whereArgs, err := s.whereClause(c)
	if err != nil {
		return 0, err
	}
	base, err := s.q.Raw("delete-documents")
	if err != nil {
		return 0, err
	}
	text := fmt.Sprintf("%s AND (%s)", base, where)
	args := append([]any{s.collection}, whereArgs...)

	res, err := s.db.Exec(s.db.Rebind(text), args...)
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Count returns the number of matching documents.
func (s *Store[R]) Count(_ context.Context, c query.Condition[R]) (int, error) {
	s.queries.Inc()
	where, whereArgs, err := s.whereClause(c)
	if err != nil {
		return 0, err
	}
	base, err := s.q.Raw("count-documents")
	if err != nil {
		return 0, err
	}
	text := fmt.Sprintf("%s AND (%s)", base, where)
	args := append([]any{s.collection}, whereArgs...)

	var n int
	if err := s.db.Get(&n, s.db.Rebind(text), args...); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle. Collections sharing
// one handle share its lifetime.
func (s *Store[R]) Close() error {
	return s.db.Close()
}
