// store/fallback.go
package store

import (
	"context"
	"errors"

	"github.com/solatis/quarry/query"
)

/*
 * Client-side fallback policy.
 *
 * Translators signal unsupported operators; they never work around them.
 * This wrapper implements the caller side of that contract: when a tree
 * fits the backend's support matrix it is pushed down untouched, and
 * when it does not, or the backend refuses it at execution time, the
 * backend receives the supported fraction (the
 * supported conjuncts of a top-level And, or Always) to narrow the fetch,
 * and the full condition is re-checked in memory with query.Eval.
 *
 * Updates and deletes that cannot be pushed down degrade to
 * find + apply + per-document write. That loses backend-side atomicity
 * across documents, which is the documented cost of using an operator
 * the backend lacks.
 */

type fallback[R any] struct {
	inner Collection[R]
}

// WithFallback wraps a collection so every operator works against it,
// evaluating client-side whatever the backend cannot translate.
func WithFallback[R any](c Collection[R]) Collection[R] {
	return &fallback[R]{inner: c}
}

func (f *fallback[R]) Insert(ctx context.Context, rec R) (string, error) {
	return f.inner.Insert(ctx, rec)
}

func (f *fallback[R]) Get(ctx context.Context, id string) (R, error) {
	return f.inner.Get(ctx, id)
}

func (f *fallback[R]) Replace(ctx context.Context, id string, rec R) error {
	return f.inner.Replace(ctx, id, rec)
}

func (f *fallback[R]) Delete(ctx context.Context, id string) error {
	return f.inner.Delete(ctx, id)
}

func (f *fallback[R]) Matrix() query.SupportMatrix {
	return f.inner.Matrix()
}

func (f *fallback[R]) Close() error {
	return f.inner.Close()
}

// refused reports whether the backend rejected a tree at execution time.
// Translators can refuse trees the static matrix admits, such as a
// comparison against a composite literal; those degrade exactly like a
// matrix miss.
func refused(err error) bool {
	var uerr *query.UnsupportedError
	return errors.As(err, &uerr)
}

func (f *fallback[R]) Find(ctx context.Context, c query.Condition[R]) ([]Document[R], error) {
	if f.inner.Matrix().CheckCondition(c.Node()) == nil {
		docs, err := f.inner.Find(ctx, c)
		if err == nil || !refused(err) {
			return docs, err
		}
	}
	return f.findFiltered(ctx, c)
}

// findFiltered fetches a superset through whatever fraction the backend
// executes and re-applies the full condition in memory.
func (f *fallback[R]) findFiltered(ctx context.Context, c query.Condition[R]) ([]Document[R], error) {
	docs, err := f.inner.Find(ctx, pushdown(c, f.inner.Matrix()))
	if err != nil && refused(err) {
		docs, err = f.inner.Find(ctx, query.Always[R]())
	}
	if err != nil {
		return nil, err
	}
	out := docs[:0]
	for _, d := range docs {
		if query.Eval(c, d.Rec) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fallback[R]) FindOne(ctx context.Context, c query.Condition[R]) (Document[R], error) {
	if f.inner.Matrix().CheckCondition(c.Node()) == nil {
		doc, err := f.inner.FindOne(ctx, c)
		if err == nil || !refused(err) {
			return doc, err
		}
	}
	docs, err := f.findFiltered(ctx, c)
	if err != nil {
		return Document[R]{}, err
	}
	if len(docs) == 0 {
		return Document[R]{}, ErrNotFound
	}
	return docs[0], nil
}

func (f *fallback[R]) UpdateMany(ctx context.Context, c query.Condition[R], mod query.Modification[R]) (int, error) {
	m := f.inner.Matrix()
	if m.CheckCondition(c.Node()) == nil && m.CheckModification(mod.Node()) == nil {
		n, err := f.inner.UpdateMany(ctx, c, mod)
		if err == nil || !refused(err) {
			return n, err
		}
	}

	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	updated := 0
	for _, d := range docs {
		if err := f.inner.Replace(ctx, d.ID, query.Apply(mod, d.Rec)); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func (f *fallback[R]) UpdateOne(ctx context.Context, c query.Condition[R], mod query.Modification[R]) (bool, error) {
	m := f.inner.Matrix()
	if m.CheckCondition(c.Node()) == nil && m.CheckModification(mod.Node()) == nil {
		ok, err := f.inner.UpdateOne(ctx, c, mod)
		if err == nil || !refused(err) {
			return ok, err
		}
	}

	doc, err := f.FindOne(ctx, c)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := f.inner.Replace(ctx, doc.ID, query.Apply(mod, doc.Rec)); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fallback[R]) DeleteMany(ctx context.Context, c query.Condition[R]) (int, error) {
	m := f.inner.Matrix()
	if m.CheckCondition(c.Node()) == nil {
		n, err := f.inner.DeleteMany(ctx, c)
		if err == nil || !refused(err) {
			return n, err
		}
	}

	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, d := range docs {
		if err := f.inner.Delete(ctx, d.ID); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

func (f *fallback[R]) Count(ctx context.Context, c query.Condition[R]) (int, error) {
	m := f.inner.Matrix()
	if m.CheckCondition(c.Node()) == nil {
		n, err := f.inner.Count(ctx, c)
		if err == nil || !refused(err) {
			return n, err
		}
	}
	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

// pushdown extracts the fraction of a condition the backend can execute
// natively: the supported conjuncts of a top-level And, or Always when
// nothing narrows the fetch. The result is a superset filter; the caller
// re-applies the full condition in memory.
func pushdown[R any](c query.Condition[R], m query.SupportMatrix) query.Condition[R] {
	n := c.Node()
	if n.Kind != query.CondAnd {
		return query.Always[R]()
	}
	kept := make([]query.Condition[R], 0, len(n.Nodes))
	for _, child := range n.Nodes {
		if m.CheckCondition(child) == nil {
			kept = append(kept, query.FromNode[R](child))
		}
	}
	return query.And(kept...)
}
