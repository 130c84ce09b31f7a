// store/fallback_test.go
package store

import (
	"context"
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/quarry/query"
)

type ticket struct {
	Title    string   `json:"title"`
	Priority int      `json:"priority"`
	Labels   []string `json:"labels"`
}

var (
	tTitle = query.NewField("title",
		func(t ticket) string { return t.Title },
		func(t ticket, v string) ticket { t.Title = v; return t })
	tPriority = query.NewField("priority",
		func(t ticket) int { return t.Priority },
		func(t ticket, v int) ticket { t.Priority = v; return t })
	tLabels = query.NewSliceField("labels",
		func(t ticket) []string { return t.Labels },
		func(t ticket, v []string) ticket { t.Labels = v; return t })
)

// fakeBackend records the condition trees it receives and evaluates them
// in memory, pretending to support only what its matrix declares.
type fakeBackend struct {
	matrix query.SupportMatrix
	docs   map[string]ticket
	nextID int

	findConds []*query.CondNode

	// refuse, when set, lets Find reject a tree at execution time the
	// way a translator refuses literals it cannot bind.
	refuse func(n *query.CondNode) error
}

func newFakeBackend() *fakeBackend {
	m := query.FullSupport()
	delete(m.Conditions, query.CondMatches)
	delete(m.Conditions, query.CondSearch)
	delete(m.Modifications, query.ModForEach)
	return &fakeBackend{matrix: m, docs: map[string]ticket{}}
}

func (f *fakeBackend) Matrix() query.SupportMatrix { return f.matrix }
func (f *fakeBackend) Close() error                { return nil }

func (f *fakeBackend) Insert(_ context.Context, rec ticket) (string, error) {
	f.nextID++
	id := string(rune('a' + f.nextID - 1))
	f.docs[id] = rec
	return id, nil
}

func (f *fakeBackend) Get(_ context.Context, id string) (ticket, error) {
	rec, ok := f.docs[id]
	if !ok {
		return ticket{}, ErrNotFound
	}
	return rec, nil
}

func (f *fakeBackend) Replace(_ context.Context, id string, rec ticket) error {
	if _, ok := f.docs[id]; !ok {
		return ErrNotFound
	}
	f.docs[id] = rec
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, id string) error {
	if _, ok := f.docs[id]; !ok {
		return ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeBackend) Find(_ context.Context, c query.Condition[ticket]) ([]Document[ticket], error) {
	if err := f.matrix.CheckCondition(c.Node()); err != nil {
		return nil, err
	}
	f.findConds = append(f.findConds, c.Node())
	if f.refuse != nil {
		if err := f.refuse(c.Node()); err != nil {
			return nil, err
		}
	}

	var ids []string
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Document[ticket]
	for _, id := range ids {
		if query.Eval(c, f.docs[id]) {
			out = append(out, Document[ticket]{ID: id, Rec: f.docs[id]})
		}
	}
	return out, nil
}

func (f *fakeBackend) FindOne(ctx context.Context, c query.Condition[ticket]) (Document[ticket], error) {
	docs, err := f.Find(ctx, c)
	if err != nil {
		return Document[ticket]{}, err
	}
	if len(docs) == 0 {
		return Document[ticket]{}, ErrNotFound
	}
	return docs[0], nil
}

func (f *fakeBackend) UpdateMany(ctx context.Context, c query.Condition[ticket], m query.Modification[ticket]) (int, error) {
	if err := f.matrix.CheckModification(m.Node()); err != nil {
		return 0, err
	}
	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		f.docs[d.ID] = query.Apply(m, d.Rec)
	}
	return len(docs), nil
}

func (f *fakeBackend) UpdateOne(ctx context.Context, c query.Condition[ticket], m query.Modification[ticket]) (bool, error) {
	if err := f.matrix.CheckModification(m.Node()); err != nil {
		return false, err
	}
	doc, err := f.FindOne(ctx, c)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.docs[doc.ID] = query.Apply(m, doc.Rec)
	return true, nil
}

func (f *fakeBackend) DeleteMany(ctx context.Context, c query.Condition[ticket]) (int, error) {
	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	for _, d := range docs {
		delete(f.docs, d.ID)
	}
	return len(docs), nil
}

func (f *fakeBackend) Count(ctx context.Context, c query.Condition[ticket]) (int, error) {
	docs, err := f.Find(ctx, c)
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func seedTickets(t *testing.T) (*fakeBackend, Collection[ticket]) {
	t.Helper()
	fb := newFakeBackend()
	col := WithFallback[ticket](fb)
	ctx := context.Background()

	for _, tk := range []ticket{
		{Title: "db outage", Priority: 9},
		{Title: "ui glitch", Priority: 2},
		{Title: "db slow queries", Priority: 5},
	} {
		_, err := col.Insert(ctx, tk)
		require.NoError(t, err)
	}
	return fb, col
}

func TestFallback_SupportedPassesThrough(t *testing.T) {
	fb, col := seedTickets(t)

	docs, err := col.Find(context.Background(), query.Gte(tPriority, 5))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	// the backend saw exactly the original tree
	require.Len(t, fb.findConds, 1)
	assert.Equal(t, query.CondGte, fb.findConds[0].Kind)
}

func TestFallback_UnsupportedFiltersClientSide(t *testing.T) {
	fb, col := seedTickets(t)

	c := query.And(
		query.Gte(tPriority, 3),
		query.Matches(tTitle, regexp.MustCompile(`^db `)),
	)
	docs, err := col.Find(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Contains(t, d.Rec.Title, "db")
	}

	// backend received only the supported conjunct
	require.Len(t, fb.findConds, 1)
	pushed := fb.findConds[0]
	require.Equal(t, query.CondAnd, pushed.Kind)
	require.Len(t, pushed.Nodes, 1)
	assert.Equal(t, query.CondGte, pushed.Nodes[0].Kind)
}

func TestFallback_NonConjunctionPushesAlways(t *testing.T) {
	fb, col := seedTickets(t)

	c := query.Matches(tTitle, regexp.MustCompile(`glitch`))
	docs, err := col.Find(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "ui glitch", docs[0].Rec.Title)

	require.Len(t, fb.findConds, 1)
	assert.Equal(t, query.CondAnd, fb.findConds[0].Kind)
	assert.Empty(t, fb.findConds[0].Nodes)
}

func TestFallback_FindOne(t *testing.T) {
	_, col := seedTickets(t)

	doc, err := col.FindOne(context.Background(), query.Matches(tTitle, regexp.MustCompile(`slow`)))
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Rec.Priority)

	_, err = col.FindOne(context.Background(), query.Matches(tTitle, regexp.MustCompile(`nothing`)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFallback_UpdateManyDegrades(t *testing.T) {
	_, col := seedTickets(t)
	ctx := context.Background()

	// unsupported condition forces find + apply + replace
	n, err := col.UpdateMany(ctx,
		query.Matches(tTitle, regexp.MustCompile(`^db `)),
		query.Inc(tPriority, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := col.Find(ctx, query.Gte(tPriority, 10))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "db outage", docs[0].Rec.Title)
}

func TestFallback_UpdateOneUnsupportedMod(t *testing.T) {
	fb, col := seedTickets(t)
	ctx := context.Background()

	// condition is supported but the modification is not: the wrapper
	// must not hand the modification to the backend
	ok, err := col.UpdateOne(ctx, query.Eq(tTitle, "ui glitch"), unsupportedMod())
	require.NoError(t, err)
	assert.True(t, ok)

	for id, tk := range fb.docs {
		if tk.Title == "ui glitch" {
			assert.Equal(t, 3, fb.docs[id].Priority)
		}
	}
}

// unsupportedMod builds a modification outside the fake's matrix that
// still has a visible effect on a ticket.
func unsupportedMod() query.Modification[ticket] {
	return query.Chain(
		query.Inc(tPriority, 1),
		query.ForEach(tLabels, query.AppendStr(query.Self[string](), "")),
	)
}

func TestFallback_DeleteManyDegrades(t *testing.T) {
	_, col := seedTickets(t)
	ctx := context.Background()

	n, err := col.DeleteMany(ctx, query.Matches(tTitle, regexp.MustCompile(`^db `)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err := col.Count(ctx, query.Always[ticket]())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestFallback_CountDegrades(t *testing.T) {
	_, col := seedTickets(t)

	n, err := col.Count(context.Background(), query.Matches(tTitle, regexp.MustCompile(`db`)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// refuseContainingEq mirrors a translator that admits Eq in its matrix
// but refuses a literal it cannot bind at execution time.
func refuseContainingEq(n *query.CondNode) error {
	switch n.Kind {
	case query.CondEq:
		return &query.UnsupportedError{Cond: n}
	case query.CondAnd, query.CondOr:
		for _, child := range n.Nodes {
			if err := refuseContainingEq(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestFallback_RuntimeRefusalDegrades(t *testing.T) {
	fb, col := seedTickets(t)
	fb.refuse = refuseContainingEq

	docs, err := col.Find(context.Background(), query.Eq(tTitle, "db outage"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 9, docs[0].Rec.Priority)

	// the original tree was refused, then the unconditional fetch ran
	require.Len(t, fb.findConds, 2)
	assert.Equal(t, query.CondEq, fb.findConds[0].Kind)
	assert.Equal(t, query.CondAlways, fb.findConds[1].Kind)
}

func TestFallback_RuntimeRefusalOfConjunct(t *testing.T) {
	fb, col := seedTickets(t)
	fb.refuse = refuseContainingEq

	c := query.And(query.Eq(tTitle, "db outage"), query.Gte(tPriority, 5))
	docs, err := col.Find(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "db outage", docs[0].Rec.Title)

	// the conjunction was refused as pushed and as pushdown before the
	// unconditional fetch
	require.Len(t, fb.findConds, 3)
	assert.Equal(t, query.CondAnd, fb.findConds[0].Kind)
	assert.Equal(t, query.CondAnd, fb.findConds[1].Kind)
	assert.Equal(t, query.CondAlways, fb.findConds[2].Kind)
}

func TestFallback_RuntimeRefusalCount(t *testing.T) {
	fb, col := seedTickets(t)
	fb.refuse = refuseContainingEq

	n, err := col.Count(context.Background(), query.Eq(tTitle, "ui glitch"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
