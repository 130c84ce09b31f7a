// store/memstore/memstore_test.go
package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/quarry/query"
	"github.com/solatis/quarry/store"
)

type account struct {
	Owner   string `json:"owner"`
	Balance int    `json:"balance"`
}

var (
	accOwner = query.NewField("owner",
		func(a account) string { return a.Owner },
		func(a account, v string) account { a.Owner = v; return a })
	accBalance = query.NewField("balance",
		func(a account) int { return a.Balance },
		func(a account, v int) account { a.Balance = v; return a })
)

func seeded(t *testing.T) (*Store[account], []string) {
	t.Helper()
	s := New[account]("accounts-" + t.Name())
	ctx := context.Background()

	var ids []string
	for _, a := range []account{
		{Owner: "alice", Balance: 100},
		{Owner: "bob", Balance: 50},
		{Owner: "carol", Balance: 250},
	} {
		id, err := s.Insert(ctx, a)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return s, ids
}

func TestInsertGet(t *testing.T) {
	s, ids := seeded(t)

	got, err := s.Get(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, account{Owner: "alice", Balance: 100}, got)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReplaceDelete(t *testing.T) {
	s, ids := seeded(t)
	ctx := context.Background()

	require.NoError(t, s.Replace(ctx, ids[1], account{Owner: "bob", Balance: 75}))
	got, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 75, got.Balance)

	assert.ErrorIs(t, s.Replace(ctx, "nope", account{}), store.ErrNotFound)

	require.NoError(t, s.Delete(ctx, ids[1]))
	_, err = s.Get(ctx, ids[1])
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, ids[1]), store.ErrNotFound)
}

func TestFindOrderedByID(t *testing.T) {
	s, ids := seeded(t)

	docs, err := s.Find(context.Background(), query.Always[account]())
	require.NoError(t, err)
	require.Len(t, docs, 3)

	// UUIDv7 ids are time-ordered, so id order equals insertion order
	for i, d := range docs {
		assert.Equal(t, ids[i], d.ID)
	}
}

func TestFindFiltered(t *testing.T) {
	s, _ := seeded(t)

	docs, err := s.Find(context.Background(), query.Gte(accBalance, 100))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "alice", docs[0].Rec.Owner)
	assert.Equal(t, "carol", docs[1].Rec.Owner)

	doc, err := s.FindOne(context.Background(), query.Eq(accOwner, "bob"))
	require.NoError(t, err)
	assert.Equal(t, 50, doc.Rec.Balance)

	_, err = s.FindOne(context.Background(), query.Eq(accOwner, "nobody"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateMany(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	n, err := s.UpdateMany(ctx, query.Lt(accBalance, 200), query.Inc(accBalance, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	docs, err := s.Find(ctx, query.Always[account]())
	require.NoError(t, err)
	balances := map[string]int{}
	for _, d := range docs {
		balances[d.Rec.Owner] = d.Rec.Balance
	}
	assert.Equal(t, map[string]int{"alice": 110, "bob": 60, "carol": 250}, balances)
}

func TestUpdateOne(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	ok, err := s.UpdateOne(ctx, query.Eq(accOwner, "carol"), query.Mul(accBalance, 2))
	require.NoError(t, err)
	assert.True(t, ok)

	doc, err := s.FindOne(ctx, query.Eq(accOwner, "carol"))
	require.NoError(t, err)
	assert.Equal(t, 500, doc.Rec.Balance)

	ok, err = s.UpdateOne(ctx, query.Eq(accOwner, "nobody"), query.Inc(accBalance, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteManyCount(t *testing.T) {
	s, _ := seeded(t)
	ctx := context.Background()

	total, err := s.Count(ctx, query.Always[account]())
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	n, err := s.DeleteMany(ctx, query.Lte(accBalance, 100))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	total, err = s.Count(ctx, query.Always[account]())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMatrixIsFull(t *testing.T) {
	s := New[account]("matrix")
	m := s.Matrix()
	for _, k := range query.CondKinds() {
		assert.True(t, m.Conditions[k], "condition %s", k)
	}
	for _, k := range query.ModKinds() {
		assert.True(t, m.Modifications[k], "modification %s", k)
	}
}
