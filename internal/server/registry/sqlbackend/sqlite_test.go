package sqlbackend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/medkeeper/internal/common"
	"github.com/dmitrijs2005/medkeeper/internal/server/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(context.Background(), SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLite_PutGetListDelete(t *testing.T) {
	b := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, b.Apply(ctx,
		registry.PutOp(registry.Pending, "b", []byte(`{"n":2}`)),
		registry.PutOp(registry.Pending, "a", []byte(`{"n":1}`)),
		registry.PutOp(registry.Invites, "a", []byte(`{"x":true}`)),
	))

	v, err := b.Get(ctx, registry.Pending, "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(v))

	recs, err := b.List(ctx, registry.Pending)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Key)
	assert.Equal(t, "b", recs[1].Key)

	require.NoError(t, b.Apply(ctx, registry.DeleteOp(registry.Pending, "a")))
	_, err = b.Get(ctx, registry.Pending, "a")
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = b.Get(ctx, registry.Invites, "a")
	assert.NoError(t, err, "collections are independent")
}

func TestSQLite_UpsertOverwrites(t *testing.T) {
	b := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, b.Apply(ctx, registry.PutOp(registry.Sessions, "k", []byte("old"))))
	require.NoError(t, b.Apply(ctx, registry.PutOp(registry.Sessions, "k", []byte("new"))))

	v, err := b.Get(ctx, registry.Sessions, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), v)
}

func TestSQLite_MigrateIsRepeatable(t *testing.T) {
	b := openSQLite(t)
	require.NoError(t, b.Migrate(context.Background()))
}

func TestSQLite_StoreMergeConcurrent(t *testing.T) {
	b := openSQLite(t)
	s := registry.NewStore(b)
	ctx := context.Background()

	type doc struct {
		N int `json:"n"`
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := registry.Merge(ctx, s, registry.Pending, "p", func(cur doc, _ bool) (doc, error) {
				cur.N++
				return cur, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := registry.Get[doc](ctx, s, registry.Pending, "p")
	require.NoError(t, err)
	assert.Equal(t, 20, got.N)
}

func TestSQLite_ClosedDatabaseErrors(t *testing.T) {
	b, err := Open(context.Background(), SQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Get(context.Background(), registry.Pending, "x")
	require.Error(t, err)
	assert.False(t, errors.Is(err, common.ErrorNotFound))

	err = b.Apply(context.Background(), registry.PutOp(registry.Pending, "x", []byte(fmt.Sprint(1))))
	assert.Error(t, err)
}
