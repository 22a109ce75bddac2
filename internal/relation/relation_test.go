package relation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ecosystem-api/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls   int32
	records map[string][]store.Record
	err     error
}

func (f *fakeFetcher) FetchAll(_ context.Context, collection string, _ store.Page) ([]store.Record, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return f.records[collection], nil
}

var walletLineItems = Spec{Collection: "BudgetStatementLineItem", ParentField: "id", ChildField: "budgetStatementWalletId"}

func lineItems() []store.Record {
	return []store.Record{
		{"id": int64(1), "budgetStatementWalletId": int64(7)},
		{"id": int64(2), "budgetStatementWalletId": int64(8)},
		{"id": int64(3), "budgetStatementWalletId": "7"},
		{"id": int64(4), "budgetStatementWalletId": nil},
	}
}

func TestFilter(t *testing.T) {
	t.Run("matches preserve order", func(t *testing.T) {
		got := Filter(store.Record{"id": "7"}, walletLineItems, lineItems())
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0]["id"])
		assert.Equal(t, int64(3), got[1]["id"])
	})

	t.Run("no match is empty not nil", func(t *testing.T) {
		got := Filter(store.Record{"id": int64(99)}, walletLineItems, lineItems())
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("null parent key never matches", func(t *testing.T) {
		got := Filter(store.Record{"id": nil}, walletLineItems, lineItems())
		assert.Empty(t, got)
	})

	t.Run("missing parent field", func(t *testing.T) {
		got := Filter(store.Record{}, walletLineItems, lineItems())
		assert.Empty(t, got)
	})

	t.Run("parent side foreign key", func(t *testing.T) {
		spec := Spec{Collection: "StakeholderRole", ParentField: "stakeholderRoleId", ChildField: "id"}
		roles := []store.Record{{"id": int64(1), "name": "Owner"}, {"id": int64(2), "name": "Reviewer"}}
		got := Filter(store.Record{"stakeholderRoleId": int64(2)}, spec, roles)
		require.Len(t, got, 1)
		assert.Equal(t, "Reviewer", got[0]["name"])
	})
}

func TestPaginate(t *testing.T) {
	recs := lineItems()
	assert.Len(t, Paginate(recs, 0, 0), 4)
	assert.Len(t, Paginate(recs, 2, 0), 2)
	got := Paginate(recs, 2, 1)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0]["id"])
	assert.Empty(t, Paginate(recs, 1, 10))
	assert.Len(t, Paginate(recs, 10, 3), 1)
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, []string{"Technical", "Growth"}, ParseCategory("{Technical,Growth}"))
	assert.Equal(t, []string{"Support"}, ParseCategory([]byte("{Support}")))
	assert.Equal(t, []string{}, ParseCategory("{}"))
	assert.Nil(t, ParseCategory(nil))
	assert.Equal(t, []string{"a"}, ParseCategory([]string{"a"}))
}

func TestWithCategories(t *testing.T) {
	rec := store.Record{"id": "1", "category": "{Technical}"}
	out := WithCategories(rec, "category")
	assert.Equal(t, []string{"Technical"}, out["category"])
	assert.Equal(t, "{Technical}", rec["category"])
}

func TestResolverWithoutCache(t *testing.T) {
	f := &fakeFetcher{records: map[string][]store.Record{"BudgetStatementLineItem": lineItems()}}
	r := NewResolver(f)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), store.Record{"id": int64(8)}, walletLineItems)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls))
}

func TestResolverSharesCachedCollection(t *testing.T) {
	f := &fakeFetcher{records: map[string][]store.Record{"BudgetStatementLineItem": lineItems()}}
	r := NewResolver(f)
	ctx := NewCacheContext(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Resolve(ctx, store.Record{"id": int64(7)}, walletLineItems)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
	cache, ok := CacheFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, int32(1), cache.Misses())
	assert.Equal(t, int32(7), cache.Hits())
}

func TestResolverPropagatesError(t *testing.T) {
	boom := errors.New("connection refused")
	r := NewResolver(&fakeFetcher{err: boom})
	_, err := r.Resolve(context.Background(), store.Record{"id": "1"}, walletLineItems)
	assert.ErrorIs(t, err, boom)
}

func TestCacheFromContextMissing(t *testing.T) {
	_, ok := CacheFromContext(context.Background())
	assert.False(t, ok)
}

func TestCollectionCacheDoesNotMemoizeFailures(t *testing.T) {
	boom := errors.New("connection refused")
	f := &fakeFetcher{err: boom, records: map[string][]store.Record{"BudgetStatementLineItem": lineItems()}}
	r := NewResolver(f)
	ctx := NewCacheContext(context.Background())

	_, err := r.Resolve(ctx, store.Record{"id": int64(7)}, walletLineItems)
	require.ErrorIs(t, err, boom)

	f.err = nil
	got, err := r.Resolve(ctx, store.Record{"id": int64(7)}, walletLineItems)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = r.Resolve(ctx, store.Record{"id": int64(8)}, walletLineItems)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&f.calls))
	cache, _ := CacheFromContext(ctx)
	assert.Equal(t, int32(2), cache.Misses())
	assert.Equal(t, int32(1), cache.Hits())
}
