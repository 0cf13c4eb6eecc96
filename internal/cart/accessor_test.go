package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/cartkv/cartkv/internal/catalog"
	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/cartkv/cartkv/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccessor(t *testing.T) (*Accessor, *memory.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	return New(store), store
}

func products(ids ...string) []catalog.Product {
	out := make([]catalog.Product, len(ids))
	for i, id := range ids {
		out[i] = catalog.Product{ID: id, Title: "title " + id, Image: id + ".webp", Price: 10, Quantity: 1}
	}
	return out
}

func TestCreateCartWritesKeyLayout(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	err := a.CreateCart(ctx, "u1", []catalog.Product{
		{ID: "A", Title: "Alpha", Image: "a.webp", Price: 100, Quantity: 2},
		{ID: "B", Title: "Beta", Image: "b.webp", Price: 50, Quantity: 1},
	})
	require.NoError(t, err)

	isMember, err := store.SIsMember(ctx, "carts", []byte("cart:u1"))
	require.NoError(t, err)
	assert.True(t, isMember)

	card, err := store.SCard(ctx, "cart:u1:products")
	require.NoError(t, err)
	assert.Equal(t, int64(2), card)

	flag, err := store.GetString(ctx, "cart:u1:isPaid")
	require.NoError(t, err)
	assert.Equal(t, "0", flag)

	fields, err := store.HGetAll(ctx, "cart:u1:product:A")
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"id":       []byte("A"),
		"title":    []byte("Alpha"),
		"image":    []byte("a.webp"),
		"price":    []byte("100"),
		"quantity": []byte("2"),
	}, fields)
}

func TestCreateCartRejectsInvalidProductBeforeWriting(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	err := a.CreateCart(ctx, "u1", []catalog.Product{
		{ID: "A", Price: 100, Quantity: 1},
		{ID: "B", Price: -5, Quantity: 1},
	})
	require.ErrorIs(t, err, catalog.ErrInvalidProduct)

	n, err := store.Exists(ctx, "carts", "cart:u1:products", "cart:u1:product:A")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateCartMergesIntoExistingCart(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B")))
	require.NoError(t, a.MarkPaid(ctx, "cart:u1", true))
	require.NoError(t, a.CreateCart(ctx, "u1", products("C")))

	ids, err := a.GetAllCartIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:u1"}, ids)

	// Old lines survive a re-create
	_, err = a.GetLineEntry(ctx, "cart:u1", "A")
	require.NoError(t, err)

	total, err := a.CalculateCartTotal(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(30), total)

	paid, err := a.IsPaid(ctx, "cart:u1")
	require.NoError(t, err)
	assert.False(t, paid, "re-create resets the paid flag")
}

func TestMembershipMatchesLineEntries(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B", "C", "B")))

	ids, err := a.members(ctx, ProductsKey("cart:u1"))
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	for _, id := range ids {
		n, err := store.Exists(ctx, LineKey("cart:u1", id))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "line for %s", id)
	}
}

func TestCalculateCartTotal(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", []catalog.Product{
		{ID: "A", Price: 100, Quantity: 2},
		{ID: "B", Price: 50, Quantity: 1},
	}))

	for i := 0; i < 3; i++ {
		total, err := a.CalculateCartTotal(ctx, "cart:u1")
		require.NoError(t, err)
		assert.Equal(t, int64(250), total)
	}

	total, err := a.CalculateCartTotal(ctx, "cart:nobody")
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCalculateCartTotalMalformedLine(t *testing.T) {
	tests := []struct {
		name  string
		setup func(ctx context.Context, store kv.Store)
	}{
		{
			name: "line deleted behind the set",
			setup: func(ctx context.Context, store kv.Store) {
				store.Del(ctx, LineKey("cart:u1", "A"))
			},
		},
		{
			name: "price not a number",
			setup: func(ctx context.Context, store kv.Store) {
				store.HSet(ctx, LineKey("cart:u1", "A"), "price", []byte("abc"))
			},
		},
		{
			name: "quantity field missing",
			setup: func(ctx context.Context, store kv.Store) {
				store.Del(ctx, LineKey("cart:u1", "A"))
				store.HSet(ctx, LineKey("cart:u1", "A"), "price", []byte("10"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, store := newTestAccessor(t)
			ctx := context.Background()
			require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B")))

			tt.setup(ctx, store)

			_, err := a.CalculateCartTotal(ctx, "cart:u1")
			assert.ErrorIs(t, err, ErrMalformedLine)
		})
	}
}

func TestRemoveProduct(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", []catalog.Product{
		{ID: "A", Price: 100, Quantity: 2},
		{ID: "B", Price: 50, Quantity: 1},
	}))

	require.NoError(t, a.RemoveProduct(ctx, "cart:u1", "A"))

	total, err := a.CalculateCartTotal(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)

	n, err := store.Exists(ctx, LineKey("cart:u1", "A"))
	require.NoError(t, err)
	assert.Zero(t, n)

	// Idempotent
	require.NoError(t, a.RemoveProduct(ctx, "cart:u1", "A"))
	total, err = a.CalculateCartTotal(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), total)
}

func TestIncrementProduct(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", []catalog.Product{{ID: "SKU007", Price: 790000, Quantity: 2}}))

	const n = 4
	for i := 0; i < n; i++ {
		require.NoError(t, a.IncrementProduct(ctx, "cart:u1", "SKU007"))
	}

	line, err := a.GetLineEntry(ctx, "cart:u1", "SKU007")
	require.NoError(t, err)
	assert.Equal(t, int64(2+n), line.Quantity)

	total, err := a.CalculateCartTotal(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Equal(t, int64(790000*(2+n)), total)
}

func TestIncrementProductDoesNotCheckMembership(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A")))
	require.NoError(t, a.IncrementProduct(ctx, "cart:u1", "ghost"))

	raw, err := store.HGet(ctx, LineKey("cart:u1", "ghost"), "quantity")
	require.NoError(t, err)
	assert.Equal(t, "1", string(raw))

	isMember, err := store.SIsMember(ctx, ProductsKey("cart:u1"), []byte("ghost"))
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestIncrementProductNonIntegerQuantity(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A")))
	store.HSet(ctx, LineKey("cart:u1", "A"), "quantity", []byte("lots"))

	err := a.IncrementProduct(ctx, "cart:u1", "A")
	assert.ErrorIs(t, err, ErrMalformedLine)
}

func TestClearCartKeepsRegistryEntry(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B", "C")))
	require.NoError(t, a.ClearCart(ctx, "cart:u1"))

	card, err := store.SCard(ctx, ProductsKey("cart:u1"))
	require.NoError(t, err)
	assert.Zero(t, card)

	total, err := a.CalculateCartTotal(ctx, "cart:u1")
	require.NoError(t, err)
	assert.Zero(t, total)

	n, err := store.Exists(ctx, LineKey("cart:u1", "A"), LineKey("cart:u1", "B"), LineKey("cart:u1", "C"))
	require.NoError(t, err)
	assert.Zero(t, n)

	ids, err := a.GetAllCartIDs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, "cart:u1")

	paid, err := a.IsPaid(ctx, "cart:u1")
	require.NoError(t, err)
	assert.False(t, paid)

	// Clearing an empty cart is harmless
	require.NoError(t, a.ClearCart(ctx, "cart:u1"))
}

func TestGetCartsByUser(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	for _, user := range []string{"ncdai-1", "ncdai-2", "ncdai-10", "other"} {
		require.NoError(t, a.CreateCart(ctx, user, products("A")))
	}

	tests := []struct {
		userID string
		want   []string
	}{
		{userID: "ncdai-2", want: []string{"cart:ncdai-2"}},
		{userID: "ncdai-1", want: []string{"cart:ncdai-1", "cart:ncdai-10"}},
		{userID: "ncdai", want: []string{"cart:ncdai-1", "cart:ncdai-2", "cart:ncdai-10"}},
		{userID: "missing", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.userID, func(t *testing.T) {
			got, err := a.GetCartsByUser(ctx, tt.userID)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestGetCartsByUserExactPair(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "ncdai-1", products("A")))
	require.NoError(t, a.CreateCart(ctx, "ncdai-2", products("A")))

	got, err := a.GetCartsByUser(ctx, "ncdai-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:ncdai-1"}, got)
}

func TestFindUnpaidCarts(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A")))
	require.NoError(t, a.CreateCart(ctx, "u2", products("A")))
	require.NoError(t, a.CreateCart(ctx, "u3", products("A")))
	require.NoError(t, a.MarkPaid(ctx, "cart:u2", true))
	// A registered cart with no flag is neither paid nor unpaid
	store.Del(ctx, PaidKey("cart:u3"))

	unpaid, err := a.FindUnpaidCarts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:u1"}, unpaid)

	require.NoError(t, a.MarkPaid(ctx, "cart:u2", false))
	unpaid, err = a.FindUnpaidCarts(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cart:u1", "cart:u2"}, unpaid)
}

func TestCartsWithMoreThanFiveItems(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "big", products("A", "B", "C", "D", "E", "F")))
	require.NoError(t, a.CreateCart(ctx, "small", products("A", "B", "C")))
	require.NoError(t, a.CreateCart(ctx, "edge", products("A", "B", "C", "D", "E")))

	large, err := a.CartsWithMoreThanFiveItems(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"cart:big"}, large)
}

func TestCountCartsWithProduct(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B")))
	require.NoError(t, a.CreateCart(ctx, "u2", products("B")))
	require.NoError(t, a.CreateCart(ctx, "u3", products("C")))

	count, err := a.CountCartsWithProduct(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = a.CountCartsWithProduct(ctx, "Z")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestEmptyRegistryAggregates(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	ids, err := a.GetAllCartIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	maxTotal, err := a.FindCartWithMaxTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, MaxTotal{CartID: nil, Total: 0}, maxTotal)

	top, err := a.GetMostFrequentProduct(ctx)
	require.NoError(t, err)
	assert.Equal(t, ProductFrequency{ProductID: nil, Count: 0}, top)
}

func TestFindCartWithMaxTotal(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "cheap", []catalog.Product{{ID: "A", Price: 10, Quantity: 1}}))
	require.NoError(t, a.CreateCart(ctx, "pricey", []catalog.Product{{ID: "A", Price: 10, Quantity: 1}, {ID: "B", Price: 500, Quantity: 2}}))
	require.NoError(t, a.CreateCart(ctx, "broken", []catalog.Product{{ID: "Z", Price: 99999, Quantity: 9}}))
	store.HSet(ctx, LineKey("cart:broken", "Z"), "price", []byte("NaN"))

	result, err := a.FindCartWithMaxTotal(ctx)
	require.NoError(t, err)
	require.NotNil(t, result.CartID)
	assert.Equal(t, "cart:pricey", *result.CartID)
	assert.Equal(t, int64(1010), result.Total)
}

func TestFindCartWithMaxTotalZeroIsNoWinner(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "free", []catalog.Product{{ID: "A", Price: 0, Quantity: 3}}))

	result, err := a.FindCartWithMaxTotal(ctx)
	require.NoError(t, err)
	assert.Nil(t, result.CartID)
	assert.Zero(t, result.Total)
}

func TestConcurrentReportsAgree(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	demo := catalog.Demo()
	require.NoError(t, a.CreateCart(ctx, "ncdai-1", demo))
	require.NoError(t, a.CreateCart(ctx, "ncdai-2", demo[:3]))

	const callers = 16
	totals := make([]MaxTotal, callers)
	tops := make([]ProductFrequency, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			totals[i], err = a.FindCartWithMaxTotal(ctx)
			assert.NoError(t, err)
			tops[i], err = a.GetMostFrequentProduct(ctx)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NotNil(t, totals[i].CartID)
		assert.Equal(t, "cart:ncdai-1", *totals[i].CartID)
		assert.Equal(t, int64(121420000), totals[i].Total)
		require.NotNil(t, tops[i].ProductID)
		assert.Equal(t, 2, tops[i].Count)
	}
}

func TestGetMostFrequentProduct(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A", "B", "C")))
	require.NoError(t, a.CreateCart(ctx, "u2", products("B", "C")))
	require.NoError(t, a.CreateCart(ctx, "u3", products("B")))

	top, err := a.GetMostFrequentProduct(ctx)
	require.NoError(t, err)
	require.NotNil(t, top.ProductID)
	assert.Equal(t, "B", *top.ProductID)
	assert.Equal(t, 3, top.Count)
}

func TestGetMostFrequentProductAfterClear(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A")))
	require.NoError(t, a.ClearCart(ctx, "cart:u1"))

	top, err := a.GetMostFrequentProduct(ctx)
	require.NoError(t, err)
	assert.Nil(t, top.ProductID)
	assert.Zero(t, top.Count)
}

func TestLineEntryIsSnapshot(t *testing.T) {
	a, _ := newTestAccessor(t)
	ctx := context.Background()

	items := []catalog.Product{{ID: "A", Title: "Old", Price: 100, Quantity: 1}}
	require.NoError(t, a.CreateCart(ctx, "u1", items))

	items[0].Title = "New"
	items[0].Price = 1

	line, err := a.GetLineEntry(ctx, "cart:u1", "A")
	require.NoError(t, err)
	assert.Equal(t, LineEntry{ProductID: "A", Title: "Old", Price: 100, Quantity: 1}, line)
}

func TestGetLineEntryNotFound(t *testing.T) {
	a, _ := newTestAccessor(t)

	_, err := a.GetLineEntry(context.Background(), "cart:u1", "A")
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestIsPaidUnknownCart(t *testing.T) {
	a, _ := newTestAccessor(t)

	_, err := a.IsPaid(context.Background(), "cart:nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestBackendUnavailablePropagates(t *testing.T) {
	a, store := newTestAccessor(t)
	ctx := context.Background()

	require.NoError(t, a.CreateCart(ctx, "u1", products("A")))
	store.Close()

	checks := map[string]func() error{
		"CreateCart": func() error { return a.CreateCart(ctx, "u2", products("A")) },
		"GetAllCartIDs": func() error {
			_, err := a.GetAllCartIDs(ctx)
			return err
		},
		"CalculateCartTotal": func() error {
			_, err := a.CalculateCartTotal(ctx, "cart:u1")
			return err
		},
		"FindCartWithMaxTotal": func() error {
			_, err := a.FindCartWithMaxTotal(ctx)
			return err
		},
		"RemoveProduct": func() error { return a.RemoveProduct(ctx, "cart:u1", "A") },
		"ClearCart":     func() error { return a.ClearCart(ctx, "cart:u1") },
	}

	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, check(), kv.ErrBackendUnavailable)
		})
	}
}
