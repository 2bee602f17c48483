package cart

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSlot is an in-memory Slot that counts writes and can be told to fail.
type memSlot struct {
	data    []byte
	saves   int
	loadErr error
	saveErr error
}

func (m *memSlot) Load(context.Context) ([]byte, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return nil, perrors.ErrSlotEmpty
	}
	return m.data, nil
}

func (m *memSlot) Save(_ context.Context, data []byte) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = data
	return nil
}

func product(id string, price string, stock int) catalog.Product {
	return catalog.Product{ID: id, Name: "Product " + id, Price: decimal.RequireFromString(price), Stock: stock}
}

func newStore(t *testing.T, slot Slot) (*Store, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	return Open(context.Background(), slot, WithSink(rec)), rec
}

func kinds(ns []notify.Notification) []notify.Kind {
	out := make([]notify.Kind, len(ns))
	for i, n := range ns {
		out[i] = n.Kind
	}
	return out
}

func TestStore_Add_OutOfStock(t *testing.T) {
	for _, n := range []int{-3, 0, 1, 5, 100} {
		// given
		slot := &memSlot{}
		store, rec := newStore(t, slot)

		// when
		store.Add(context.Background(), product("3", "35.00", 0), n)

		// then
		assert.Zero(t, store.Len(), "n=%d", n)
		assert.Equal(t, []notify.Kind{notify.KindOutOfStock}, kinds(rec.Drain()), "n=%d", n)
		assert.Zero(t, slot.saves, "n=%d", n)
	}
}

func TestStore_Add_NewItemQuantity(t *testing.T) {
	testCases := []struct {
		name      string
		stock     int
		requested int
		expected  int
		notified  []notify.Kind
	}{
		{name: "within stock", stock: 10, requested: 2, expected: 2, notified: []notify.Kind{notify.KindItemAdded}},
		{name: "exactly stock", stock: 3, requested: 3, expected: 3, notified: []notify.Kind{notify.KindItemAdded}},
		{name: "over stock is clamped", stock: 3, requested: 7, expected: 3, notified: []notify.Kind{notify.KindLimitedStock, notify.KindItemAdded}},
		{name: "zero defaults to one", stock: 3, requested: 0, expected: 1, notified: []notify.Kind{notify.KindItemAdded}},
		{name: "negative defaults to one", stock: 3, requested: -4, expected: 1, notified: []notify.Kind{notify.KindItemAdded}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			slot := &memSlot{}
			store, rec := newStore(t, slot)

			// when
			store.Add(context.Background(), product("p", "1.00", tc.stock), tc.requested)

			// then
			q, ok := store.Quantity("p")
			require.True(t, ok)
			assert.Equal(t, tc.expected, q)
			assert.Equal(t, tc.notified, kinds(rec.Drain()))
			assert.Equal(t, 1, slot.saves)
		})
	}
}

func TestStore_Add_ExistingItem(t *testing.T) {
	testCases := []struct {
		name        string
		first       int
		second      int
		stock       int
		expected    int
		notified    []notify.Kind
		description string
		saves       int
	}{
		{name: "increments", first: 2, second: 3, stock: 10, expected: 5, notified: []notify.Kind{notify.KindItemAdded}, saves: 2},
		{
			name: "partially clamped", first: 4, second: 3, stock: 5, expected: 5,
			notified:    []notify.Kind{notify.KindLimitedStock, notify.KindItemAdded},
			description: "Only 1 more Product p could be added (5 in stock).",
			saves:       2,
		},
		{
			name: "nothing more can be added", first: 5, second: 1, stock: 5, expected: 5,
			notified:    []notify.Kind{notify.KindLimitedStock},
			description: "No more Product p can be added: all 5 in stock are already in your cart.",
			saves:       1,
		},
		{
			name: "max int is clamped to the remaining stock", first: 2, second: math.MaxInt, stock: 10, expected: 10,
			notified:    []notify.Kind{notify.KindLimitedStock, notify.KindItemAdded},
			description: "Only 8 more Product p could be added (10 in stock).",
			saves:       2,
		},
		{
			name: "max int with max int stock", first: 1, second: math.MaxInt, stock: math.MaxInt, expected: math.MaxInt,
			notified:    []notify.Kind{notify.KindItemAdded},
			saves:       2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			slot := &memSlot{}
			store, rec := newStore(t, slot)
			store.Add(context.Background(), product("p", "1.00", tc.stock), tc.first)
			rec.Drain()

			// when
			store.Add(context.Background(), product("p", "1.00", tc.stock), tc.second)

			// then
			q, _ := store.Quantity("p")
			assert.Equal(t, tc.expected, q)
			got := rec.Drain()
			assert.Equal(t, tc.notified, kinds(got))
			if tc.description != "" {
				assert.Equal(t, tc.description, got[0].Description)
			}
			assert.Equal(t, tc.saves, slot.saves)
			assert.Equal(t, 1, store.Len())
			assert.Equal(t, tc.expected, store.ItemCount())
			assert.True(t, decimal.NewFromInt(int64(tc.expected)).Equal(store.Subtotal()), store.Subtotal().String())
		})
	}
}

func TestStore_Add_RefreshesProductRecord(t *testing.T) {
	// given
	store, _ := newStore(t, nil)
	store.Add(context.Background(), product("p", "10.00", 5), 1)
	updated := product("p", "12.50", 5)
	updated.Name = "Renamed"

	// when
	store.Add(context.Background(), updated, 1)

	// then
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Renamed", items[0].Product.Name)
	assert.True(t, decimal.RequireFromString("25.00").Equal(store.Subtotal()))
}

func TestStore_Add_StockShrankBelowQuantity(t *testing.T) {
	// given
	store, rec := newStore(t, nil)
	store.Add(context.Background(), product("p", "1.00", 5), 5)
	rec.Drain()

	// when
	store.Add(context.Background(), product("p", "1.00", 2), 1)

	// then
	q, _ := store.Quantity("p")
	assert.Equal(t, 2, q)
	assert.Equal(t, []notify.Kind{notify.KindLimitedStock}, kinds(rec.Drain()))
}

func TestStore_SingleUnitStockScenario(t *testing.T) {
	// given
	store, rec := newStore(t, nil)
	b := product("B", "3.00", 1)

	// when
	store.Add(context.Background(), b, 1)
	store.Add(context.Background(), b, 1)

	// then
	q, _ := store.Quantity("B")
	assert.Equal(t, 1, q)
	assert.Equal(t, []notify.Kind{notify.KindItemAdded, notify.KindLimitedStock}, kinds(rec.Drain()))
}

func TestStore_AddTwoScenario(t *testing.T) {
	// given
	store, _ := newStore(t, nil)
	a := product("A", "159.99", 10)

	// when
	store.Add(context.Background(), a, 2)

	// then
	items := store.Items()
	require.Len(t, items, 1)
	assert.Equal(t, LineItem{Product: a, Quantity: 2}, items[0])
	assert.Equal(t, 2, store.ItemCount())
	assert.True(t, a.Price.Mul(decimal.NewFromInt(2)).Equal(store.Subtotal()))
}

func TestStore_Remove(t *testing.T) {
	// given
	slot := &memSlot{}
	store, rec := newStore(t, slot)
	store.Add(context.Background(), product("a", "1.00", 5), 1)
	store.Add(context.Background(), product("b", "1.00", 5), 1)
	rec.Drain()
	savesBefore := slot.saves

	// when
	store.Remove(context.Background(), "a")
	store.Remove(context.Background(), "a")
	store.Remove(context.Background(), "unknown")

	// then
	got := rec.Drain()
	assert.Equal(t, []notify.Kind{notify.KindItemRemoved}, kinds(got))
	assert.Equal(t, notify.SeverityDestructive, got[0].Severity)
	assert.Equal(t, "Product a removed.", got[0].Description)
	assert.Equal(t, savesBefore+1, slot.saves)
	_, ok := store.Quantity("a")
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())
}

func TestStore_SetQuantity(t *testing.T) {
	testCases := []struct {
		name     string
		q        int
		expected int
		notified []notify.Kind
	}{
		{name: "within range", q: 3, expected: 3, notified: []notify.Kind{}},
		{name: "zero floors at one", q: 0, expected: 1, notified: []notify.Kind{}},
		{name: "negative floors at one", q: -10, expected: 1, notified: []notify.Kind{}},
		{name: "stock ceiling", q: 5, expected: 5, notified: []notify.Kind{}},
		{name: "above stock is clamped", q: 9, expected: 5, notified: []notify.Kind{notify.KindLimitedStock}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			slot := &memSlot{}
			store, rec := newStore(t, slot)
			store.Add(context.Background(), product("p", "2.00", 5), 2)
			rec.Drain()

			// when
			store.SetQuantity(context.Background(), "p", tc.q)
			first, _ := store.Quantity("p")
			firstNotified := kinds(rec.Drain())
			store.SetQuantity(context.Background(), "p", tc.q)
			second, _ := store.Quantity("p")

			// then
			assert.Equal(t, tc.expected, first)
			assert.Equal(t, first, second)
			assert.Equal(t, tc.notified, firstNotified)
			assert.Equal(t, 3, slot.saves)
		})
	}
}

func TestStore_SetQuantity_UnknownID(t *testing.T) {
	// given
	slot := &memSlot{}
	store, rec := newStore(t, slot)

	// when
	store.SetQuantity(context.Background(), "missing", 3)

	// then
	assert.Zero(t, store.Len())
	assert.Empty(t, rec.Drain())
	assert.Zero(t, slot.saves)
}

func TestStore_Clear(t *testing.T) {
	// given
	slot := &memSlot{}
	store, rec := newStore(t, slot)
	store.Add(context.Background(), product("a", "1.00", 5), 1)
	store.Add(context.Background(), product("b", "2.00", 5), 2)
	store.Add(context.Background(), product("c", "3.00", 5), 3)
	rec.Drain()

	// when
	store.Clear(context.Background())

	// then
	assert.Zero(t, store.ItemCount())
	assert.True(t, store.Subtotal().IsZero())
	assert.Equal(t, []notify.Kind{notify.KindCartCleared}, kinds(rec.Drain()))
	persisted, err := DecodeSnapshot(slot.data)
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

// deletingSlot is a memSlot that also drops its entry on Delete.
type deletingSlot struct {
	memSlot
	deletes int
}

func (d *deletingSlot) Delete(context.Context) error {
	d.deletes++
	d.data = nil
	return nil
}

func TestStore_Flush_EmptyCartDeletes(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(ctx context.Context, s *Store)
		saves   int
		deletes int
	}{
		{name: "clear", mutate: func(ctx context.Context, s *Store) { s.Clear(ctx) }, saves: 1, deletes: 1},
		{name: "remove last item", mutate: func(ctx context.Context, s *Store) { s.Remove(ctx, "a") }, saves: 1, deletes: 1},
		{name: "non-empty cart is saved", mutate: func(ctx context.Context, s *Store) { s.SetQuantity(ctx, "a", 2) }, saves: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			ctx := context.Background()
			slot := &deletingSlot{}
			store, _ := newStore(t, slot)
			store.Add(ctx, product("a", "1.00", 5), 1)

			// when
			tc.mutate(ctx, store)

			// then
			assert.Equal(t, tc.saves, slot.saves)
			assert.Equal(t, tc.deletes, slot.deletes)
			_, err := slot.Load(ctx)
			if tc.deletes > 0 {
				require.ErrorIs(t, err, perrors.ErrSlotEmpty)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestStore_DerivedValuesAreStable(t *testing.T) {
	// given
	store, _ := newStore(t, nil)
	store.Add(context.Background(), product("a", "0.10", 10), 3)
	store.Add(context.Background(), product("b", "19.99", 10), 2)

	// when
	first := store.Subtotal()
	second := store.Subtotal()

	// then
	assert.True(t, decimal.RequireFromString("40.28").Equal(first))
	assert.True(t, first.Equal(second))
	assert.Equal(t, 5, store.ItemCount())
}

func TestStore_RoundTrip(t *testing.T) {
	// given
	slot := &memSlot{}
	store, _ := newStore(t, slot)
	store.Add(context.Background(), product("a", "1.25", 4), 2)
	store.Add(context.Background(), product("b", "9.99", 7), 7)
	store.Add(context.Background(), product("c", "3.00", 1), 1)

	// when
	restored, _ := newStore(t, slot)

	// then
	require.Equal(t, store.Len(), restored.Len())
	for i, li := range store.Items() {
		got := restored.Items()[i]
		assert.Equal(t, li.Product.ID, got.Product.ID)
		assert.Equal(t, li.Quantity, got.Quantity)
		assert.True(t, li.Product.Price.Equal(got.Product.Price))
	}
	assert.True(t, store.Subtotal().Equal(restored.Subtotal()))
}

func TestStore_PersistenceFailuresAreNotFatal(t *testing.T) {
	// given
	slot := &memSlot{loadErr: errors.New("redis down"), saveErr: errors.New("redis down")}
	store, rec := newStore(t, slot)

	// when
	store.Add(context.Background(), product("a", "1.00", 5), 2)

	// then
	q, ok := store.Quantity("a")
	assert.True(t, ok)
	assert.Equal(t, 2, q)
	assert.Equal(t, []notify.Kind{notify.KindItemAdded}, kinds(rec.Drain()))
	assert.Error(t, store.Flush(context.Background()))
}

func TestStore_UnreadableSnapshotStartsEmpty(t *testing.T) {
	// given
	slot := &memSlot{data: []byte(`{"version":7,"items":[]}`)}

	// when
	store, _ := newStore(t, slot)

	// then
	assert.Zero(t, store.Len())
}

func TestStore_OnChange(t *testing.T) {
	// given
	store, _ := newStore(t, nil)
	var seen [][]LineItem
	store.OnChange(func(items []LineItem) { seen = append(seen, items) })

	// when
	store.Add(context.Background(), product("a", "1.00", 5), 1)
	store.Add(context.Background(), product("z", "1.00", 0), 1)
	store.SetQuantity(context.Background(), "a", 3)
	store.Remove(context.Background(), "a")

	// then
	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0][0].Quantity)
	assert.Equal(t, 3, seen[1][0].Quantity)
	assert.Empty(t, seen[2])
}

func TestStore_ItemsReturnsCopy(t *testing.T) {
	// given
	store, _ := newStore(t, nil)
	store.Add(context.Background(), product("a", "1.00", 5), 1)

	// when
	items := store.Items()
	items[0].Quantity = 99

	// then
	q, _ := store.Quantity("a")
	assert.Equal(t, 1, q)
}

func TestStore_FlushUsesClock(t *testing.T) {
	// given
	slot := &memSlot{}
	at := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	store := Open(context.Background(), slot, WithClock(func() time.Time { return at }))

	// when
	require.NoError(t, store.Flush(context.Background()))

	// then
	assert.Contains(t, string(slot.data), `"savedAt":"2025-03-04T05:06:07Z"`)
}
