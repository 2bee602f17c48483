package catalog

import (
	"context"
	"errors"
	"testing"

	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore returns err from every call.
type failingStore struct {
	err error
}

func (f failingStore) FindAll(context.Context) ([]Product, error) { return nil, f.err }

func (f failingStore) FindByID(context.Context, string) (*Product, error) { return nil, f.err }

func ids(products []Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func newSeededService() *Service {
	return NewService(NewMemoryStore(SeedProducts()))
}

func Test_Service_FindByID(t *testing.T) {
	testCases := []struct {
		name        string
		id          string
		expectedID  string
		expectError error
	}{
		{name: "Success - product found", id: "4", expectedID: "4"},
		{name: "Error - product not found", id: "42", expectError: perrors.ErrProductNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newSeededService()

			// when
			p, err := svc.FindByID(context.Background(), tc.id)

			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedID, p.ID)
		})
	}
}

func Test_Service_List(t *testing.T) {
	testCases := []struct {
		name     string
		query    Query
		expected []string
	}{
		{name: "default sort is popularity descending", query: Query{}, expected: []string{"1", "3", "6", "2", "5", "4"}},
		{name: "price ascending", query: Query{Sort: SortPriceAsc}, expected: []string{"3", "2", "5", "6", "4", "1"}},
		{name: "price descending", query: Query{Sort: SortPriceDesc}, expected: []string{"1", "4", "6", "5", "2", "3"}},
		{name: "name ascending", query: Query{Sort: SortNameAsc}, expected: []string{"3", "1", "4", "5", "2", "6"}},
		{name: "name descending", query: Query{Sort: SortNameDesc}, expected: []string{"6", "2", "5", "4", "1", "3"}},
		{name: "search matches name case-insensitively", query: Query{Search: "LEATHER"}, expected: []string{"1", "4"}},
		{name: "search matches description", query: Query{Search: "dusty rose"}, expected: []string{"3", "6"}},
		{name: "search without match", query: Query{Search: "bicycle"}, expected: []string{}},
		{name: "category filter is case-insensitive exact", query: Query{Category: "home goods"}, expected: []string{"3", "5"}},
		{name: "category partial name does not match", query: Query{Category: "Home"}, expected: []string{}},
		{name: "category and search combined", query: Query{Category: "Accessories", Search: "tote", Sort: SortPriceAsc}, expected: []string{"4"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newSeededService()

			// when
			products, err := svc.List(context.Background(), tc.query)

			// then
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ids(products))
		})
	}
}

func Test_Service_Categories(t *testing.T) {
	// given
	svc := newSeededService()

	// when
	categories, err := svc.Categories(context.Background())

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"Accessories", "Apparel", "Home Goods"}, categories)
}

func Test_Service_Recommend(t *testing.T) {
	testCases := []struct {
		name        string
		id          string
		limit       int
		expected    []string
		expectError error
	}{
		{name: "same category first then by popularity", id: "4", limit: 3, expected: []string{"1", "3", "6"}},
		{name: "default limit", id: "2", expected: []string{"6", "1", "3"}},
		{name: "limit larger than catalog", id: "5", limit: 10, expected: []string{"3", "1", "6", "2", "4"}},
		{name: "unknown product", id: "nope", limit: 3, expectError: perrors.ErrProductNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			svc := newSeededService()

			// when
			products, err := svc.Recommend(context.Background(), tc.id, tc.limit)

			// then
			if tc.expectError != nil {
				require.ErrorIs(t, err, tc.expectError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, ids(products))
			assert.NotContains(t, ids(products), tc.id)
		})
	}
}

func Test_Service_StoreError(t *testing.T) {
	// given
	storeErr := errors.New("db is down")
	svc := NewService(failingStore{err: storeErr})

	// when
	_, listErr := svc.List(context.Background(), Query{})
	_, catErr := svc.Categories(context.Background())
	_, findErr := svc.FindByID(context.Background(), "1")

	// then
	assert.ErrorIs(t, listErr, storeErr)
	assert.ErrorIs(t, catErr, storeErr)
	assert.ErrorIs(t, findErr, storeErr)
}

func TestParseSort(t *testing.T) {
	testCases := []struct {
		in     string
		want   SortKey
		wantOK bool
	}{
		{in: "", want: SortPopularity, wantOK: true},
		{in: "price-asc", want: SortPriceAsc, wantOK: true},
		{in: " Name-Desc ", want: SortNameDesc, wantOK: true},
		{in: "random", wantOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseSort(tc.in)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMemoryStore_IgnoresDuplicateIDs(t *testing.T) {
	// given
	store := NewMemoryStore([]Product{{ID: "a", Name: "first"}, {ID: "a", Name: "second"}})

	// when
	all, err := store.FindAll(context.Background())

	// then
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "first", all[0].Name)
}

func TestProduct_Discounted(t *testing.T) {
	products := SeedProducts()
	assert.True(t, products[0].Discounted())
	assert.False(t, products[1].Discounted())
	assert.False(t, products[2].InStock())
}
