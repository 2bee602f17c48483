package slot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/cart"
	"github.com/abgdnv/storefront/internal/catalog"
	perrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/abgdnv/storefront/pkg/config"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testBackend runs the behaviour every Backend must share.
func testBackend(t *testing.T, backend Backend) {
	t.Helper()
	ctx := context.Background()
	key := Key("conformance")

	_, err := backend.Get(ctx, key)
	require.ErrorIs(t, err, perrors.ErrSlotEmpty)

	require.NoError(t, backend.Put(ctx, key, []byte("v1")))
	require.NoError(t, backend.Put(ctx, key, []byte("v2")))
	got, err := backend.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, backend.Delete(ctx, key))
	_, err = backend.Get(ctx, key)
	require.ErrorIs(t, err, perrors.ErrSlotEmpty)
	require.NoError(t, backend.Delete(ctx, key), "deleting a missing key is not an error")
}

func TestMemory(t *testing.T) {
	testBackend(t, NewMemory())
}

func TestMemory_StoresCopies(t *testing.T) {
	// given
	m := NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Put(context.Background(), "k", data))

	// when
	data[0] = 'x'
	got, _ := m.Get(context.Background(), "k")
	got[1] = 'y'
	again, _ := m.Get(context.Background(), "k")

	// then
	assert.Equal(t, []byte("abc"), again)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "cart:abc", Key("abc"))
}

func TestKeyed_WithCartStore(t *testing.T) {
	// given
	backend := NewMemory()
	ctx := context.Background()
	first := cart.Open(ctx, NewKeyed(backend, Key("s1")))
	first.Add(ctx, catalog.SeedProducts()[0], 2)

	// when
	restored := cart.Open(ctx, NewKeyed(backend, Key("s1")))
	other := cart.Open(ctx, NewKeyed(backend, Key("s2")))

	// then
	q, ok := restored.Quantity("1")
	assert.True(t, ok)
	assert.Equal(t, 2, q)
	assert.Zero(t, other.Len())
}

func TestKeyed_ClearedCartDeletesKey(t *testing.T) {
	// given
	backend := NewMemory()
	ctx := context.Background()
	store := cart.Open(ctx, NewKeyed(backend, Key("s1")))
	store.Add(ctx, catalog.SeedProducts()[0], 2)
	_, err := backend.Get(ctx, Key("s1"))
	require.NoError(t, err)

	// when
	store.Clear(ctx)

	// then
	_, err = backend.Get(ctx, Key("s1"))
	require.ErrorIs(t, err, perrors.ErrSlotEmpty)
	assert.Zero(t, cart.Open(ctx, NewKeyed(backend, Key("s1"))).Len())
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockBackend) Put(ctx context.Context, key string, data []byte) error {
	return m.Called(ctx, key, data).Error(0)
}

func (m *mockBackend) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func breakerConfig() config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:             true,
		ConsecutiveFailures: 3,
		ErrorRatePercent:    100,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	// given
	backendErr := errors.New("connection refused")
	next := new(mockBackend)
	next.On("Put", mock.Anything, "k", mock.Anything).Return(backendErr).Times(3)
	b := NewBreaker("test", next, breakerConfig())

	// when
	var errs []error
	for range 5 {
		errs = append(errs, b.Put(context.Background(), "k", []byte("x")))
	}

	// then
	for _, err := range errs[:3] {
		assert.ErrorIs(t, err, backendErr)
	}
	for _, err := range errs[3:] {
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	next.AssertExpectations(t)
}

func TestBreaker_EmptySlotDoesNotTrip(t *testing.T) {
	// given
	next := new(mockBackend)
	next.On("Get", mock.Anything, "k").Return(nil, perrors.ErrSlotEmpty)
	b := NewBreaker("test", next, breakerConfig())

	// when
	for range 10 {
		_, err := b.Get(context.Background(), "k")
		require.ErrorIs(t, err, perrors.ErrSlotEmpty)
	}

	// then
	assert.Equal(t, gobreaker.StateClosed, b.State())
	next.AssertNumberOfCalls(t, "Get", 10)
}

func TestBreaker_ClearedCartDeletesThroughBreaker(t *testing.T) {
	// given
	ctx := context.Background()
	next := new(mockBackend)
	next.On("Get", mock.Anything, "cart:s1").Return(nil, perrors.ErrSlotEmpty).Once()
	next.On("Put", mock.Anything, "cart:s1", mock.Anything).Return(nil).Once()
	next.On("Delete", mock.Anything, "cart:s1").Return(nil).Once()
	store := cart.Open(ctx, NewKeyed(NewBreaker("test", next, breakerConfig()), Key("s1")))
	store.Add(ctx, catalog.SeedProducts()[0], 1)

	// when
	store.Clear(ctx)

	// then
	next.AssertExpectations(t)
}

func TestBreaker_PassesThrough(t *testing.T) {
	// given
	b := NewBreaker("test", NewMemory(), breakerConfig())

	// then
	testBackend(t, b)
}
