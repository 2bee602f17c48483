package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/checkout"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.HTTPServer.Port = 8080
	cfg.Cart.Storage = config.StorageMemory
	cfg.Catalog.Source = config.StorageMemory
	cfg.Session.IdleTTL = time.Minute
	cfg.Session.EvictInterval = time.Minute
	cfg.Telemetry.Metrics.Path = "/metrics"
	return cfg
}

func newHandler(t *testing.T, cfg *config.Config, infra Infrastructure) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, err := SetupDependencies(context.Background(), cfg, infra, logger)
	require.NoError(t, err)
	return SetupHttpHandler(deps)
}

func TestSetupHttpHandler_Routes(t *testing.T) {
	// given
	_, metrics, err := telemetry.NewMeterProvider("storefront-test")
	require.NoError(t, err)
	handler := newHandler(t, memoryConfig(), Infrastructure{Metrics: metrics})
	sid := uuid.NewString()

	// when
	body, _ := json.Marshal(rest.AddItemRequest{ProductID: "1", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body))
	req.Header.Set(web.XSessionID, sid)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// then
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "cart_mutations"), "metrics should expose cart_mutations")
}

func TestSetupDependencies_DemoHistory(t *testing.T) {
	// given
	cfg := memoryConfig()
	cfg.Session.DemoID = uuid.NewString()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// when
	deps, err := SetupDependencies(context.Background(), cfg, Infrastructure{}, logger)

	// then
	require.NoError(t, err)
	orders, err := deps.Checkout.Orders(context.Background(), cfg.Session.DemoID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, checkout.StatusShipped, orders[0].Status)
	assert.Equal(t, checkout.StatusDelivered, orders[1].Status)
}

func TestSetupDependencies_MissingInfrastructure(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{name: "redis storage", mutate: func(cfg *config.Config) { cfg.Cart.Storage = config.StorageRedis },
			wantErr: "needs a redis client"},
		{name: "postgres storage", mutate: func(cfg *config.Config) { cfg.Cart.Storage = config.StoragePostgres },
			wantErr: "needs a database pool"},
		{name: "postgres catalog", mutate: func(cfg *config.Config) { cfg.Catalog.Source = config.StoragePostgres },
			wantErr: "needs a database pool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			cfg := memoryConfig()
			tt.mutate(cfg)
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))

			// when
			_, err := SetupDependencies(context.Background(), cfg, Infrastructure{}, logger)

			// then
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
