// Package app wires the storefront components together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/abgdnv/storefront/internal/catalog"
	"github.com/abgdnv/storefront/internal/checkout"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/notify"
	"github.com/abgdnv/storefront/internal/session"
	"github.com/abgdnv/storefront/internal/slot"
	"github.com/abgdnv/storefront/internal/transport/rest"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/messaging"
	pnats "github.com/abgdnv/storefront/pkg/nats"
	"github.com/abgdnv/storefront/pkg/server"
	"github.com/abgdnv/storefront/pkg/web"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serverName = "storefront"

// Infrastructure holds the connections opened by main. Nil members are not configured.
type Infrastructure struct {
	DB        *pgxpool.Pool
	Redis     slot.Backend
	JetStream jetstream.JetStream
	Verifier  auth.Verifier
	Metrics   http.Handler
}

type Dependencies struct {
	Catalog       *catalog.Service
	Sessions      *session.Registry
	// Notifications publishes cart notifications to NATS. Nil without JetStream.
	Notifications *notify.PublisherSink
	Checkout      *checkout.Service
	Verifier      auth.Verifier
	Metrics       http.Handler
	MetricsPath   string
	Logger        *slog.Logger
}

// SetupDependencies builds the services selected by cfg on top of infra.
func SetupDependencies(ctx context.Context, cfg *config.Config, infra Infrastructure, logger *slog.Logger) (*Dependencies, error) {
	store, err := setupCatalogStore(ctx, cfg.Catalog, infra.DB)
	if err != nil {
		return nil, err
	}
	backend, err := setupSlotBackend(cfg, infra)
	if err != nil {
		return nil, err
	}

	var publisher messaging.Publisher = messaging.NopPublisher{}
	var notifications *notify.PublisherSink
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if infra.JetStream != nil {
		publisher = pnats.NewNatsPublisher(infra.JetStream)
		notifications = notify.NewPublisherSink(publisher, cfg.Cart.PublishTimeout, cfg.Cart.PublishBuffer, logger)
		sinks = append(sinks, notifications)
	}

	registry, err := session.NewRegistry(backend, notify.Multi(sinks...), cfg.Session.IdleTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}

	history := checkout.NewMemoryHistory()
	if cfg.Session.DemoID != "" {
		if err := seedDemoHistory(ctx, history, store, cfg.Session.DemoID); err != nil {
			return nil, err
		}
	}
	checkoutSvc, err := checkout.NewService(history, publisher, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout service: %w", err)
	}

	return &Dependencies{
		Catalog:       catalog.NewService(store),
		Sessions:      registry,
		Notifications: notifications,
		Checkout:      checkoutSvc,
		Verifier:      infra.Verifier,
		Metrics:       infra.Metrics,
		MetricsPath:   cfg.Telemetry.Metrics.Path,
		Logger:        logger,
	}, nil
}

func setupCatalogStore(ctx context.Context, cfg config.CatalogConfig, db *pgxpool.Pool) (catalog.Store, error) {
	if cfg.Source != config.StoragePostgres {
		return catalog.NewMemoryStore(catalog.SeedProducts()), nil
	}
	if db == nil {
		return nil, fmt.Errorf("catalog source %q needs a database pool", cfg.Source)
	}
	store := catalog.NewPgStore(db)
	if cfg.Seed {
		if err := store.Seed(ctx, catalog.SeedProducts()); err != nil {
			return nil, fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	return store, nil
}

func setupSlotBackend(cfg *config.Config, infra Infrastructure) (slot.Backend, error) {
	var backend slot.Backend
	switch cfg.Cart.Storage {
	case config.StorageMemory:
		return slot.NewMemory(), nil
	case config.StorageRedis:
		if infra.Redis == nil {
			return nil, fmt.Errorf("cart storage %q needs a redis client", cfg.Cart.Storage)
		}
		backend = infra.Redis
	case config.StoragePostgres:
		if infra.DB == nil {
			return nil, fmt.Errorf("cart storage %q needs a database pool", cfg.Cart.Storage)
		}
		backend = slot.NewPostgres(infra.DB)
	default:
		return nil, fmt.Errorf("unknown cart storage %q", cfg.Cart.Storage)
	}
	if cfg.CircuitBreaker.Enabled {
		backend = slot.NewBreaker("cart-slot-"+cfg.Cart.Storage, backend, cfg.CircuitBreaker)
	}
	return backend, nil
}

func seedDemoHistory(ctx context.Context, history checkout.History, store catalog.Store, sessionID string) error {
	products, err := store.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products for demo orders: %w", err)
	}
	for _, order := range checkout.DemoOrders(products, time.Now()) {
		if err := history.Append(ctx, sessionID, order); err != nil {
			return fmt.Errorf("failed to seed demo order %s: %w", order.ID, err)
		}
	}
	return nil
}

// SetupHttpHandler initializes the router with every storefront route.
// Used by tests to exercise the whole HTTP surface.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, serverName)
}

// wireRoutes sets up the HTTP routes for the storefront.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	if deps.Metrics != nil && deps.MetricsPath != "" {
		mux.Handle(deps.MetricsPath, deps.Metrics)
	}
	handler := rest.NewHandler(deps.Catalog, deps.Sessions, deps.Checkout, deps.Logger)
	handler.RegisterRoutes(mux, web.SessionMiddleware(deps.Verifier, deps.Logger))
}

// SetupHttpServer creates and configures an HTTP server for the storefront.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}
	return server.NewHTTPServer(httpCfg, SetupHttpHandler(deps))
}
