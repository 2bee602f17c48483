// Package main runs the storefront HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/storefront/internal/app"
	"github.com/abgdnv/storefront/internal/config"
	"github.com/abgdnv/storefront/internal/slot"
	"github.com/abgdnv/storefront/migrations"
	"github.com/abgdnv/storefront/pkg/auth"
	"github.com/abgdnv/storefront/pkg/bootstrap"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/abgdnv/storefront/pkg/messaging"
	pnats "github.com/abgdnv/storefront/pkg/nats"
	"github.com/abgdnv/storefront/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "storefront"

	redisConnectAttempts = 5
	verifierStartup      = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, opens the configured backends and serves HTTP until ctx is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	g, gCtx := errgroup.WithContext(ctx)
	shutdown := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down " + name + "...")
			shutdownCtx, cancel := cfg.Shutdown.Context()
			defer cancel()
			return fn(shutdownCtx)
		})
	}

	if cfg.Telemetry.Traces.Enabled {
		tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		shutdown("tracer provider", tracerProvider.Shutdown)
	}

	var infra app.Infrastructure
	if cfg.Telemetry.Metrics.Enabled {
		meterProvider, metricsHandler, err := telemetry.NewMeterProvider(serviceName)
		if err != nil {
			return err
		}
		infra.Metrics = metricsHandler
		shutdown("meter provider", meterProvider.Shutdown)
	}

	if cfg.UsesPostgres() {
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create database connection pool: %w", err)
		}
		defer dbPool.Close()
		logger.Info("Successfully connected to the database!")
		if cfg.Database.Migrate {
			if err := bootstrap.RunMigrations(migrations.FS, migrations.Dir, cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("Database migrations applied")
		}
		infra.DB = dbPool
	}

	if cfg.Cart.Storage == config.StorageRedis {
		redisClient, err := slot.NewRedis(ctx, cfg.Redis, redisConnectAttempts)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()
		infra.Redis = redisClient
	}

	if cfg.Nats.Enabled {
		natsConn, err := pnats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create NATS connection: %w", err)
		}
		defer natsConn.Close()
		js, err := pnats.NewJetStreamContext(natsConn)
		if err != nil {
			return fmt.Errorf("failed to get JetStream context: %w", err)
		}
		if _, err := pnats.EnsureStream(ctx, js, cfg.Nats.Stream, messaging.StreamSubjects); err != nil {
			return err
		}
		infra.JetStream = js
		shutdown("NATS connection", func(context.Context) error { return natsConn.Drain() })
	}

	if cfg.IdP.Enabled {
		startupCtx, cancel := context.WithTimeout(ctx, verifierStartup)
		verifier, err := auth.NewJWTVerifier(startupCtx, cfg.IdP)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to create JWT verifier: %w", err)
		}
		infra.Verifier = verifier
	}

	deps, err := app.SetupDependencies(ctx, cfg, infra, logger)
	if err != nil {
		return err
	}
	httpServer := app.SetupHttpServer(deps, cfg)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	shutdown("HTTP server", httpServer.Shutdown)

	// Evict idle carts; every held cart is flushed once the context is cancelled
	g.Go(func() error {
		err := deps.Sessions.Run(gCtx, cfg.Session.EvictInterval)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info("cart sessions flushed")
		return nil
	})

	// Publish cart notifications off the request path
	if deps.Notifications != nil {
		g.Go(func() error {
			err := deps.Notifications.Run(gCtx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// Start the pprof server if enabled
	if pprofServer := cfg.PProf.Server(); pprofServer != nil {
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		shutdown("pprof server", pprofServer.Shutdown)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}
