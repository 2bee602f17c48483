// Package config holds the configuration of the storefront and notifier processes.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
	"github.com/google/uuid"
)

var (
	_ configloader.Validator = (*Config)(nil)
	_ configloader.Defaulter = (*Config)(nil)
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// CartConfig selects where cart snapshots are kept. PublishBuffer bounds the notifications
// waiting to be published to NATS.
type CartConfig struct {
	Storage        string        `koanf:"storage"`
	PublishTimeout time.Duration `koanf:"publishtimeout"`
	PublishBuffer  int           `koanf:"publishbuffer"`
}

// CatalogConfig selects the product source. Seed loads the built-in products into Postgres at startup.
type CatalogConfig struct {
	Source string `koanf:"source"`
	Seed   bool   `koanf:"seed"`
}

// SessionConfig controls how long idle carts stay in memory.
// DemoID, when set, is a session that starts with a sample order history.
type SessionConfig struct {
	IdleTTL       time.Duration `koanf:"idlettl"`
	EvictInterval time.Duration `koanf:"evictinterval"`
	DemoID        string        `koanf:"demoid"`
}

type Config struct {
	HTTPServer     config.HTTPConfig           `koanf:"server"`
	Log            config.LogConfig            `koanf:"log"`
	Database       config.DatabaseConfig       `koanf:"database"`
	Redis          config.RedisConfig          `koanf:"redis"`
	Nats           config.NATSConfig           `koanf:"nats"`
	IdP            config.IdP                  `koanf:"idp"`
	Telemetry      config.TelemetryConfig      `koanf:"telemetry"`
	PProf          config.PProfConfig          `koanf:"pprof"`
	Shutdown       config.ShutdownConfig       `koanf:"shutdown"`
	CircuitBreaker config.CircuitBreakerConfig `koanf:"circuitbreaker"`
	Cart           CartConfig                  `koanf:"cart"`
	Catalog        CatalogConfig               `koanf:"catalog"`
	Session        SessionConfig               `koanf:"session"`
}

// Defaults returns the built-in configuration. It is called on a nil *Config.
func (*Config) Defaults() map[string]any {
	return map[string]any{
		"server.port":               8080,
		"server.maxHeaderBytes":     1 << 20,
		"server.timeout.read":       "5s",
		"server.timeout.write":      "10s",
		"server.timeout.idle":       "120s",
		"server.timeout.readHeader": "2s",

		"log.level": "info",

		"database.timeout": "5s",

		"redis.addr":      "localhost:6379",
		"redis.keyprefix": "storefront:",
		"redis.ttl":       "720h",
		"redis.timeout":   "3s",

		"nats.enabled": false,
		"nats.timeout": "5s",
		"nats.stream":  "STOREFRONT",

		"idp.enabled":     false,
		"idp.mininterval": "5m",

		"telemetry.metrics.enabled": true,
		"telemetry.metrics.path":    "/metrics",

		"pprof.enabled": false,
		"pprof.addr":    "localhost:6060",

		"shutdown.timeout": "10s",

		"circuitbreaker.enabled":             true,
		"circuitbreaker.consecutivefailures": 5,
		"circuitbreaker.errorratepercent":    60,
		"circuitbreaker.opentimeout":         "30s",
		"circuitbreaker.halfopenrequests":    1,

		"cart.storage":        StorageMemory,
		"cart.publishtimeout": "2s",
		"cart.publishbuffer":  256,
		"catalog.source":      StorageMemory,
		"catalog.seed":        true,

		"session.idlettl":       "30m",
		"session.evictinterval": "1m",
	}
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Log.String())
	b.WriteString("\n--- Storefront ---\n")
	b.WriteString(fmt.Sprintf("  cart.storage: %s\n", c.Cart.Storage))
	b.WriteString(fmt.Sprintf("  cart.publishtimeout: %s\n", c.Cart.PublishTimeout))
	b.WriteString(fmt.Sprintf("  cart.publishbuffer: %d\n", c.Cart.PublishBuffer))
	b.WriteString(fmt.Sprintf("  catalog.source: %s\n", c.Catalog.Source))
	b.WriteString(fmt.Sprintf("  catalog.seed: %t\n", c.Catalog.Seed))
	b.WriteString(fmt.Sprintf("  session.idlettl: %s\n", c.Session.IdleTTL))
	b.WriteString(fmt.Sprintf("  session.evictinterval: %s\n", c.Session.EvictInterval))
	b.WriteString(fmt.Sprintf("  session.demoid: %s\n", c.Session.DemoID))
	if c.UsesPostgres() {
		b.WriteString(c.Database.String())
	}
	if c.Cart.Storage == StorageRedis {
		b.WriteString(c.Redis.String())
	}
	b.WriteString(c.CircuitBreaker.String())
	b.WriteString(c.Nats.String())
	b.WriteString(fmt.Sprintf("\n--- IdP ---\n  enabled: %t\n  issuer: %s\n", c.IdP.Enabled, c.IdP.Issuer))
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// UsesPostgres reports whether any component needs the database.
func (c *Config) UsesPostgres() bool {
	return c.Cart.Storage == StoragePostgres || c.Catalog.Source == StoragePostgres
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	if err := c.HTTPServer.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	switch c.Cart.Storage {
	case StorageMemory, StoragePostgres:
	case StorageRedis:
		if err := c.Redis.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown cart storage %q", c.Cart.Storage)
	}
	switch c.Catalog.Source {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown catalog source %q", c.Catalog.Source)
	}
	if c.UsesPostgres() {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if c.Session.IdleTTL <= 0 {
		return fmt.Errorf("session idle ttl must be greater than 0")
	}
	if c.Session.EvictInterval <= 0 {
		return fmt.Errorf("session evict interval must be greater than 0")
	}
	if c.Session.DemoID != "" {
		if _, err := uuid.Parse(c.Session.DemoID); err != nil {
			return fmt.Errorf("session demo id must be a UUID: %w", err)
		}
	}
	if c.Nats.Enabled && c.Cart.PublishTimeout <= 0 {
		return fmt.Errorf("cart publish timeout must be greater than 0")
	}
	if c.Nats.Enabled && c.Cart.PublishBuffer <= 0 {
		return fmt.Errorf("cart publish buffer must be greater than 0")
	}
	if err := c.CircuitBreaker.Validate(); err != nil {
		return err
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if err := c.IdP.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	return c.Shutdown.Validate()
}
