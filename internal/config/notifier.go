package config

import (
	"fmt"
	"strings"

	"github.com/abgdnv/storefront/pkg/config"
	"github.com/abgdnv/storefront/pkg/config/configloader"
)

var (
	_ configloader.Validator = (*Notifier)(nil)
	_ configloader.Defaulter = (*Notifier)(nil)
)

// Notifier is the configuration of the process consuming storefront events.
type Notifier struct {
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	Nats       config.NATSConfig       `koanf:"nats"`
	Subscriber config.SubscriberConfig `koanf:"subscriber"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
}

func (*Notifier) Defaults() map[string]any {
	return map[string]any{
		"log.level":           "info",
		"pprof.enabled":       false,
		"pprof.addr":          "localhost:6061",
		"nats.enabled":        true,
		"nats.url":            "nats://localhost:4222",
		"nats.timeout":        "5s",
		"nats.stream":         "STOREFRONT",
		"subscriber.subjects": []string{"storefront.orders.placed", "storefront.cart.>"},
		"subscriber.consumer": "notifier",
		"subscriber.batch":    20,
		"subscriber.timeout":  "5s",
		"subscriber.interval": "1s",
		"subscriber.workers":  2,
		"shutdown.timeout":    "10s",
	}
}

func (c *Notifier) String() string {
	var b strings.Builder
	b.WriteString(c.Nats.String())
	b.WriteString(c.Subscriber.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid. The notifier always needs NATS.
func (c *Notifier) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if err := c.PProf.Validate(); err != nil {
		return err
	}
	if !c.Nats.Enabled {
		return fmt.Errorf("nats must be enabled for the notifier")
	}
	if err := c.Nats.Validate(); err != nil {
		return err
	}
	if err := c.Subscriber.Validate(); err != nil {
		return err
	}
	return c.Shutdown.Validate()
}
