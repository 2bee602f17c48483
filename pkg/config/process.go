package config

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const pprofReadHeaderTimeout = 5 * time.Second

// PProfConfig controls the optional profiling listener.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if c.Enabled {
		b.WriteString(fmt.Sprintf("  addr: %s\n", c.Addr))
	}
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("pprof is enabled but address is not configured")
	}
	return nil
}

// Server returns the profiling server, serving the handlers net/http/pprof registers
// on the default mux. It returns nil when profiling is disabled.
func (c *PProfConfig) Server() *http.Server {
	if !c.Enabled {
		return nil
	}
	return &http.Server{
		Addr:              c.Addr,
		Handler:           http.DefaultServeMux,
		ReadHeaderTimeout: pprofReadHeaderTimeout,
	}
}

// ShutdownConfig bounds how long each component gets to stop once the process is signalled.
type ShutdownConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

func (c *ShutdownConfig) String() string {
	return fmt.Sprintf("\n--- Shutdown ---\n  timeout: %s\n", c.Timeout)
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	return nil
}

// Context returns a background context that expires after Timeout.
func (c *ShutdownConfig) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.Timeout)
}
