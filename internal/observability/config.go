package observability

import (
	"fmt"
	"net"
	"os"
)

// Config holds the metrics endpoint. An empty Addr disables serving.
type Config struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Addr string
}

// Enabled reports whether the metrics endpoint should be served.
func (c *Config) Enabled() bool {
	return c.Addr != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Addr != "" {
		c.Addr = overlay.Addr
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
}

func (c *Config) loadDefaults() {
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Addr != "" {
		if v := os.Getenv(env.Addr); v != "" {
			c.Addr = v
		}
	}
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("invalid metrics addr: %w", err)
	}
	return nil
}
