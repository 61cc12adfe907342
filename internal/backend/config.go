package backend

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

// Config holds connection parameters for the scoring and extraction backend.
type Config struct {
	BaseURL      string `toml:"base_url"`
	Timeout      string `toml:"timeout"`
	RelayPattern string `toml:"relay_pattern"`
	Token        string `toml:"token"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BaseURL      string
	Timeout      string
	RelayPattern string
	Token        string
}

// DefaultRelayPattern matches addresses served by the backend's own upload route,
// either relative or on a loopback host.
const DefaultRelayPattern = `^(/|https?://(localhost|127\.0\.0\.1)(:\d+)?/)api/uploads/`

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
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
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RelayPattern != "" {
		c.RelayPattern = overlay.RelayPattern
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
}

func (c *Config) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8000/api/"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.RelayPattern == "" {
		c.RelayPattern = DefaultRelayPattern
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.RelayPattern != "" {
		if v := os.Getenv(env.RelayPattern); v != "" {
			c.RelayPattern = v
		}
	}
	if env.Token != "" {
		if v := os.Getenv(env.Token); v != "" {
			c.Token = v
		}
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https: %s", c.BaseURL)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
