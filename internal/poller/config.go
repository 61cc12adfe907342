package poller

import (
	"fmt"
	"os"
	"time"
)

// Config holds polling timing as duration strings.
type Config struct {
	Interval        string `toml:"interval"`
	Deadline        string `toml:"deadline"`
	ErrorBackoff    string `toml:"error_backoff"`
	MaxErrorBackoff string `toml:"max_error_backoff"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Interval        string
	Deadline        string
	ErrorBackoff    string
	MaxErrorBackoff string
}

// Options converts the configured timing into polling options.
// An unset ErrorBackoff stays zero so Options derives it from Interval.
func (c *Config) Options() Options {
	return Options{
		Interval:        parseDuration(c.Interval),
		Deadline:        parseDuration(c.Deadline),
		ErrorBackoff:    parseDuration(c.ErrorBackoff),
		MaxErrorBackoff: parseDuration(c.MaxErrorBackoff),
	}
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
	if overlay.Interval != "" {
		c.Interval = overlay.Interval
	}
	if overlay.Deadline != "" {
		c.Deadline = overlay.Deadline
	}
	if overlay.ErrorBackoff != "" {
		c.ErrorBackoff = overlay.ErrorBackoff
	}
	if overlay.MaxErrorBackoff != "" {
		c.MaxErrorBackoff = overlay.MaxErrorBackoff
	}
}

func (c *Config) loadDefaults() {
	if c.Interval == "" {
		c.Interval = DefaultInterval.String()
	}
	if c.Deadline == "" {
		c.Deadline = DefaultDeadline.String()
	}
	if c.MaxErrorBackoff == "" {
		c.MaxErrorBackoff = DefaultMaxErrorBackoff.String()
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Interval != "" {
		if v := os.Getenv(env.Interval); v != "" {
			c.Interval = v
		}
	}
	if env.Deadline != "" {
		if v := os.Getenv(env.Deadline); v != "" {
			c.Deadline = v
		}
	}
	if env.ErrorBackoff != "" {
		if v := os.Getenv(env.ErrorBackoff); v != "" {
			c.ErrorBackoff = v
		}
	}
	if env.MaxErrorBackoff != "" {
		if v := os.Getenv(env.MaxErrorBackoff); v != "" {
			c.MaxErrorBackoff = v
		}
	}
}

func (c *Config) validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"interval", c.Interval},
		{"deadline", c.Deadline},
		{"error_backoff", c.ErrorBackoff},
		{"max_error_backoff", c.MaxErrorBackoff},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := time.ParseDuration(f.value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", f.name, f.value)
		}
	}

	interval, deadline := parseDuration(c.Interval), parseDuration(c.Deadline)
	if deadline < interval {
		return fmt.Errorf("deadline %s shorter than interval %s", c.Deadline, c.Interval)
	}
	return nil
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
