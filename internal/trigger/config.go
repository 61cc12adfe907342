package trigger

import (
	"fmt"
	"os"
	"strconv"
)

// LatchBackend names where trigger latches are stored.
type LatchBackend string

const (
	LatchMemory   LatchBackend = "memory"
	LatchPostgres LatchBackend = "postgres"
	LatchRedis    LatchBackend = "redis"
)

// Config selects the latch backend and whether triggering runs at all.
type Config struct {
	Disabled    bool         `toml:"disabled"`
	Latch       LatchBackend `toml:"latch"`
	RedisPrefix string       `toml:"redis_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Disabled    string
	Latch       string
	RedisPrefix string
}

// Enabled reports whether extracted documents fire the downstream trigger.
func (c *Config) Enabled() bool {
	return !c.Disabled
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
	if overlay.Disabled {
		c.Disabled = true
	}
	if overlay.Latch != "" {
		c.Latch = overlay.Latch
	}
	if overlay.RedisPrefix != "" {
		c.RedisPrefix = overlay.RedisPrefix
	}
}

func (c *Config) loadDefaults() {
	if c.Latch == "" {
		c.Latch = LatchMemory
	}
	if c.RedisPrefix == "" {
		c.RedisPrefix = DefaultRedisPrefix
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Disabled != "" {
		if v := os.Getenv(env.Disabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Disabled = b
			}
		}
	}
	if env.Latch != "" {
		if v := os.Getenv(env.Latch); v != "" {
			c.Latch = LatchBackend(v)
		}
	}
	if env.RedisPrefix != "" {
		if v := os.Getenv(env.RedisPrefix); v != "" {
			c.RedisPrefix = v
		}
	}
}

func (c *Config) validate() error {
	switch c.Latch {
	case LatchMemory, LatchPostgres, LatchRedis:
		return nil
	default:
		return fmt.Errorf("unknown latch backend %q", c.Latch)
	}
}
