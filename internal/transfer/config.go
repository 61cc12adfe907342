package transfer

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/intake/pkg/formatting"
)

// DefaultBlobSuffix identifies Azure Blob Storage endpoints.
const DefaultBlobSuffix = ".blob.core.windows.net"

// Config holds the destination classification rules for transfers.
type Config struct {
	BlobSuffixes []string `toml:"blob_suffixes"`
	// MaxFileSize caps the files read for upload, e.g. "50MB".
	MaxFileSize string `toml:"max_file_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	BlobSuffixes string
	MaxFileSize  string
}

// MaxFileSizeBytes returns MaxFileSize in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxFileSize)
	return n
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
	if len(overlay.BlobSuffixes) > 0 {
		c.BlobSuffixes = overlay.BlobSuffixes
	}
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
}

func (c *Config) loadDefaults() {
	if len(c.BlobSuffixes) == 0 {
		c.BlobSuffixes = []string{DefaultBlobSuffix}
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = "50MB"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.BlobSuffixes != "" {
		if v := os.Getenv(env.BlobSuffixes); v != "" {
			var suffixes []string
			for s := range strings.SplitSeq(v, ",") {
				if s = strings.TrimSpace(s); s != "" {
					suffixes = append(suffixes, s)
				}
			}
			c.BlobSuffixes = suffixes
		}
	}
	if env.MaxFileSize != "" {
		if v := os.Getenv(env.MaxFileSize); v != "" {
			c.MaxFileSize = v
		}
	}
}

func (c *Config) validate() error {
	for _, s := range c.BlobSuffixes {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("blob_suffixes must not contain empty entries")
		}
	}
	n, err := formatting.ParseBytes(c.MaxFileSize)
	if err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("max_file_size must be positive: %s", c.MaxFileSize)
	}
	return nil
}
