package poller_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/intake/internal/poller"
)

func TestConfigDefaults(t *testing.T) {
	cfg := poller.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	opts := cfg.Options()
	if opts.Interval != poller.DefaultInterval || opts.Deadline != poller.DefaultDeadline {
		t.Errorf("unexpected options: %+v", opts)
	}
	if opts.ErrorBackoff != 0 {
		t.Errorf("error backoff = %v, want derived from interval", opts.ErrorBackoff)
	}
}

func TestConfigEnvOverride(t *testing.T) {
	t.Setenv("TEST_POLL_INTERVAL", "500ms")
	t.Setenv("TEST_POLL_DEADLINE", "1m")

	cfg := poller.Config{Interval: "5s", ErrorBackoff: "3s"}
	env := &poller.Env{Interval: "TEST_POLL_INTERVAL", Deadline: "TEST_POLL_DEADLINE"}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	opts := cfg.Options()
	if opts.Interval != 500*time.Millisecond || opts.Deadline != time.Minute || opts.ErrorBackoff != 3*time.Second {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := map[string]poller.Config{
		"unparsable":         {Interval: "often"},
		"negative":           {Deadline: "-1s"},
		"deadline too tight": {Interval: "10s", Deadline: "5s"},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			if err := cfg.Finalize(nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigMerge(t *testing.T) {
	cfg := poller.Config{Interval: "2s", Deadline: "3m"}
	cfg.Merge(&poller.Config{Deadline: "10m"})
	if cfg.Interval != "2s" || cfg.Deadline != "10m" {
		t.Errorf("merge result: %+v", cfg)
	}
}
