package infrastructure_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/intake/internal/config"
	"github.com/JaimeStill/intake/internal/infrastructure"
)

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := infrastructure.NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown", "system", "test")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("unexpected log output: %q", out)
	}
}

func TestNewWithOptionalSystemsDisabled(t *testing.T) {
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if infra.Backend == nil || infra.Logger == nil || infra.Lifecycle == nil {
		t.Fatal("core systems missing")
	}
	if infra.Database != nil || infra.Redis != nil || infra.Metrics != nil {
		t.Error("optional systems should be nil when disabled")
	}

	if err := infra.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !infra.Lifecycle.Ready() {
		t.Error("lifecycle should be ready")
	}
	if infra.NATS != nil {
		t.Error("nats should not connect without a url")
	}
	if err := infra.Shutdown(); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestStartWithMetrics(t *testing.T) {
	t.Setenv("INTAKE_METRICS_ADDR", "127.0.0.1:0")

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if infra.Recorder == nil || infra.Metrics == nil {
		t.Fatal("metrics enabled but recorder missing")
	}
	if err := infra.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer infra.Shutdown()
}

func TestStartFailsWhenDatabaseUnreachable(t *testing.T) {
	t.Setenv("INTAKE_DB_DSN", "postgres://intake@127.0.0.1:1/intake?sslmode=disable")
	t.Setenv("INTAKE_DB_CONN_TIMEOUT", "300ms")

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := infra.Start(); err == nil {
		t.Error("expected startup failure")
	}
	if infra.Lifecycle.Ready() {
		t.Error("lifecycle ready despite failed ping")
	}
	infra.Shutdown()
}
