package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JaimeStill/intake/internal/app"
	"github.com/JaimeStill/intake/internal/config"
	"github.com/JaimeStill/intake/internal/infrastructure"
	"github.com/JaimeStill/intake/internal/ingest"
)

// env is the started pipeline shared by every command.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	infra  *infrastructure.Infrastructure
	domain *app.Domain
	stop   context.CancelFunc
}

// open loads configuration, starts infrastructure and assembles the pipeline.
// The returned context is canceled on SIGINT or SIGTERM.
func open(cli *CLI, observers ...ingest.Observer) (*env, error) {
	cfg, err := config.Load(cli.ConfigDir)
	if err != nil {
		return nil, err
	}
	if cli.Verbose {
		cfg.LogLevel = "debug"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	infra, err := infrastructure.New(ctx, cfg)
	if err != nil {
		stop()
		return nil, err
	}

	infra.Logger.Debug(
		"intake starting",
		"version", cfg.Version,
		"env", cfg.Env(),
		"backend", cfg.Backend.BaseURL,
	)

	if err := infra.Start(); err != nil {
		infra.Shutdown()
		stop()
		return nil, err
	}

	domain, err := app.NewDomain(app.NewRuntime(cfg, infra), nil, observers...)
	if err != nil {
		infra.Shutdown()
		stop()
		return nil, fmt.Errorf("assemble pipeline: %w", err)
	}

	return &env{
		ctx:    infra.Lifecycle.Context(),
		cfg:    cfg,
		infra:  infra,
		domain: domain,
		stop:   stop,
	}, nil
}

func (e *env) close() {
	if err := e.infra.Shutdown(); err != nil {
		e.infra.Logger.Error("shutdown failed", "error", err)
	}
	e.stop()
}
