package main

import (
	"os"
	"time"

	"github.com/JaimeStill/intake/internal/ingest"
	"github.com/JaimeStill/intake/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	SessionFlags `embed:""`

	Dir      string        `arg:"" type:"existingdir" help:"Directory to watch"`
	Existing bool          `help:"Also upload matching files already in the directory"`
	Debounce time.Duration `help:"Quiet period before a written file is uploaded" default:"500ms"`
	Ext      []string      `help:"File extensions to pick up (defaults to pdf and common image types)"`
}

func (c *WatchCmd) Run(cli *CLI) error {
	input, err := c.input()
	if err != nil {
		return err
	}
	if err := watch.Check(c.Dir); err != nil {
		return err
	}

	e, err := open(cli, newReporter(os.Stdout))
	if err != nil {
		return err
	}
	defer e.close()

	logger := e.infra.Logger.With("command", "watch")

	manager := ingest.NewManager(e.domain.Runner, logger, func(snap ingest.Snapshot, err error) {
		if err != nil && e.ctx.Err() == nil {
			logger.Warn("session ended without a terminal status", "filename", snap.Filename, "error", err)
		}
	})
	defer manager.Wait()
	defer manager.Close()

	paths, err := watch.Watch(e.ctx, watch.Config{
		Dir:         c.Dir,
		Extensions:  c.Ext,
		Debounce:    c.Debounce,
		InitialScan: c.Existing,
	}, logger)
	if err != nil {
		return err
	}

	for path := range paths {
		file, err := ingest.ReadFile(path, e.cfg.Transfer.MaxFileSizeBytes())
		if err != nil {
			logger.Error("read file failed", "path", path, "error", err)
			continue
		}
		if _, err := manager.Attach(e.ctx, file, input); err != nil {
			logger.Error("attach session failed", "path", path, "error", err)
		}
	}
	return nil
}
