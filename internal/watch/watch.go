// Package watch turns files appearing in a directory into upload candidates.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events produced while a file is written.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the file types picked up when Config.Extensions is empty.
var DefaultExtensions = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff"}

// ErrNotDirectory is returned by Check when the path exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// Config describes the watched directory.
type Config struct {
	Dir        string
	Extensions []string
	Debounce   time.Duration
	// InitialScan emits files already present when watching starts.
	InitialScan bool
}

// Watch emits the absolute path of every matching file created or rewritten
// in cfg.Dir once its events have been quiet for the debounce period. The
// channel closes when ctx is done.
func Watch(ctx context.Context, cfg Config, logger *slog.Logger) (<-chan string, error) {
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve watch dir: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	cfg.Extensions = normalizeExtensions(cfg.Extensions)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	var initial []string
	if cfg.InitialScan {
		if initial, err = scan(dir, cfg.Extensions); err != nil {
			w.Close()
			return nil, err
		}
	}

	l := &loop{
		cfg:     cfg,
		watcher: w,
		out:     make(chan string),
		ready:   make(chan string),
		timers:  make(map[string]*time.Timer),
		logger:  logger.With("system", "watch", "dir", dir),
	}
	go l.run(ctx, initial)

	return l.out, nil
}

type loop struct {
	cfg     Config
	watcher *fsnotify.Watcher
	out     chan string
	ready   chan string
	timers  map[string]*time.Timer
	logger  *slog.Logger
}

func (l *loop) run(ctx context.Context, initial []string) {
	defer close(l.out)
	defer func() {
		for _, t := range l.timers {
			t.Stop()
		}
		if err := l.watcher.Close(); err != nil {
			l.logger.Warn("close watcher failed", "error", err)
		}
	}()

	for _, path := range initial {
		if !l.emit(ctx, path) {
			return
		}
	}

	l.logger.Info("watching for files")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !matches(ev.Name, l.cfg.Extensions) {
				continue
			}
			l.schedule(ctx, ev.Name)
		case path := <-l.ready:
			delete(l.timers, path)
			if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !l.emit(ctx, path) {
				return
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error("watcher error", "error", err)
		}
	}
}

func (l *loop) schedule(ctx context.Context, path string) {
	if t, ok := l.timers[path]; ok {
		t.Reset(l.cfg.Debounce)
		return
	}
	l.timers[path] = time.AfterFunc(l.cfg.Debounce, func() {
		select {
		case l.ready <- path:
		case <-ctx.Done():
		}
	})
}

func (l *loop) emit(ctx context.Context, path string) bool {
	select {
	case l.out <- path:
		return true
	case <-ctx.Done():
		return false
	}
}

func scan(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if matches(path, exts) {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

func matches(path string, exts []string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(exts, ext)
}

// normalizeExtensions lowercases exts and adds the leading dot, so "PDF",
// "pdf" and ".pdf" all match. Empty input yields DefaultExtensions.
func normalizeExtensions(exts []string) []string {
	var out []string
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return DefaultExtensions
	}
	return out
}

// Check verifies dir exists and is a directory.
func Check(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}
	return nil
}
