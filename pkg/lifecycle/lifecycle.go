// Package lifecycle coordinates startup checks and ordered shutdown of the
// long-lived resources behind a command.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Hook is a startup or shutdown function. The context passed to a shutdown
// hook expires with the shutdown timeout.
type Hook func(ctx context.Context) error

// Coordinator runs startup hooks concurrently and shutdown hooks in reverse
// registration order.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc

	startupWg   sync.WaitGroup
	startupMu   sync.Mutex
	startupErrs []error

	shutdownMu sync.Mutex
	shutdown   []Hook
	stopped    bool

	readyMu sync.RWMutex
	ready   bool
}

// New creates a Coordinator whose context derives from parent.
func New(parent context.Context) *Coordinator {
	ctx, cancel := context.WithCancel(parent)
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context returns the coordinator's context, canceled on shutdown.
func (c *Coordinator) Context() context.Context {
	return c.ctx
}

// OnStartup runs fn concurrently with the other startup hooks.
// Its error is reported by WaitForStartup.
func (c *Coordinator) OnStartup(fn Hook) {
	c.startupWg.Go(func() {
		if err := fn(c.ctx); err != nil {
			c.startupMu.Lock()
			c.startupErrs = append(c.startupErrs, err)
			c.startupMu.Unlock()
		}
	})
}

// OnShutdown registers fn to run during Shutdown. Hooks run one at a time,
// last registered first.
func (c *Coordinator) OnShutdown(fn Hook) {
	c.shutdownMu.Lock()
	defer c.shutdownMu.Unlock()
	c.shutdown = append(c.shutdown, fn)
}

// Ready reports whether startup completed without errors.
func (c *Coordinator) Ready() bool {
	c.readyMu.RLock()
	defer c.readyMu.RUnlock()
	return c.ready
}

// WaitForStartup blocks until every startup hook returned and reports their
// joined errors. The coordinator becomes ready only when all succeeded.
func (c *Coordinator) WaitForStartup() error {
	c.startupWg.Wait()

	c.startupMu.Lock()
	err := errors.Join(c.startupErrs...)
	c.startupMu.Unlock()

	c.readyMu.Lock()
	c.ready = err == nil
	c.readyMu.Unlock()

	return err
}

// Shutdown cancels the context and runs the shutdown hooks within timeout.
// Calling it more than once is a no-op.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.cancel()

	c.shutdownMu.Lock()
	if c.stopped {
		c.shutdownMu.Unlock()
		return nil
	}
	c.stopped = true
	hooks := c.shutdown
	c.shutdownMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		done <- errors.Join(errs...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}
