package lifecycle_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JaimeStill/intake/pkg/lifecycle"
)

func TestNotReadyBeforeStartup(t *testing.T) {
	lc := lifecycle.New(context.Background())
	if lc.Ready() {
		t.Error("should not be ready before WaitForStartup")
	}
}

func TestStartupHooksExecute(t *testing.T) {
	lc := lifecycle.New(context.Background())

	var count atomic.Int32
	for range 3 {
		lc.OnStartup(func(context.Context) error {
			count.Add(1)
			return nil
		})
	}

	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("startup: %v", err)
	}
	if got := count.Load(); got != 3 {
		t.Errorf("startup hooks: got %d, want 3", got)
	}
	if !lc.Ready() {
		t.Error("should be ready after successful startup")
	}
}

func TestStartupErrorsJoined(t *testing.T) {
	lc := lifecycle.New(context.Background())
	errDB := errors.New("database unreachable")
	errRedis := errors.New("redis unreachable")

	lc.OnStartup(func(context.Context) error { return errDB })
	lc.OnStartup(func(context.Context) error { return errRedis })
	lc.OnStartup(func(context.Context) error { return nil })

	err := lc.WaitForStartup()
	if !errors.Is(err, errDB) || !errors.Is(err, errRedis) {
		t.Errorf("startup err = %v, want both failures", err)
	}
	if lc.Ready() {
		t.Error("ready despite startup failures")
	}
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	lc := lifecycle.New(context.Background())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"database", "redis", "sessions"} {
		lc.OnShutdown(func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	want := []string{"sessions", "redis", "database"}
	if !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if lc.Context().Err() == nil {
		t.Error("context not canceled by shutdown")
	}
}

func TestShutdownCollectsErrors(t *testing.T) {
	lc := lifecycle.New(context.Background())
	errClose := errors.New("close failed")

	lc.OnShutdown(func(context.Context) error { return errClose })
	lc.OnShutdown(func(context.Context) error { return nil })

	if err := lc.Shutdown(time.Second); !errors.Is(err, errClose) {
		t.Errorf("err = %v, want close failure", err)
	}
	if err := lc.Shutdown(time.Second); err != nil {
		t.Errorf("second shutdown err = %v, want no-op", err)
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := lifecycle.New(context.Background())

	release := make(chan struct{})
	defer close(release)
	lc.OnShutdown(func(context.Context) error {
		<-release
		return nil
	})

	if err := lc.Shutdown(20 * time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}

func TestParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	lc := lifecycle.New(parent)

	cancel()

	select {
	case <-lc.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("coordinator context not canceled with parent")
	}
}
