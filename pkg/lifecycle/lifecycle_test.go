package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStartupCoordination(t *testing.T) {
	lc := New()

	var started atomic.Int32
	for range 3 {
		lc.OnStartup(func() {
			time.Sleep(10 * time.Millisecond)
			started.Add(1)
		})
	}

	if lc.Ready() {
		t.Error("Ready() = true before WaitForStartup")
	}

	lc.WaitForStartup()

	if started.Load() != 3 {
		t.Errorf("started = %d, want 3", started.Load())
	}
	if !lc.Ready() {
		t.Error("Ready() = false after WaitForStartup")
	}
}

func TestShutdownRunsHooks(t *testing.T) {
	lc := New()

	var stopped atomic.Int32
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		stopped.Add(1)
	})
	lc.OnShutdown(func() {
		<-lc.Context().Done()
		stopped.Add(1)
	})

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if stopped.Load() != 2 {
		t.Errorf("stopped = %d, want 2", stopped.Load())
	}
}

func TestShutdownTimeout(t *testing.T) {
	lc := New()

	release := make(chan struct{})
	lc.OnShutdown(func() {
		<-release
	})

	err := lc.Shutdown(20 * time.Millisecond)
	close(release)

	if err == nil {
		t.Error("Shutdown() should time out on a stuck hook")
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	lc := New()

	select {
	case <-lc.Context().Done():
		t.Fatal("context done before shutdown")
	default:
	}

	if err := lc.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	select {
	case <-lc.Context().Done():
	default:
		t.Error("context must be cancelled after shutdown")
	}
}
