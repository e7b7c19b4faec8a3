package sessions

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingHandle struct {
	closes atomic.Int32
}

func (h *countingHandle) Close() {
	h.closes.Add(1)
}

func testCache(t *testing.T, capacity int) (*Cache, map[string]*countingHandle) {
	t.Helper()

	handles := map[string]*countingHandle{}
	build := func(userID string) (*Instance, error) {
		handle := &countingHandle{}
		handles[userID] = handle
		return NewInstance(userID, nil, handle), nil
	}

	cache, err := NewCache(capacity, build, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	return cache, handles
}

func TestGetOrCreateCachesInstances(t *testing.T) {
	cache, _ := testCache(t, 4)

	first, err := cache.GetOrCreate("u1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	second, err := cache.GetOrCreate("u1")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}

	if first != second {
		t.Error("GetOrCreate() must return the cached instance on hit")
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestLRUEvictionReleasesHandle(t *testing.T) {
	cache, handles := testCache(t, 2)

	for _, user := range []string{"u1", "u2", "u3"} {
		if _, err := cache.GetOrCreate(user); err != nil {
			t.Fatalf("GetOrCreate(%s) error = %v", user, err)
		}
	}

	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}
	if got := handles["u1"].closes.Load(); got != 1 {
		t.Errorf("evicted handle closes = %d, want 1", got)
	}
	if got := handles["u3"].closes.Load(); got != 0 {
		t.Errorf("resident handle closes = %d, want 0", got)
	}
}

func TestAccessRefreshesRecency(t *testing.T) {
	cache, handles := testCache(t, 2)

	if _, err := cache.GetOrCreate("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.GetOrCreate("u2"); err != nil {
		t.Fatal(err)
	}

	// Touch u1 so u2 becomes least recently used.
	if _, err := cache.GetOrCreate("u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.GetOrCreate("u3"); err != nil {
		t.Fatal(err)
	}

	if got := handles["u2"].closes.Load(); got != 1 {
		t.Errorf("u2 closes = %d, want 1 (evicted)", got)
	}
	if got := handles["u1"].closes.Load(); got != 0 {
		t.Errorf("u1 closes = %d, want 0 (refreshed)", got)
	}
}

func TestClearReleasesOnce(t *testing.T) {
	cache, handles := testCache(t, 4)

	if _, err := cache.GetOrCreate("u1"); err != nil {
		t.Fatal(err)
	}

	if !cache.Clear("u1") {
		t.Error("Clear() = false, want true for cached user")
	}
	if cache.Clear("u1") {
		t.Error("Clear() = true for already cleared user")
	}

	// A direct Close after eviction must not double-release.
	inst, err := cache.GetOrCreate("u2")
	if err != nil {
		t.Fatal(err)
	}
	cache.Clear("u2")
	inst.Close()

	if got := handles["u1"].closes.Load(); got != 1 {
		t.Errorf("u1 closes = %d, want 1", got)
	}
	if got := handles["u2"].closes.Load(); got != 1 {
		t.Errorf("u2 closes = %d, want 1", got)
	}
}

func TestClearAll(t *testing.T) {
	cache, handles := testCache(t, 4)

	for i := range 3 {
		if _, err := cache.GetOrCreate(fmt.Sprintf("u%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	cache.ClearAll()

	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0", cache.Len())
	}
	for user, handle := range handles {
		if got := handle.closes.Load(); got != 1 {
			t.Errorf("%s closes = %d, want 1", user, got)
		}
	}
}

func TestSlowBuildDoesNotBlockCachedUsers(t *testing.T) {
	release := make(chan struct{})
	build := func(userID string) (*Instance, error) {
		if userID == "slow" {
			<-release
		}
		return NewInstance(userID, nil, &countingHandle{}), nil
	}

	cache, err := NewCache(4, build, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}
	defer close(release)

	if _, err := cache.GetOrCreate("fast"); err != nil {
		t.Fatal(err)
	}

	building := make(chan struct{})
	go func() {
		close(building)
		cache.GetOrCreate("slow")
	}()
	<-building

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCreate("fast")
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("GetOrCreate(fast) error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cached hit blocked behind another user's in-flight build")
	}
}

func TestConcurrentMissesShareOneBuild(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	build := func(userID string) (*Instance, error) {
		builds.Add(1)
		<-release
		return NewInstance(userID, nil, &countingHandle{}), nil
	}

	cache, err := NewCache(4, build, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	results := make(chan *Instance, 2)
	for range 2 {
		go func() {
			inst, err := cache.GetOrCreate("u1")
			if err != nil {
				t.Error(err)
			}
			results <- inst
		}()
	}

	// Give both goroutines time to reach the build before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)

	first, second := <-results, <-results
	if first != second {
		t.Error("coalesced builds must yield the same instance")
	}
	if got := builds.Load(); got != 1 {
		t.Errorf("builds = %d, want 1", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}
}

func TestBuildFailure(t *testing.T) {
	build := func(string) (*Instance, error) {
		return nil, fmt.Errorf("gateway down")
	}

	cache, err := NewCache(2, build, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewCache() error = %v", err)
	}

	if _, err := cache.GetOrCreate("u1"); err == nil {
		t.Error("GetOrCreate() should propagate build failure")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after failed build", cache.Len())
	}
}
