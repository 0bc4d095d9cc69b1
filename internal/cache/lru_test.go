package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("a should be present")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a should survive, got %v %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUExpires(t *testing.T) {
	now := time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("k2", "v2")
	now = now.Add(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 cleaned entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("cache should be empty")
	}
	st := c.Stats()
	if st.Misses != 1 || st.Hits != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestLRUOverwriteRefreshes(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("a", 2)
	if v, _ := c.Get("a"); v != 2 || c.Size() != 1 {
		t.Fatalf("overwrite failed: v=%d size=%d", v, c.Size())
	}
	c.Delete("a")
	if c.Size() != 0 {
		t.Fatalf("delete failed")
	}
}

func TestManagerSweep(t *testing.T) {
	m := NewManager(nil)
	calls := 0
	m.Register("sessions", CleanerFunc(func() int { calls++; return 3 }))
	m.Register("scores", NewLRUCache[int](1, time.Minute))

	if n := m.Sweep(); n != 3 || calls != 1 {
		t.Fatalf("sweep removed %d, calls %d", n, calls)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
