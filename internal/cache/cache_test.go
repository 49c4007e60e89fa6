package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCache_GetSet(t *testing.T) {
	c := New[string, int](4)

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get on empty cache reported a hit")
	}
	c.Set("a", 1)
	c.Set("a", 2)

	got, ok := c.Get("a")
	if !ok || got != 2 {
		t.Fatalf("Get(a) = %d, %v, want 2, true", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // b is now the oldest
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if got := c.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestCache_Unlimited(t *testing.T) {
	c := New[int, int](0)
	for i := range 1000 {
		c.Set(i, i)
	}
	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}

func TestCache_GetOrLoad(t *testing.T) {
	c := New[string, int](4)
	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	for range 3 {
		v, err := c.GetOrLoad("k", load)
		if err != nil || v != 42 {
			t.Fatalf("GetOrLoad = %d, %v, want 42, nil", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load called %d times, want 1", calls)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Hits, Misses = %d, %d, want 2, 1", s.Hits, s.Misses)
	}
}

func TestCache_GetOrLoadErrorNotCached(t *testing.T) {
	c := New[string, int](4)
	errBoom := errors.New("boom")

	if _, err := c.GetOrLoad("k", func() (int, error) { return 0, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want %v", err, errBoom)
	}
	if c.Len() != 0 {
		t.Errorf("failed load was cached: Len() = %d", c.Len())
	}
}

func TestCache_GetOrLoadConcurrentLoadsOnce(t *testing.T) {
	c := New[string, int](4)
	var calls atomic.Int32

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrLoad("k", func() (int, error) {
				calls.Add(1)
				return 1, nil
			})
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("load called %d times, want 1", got)
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, int](4)
	c.Set("a", 1)
	c.Set("b", 2)

	if !c.Delete("a") {
		t.Error("Delete(a) = false, want true")
	}
	if c.Delete("a") {
		t.Error("second Delete(a) = true, want false")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
	c.Set("c", 3)
	if got, ok := c.Get("c"); !ok || got != 3 {
		t.Errorf("Get(c) after Clear = %d, %v, want 3, true", got, ok)
	}
}

func TestCache_HitRate(t *testing.T) {
	c := New[string, int](4)
	if got := c.Stats().HitRate; got != 0 {
		t.Errorf("HitRate before lookups = %v, want 0", got)
	}
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")
	if got := c.Stats().HitRate; got != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", got)
	}
}

func TestLRUList_Order(t *testing.T) {
	l := newLRUList[int]()
	n1 := l.PushFront(1)
	l.PushFront(2)
	l.PushFront(3)
	l.MoveToFront(n1)

	want := []int{2, 3, 1}
	for _, w := range want {
		got, ok := l.RemoveOldest()
		if !ok || got != w {
			t.Fatalf("RemoveOldest() = %d, %v, want %d, true", got, ok, w)
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
	if _, ok := l.RemoveOldest(); ok {
		t.Error("RemoveOldest on empty list reported a key")
	}
}
