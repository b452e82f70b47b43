package ttlcache

import (
	"testing"
	"time"
)

func TestGetSetRoundTrip(t *testing.T) {
	c := New[string](time.Minute, 10)
	c.Set("a", "hello")
	v, ok := c.Get("a")
	if !ok || v != "hello" {
		t.Fatalf("expected (hello, true), got (%q, %v)", v, ok)
	}
}

func TestGetMissing(t *testing.T) {
	c := New[string](time.Minute, 10)
	if _, ok := c.Get("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestExpiryRemovesEntry(t *testing.T) {
	c := New[string](10 * time.Millisecond, 10)
	c.Set("a", "hello")
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expired entry to be evicted on Get")
	}
	if c.Len() != 0 {
		t.Fatalf("expected cache empty after expiry sweep, got len=%d", c.Len())
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New[string](time.Minute, 2)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("c", "3") // should evict "a", the oldest

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected oldest entry 'a' to be evicted")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatal("expected 'b' to survive eviction")
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected 'c' to be present")
	}
	if c.Len() != 2 {
		t.Fatalf("expected len 2, got %d", c.Len())
	}
}

func TestOverwriteKeepsOriginalInsertionPosition(t *testing.T) {
	c := New[string](time.Minute, 2)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Set("a", "1-updated") // overwrite: value changes, insertion order position does not
	c.Set("c", "3")         // capacity 2 -> evicts "a", still the oldest by insertion order

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected 'a' to be evicted: overwriting a key does not refresh its insertion order")
	}
	v, ok := c.Get("b")
	if !ok || v != "2" {
		t.Fatalf("expected 'b' to survive with its original value, got (%q, %v)", v, ok)
	}
	if _, ok := c.Get("c"); !ok {
		t.Fatal("expected 'c' to be present")
	}
}
