package cache

import (
	"testing"

	"sentrajit/internal/types"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutThenGetRoundTrips(t *testing.T) {
	c := openTestCache(t)
	key := Key{FunctionID: 1, Level: 2, TypeProfileHash: 42}

	if err := c.Put(key, []byte("native-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected a cache hit")
	}
	if string(entry.Code) != "native-bytes" {
		t.Fatalf("unexpected code: %q", entry.Code)
	}
	if entry.HitCount != 1 {
		t.Fatalf("expected hit count 1 on first Get, got %d", entry.HitCount)
	}

	if _, _, err := c.Get(key); err != nil {
		t.Fatalf("Get (second): %v", err)
	}
	entry, _, _ = c.Get(key)
	if entry.HitCount != 3 {
		t.Fatalf("expected hit count 3 after three Gets, got %d", entry.HitCount)
	}
}

func TestGetMissReturnsFalseNotError(t *testing.T) {
	c := openTestCache(t)
	_, ok, err := c.Get(Key{FunctionID: 99, Level: 1, TypeProfileHash: 0})
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if ok {
		t.Fatalf("expected a miss")
	}
}

func TestInvalidateDropsAllLevelsForFunction(t *testing.T) {
	c := openTestCache(t)
	k1 := Key{FunctionID: 5, Level: 1, TypeProfileHash: 1}
	k2 := Key{FunctionID: 5, Level: 2, TypeProfileHash: 1}
	if err := c.Put(k1, []byte("a")); err != nil {
		t.Fatalf("Put k1: %v", err)
	}
	if err := c.Put(k2, []byte("b")); err != nil {
		t.Fatalf("Put k2: %v", err)
	}

	if err := c.Invalidate(5); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	if _, ok, _ := c.Get(k1); ok {
		t.Fatalf("expected k1 evicted")
	}
	if _, ok, _ := c.Get(k2); ok {
		t.Fatalf("expected k2 evicted")
	}
}

func TestHashTypeProfileIsOrderSensitiveAndDeterministic(t *testing.T) {
	a := HashTypeProfile([]types.ValueType{types.Int32, types.Float64})
	b := HashTypeProfile([]types.ValueType{types.Int32, types.Float64})
	c := HashTypeProfile([]types.ValueType{types.Float64, types.Int32})

	if a != b {
		t.Fatalf("expected the same input to hash deterministically")
	}
	if a == c {
		t.Fatalf("expected order to affect the hash")
	}
}
