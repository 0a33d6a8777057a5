package memory

import (
	"context"
	"testing"
)

func TestMapInsertGetRemove(t *testing.T) {
	ctx := context.Background()
	m := New[string]()

	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatalf("expected empty map")
	}
	if err := m.Insert(ctx, "a", "1"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Insert(ctx, "a", "2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, ok, _ := m.Get(ctx, "a")
	if !ok || v != "2" {
		t.Fatalf("unexpected get: %q %v", v, ok)
	}
	if m.Len() != 1 {
		t.Fatalf("overwrite must not add a key, len=%d", m.Len())
	}

	removed, ok, _ := m.Remove(ctx, "a")
	if !ok || removed != "2" {
		t.Fatalf("unexpected remove: %q %v", removed, ok)
	}
	if _, ok, _ := m.Remove(ctx, "a"); ok {
		t.Fatalf("second remove should report absent")
	}
}

func TestMapValuesKeyOrder(t *testing.T) {
	ctx := context.Background()
	m := New[string]()
	for _, k := range []string{"c", "a", "d", "b"} {
		_ = m.Insert(ctx, k, k)
	}
	_, _, _ = m.Remove(ctx, "d")

	vals, err := m.Values(ctx)
	if err != nil {
		t.Fatalf("values: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(vals) != len(want) {
		t.Fatalf("got %v want %v", vals, want)
	}
	for i := range want {
		if vals[i] != want[i] {
			t.Fatalf("got %v want %v", vals, want)
		}
	}
}

func TestMapValuesEmptyIsNonNil(t *testing.T) {
	vals, _ := New[int]().Values(context.Background())
	if vals == nil {
		t.Fatalf("expected empty non-nil slice")
	}
}
