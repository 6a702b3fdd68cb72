package store_test

import (
	"context"
	"testing"

	"github.com/vhendala/backend-flight-insurance-stellar/internal/store"
)

func TestMemory_GetSetRemove(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("get missing = ok %v err %v, want absent", ok, err)
	}

	if err := kv.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := kv.Get(ctx, "k")
	if err != nil || !ok || string(val) != "v1" {
		t.Errorf("get = %q ok %v err %v, want v1", val, ok, err)
	}

	if has, _ := kv.Has(ctx, "k"); !has {
		t.Error("has = false after set")
	}

	if err := kv.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if has, _ := kv.Has(ctx, "k"); has {
		t.Error("has = true after remove")
	}
}

func TestMemory_ValueIsolation(t *testing.T) {
	kv := store.NewMemory()
	ctx := context.Background()

	original := []byte("abc")
	kv.Set(ctx, "k", original)
	original[0] = 'x'

	val, _, _ := kv.Get(ctx, "k")
	if string(val) != "abc" {
		t.Errorf("stored value mutated through caller slice: %q", val)
	}

	// Mutating the returned slice must not corrupt the store either.
	val[0] = 'y'
	again, _, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}
