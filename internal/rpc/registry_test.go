package rpc

import (
	"testing"
	"time"
)

func TestRegistry_AddResolve(t *testing.T) {
	reg := newRegistry()

	replyCh := reg.add("corr-1")
	if reg.size() != 1 {
		t.Fatalf("size = %d, want 1", reg.size())
	}

	if !reg.resolve("corr-1", []byte("pong")) {
		t.Fatal("resolve should succeed for a pending entry")
	}
	if reg.size() != 0 {
		t.Errorf("size after resolve = %d, want 0", reg.size())
	}

	select {
	case reply := <-replyCh:
		if string(reply) != "pong" {
			t.Errorf("reply = %q, want %q", reply, "pong")
		}
	default:
		t.Fatal("reply channel should hold the resolved body")
	}
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	reg := newRegistry()

	if reg.resolve("never-added", []byte("x")) {
		t.Error("resolving an unknown correlation id should return false")
	}
}

func TestRegistry_ResolveAfterRemove(t *testing.T) {
	reg := newRegistry()

	reg.add("corr-1")
	reg.remove("corr-1")

	if reg.resolve("corr-1", []byte("late")) {
		t.Error("resolving a removed entry should return false")
	}
	if reg.size() != 0 {
		t.Errorf("size = %d, want 0", reg.size())
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	reg := newRegistry()

	reg.add("corr-1")
	reg.remove("corr-1")
	reg.remove("corr-1")

	if reg.size() != 0 {
		t.Errorf("size = %d, want 0", reg.size())
	}
}

func TestRegistry_ExpireEvictsOldEntries(t *testing.T) {
	reg := newRegistry()

	reg.add("old-1")
	reg.add("old-2")
	time.Sleep(20 * time.Millisecond)
	reg.add("fresh")

	expired := reg.expire(10 * time.Millisecond)
	if expired != 2 {
		t.Fatalf("expired = %d, want 2", expired)
	}
	if reg.size() != 1 {
		t.Errorf("size after expire = %d, want 1", reg.size())
	}

	// The fresh entry must still resolve.
	if !reg.resolve("fresh", []byte("ok")) {
		t.Error("unexpired entry should still resolve")
	}
	// Expired entries are gone.
	if reg.resolve("old-1", []byte("late")) {
		t.Error("expired entry should not resolve")
	}
}
