package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/cartkv/cartkv/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	factory := func(t *testing.T) kv.Store {
		return New()
	}

	kvtest.RunConformanceTests(t, factory)
}

func TestMemoryStoreClosed(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.SetString(ctx, "k", "v"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	store.Close()

	if err := store.Ping(ctx); !errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable from Ping, got %v", err)
	}
	if _, err := store.Get(ctx, "k"); !errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable from Get, got %v", err)
	}
	if _, err := store.SAdd(ctx, "s", []byte("m")); !errors.Is(err, kv.ErrBackendUnavailable) {
		t.Fatalf("Expected ErrBackendUnavailable from SAdd, got %v", err)
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := New()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.SCard(ctx, "s"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := New()
	defer store.Close()
	ctx := context.Background()

	value := []byte("abc")
	store.Set(ctx, "k", value)
	value[0] = 'x'

	got, err := store.GetString(ctx, "k")
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if got != "abc" {
		t.Fatalf("Expected stored value to be isolated from caller, got %q", got)
	}
}
