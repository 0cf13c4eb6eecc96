// Package kv provides the Redis-like key-value capability set the cart layer
// depends on, with in-memory and Redis-backed implementations.
//
// The Store interface covers strings, sets, hashes with integer increments,
// key deletion and a health check. Backends register themselves on import:
//
//	import (
//		"github.com/cartkv/cartkv/pkg/kv"
//		_ "github.com/cartkv/cartkv/pkg/kv/memory"
//		_ "github.com/cartkv/cartkv/pkg/kv/redis"
//	)
//
//	store, err := kv.NewStoreFromConfig(kv.Config{
//		Backend:  kv.BackendRedis,
//		RedisURL: "redis://localhost:6379/0",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	members, err := store.SMembers(ctx, "carts")
//	if errors.Is(err, kv.ErrNotFound) {
//		// no carts yet
//	}
//
// Missing keys read as ErrNotFound for Get, HGet, HGetAll and SMembers, and as
// zero values for SCard and SIsMember, matching Redis replies. The Redis
// adapter wraps connection failures with ErrBackendUnavailable.
package kv
