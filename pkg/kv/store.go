package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key or field is not found
var ErrNotFound = errors.New("not found")

// ErrBackendUnavailable is returned when the backend storage is unavailable
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrNotInteger is returned when a counter field does not hold an integer
var ErrNotInteger = errors.New("value is not an integer")

// Store is the subset of Redis primitives the cart layer is built on
type Store interface {
	// String operations
	Set(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	SetString(ctx context.Context, key string, value string) error
	GetString(ctx context.Context, key string) (string, error)

	// Key operations
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)

	// Hash operations
	HSet(ctx context.Context, key string, field string, value []byte) error
	HSetFields(ctx context.Context, key string, fields map[string][]byte) error
	HGet(ctx context.Context, key string, field string) ([]byte, error)
	HGetAll(ctx context.Context, key string) (map[string][]byte, error)
	HIncrBy(ctx context.Context, key string, field string, n int64) (int64, error)

	// Set operations
	SAdd(ctx context.Context, key string, members ...[]byte) (int64, error)
	SRem(ctx context.Context, key string, members ...[]byte) (int64, error)
	SMembers(ctx context.Context, key string) ([][]byte, error)
	SCard(ctx context.Context, key string) (int64, error)
	SIsMember(ctx context.Context, key string, member []byte) (bool, error)

	// Health check
	Ping(ctx context.Context) error

	// Cleanup
	Close() error
}
