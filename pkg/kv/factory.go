package kv

import (
	"fmt"
	"sync"
)

// Backend represents the storage backend type
type Backend string

const (
	// BackendMemory uses the in-memory store
	BackendMemory Backend = "memory"
	// BackendRedis uses Redis as the backend
	BackendRedis Backend = "redis"
)

// Config holds configuration for creating a Store instance
type Config struct {
	// Backend specifies which storage backend to use
	Backend Backend

	// RedisURL is the connection string for Redis (required when Backend is "redis")
	// Format: redis://localhost:6379/0 or redis://:password@localhost:6379/1
	RedisURL string
}

// StoreFactory defines a function that creates a Store instance
type StoreFactory func(cfg Config) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[Backend]StoreFactory)
)

// RegisterBackend registers a store factory for a given backend
func RegisterBackend(backend Backend, factory StoreFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[backend] = factory
}

// NewStoreFromConfig creates a new Store instance based on the provided configuration.
// The backend package must have been imported so that it registered itself.
func NewStoreFromConfig(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, BackendRedis:
	default:
		return nil, fmt.Errorf("unsupported backend: %s (supported: %s, %s)",
			cfg.Backend, BackendMemory, BackendRedis)
	}

	if cfg.Backend == BackendRedis && cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis URL is required when backend is 'redis'")
	}

	factoriesMu.RLock()
	factory, exists := factories[cfg.Backend]
	factoriesMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("%s backend not registered", cfg.Backend)
	}

	return factory(cfg)
}
