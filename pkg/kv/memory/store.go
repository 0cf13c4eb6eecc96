package memory

import (
	"bytes"
	"context"
	"strconv"
	"sync"

	"github.com/cartkv/cartkv/pkg/kv"
)

// Store is an in-memory implementation of the kv.Store interface
type Store struct {
	mu      sync.RWMutex
	strings map[string][]byte
	hashes  map[string]map[string][]byte
	sets    map[string]map[string]struct{}
	closed  bool
}

// New creates a new empty in-memory store
func New() *Store {
	return &Store{
		strings: make(map[string][]byte),
		hashes:  make(map[string]map[string][]byte),
		sets:    make(map[string]map[string]struct{}),
	}
}

// usable reports why the store cannot serve a call (must hold a lock)
func (s *Store) usable(ctx context.Context) error {
	if s.closed {
		return kv.ErrBackendUnavailable
	}
	return ctx.Err()
}

// deleteKeyUnsafe removes a key from all data structures (must hold write lock)
func (s *Store) deleteKeyUnsafe(key string) {
	delete(s.strings, key)
	delete(s.hashes, key)
	delete(s.sets, key)
}

// existsUnsafe reports whether key holds any type (must hold a lock)
func (s *Store) existsUnsafe(key string) bool {
	if _, ok := s.strings[key]; ok {
		return true
	}
	if _, ok := s.hashes[key]; ok {
		return true
	}
	_, ok := s.sets[key]
	return ok
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return err
	}

	s.deleteKeyUnsafe(key)
	s.strings[key] = bytes.Clone(value)
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	value, exists := s.strings[key]
	if !exists {
		return nil, kv.ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (s *Store) SetString(ctx context.Context, key string, value string) error {
	return s.Set(ctx, key, []byte(value))
}

func (s *Store) GetString(ctx context.Context, key string) (string, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Key operations

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	var deleted int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			deleted++
		}
		s.deleteKeyUnsafe(key)
	}
	return deleted, nil
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	var exists int64
	for _, key := range keys {
		if s.existsUnsafe(key) {
			exists++
		}
	}
	return exists, nil
}

// Hash operations

// hashUnsafe returns the hash at key, creating it and evicting any other type
// stored there (must hold write lock)
func (s *Store) hashUnsafe(key string) map[string][]byte {
	if s.hashes[key] == nil {
		s.deleteKeyUnsafe(key)
		s.hashes[key] = make(map[string][]byte)
	}
	return s.hashes[key]
}

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	return s.HSetFields(ctx, key, map[string][]byte{field: value})
}

func (s *Store) HSetFields(ctx context.Context, key string, fields map[string][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	hash := s.hashUnsafe(key)
	for field, value := range fields {
		hash[field] = bytes.Clone(value)
	}
	return nil
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	hash, exists := s.hashes[key]
	if !exists {
		return nil, kv.ErrNotFound
	}
	value, fieldExists := hash[field]
	if !fieldExists {
		return nil, kv.ErrNotFound
	}
	return bytes.Clone(value), nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	hash, exists := s.hashes[key]
	if !exists {
		return nil, kv.ErrNotFound
	}

	result := make(map[string][]byte, len(hash))
	for field, value := range hash {
		result[field] = bytes.Clone(value)
	}
	return result, nil
}

func (s *Store) HIncrBy(ctx context.Context, key string, field string, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	var current int64
	if hash, exists := s.hashes[key]; exists {
		if value, ok := hash[field]; ok {
			parsed, err := strconv.ParseInt(string(value), 10, 64)
			if err != nil {
				return 0, kv.ErrNotInteger
			}
			current = parsed
		}
	}

	next := current + n
	s.hashUnsafe(key)[field] = []byte(strconv.FormatInt(next, 10))
	return next, nil
}

// Set operations

func (s *Store) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	if s.sets[key] == nil {
		s.deleteKeyUnsafe(key) // Clear other data types
		s.sets[key] = make(map[string]struct{})
	}

	var added int64
	for _, member := range members {
		memberStr := string(member)
		if _, exists := s.sets[key][memberStr]; !exists {
			s.sets[key][memberStr] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *Store) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}

	set, exists := s.sets[key]
	if !exists {
		return 0, nil
	}

	var removed int64
	for _, member := range members {
		memberStr := string(member)
		if _, memberExists := set[memberStr]; memberExists {
			delete(set, memberStr)
			removed++
		}
	}

	// Remove key if set is empty
	if len(set) == 0 {
		delete(s.sets, key)
	}
	return removed, nil
}

func (s *Store) SMembers(ctx context.Context, key string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return nil, err
	}

	set, exists := s.sets[key]
	if !exists {
		return nil, kv.ErrNotFound
	}

	members := make([][]byte, 0, len(set))
	for member := range set {
		members = append(members, []byte(member))
	}
	return members, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return 0, err
	}
	return int64(len(s.sets[key])), nil
}

func (s *Store) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.usable(ctx); err != nil {
		return false, err
	}

	_, isMember := s.sets[key][string(member)]
	return isMember, nil
}

// Ping fails only once the store has been closed
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usable(ctx)
}

// Close drops all data. Every later call fails with kv.ErrBackendUnavailable,
// which lets tests stand in for an unreachable server.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.strings = make(map[string][]byte)
	s.hashes = make(map[string]map[string][]byte)
	s.sets = make(map[string]map[string]struct{})
	return nil
}
