package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/redis/go-redis/v9"
)

// Store is a Redis-backed implementation of the kv.Store interface
type Store struct {
	client *redis.Client
}

var connectionErrors = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"connection closed",
	"client is closed",
	"EOF",
}

// IsConnectionError reports whether err means Redis could not be reached
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	// redis.Nil means "key not found"
	if errors.Is(err, redis.Nil) {
		return false
	}

	// Context cancellation by caller is not a backend failure
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var sysErr syscall.Errno
	if errors.As(err, &sysErr) {
		switch sysErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED, syscall.ETIMEDOUT:
			return true
		}
	}

	errStr := err.Error()
	for _, connErr := range connectionErrors {
		if strings.Contains(errStr, connErr) {
			return true
		}
	}
	return false
}

// wrap maps go-redis errors onto the kv sentinels
func wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return kv.ErrNotFound
	case IsConnectionError(err):
		return fmt.Errorf("%w: %v", kv.ErrBackendUnavailable, err)
	case strings.Contains(err.Error(), "not an integer"):
		return fmt.Errorf("%w: %v", kv.ErrNotInteger, err)
	default:
		return err
	}
}

// New parses redisURL, connects and verifies the server answers PING
func New(redisURL string) (*Store, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		// Fallback for bare host:port addresses
		if strings.Contains(redisURL, "://") {
			return nil, err
		}
		opt = &redis.Options{Addr: redisURL}
	}

	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, wrap(err)
	}

	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client without probing it
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// String operations

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return wrap(s.client.Set(ctx, key, value, 0).Err())
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return result, nil
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
	n, err := s.client.Del(ctx, keys...).Result()
	return n, wrap(err)
}

func (s *Store) Exists(ctx context.Context, keys ...string) (int64, error) {
	n, err := s.client.Exists(ctx, keys...).Result()
	return n, wrap(err)
}

// Hash operations

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	return wrap(s.client.HSet(ctx, key, field, value).Err())
}

func (s *Store) HSetFields(ctx context.Context, key string, fields map[string][]byte) error {
	if len(fields) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(fields))
	for field, value := range fields {
		values[field] = value
	}
	return wrap(s.client.HSet(ctx, key, values).Err())
}

func (s *Store) HGet(ctx context.Context, key string, field string) ([]byte, error) {
	result, err := s.client.HGet(ctx, key, field).Bytes()
	if err != nil {
		return nil, wrap(err)
	}
	return result, nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	result, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}

	// HGETALL answers an empty map for a missing key
	if len(result) == 0 {
		return nil, kv.ErrNotFound
	}

	byteMap := make(map[string][]byte, len(result))
	for field, value := range result {
		byteMap[field] = []byte(value)
	}
	return byteMap, nil
}

func (s *Store) HIncrBy(ctx context.Context, key string, field string, n int64) (int64, error) {
	v, err := s.client.HIncrBy(ctx, key, field, n).Result()
	return v, wrap(err)
}

// Set operations

func toArgs(members [][]byte) []interface{} {
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return args
}

func (s *Store) SAdd(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SAdd(ctx, key, toArgs(members)...).Result()
	return n, wrap(err)
}

func (s *Store) SRem(ctx context.Context, key string, members ...[]byte) (int64, error) {
	if len(members) == 0 {
		return 0, nil
	}
	n, err := s.client.SRem(ctx, key, toArgs(members)...).Result()
	return n, wrap(err)
}

func (s *Store) SMembers(ctx context.Context, key string) ([][]byte, error) {
	result, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrap(err)
	}

	// Redis never keeps an empty set, so no members means no key
	if len(result) == 0 {
		return nil, kv.ErrNotFound
	}

	members := make([][]byte, len(result))
	for i, member := range result {
		members[i] = []byte(member)
	}
	return members, nil
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	return n, wrap(err)
}

func (s *Store) SIsMember(ctx context.Context, key string, member []byte) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	return ok, wrap(err)
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.client.Ping(ctx).Err())
}

// Close closes the Redis connection pool
func (s *Store) Close() error {
	return s.client.Close()
}
