// Package kvtest provides conformance tests for kv.Store implementations
package kvtest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/cartkv/cartkv/pkg/kv"
	"github.com/google/go-cmp/cmp"
)

// StoreFactory creates a fresh Store instance for testing
type StoreFactory func(t *testing.T) kv.Store

// Keys lists every key the suite writes, so shared backends can be reset
var Keys = []string{
	"test:string", "test:setstring", "test:del1", "test:del2", "test:exists",
	"test:hash", "test:hash-all", "test:hash-fields", "test:hash-incr", "test:hash-incr-bad",
	"test:set", "test:set-rem", "test:set-member", "test:set-card", "test:retype",
}

// RunConformanceTests runs all conformance tests against a Store implementation
func RunConformanceTests(t *testing.T, factory StoreFactory) {
	t.Run("StringOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"SetGet", testSetGet},
			{"GetNonExistent", testGetNonExistent},
			{"SetString", testSetString},
		})
	})
	t.Run("KeyOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"Del", testDel},
			{"Exists", testExists},
			{"Retype", testRetype},
		})
	})
	t.Run("HashOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"HSetGet", testHSetGet},
			{"HGetAll", testHGetAll},
			{"HSetFields", testHSetFields},
			{"HIncrBy", testHIncrBy},
			{"HIncrByNotInteger", testHIncrByNotInteger},
		})
	})
	t.Run("SetOperations", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"SAddMembers", testSAddMembers},
			{"SRem", testSRem},
			{"SIsMember", testSIsMember},
			{"SCard", testSCard},
		})
	})
	t.Run("HealthCheck", func(t *testing.T) {
		run(t, factory, []namedTest{
			{"Ping", testPing},
		})
	})
}

type namedTest struct {
	name string
	test func(t *testing.T, store kv.Store)
}

func run(t *testing.T, factory StoreFactory, tests []namedTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			tt.test(t, store)
		})
	}
}

func sortedStrings(members [][]byte) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = string(m)
	}
	sort.Strings(out)
	return out
}

func testSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:string"
	value := []byte("hello world")

	if err := store.Set(ctx, key, value); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	result, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if diff := cmp.Diff(value, result); diff != "" {
		t.Fatalf("Get mismatch (-want +got):\n%s", diff)
	}
}

func testGetNonExistent(t *testing.T, store kv.Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	_, err = store.GetString(ctx, "test:nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound from GetString, got %v", err)
	}
}

func testSetString(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:setstring"

	if err := store.SetString(ctx, key, "0"); err != nil {
		t.Fatalf("SetString failed: %v", err)
	}
	if err := store.SetString(ctx, key, "1"); err != nil {
		t.Fatalf("SetString overwrite failed: %v", err)
	}

	result, err := store.GetString(ctx, key)
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if result != "1" {
		t.Fatalf("Expected %q, got %q", "1", result)
	}
}

func testDel(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key1, key2 := "test:del1", "test:del2"

	store.SetString(ctx, key1, "a")
	store.SAdd(ctx, key2, []byte("m"))

	deleted, err := store.Del(ctx, key1, key2, "test:del-missing")
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("Expected 2 deleted, got %d", deleted)
	}

	// Deleting again is a no-op
	deleted, err = store.Del(ctx, key1)
	if err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("Expected 0 deleted, got %d", deleted)
	}
}

func testExists(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:exists"

	n, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected 0, got %d", n)
	}

	store.HSet(ctx, key, "f", []byte("v"))
	n, err = store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1, got %d", n)
	}
}

// A string write replaces whatever type lived at the key
func testRetype(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:retype"

	store.SAdd(ctx, key, []byte("m"))
	if err := store.SetString(ctx, key, "plain"); err != nil {
		t.Fatalf("SetString over set failed: %v", err)
	}

	value, err := store.GetString(ctx, key)
	if err != nil {
		t.Fatalf("GetString failed: %v", err)
	}
	if value != "plain" {
		t.Fatalf("Expected %q, got %q", "plain", value)
	}
}

func testHSetGet(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash"
	value := []byte("value1")

	if err := store.HSet(ctx, key, "field1", value); err != nil {
		t.Fatalf("HSet failed: %v", err)
	}

	result, err := store.HGet(ctx, key, "field1")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if diff := cmp.Diff(value, result); diff != "" {
		t.Fatalf("HGet mismatch (-want +got):\n%s", diff)
	}

	_, err = store.HGet(ctx, key, "nonexistent")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent field, got %v", err)
	}
	_, err = store.HGet(ctx, "test:hash-missing", "field1")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}
}

func testHGetAll(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash-all"

	store.HSet(ctx, key, "field1", []byte("value1"))
	store.HSet(ctx, key, "field2", []byte("value2"))

	result, err := store.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}

	expected := map[string][]byte{
		"field1": []byte("value1"),
		"field2": []byte("value2"),
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Fatalf("HGetAll mismatch (-want +got):\n%s", diff)
	}

	_, err = store.HGetAll(ctx, "test:hash-all-missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent key, got %v", err)
	}
}

func testHSetFields(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash-fields"

	store.HSet(ctx, key, "keep", []byte("k"))
	err := store.HSetFields(ctx, key, map[string][]byte{
		"id":       []byte("SKU001"),
		"quantity": []byte("1"),
	})
	if err != nil {
		t.Fatalf("HSetFields failed: %v", err)
	}

	// Merges into the existing hash
	result, err := store.HGetAll(ctx, key)
	if err != nil {
		t.Fatalf("HGetAll failed: %v", err)
	}
	expected := map[string][]byte{
		"keep":     []byte("k"),
		"id":       []byte("SKU001"),
		"quantity": []byte("1"),
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Fatalf("HSetFields mismatch (-want +got):\n%s", diff)
	}

	if err := store.HSetFields(ctx, key, nil); err != nil {
		t.Fatalf("HSetFields with no fields should be a no-op, got %v", err)
	}
}

func testHIncrBy(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash-incr"

	store.HSet(ctx, key, "quantity", []byte("2"))

	n, err := store.HIncrBy(ctx, key, "quantity", 1)
	if err != nil {
		t.Fatalf("HIncrBy failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("Expected 3, got %d", n)
	}

	// Missing field starts at zero
	n, err = store.HIncrBy(ctx, key, "fresh", 5)
	if err != nil {
		t.Fatalf("HIncrBy on missing field failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("Expected 5, got %d", n)
	}

	raw, err := store.HGet(ctx, key, "quantity")
	if err != nil {
		t.Fatalf("HGet failed: %v", err)
	}
	if string(raw) != "3" {
		t.Fatalf("Expected stored %q, got %q", "3", raw)
	}
}

func testHIncrByNotInteger(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:hash-incr-bad"

	store.HSet(ctx, key, "quantity", []byte("many"))

	_, err := store.HIncrBy(ctx, key, "quantity", 1)
	if !errors.Is(err, kv.ErrNotInteger) {
		t.Fatalf("Expected ErrNotInteger, got %v", err)
	}
}

func testSAddMembers(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:set"

	added, err := store.SAdd(ctx, key, []byte("member1"), []byte("member2"))
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 2 {
		t.Fatalf("Expected 2 added, got %d", added)
	}

	members, err := store.SMembers(ctx, key)
	if err != nil {
		t.Fatalf("SMembers failed: %v", err)
	}
	if diff := cmp.Diff([]string{"member1", "member2"}, sortedStrings(members)); diff != "" {
		t.Fatalf("SMembers mismatch (-want +got):\n%s", diff)
	}

	added, err = store.SAdd(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if added != 0 {
		t.Fatalf("Expected 0 added for duplicate, got %d", added)
	}

	_, err = store.SMembers(ctx, "test:set-missing")
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for non-existent set, got %v", err)
	}
}

func testSRem(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:set-rem"

	store.SAdd(ctx, key, []byte("member1"), []byte("member2"))

	removed, err := store.SRem(ctx, key, []byte("member1"), []byte("absent"))
	if err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Expected 1 removed, got %d", removed)
	}

	// Removing the last member drops the key
	store.SRem(ctx, key, []byte("member2"))
	n, err := store.Exists(ctx, key)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("Expected empty set to be deleted")
	}
}

func testSIsMember(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:set-member"

	store.SAdd(ctx, key, []byte("member1"))

	isMember, err := store.SIsMember(ctx, key, []byte("member1"))
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if !isMember {
		t.Fatalf("Expected member1 to be a member")
	}

	isMember, err = store.SIsMember(ctx, key, []byte("member2"))
	if err != nil {
		t.Fatalf("SIsMember failed: %v", err)
	}
	if isMember {
		t.Fatalf("Expected member2 not to be a member")
	}

	isMember, err = store.SIsMember(ctx, "test:set-member-missing", []byte("member1"))
	if err != nil {
		t.Fatalf("SIsMember on missing key failed: %v", err)
	}
	if isMember {
		t.Fatalf("Expected false for missing key")
	}
}

func testSCard(t *testing.T, store kv.Store) {
	ctx := context.Background()
	key := "test:set-card"

	card, err := store.SCard(ctx, key)
	if err != nil {
		t.Fatalf("SCard on missing key failed: %v", err)
	}
	if card != 0 {
		t.Fatalf("Expected 0, got %d", card)
	}

	store.SAdd(ctx, key, []byte("a"), []byte("b"), []byte("c"), []byte("a"))
	card, err = store.SCard(ctx, key)
	if err != nil {
		t.Fatalf("SCard failed: %v", err)
	}
	if card != 3 {
		t.Fatalf("Expected 3, got %d", card)
	}
}

func testPing(t *testing.T, store kv.Store) {
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}
