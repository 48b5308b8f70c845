// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package lrucache

import (
	"bytes"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRUCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		size     int
		compress bool
		wantErr  bool
	}{
		{"ValidSize_NoCompression", 3, false, false},
		{"ValidSize_WithCompression", 3, true, false},
		{"ZeroSize", 0, false, true},
		{"NegativeSize", -1, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache, err := NewLRUCache(tt.size, tt.compress)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSize)
				assert.Nil(t, cache)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, 0, cache.Len())
		})
	}
}

// TestLRUCache_AddAndGet verifies retrieval and that the least recently used
// entry is the one evicted.
func TestLRUCache_AddAndGet(t *testing.T) {
	t.Parallel()

	cache, err := NewLRUCache(2, false)
	require.NoError(t, err)

	assert.False(t, cache.Add("foo", "bar"))

	value, ok := cache.Get("foo")
	require.True(t, ok)
	assert.Equal(t, "bar", value)

	cache.Add("hello", "world")
	// touch foo so hello becomes the oldest
	cache.Get("foo")

	assert.True(t, cache.Add("key3", "value3"))

	_, ok = cache.Get("hello")
	assert.False(t, ok)
	assert.Equal(t, []string{"foo", "key3"}, cache.Keys())
}

func TestLRUCache_AddExistingKey(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, false)
	cache.Add("a", 1)
	cache.Add("b", 2)

	assert.False(t, cache.Add("a", 10))
	assert.Equal(t, 2, cache.Len())

	v, _ := cache.Peek("a")
	assert.Equal(t, 10, v)
}

func TestLRUCache_PeekDoesNotPromote(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, false)
	cache.Add("a", 1)
	cache.Add("b", 2)

	_, ok := cache.Peek("a")
	require.True(t, ok)

	cache.Add("c", 3)

	assert.False(t, cache.Contains("a"))
	assert.True(t, cache.Contains("b"))

	v, ok := cache.Peek("missing")
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestLRUCache_Remove(t *testing.T) {
	t.Parallel()

	var evicted []string

	cache, _ := NewLRUCache(2, false)
	cache.OnEvict(func(key string, _ any) { evicted = append(evicted, key) })

	cache.Add("a", 1)

	assert.True(t, cache.Remove("a"))
	assert.False(t, cache.Remove("a"))
	assert.Empty(t, evicted, "Remove must not trigger the eviction callback")
}

func TestLRUCache_OnEvict(t *testing.T) {
	t.Parallel()

	type evictedEntry struct {
		key   string
		value any
	}

	var evicted []evictedEntry

	cache, _ := NewLRUCache(2, true)
	cache.OnEvict(func(key string, value any) {
		evicted = append(evicted, evictedEntry{key, value})
		// callback runs without the lock held
		_ = cache.Len()
	})

	payload := bytes.Repeat([]byte("ninegrid"), 512)

	cache.Add("a", payload)
	cache.Add("b", "two")
	cache.Add("c", 3)

	require.Len(t, evicted, 1)
	assert.Equal(t, "a", evicted[0].key)
	assert.Equal(t, payload, evicted[0].value, "evicted values are decompressed")

	assert.Equal(t, 2, cache.Drain())
	assert.Equal(t, 0, cache.Len())
	require.Len(t, evicted, 3)
	assert.Equal(t, "b", evicted[1].key)
	assert.Equal(t, "c", evicted[2].key)
}

func TestLRUCache_Compression(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(4, true)

	s := strings.Repeat("aaa", 4096)
	b := []byte(strings.Repeat("1234567890", 1024))

	cache.Add("s", s)
	cache.Add("b", b)

	cache.lock.RLock()
	assert.True(t, cache.items["s"].Value.(*cacheEntry).compressed)
	assert.True(t, cache.items["b"].Value.(*cacheEntry).compressed)
	cache.lock.RUnlock()

	gotS, ok := cache.Get("s")
	require.True(t, ok)
	assert.Equal(t, s, gotS)

	gotB, ok := cache.Get("b")
	require.True(t, ok)
	assert.Equal(t, b, gotB)

	// mutating the returned slice must not reach the cache
	gotB.([]byte)[0] = 'X'
	again, _ := cache.Peek("b")
	assert.Equal(t, b, again)
}

// TestLRUCache_Compression_Uncompressible ensures that data that doesn't compress well
// will be stored uncompressed even when compression is enabled.
func TestLRUCache_Compression_Uncompressible(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(2, true)

	b := make([]byte, 64*1024)
	_, _ = rand.New(rand.NewSource(1)).Read(b)

	cache.Add("rnd", b)

	cache.lock.RLock()
	assert.False(t, cache.items["rnd"].Value.(*cacheEntry).compressed)
	cache.lock.RUnlock()

	got, ok := cache.Get("rnd")
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestLRUCache_DecodeError(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(1, true)
	cache.Add("k", strings.Repeat("v", 1024))

	cache.lock.Lock()
	cache.items["k"].Value.(*cacheEntry).value = []byte("not zstd")
	cache.lock.Unlock()

	v, ok := cache.Get("k")
	assert.False(t, ok)
	assert.Nil(t, v)
}

// TestLRUCache_Concurrency checks for races and panics under compression.
func TestLRUCache_Concurrency(t *testing.T) {
	t.Parallel()

	cache, _ := NewLRUCache(16, true)

	var (
		wg      sync.WaitGroup
		evictMu sync.Mutex
		evicted int
	)

	cache.OnEvict(func(string, any) {
		evictMu.Lock()
		evicted++
		evictMu.Unlock()
	})

	payload := []byte(strings.Repeat("xyz-", 2048))

	const n = 64

	for i := range n {
		wg.Add(2)

		go func() {
			defer wg.Done()

			cache.Add("key-"+strconv.Itoa(i), payload)
		}()

		go func() {
			defer wg.Done()

			if v, ok := cache.Get("key-" + strconv.Itoa(i)); ok {
				assert.Equal(t, payload, v)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, 16, cache.Len())
	assert.Equal(t, n-16, evicted)
}
