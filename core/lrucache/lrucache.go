// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package lrucache provides a thread-safe, fixed-capacity least-recently-used (LRU) cache.
Keys are strings. The cache evicts the least recently used entry when it reaches capacity
and reports every entry it drops to an optional eviction callback.
When created with compression enabled via [NewLRUCache], string and []byte values may be
stored in compressed form and are transparently decompressed by [LRUCache.Get] and [LRUCache.Peek].
*/
package lrucache

import (
	"container/list"
	"errors"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrInvalidSize = errors.New("must provide a positive size")

// valueType describes what kind of value we store for transparent compression/decompression.
type valueType int

const (
	vtUnknown valueType = iota
	vtBytes
	vtString
)

// EvictFunc receives entries dropped by capacity pressure or by [LRUCache.Drain].
// It is never called for entries removed with [LRUCache.Remove], and it runs
// without the cache lock held, so it may call back into the cache.
type EvictFunc func(key string, value any)

// LRUCache is a fixed-capacity, least-recently-used cache that is safe for concurrent use.
// Instances must be constructed with [NewLRUCache]; the zero value is not ready for use.
type LRUCache struct {
	size            int                      // Maximum capacity of the cache (number of entries)
	evictList       *list.List               // A doubly-linked list to manage the eviction order
	items           map[string]*list.Element // Maps string keys to their corresponding linked-list elements
	lock            sync.RWMutex             // For thread-safe operations
	onEvict         EvictFunc                // Optional; set before the cache is shared
	compressEnabled bool                     // Whether transparent compression is enabled
	zstdEnc         *zstd.Encoder            // Reusable zstd encoder for block operations
	zstdDec         *zstd.Decoder            // Reusable zstd decoder for block operations
}

// cacheEntry holds the key/value pair stored in each linked-list element.
type cacheEntry struct {
	key        string
	value      any
	compressed bool
	vtype      valueType
}

// NewLRUCache creates a new cache with the specified maximum size.
//
// If compress is true, string and []byte values are stored in a compressed form
// when this reduces space. Values of other types are stored uncompressed.
//
// It returns an error if size is not a positive integer.
func NewLRUCache(size int, compress bool) (*LRUCache, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	c := &LRUCache{
		size:            size,
		evictList:       list.New(),
		items:           make(map[string]*list.Element),
		compressEnabled: compress,
	}

	if compress {
		// A nil writer/reader lets us use EncodeAll/DecodeAll without streams.
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}

		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return nil, err
		}

		c.zstdEnc = enc
		c.zstdDec = dec
	}

	return c, nil
}

// OnEvict installs fn as the eviction callback. Call it before the cache is
// used from more than one goroutine.
func (c *LRUCache) OnEvict(fn EvictFunc) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onEvict = fn
}

// Add adds or updates the value for key.
//
// If the key exists, it becomes the most recently used.
// If the cache is at capacity, the least recently used item is evicted.
// Add reports whether an eviction occurred.
func (c *LRUCache) Add(key string, value any) bool {
	// Prepare (and possibly compress) the value before acquiring the lock.
	storedVal, compressed, vtype := c.prepareValue(value)

	c.lock.Lock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)

		if cacheEnt, ok := ent.Value.(*cacheEntry); ok {
			cacheEnt.value = storedVal
			cacheEnt.compressed = compressed
			cacheEnt.vtype = vtype
		}

		c.lock.Unlock()

		return false
	}

	c.items[key] = c.evictList.PushFront(&cacheEntry{
		key:        key,
		value:      storedVal,
		compressed: compressed,
		vtype:      vtype,
	})

	var evicted *cacheEntry
	if c.evictList.Len() > c.size {
		evicted = c.removeOldest()
	}

	onEvict := c.onEvict

	c.lock.Unlock()

	if evicted == nil {
		return false
	}

	c.notify(onEvict, evicted)

	return true
}

// Get retrieves the value for key and marks it as most recently used.
//
// The second result reports whether the key was found. When returning a
// []byte value, Get returns a copy to prevent callers from mutating the
// cached data.
func (c *LRUCache) Get(key string) (any, bool) {
	// Lock for write since we will move the element to the front.
	c.lock.Lock()

	ent, ok := c.items[key]
	if !ok {
		c.lock.Unlock()

		return nil, false
	}

	c.evictList.MoveToFront(ent)

	cacheEnt, ok := ent.Value.(*cacheEntry)
	if !ok {
		c.lock.Unlock()

		return nil, false
	}

	stored, compressed, vtype := cacheEnt.value, cacheEnt.compressed, cacheEnt.vtype

	c.lock.Unlock()

	return c.decompressValue(stored, compressed, vtype)
}

// Peek retrieves the value for key without modifying the LRU order.
func (c *LRUCache) Peek(key string) (any, bool) {
	c.lock.RLock()

	ent, ok := c.items[key]
	if !ok {
		c.lock.RUnlock()

		return nil, false
	}

	cacheEnt, ok := ent.Value.(*cacheEntry)
	if !ok {
		c.lock.RUnlock()

		return nil, false
	}

	stored, compressed, vtype := cacheEnt.value, cacheEnt.compressed, cacheEnt.vtype

	c.lock.RUnlock()

	return c.decompressValue(stored, compressed, vtype)
}

// Contains reports whether key is present without touching the LRU order
// or decompressing the value.
func (c *LRUCache) Contains(key string) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	_, ok := c.items[key]

	return ok
}

// Remove deletes the entry associated with key from the cache.
//
// Remove reports whether the key was present and removed.
func (c *LRUCache) Remove(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)

		return true
	}

	return false
}

// Drain empties the cache, passing every entry to the eviction callback from
// the oldest to the newest.
func (c *LRUCache) Drain() int {
	c.lock.Lock()

	drained := make([]*cacheEntry, 0, c.evictList.Len())

	for ent := c.evictList.Back(); ent != nil; ent = c.evictList.Back() {
		if cacheEnt := c.removeElement(ent); cacheEnt != nil {
			drained = append(drained, cacheEnt)
		}
	}

	onEvict := c.onEvict

	c.lock.Unlock()

	for _, cacheEnt := range drained {
		c.notify(onEvict, cacheEnt)
	}

	return len(drained)
}

// Keys returns a slice of all keys in the cache, from the oldest to the newest.
func (c *LRUCache) Keys() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	keys := make([]string, 0, len(c.items))

	for ent := c.evictList.Back(); ent != nil; ent = ent.Prev() {
		if cacheEnt, ok := ent.Value.(*cacheEntry); ok {
			keys = append(keys, cacheEnt.key)
		}
	}

	return keys
}

// Len returns the current number of items in the cache.
func (c *LRUCache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.evictList.Len()
}

func (c *LRUCache) notify(onEvict EvictFunc, cacheEnt *cacheEntry) {
	if onEvict == nil {
		return
	}

	value, ok := c.decompressValue(cacheEnt.value, cacheEnt.compressed, cacheEnt.vtype)
	if !ok {
		value = nil
	}

	onEvict(cacheEnt.key, value)
}

// removeOldest removes the oldest item and returns it.
func (c *LRUCache) removeOldest() *cacheEntry {
	ent := c.evictList.Back()
	if ent == nil {
		return nil
	}

	return c.removeElement(ent)
}

// removeElement unlinks e from the eviction list and the map.
func (c *LRUCache) removeElement(e *list.Element) *cacheEntry {
	c.evictList.Remove(e)

	kv, ok := e.Value.(*cacheEntry)
	if !ok {
		return nil
	}

	delete(c.items, kv.key)

	return kv
}

// prepareValue evaluates whether we should compress the provided value.
// Compression is only kept if it reduces size. Uncompressed []byte values
// are copied before being stored.
//
// Safe to call without holding the lock: the zstd Encoder supports
// concurrent EncodeAll calls.
func (c *LRUCache) prepareValue(value any) (stored any, compressed bool, vtype valueType) {
	switch v := value.(type) {
	case []byte:
		if c.compressEnabled {
			vtype = vtBytes
		}

		if len(v) == 0 {
			return v, false, vtype
		}

		if c.compressEnabled {
			if compressedBytes := c.zstdEnc.EncodeAll(v, nil); len(compressedBytes) < len(v) {
				return compressedBytes, true, vtype
			}
		}

		copied := make([]byte, len(v))
		copy(copied, v)

		return copied, false, vtype

	case string:
		if c.compressEnabled {
			vtype = vtString
		}

		if len(v) == 0 || !c.compressEnabled {
			return v, false, vtype
		}

		if compressedBytes := c.zstdEnc.EncodeAll([]byte(v), nil); len(compressedBytes) < len(v) {
			return compressedBytes, true, vtype
		}

		return v, false, vtype

	default:
		return value, false, vtUnknown
	}
}

// decompressValue returns the actual value to callers, performing decompression if needed.
// If decompression fails the value is considered unavailable.
func (c *LRUCache) decompressValue(stored any, compressed bool, vtype valueType) (any, bool) {
	if !compressed {
		if b, ok := stored.([]byte); ok {
			if b == nil {
				return nil, true
			}

			copied := make([]byte, len(b))
			copy(copied, b)

			return copied, true
		}

		return stored, true
	}

	comp, ok := stored.([]byte)
	if !ok || c.zstdDec == nil {
		return nil, false
	}

	decoded, err := c.zstdDec.DecodeAll(comp, nil)
	if err != nil {
		return nil, false
	}

	if vtype == vtString {
		return string(decoded), true
	}

	return decoded, true
}
