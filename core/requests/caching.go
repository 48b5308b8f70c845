// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package requests

import (
	"bytes"
	"encoding/gob"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/core/lrucache"
)

// cachedItem is a successful response body kept for reuse.
type cachedItem struct {
	URL         string
	MediaType   string
	ContentType string
	Body        []byte
	ExpiresAt   time.Time
}

// responseCache keeps recent fetches, gob-encoded so the LRU can compress
// them. A nil *responseCache is a valid, always-empty cache.
type responseCache struct {
	lru *lrucache.LRUCache
	ttl time.Duration
	now func() time.Time
}

func newResponseCache(size int, ttl time.Duration) (*responseCache, error) {
	lru, err := lrucache.NewLRUCache(size, true)
	if err != nil {
		return nil, err
	}

	return &responseCache{lru: lru, ttl: ttl, now: time.Now}, nil
}

func cacheKey(rawURL string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(rawURL))

	return strconv.FormatUint(h.Sum64(), 36)
}

func (c *responseCache) get(rawURL string) (*cachedItem, bool) {
	if c == nil {
		return nil, false
	}

	key := cacheKey(rawURL)

	value, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}

	encoded, ok := value.([]byte)
	if !ok {
		c.lru.Remove(key)

		return nil, false
	}

	var item cachedItem
	if err := gob.NewDecoder(bytes.NewReader(encoded)).Decode(&item); err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("Dropping undecodable fetch cache entry")
		c.lru.Remove(key)

		return nil, false
	}

	// Hash collisions resolve to a miss.
	if item.URL != rawURL || !c.now().Before(item.ExpiresAt) {
		c.lru.Remove(key)

		return nil, false
	}

	return &item, true
}

func (c *responseCache) put(rawURL string, item *cachedItem) {
	if c == nil || c.ttl <= 0 {
		return
	}

	stored := *item
	stored.ExpiresAt = c.now().Add(c.ttl)

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&stored); err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("Failed to encode fetch cache entry")

		return
	}

	c.lru.Add(cacheKey(rawURL), buf.Bytes())
}
