// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package preview issues the handles that slot thumbnails are served under.

A handle is an unguessable token mapped to a copy of the image bytes. It
stays resolvable until it is released, which the slot store does exactly once
per handle: on replace, remove, reset, or when the owning session ends.
*/
package preview

import (
	"sync"

	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/core/idgen"
	"codeberg.org/ninegrid/ninegrid/core/lrucache"
)

// Handle is a client-visible reference to a previewable image.
type Handle string

// Registry maps live handles to image bytes. Bytes live in an LRU cache so
// the total stays bounded even if a caller forgets to release.
type Registry struct {
	cache *lrucache.LRUCache

	mu         sync.RWMutex
	mediaTypes map[Handle]string
}

// NewRegistry creates a registry holding at most capacity live handles.
// With compress set, image bytes are stored zstd-compressed when that helps.
func NewRegistry(capacity int, compress bool) (*Registry, error) {
	cache, err := lrucache.NewLRUCache(capacity, compress)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		cache:      cache,
		mediaTypes: make(map[Handle]string),
	}

	cache.OnEvict(func(key string, _ any) {
		reg.mu.Lock()
		delete(reg.mediaTypes, Handle(key))
		reg.mu.Unlock()

		log.Warn().
			Str("handle", key).
			Msg("Preview evicted while still live; raise session.maxSessions")
	})

	return reg, nil
}

// Create stores data and returns a fresh handle for it.
func (reg *Registry) Create(data []byte, mediaType string) Handle {
	h := Handle(idgen.MakeOpaque())

	// media type first so that Open never sees bytes without a type
	reg.mu.Lock()
	reg.mediaTypes[h] = mediaType
	reg.mu.Unlock()

	reg.cache.Add(string(h), data)

	return h
}

// Open resolves a live handle.
func (reg *Registry) Open(h Handle) ([]byte, string, bool) {
	reg.mu.RLock()
	mediaType, ok := reg.mediaTypes[h]
	reg.mu.RUnlock()

	if !ok {
		return nil, "", false
	}

	value, ok := reg.cache.Peek(string(h))
	if !ok {
		return nil, "", false
	}

	data, ok := value.([]byte)

	return data, mediaType, ok
}

// Release invalidates h. It reports true only for the call that actually
// released a live handle.
func (reg *Registry) Release(h Handle) bool {
	reg.mu.Lock()
	_, ok := reg.mediaTypes[h]
	delete(reg.mediaTypes, h)
	reg.mu.Unlock()

	removed := reg.cache.Remove(string(h))

	return ok && removed
}

// Live returns the number of handles that have been created and not released.
func (reg *Registry) Live() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.mediaTypes)
}
