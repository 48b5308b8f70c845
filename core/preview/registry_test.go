// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package preview

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLifecycle(t *testing.T) {
	t.Parallel()

	for _, compress := range []bool{false, true} {
		reg, err := NewRegistry(4, compress)
		require.NoError(t, err)

		data := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 256)

		h := reg.Create(data, "image/png")
		assert.NotEmpty(t, h)
		assert.Equal(t, 1, reg.Live())

		got, mediaType, ok := reg.Open(h)
		require.True(t, ok)
		assert.Equal(t, data, got)
		assert.Equal(t, "image/png", mediaType)

		assert.True(t, reg.Release(h))
		assert.False(t, reg.Release(h), "second release is a no-op")
		assert.Equal(t, 0, reg.Live())

		_, _, ok = reg.Open(h)
		assert.False(t, ok)
	}
}

func TestRegistryHandlesAreUnique(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry(8, false)

	a := reg.Create([]byte("a"), "image/png")
	b := reg.Create([]byte("a"), "image/png")

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, reg.Live())
}

func TestRegistryEvictionForgetsHandle(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry(1, false)

	first := reg.Create([]byte("first"), "image/gif")
	second := reg.Create([]byte("second"), "image/gif")

	_, _, ok := reg.Open(first)
	assert.False(t, ok)
	assert.False(t, reg.Release(first))

	_, _, ok = reg.Open(second)
	assert.True(t, ok)
	assert.Equal(t, 1, reg.Live())
}

func TestRegistryConcurrentUse(t *testing.T) {
	t.Parallel()

	reg, _ := NewRegistry(64, true)

	var wg sync.WaitGroup

	for range 32 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			h := reg.Create([]byte("pixels"), "image/jpeg")
			_, _, _ = reg.Open(h)
			reg.Release(h)
		}()
	}

	wg.Wait()

	assert.Equal(t, 0, reg.Live())
}
