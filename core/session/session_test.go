// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/ninegrid/ninegrid/core/authenticated"
	"codeberg.org/ninegrid/ninegrid/core/preview"
	"codeberg.org/ninegrid/ninegrid/core/slots"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, maxSessions int) (*Manager, *preview.Registry, *clock) {
	t.Helper()

	var validator authenticated.Validator
	validator.Generate()

	registry, err := preview.NewRegistry(maxSessions*slots.Count, false)
	require.NoError(t, err)

	m, err := NewManager(maxSessions, 10*time.Minute, registry, &validator)
	require.NoError(t, err)

	c := &clock{now: time.Now()}
	m.now = c.Now

	return m, registry, c
}

// start resolves a fresh session and returns a request carrying its cookie.
func start(t *testing.T, m *Manager) (*Session, *http.Request) {
	t.Helper()

	w := httptest.NewRecorder()
	sess, err := m.Resolve(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "Session", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])

	return sess, r
}

func fill(t *testing.T, sess *Session, n int) {
	t.Helper()

	files := make([]slots.File, n)
	for i := range files {
		files[i] = slots.File{Name: "a.png", MediaType: "image/png", Data: []byte{1, 2, 3}}
	}

	_, err := sess.Store.InsertFiles(files, nil)
	require.NoError(t, err)
}

func TestResolveRoundTrip(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, 4)
	sess, r := start(t, m)

	w := httptest.NewRecorder()
	again, err := m.Resolve(w, r)
	require.NoError(t, err)
	assert.Same(t, sess, again)
	assert.Empty(t, w.Result().Cookies(), "existing sessions keep their cookie")

	found, ok := m.Lookup(httptest.NewRecorder(), r)
	assert.True(t, ok)
	assert.Same(t, sess, found)
}

func TestResolveRejectsForgedCookie(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, 4)
	sess, _ := start(t, m)

	// a token signed by another key names the same session but must not reach it
	other, _, _ := newTestManager(t, 4)
	forged, err := other.sign(sess.ID)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "Session", Value: forged})

	_, ok := m.Lookup(httptest.NewRecorder(), r)
	assert.False(t, ok)

	w := httptest.NewRecorder()
	fresh, err := m.Resolve(w, r)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, fresh.ID)
	assert.Len(t, w.Result().Cookies(), 1)
}

func TestLookupWithoutCookie(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, 4)

	w := httptest.NewRecorder()
	_, ok := m.Lookup(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Zero(t, m.Len())
	assert.Empty(t, w.Result().Cookies(), "nothing to clear")
}

func TestLookupClearsRejectedCookie(t *testing.T) {
	t.Parallel()

	m, _, c := newTestManager(t, 4)
	sess, _ := start(t, m)

	other, _, _ := newTestManager(t, 4)
	forged, err := other.sign(sess.ID)
	require.NoError(t, err)

	c.Advance(-2 * tokenLifetime)
	expired, err := m.sign(sess.ID)
	require.NoError(t, err)
	c.Advance(2 * tokenLifetime)

	tests := []struct {
		name  string
		value string
	}{
		{"SignedByAnotherKey", forged},
		{"Expired", expired},
		{"NotAToken", "v4.public.garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/preview/x", nil)
			r.AddCookie(&http.Cookie{Name: "Session", Value: tt.value})

			w := httptest.NewRecorder()
			_, ok := m.Lookup(w, r)
			assert.False(t, ok)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, "Session", cookies[0].Name)
			assert.Empty(t, cookies[0].Value)
			assert.True(t, cookies[0].Expires.Before(time.Now()))
		})
	}
}

func TestEvictionReleasesPreviews(t *testing.T) {
	t.Parallel()

	m, registry, _ := newTestManager(t, 2)

	first, firstReq := start(t, m)
	fill(t, first, 3)

	second, _ := start(t, m)
	fill(t, second, 2)

	assert.Equal(t, 5, registry.Live())

	// a third session pushes out the least recently used one
	start(t, m)

	assert.Equal(t, 2, m.Len())
	assert.Zero(t, first.Store.Filled())
	assert.Equal(t, 2, registry.Live())

	_, ok := m.Lookup(httptest.NewRecorder(), firstReq)
	assert.False(t, ok)
}

func TestEvictedSessionRefusesMutations(t *testing.T) {
	t.Parallel()

	m, registry, _ := newTestManager(t, 1)

	held, heldReq := start(t, m)
	fill(t, held, 2)

	// a second browser pushes the held session out while a request of the
	// first one still has it
	start(t, m)

	require.True(t, held.Store.Closed())
	assert.Zero(t, registry.Live())

	_, err := held.Store.InsertFiles([]slots.File{{Name: "late.png", MediaType: "image/png", Data: []byte{1}}}, nil)
	require.ErrorIs(t, err, slots.ErrStoreClosed)
	assert.Zero(t, held.Store.Filled())
	assert.Zero(t, registry.Live())

	w := httptest.NewRecorder()
	fresh, err := m.Resolve(w, heldReq)
	require.NoError(t, err)
	assert.NotSame(t, held, fresh)
	assert.False(t, fresh.Store.Closed())
}

func TestIdleSessionsExpire(t *testing.T) {
	t.Parallel()

	m, registry, c := newTestManager(t, 4)

	idle, idleReq := start(t, m)
	fill(t, idle, 4)

	c.Advance(6 * time.Minute)

	active, activeReq := start(t, m)
	fill(t, active, 1)

	c.Advance(6 * time.Minute)

	_, ok := m.Lookup(httptest.NewRecorder(), activeReq)
	require.True(t, ok)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
	assert.Zero(t, idle.Store.Filled())
	assert.Equal(t, 1, registry.Live())

	_, ok = m.Lookup(httptest.NewRecorder(), idleReq)
	assert.False(t, ok)
}

func TestLookupExpiresStaleSession(t *testing.T) {
	t.Parallel()

	m, registry, c := newTestManager(t, 4)

	sess, r := start(t, m)
	fill(t, sess, 2)

	c.Advance(11 * time.Minute)

	_, ok := m.Lookup(httptest.NewRecorder(), r)
	assert.False(t, ok)
	assert.Zero(t, registry.Live())
	assert.True(t, sess.Store.Closed())
	assert.Zero(t, m.Sweep(), "already expired")
}

func TestCloseReleasesEverything(t *testing.T) {
	t.Parallel()

	m, registry, _ := newTestManager(t, 4)

	for range 3 {
		sess, _ := start(t, m)
		fill(t, sess, 3)
	}

	require.Equal(t, 9, registry.Live())

	m.Close()

	assert.Zero(t, m.Len())
	assert.Zero(t, registry.Live())
}

func TestRunStopsWithContext(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestFlash(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t, 1)
	sess, _ := start(t, m)

	_, ok := sess.TakeFlash()
	assert.False(t, ok)

	sess.SetFlash(FlashError, "first")
	sess.SetFlash(FlashSuccess, "second")

	f, ok := sess.TakeFlash()
	require.True(t, ok)
	assert.Equal(t, Flash{Level: FlashSuccess, Message: "second"}, f)

	_, ok = sess.TakeFlash()
	assert.False(t, ok)
}
