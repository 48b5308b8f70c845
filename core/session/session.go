// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package session gives every browser its own slot store.

The browser holds a signed token naming its session. Sessions live in a
bounded LRU; when a session is evicted, expires from idleness or the server
shuts down, its store is closed: every preview handle it held is released and a
request still holding the session can no longer change it.
*/
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/rs/zerolog/log"

	"codeberg.org/ninegrid/ninegrid/core/authenticated"
	"codeberg.org/ninegrid/ninegrid/core/cookie"
	"codeberg.org/ninegrid/ninegrid/core/idgen"
	"codeberg.org/ninegrid/ninegrid/core/lrucache"
	"codeberg.org/ninegrid/ninegrid/core/slots"
	"codeberg.org/ninegrid/ninegrid/core/untrusted"
)

const (
	pasetoSubject = "ninegrid session"
	tokenLifetime = 30 * 24 * time.Hour
)

var pasetoParser = paseto.MakeParser([]paseto.Rule{
	paseto.NotExpired(),
	paseto.Subject(pasetoSubject),
})

var errNoSessionCookie = errors.New("no session cookie")

// FlashLevel is the severity of a flash message.
type FlashLevel string

const (
	FlashSuccess FlashLevel = "success"
	FlashError   FlashLevel = "error"
)

// Flash is a message shown once on the next page render.
type Flash struct {
	Level   FlashLevel
	Message string
}

// Session is one browser's grid.
type Session struct {
	ID    string
	Store *slots.Store

	mu       sync.Mutex
	lastSeen time.Time
	flash    *Flash
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return now.Sub(s.lastSeen)
}

// SetFlash replaces any pending flash message.
func (s *Session) SetFlash(level FlashLevel, message string) {
	s.mu.Lock()
	s.flash = &Flash{Level: level, Message: message}
	s.mu.Unlock()
}

// TakeFlash returns and clears the pending flash message.
func (s *Session) TakeFlash() (Flash, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flash == nil {
		return Flash{}, false
	}

	f := *s.flash
	s.flash = nil

	return f, true
}

// Manager tracks live sessions.
type Manager struct {
	cache       *lrucache.LRUCache
	issuer      slots.PreviewIssuer
	validator   *authenticated.Validator
	idleTimeout time.Duration
	now         func() time.Time

	// serialises session creation so concurrent first requests from the
	// same browser cannot race on the cache
	createMu sync.Mutex
}

// NewManager returns a manager holding at most maxSessions sessions.
func NewManager(
	maxSessions int,
	idleTimeout time.Duration,
	issuer slots.PreviewIssuer,
	validator *authenticated.Validator,
) (*Manager, error) {
	cache, err := lrucache.NewLRUCache(maxSessions, false)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cache:       cache,
		issuer:      issuer,
		validator:   validator,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}

	cache.OnEvict(func(id string, value any) {
		if sess, ok := value.(*Session); ok {
			sess.Store.Close()
		}

		log.Debug().
			Str("session", id).
			Msg("Session evicted")
	})

	return m, nil
}

// Lookup returns the caller's session without creating one. A session
// cookie whose token is rejected is cleared.
func (m *Manager) Lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	id, err := m.sessionID(r)
	if err != nil {
		if !errors.Is(err, errNoSessionCookie) {
			untrusted.ClearCookie(w, r, cookie.SessionCookie)
		}

		return nil, false
	}

	return m.get(id)
}

// Resolve returns the caller's session, starting a new one and setting the
// cookie when the caller has none or it has expired. The new cookie replaces
// any rejected one.
func (m *Manager) Resolve(w http.ResponseWriter, r *http.Request) (*Session, error) {
	if id, err := m.sessionID(r); err == nil {
		if sess, ok := m.get(id); ok {
			return sess, nil
		}
	}

	m.createMu.Lock()
	defer m.createMu.Unlock()

	sess := &Session{
		ID:       idgen.MakeOpaque(),
		Store:    slots.NewStore(m.issuer),
		lastSeen: m.now(),
	}

	signed, err := m.sign(sess.ID)
	if err != nil {
		return nil, err
	}

	m.cache.Add(sess.ID, sess)
	untrusted.SetCookie(w, r, cookie.SessionCookie, signed)

	return sess, nil
}

// get returns a live session and marks it as used. A session found idle past
// the timeout is expired on the spot.
func (m *Manager) get(id string) (*Session, bool) {
	value, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}

	sess, ok := value.(*Session)
	if !ok || sess.Store.Closed() {
		return nil, false
	}

	now := m.now()
	if sess.idleSince(now) > m.idleTimeout {
		m.expire(sess)

		return nil, false
	}

	sess.touch(now)

	return sess, true
}

// Sweep expires every session idle for longer than the timeout and reports
// how many it expired.
func (m *Manager) Sweep() int {
	now := m.now()
	expired := 0

	for _, id := range m.cache.Keys() {
		value, ok := m.cache.Peek(id)
		if !ok {
			continue
		}

		if sess, ok := value.(*Session); ok && sess.idleSince(now) > m.idleTimeout {
			if m.expire(sess) {
				expired++
			}
		}
	}

	return expired
}

// Run sweeps on every tick of interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				log.Info().
					Int("expired", n).
					Int("remaining", m.Len()).
					Msg("Expired idle sessions")
			}
		}
	}
}

// Close ends every session, releasing all preview handles.
func (m *Manager) Close() {
	n := m.cache.Drain()

	log.Info().
		Int("sessions", n).
		Msg("Closed all sessions")
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// expire removes sess unless someone else already did.
func (m *Manager) expire(sess *Session) bool {
	if !m.cache.Remove(sess.ID) {
		return false
	}

	sess.Store.Close()

	return true
}

func (m *Manager) sign(id string) (string, error) {
	token := paseto.NewToken()
	token.SetExpiration(m.now().Add(tokenLifetime))
	token.SetSubject(pasetoSubject) // will be checked by the parser `pasetoParser`
	token.SetJti(id)

	return m.validator.Sign(&token)
}

func (m *Manager) sessionID(r *http.Request) (string, error) {
	value := untrusted.GetCookie(r, cookie.SessionCookie)
	if value == "" {
		return "", errNoSessionCookie
	}

	token, err := m.validator.Parse(pasetoParser, value)
	if err != nil {
		log.Debug().
			Err(err).
			Msg("Invalid session cookie")

		return "", err
	}

	return token.GetJti()
}
