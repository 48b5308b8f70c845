// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package untrusted

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/ninegrid/ninegrid/core/cookie"
)

func TestSetAndGetCookie(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	SetCookie(w, r, cookie.LangCookie, "zh Hans;")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "Lang", cookies[0].Name)
	assert.False(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	next.AddCookie(cookies[0])

	assert.Equal(t, "zh Hans;", GetCookie(next, cookie.LangCookie))
	assert.Empty(t, GetCookie(next, cookie.SessionCookie))
}

func TestSetEmptyValueClears(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	SetCookie(w, r, cookie.SessionCookie, "")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Expires.Before(cookieExpireDelete.AddDate(0, 0, 1)))
}

func TestClearCookie(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		cookie       cookie.CookieName
		tls          bool
		wantHTTPOnly bool
	}{
		{name: "session over http", cookie: cookie.SessionCookie, wantHTTPOnly: true},
		{name: "session over https", cookie: cookie.SessionCookie, tls: true, wantHTTPOnly: true},
		{name: "language", cookie: cookie.LangCookie},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			target := "http://localhost/"
			if tt.tls {
				target = "https://localhost/"
			}

			w := httptest.NewRecorder()
			ClearCookie(w, httptest.NewRequest(http.MethodGet, target, nil), tt.cookie)

			cookies := w.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, string(tt.cookie), cookies[0].Name)
			assert.Empty(t, cookies[0].Value)
			assert.Equal(t, "/", cookies[0].Path)
			assert.Equal(t, tt.tls, cookies[0].Secure)
			assert.Equal(t, tt.wantHTTPOnly, cookies[0].HttpOnly)
			assert.True(t, cookies[0].Expires.Before(time.Now()))
		})
	}
}
