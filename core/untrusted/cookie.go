// Copyright 2025, the ninegrid contributors
// SPDX-License-Identifier: AGPL-3.0-only

package untrusted

import (
	"net/http"
	"net/url"
	"time"

	"codeberg.org/ninegrid/ninegrid/core/cookie"
	"codeberg.org/ninegrid/ninegrid/server/utils"
)

// SameSite=Lax allows cookies on top-level navigations, so the grid is still
// there when users arrive from an external link.
const CookieSameSite = http.SameSiteLaxMode

// Cookies will expire in 30 days from when they are set.
const cookieMaxAge = 30 * 24 * time.Hour

// Clear a cookie by setting its expiration date to this
var cookieExpireDelete = time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC)

func createCookieUnencoded(name cookie.CookieName, value string, expires time.Time, isSecure bool) http.Cookie {
	return http.Cookie{
		Name:     string(name),
		Value:    value,
		Path:     "/",
		Expires:  expires,
		Secure:   isSecure,
		HttpOnly: cookie.IsHttpOnly(name),
		SameSite: CookieSameSite,
	}
}

// GetCookie returns the unescaped value of the named cookie, or "" when it is
// missing or malformed.
func GetCookie(r *http.Request, name cookie.CookieName) string {
	c, err := r.Cookie(string(name))
	if err != nil {
		return ""
	}

	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}

	return value
}

// SetCookie stores value in the named cookie. An empty value clears it.
func SetCookie(w http.ResponseWriter, r *http.Request, name cookie.CookieName, value string) {
	if value == "" {
		ClearCookie(w, r, name)

		return
	}

	c := createCookieUnencoded(
		name, url.QueryEscape(value),
		time.Now().Add(cookieMaxAge),
		utils.IsConnectionSecure(r))
	http.SetCookie(w, &c)
}

// ClearCookie tells the browser to drop the named cookie.
func ClearCookie(w http.ResponseWriter, r *http.Request, name cookie.CookieName) {
	c := createCookieUnencoded(
		name, "",
		cookieExpireDelete,
		utils.IsConnectionSecure(r))
	http.SetCookie(w, &c)
}
